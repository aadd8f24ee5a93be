package explain

import (
	"fmt"
	"strconv"
)

type CreateAccountExplanation struct {
	OperationID     string `json:"operation_id"`
	Summary         string `json:"summary"`
	Funder          string `json:"funder"`
	NewAccount      string `json:"new_account"`
	StartingBalance string `json:"starting_balance"`
}

func ExplainCreateAccount(op CreateAccount) CreateAccountExplanation {
	return CreateAccountExplanation{
		OperationID: op.ID,
		Summary: fmt.Sprintf("%s created account %s with a starting balance of %s XLM.",
			op.Funder, op.NewAccount, op.StartingBalance),
		Funder:          op.Funder,
		NewAccount:      op.NewAccount,
		StartingBalance: op.StartingBalance,
	}
}

type ChangeTrustExplanation struct {
	OperationID string `json:"operation_id"`
	Summary     string `json:"summary"`
	Trustor     string `json:"trustor"`
	AssetCode   string `json:"asset_code"`
	AssetIssuer string `json:"asset_issuer"`
	Limit       string `json:"limit"`
	IsRemoval   bool   `json:"is_removal"`
}

// ExplainChangeTrust treats a limit of exactly "0" as removing the trustline.
func ExplainChangeTrust(op ChangeTrust) ChangeTrustExplanation {
	removal := op.Limit == "0"

	var summary string
	if removal {
		summary = fmt.Sprintf("%s removed trust for %s.", op.Trustor, op.AssetCode)
	} else {
		summary = fmt.Sprintf("%s opted in to hold up to %s %s issued by %s.",
			op.Trustor, op.Limit, op.AssetCode, op.AssetIssuer)
	}

	return ChangeTrustExplanation{
		OperationID: op.ID,
		Summary:     summary,
		Trustor:     op.Trustor,
		AssetCode:   op.AssetCode,
		AssetIssuer: op.AssetIssuer,
		Limit:       op.Limit,
		IsRemoval:   removal,
	}
}

// OfferAction classifies what a manage offer operation did to the book.
type OfferAction string

const (
	OfferActionNew    OfferAction = "new"
	OfferActionUpdate OfferAction = "update"
	OfferActionCancel OfferAction = "cancel"
)

type ManageOfferExplanation struct {
	OperationID  string      `json:"operation_id"`
	Summary      string      `json:"summary"`
	Seller       string      `json:"seller"`
	SellingAsset string      `json:"selling_asset"`
	BuyingAsset  string      `json:"buying_asset"`
	Amount       string      `json:"amount"`
	Price        string      `json:"price"`
	OfferID      uint64      `json:"offer_id"`
	Action       OfferAction `json:"action"`
}

// ExplainManageOffer reports a zero amount on an existing offer as a
// cancellation regardless of side or price.
func ExplainManageOffer(op ManageOffer) ManageOfferExplanation {
	e := ManageOfferExplanation{
		OperationID:  op.ID,
		Seller:       op.Seller,
		SellingAsset: op.Selling,
		BuyingAsset:  op.Buying,
		Amount:       op.Amount,
		Price:        op.Price,
		OfferID:      op.OfferID,
	}

	if op.Amount == "0" && op.OfferID > 0 {
		e.Action = OfferActionCancel
		e.Summary = fmt.Sprintf("%s cancelled their existing offer #%d", op.Seller, op.OfferID)
		return e
	}

	base, quote := op.Selling, op.Buying
	if op.Side == OfferBuy {
		base, quote = op.Buying, op.Selling
	}

	e.Action = OfferActionUpdate
	if op.OfferID == 0 {
		e.Action = OfferActionNew
	}
	e.Summary = fmt.Sprintf("%s placed an order to %s %s %s for %s at a price of %s %s per %s",
		op.Seller, op.Side, op.Amount, base, quote, op.Price, quote, base)
	return e
}

type PathPaymentExplanation struct {
	OperationID     string  `json:"operation_id"`
	Summary         string  `json:"summary"`
	PaymentType     string  `json:"payment_type"`
	Sender          string  `json:"sender"`
	Destination     string  `json:"destination"`
	SendAsset       string  `json:"send_asset"`
	SendAmount      string  `json:"send_amount"`
	DestAsset       string  `json:"dest_asset"`
	DestAmount      string  `json:"dest_amount"`
	PathDescription *string `json:"path_description,omitempty"`
}

func ExplainPathPayment(op PathPayment) PathPaymentExplanation {
	sender := op.Sender
	if sender == "" {
		sender = UnknownAccount
	}

	var summary string
	if op.SendAsset == op.DestAsset {
		summary = fmt.Sprintf("%s sent %s %s to %s", sender, op.SendAmount, op.SendAsset, op.Destination)
	} else {
		summary = fmt.Sprintf("%s sent %s %s which was converted to %s %s received by %s",
			sender, op.SendAmount, op.SendAsset, op.DestAmount, op.DestAsset, op.Destination)
	}

	var via *string
	if n := len(op.Path); n > 0 {
		d := fmt.Sprintf("via %d intermediate %s", n, pluralize(n, "asset", "assets"))
		via = &d
		summary += " " + d
	}

	return PathPaymentExplanation{
		OperationID:     op.ID,
		Summary:         summary,
		PaymentType:     op.Mode.String(),
		Sender:          sender,
		Destination:     op.Destination,
		SendAsset:       op.SendAsset,
		SendAmount:      op.SendAmount,
		DestAsset:       op.DestAsset,
		DestAmount:      op.DestAmount,
		PathDescription: via,
	}
}

// UnknownIssuer stands in for a clawback source account the upstream omitted.
const UnknownIssuer = "Unknown issuer"

const clawbackContext = "Clawback is a feature of regulated assets that allows issuers to recover funds under specific conditions."

type ClawbackExplanation struct {
	OperationID string `json:"operation_id"`
	Summary     string `json:"summary"`
	Issuer      string `json:"issuer"`
	From        string `json:"from"`
	AssetCode   string `json:"asset_code"`
	AssetIssuer string `json:"asset_issuer"`
	Amount      string `json:"amount"`
}

func ExplainClawback(op Clawback) ClawbackExplanation {
	issuer := op.Issuer
	if issuer == "" {
		issuer = UnknownIssuer
	}
	return ClawbackExplanation{
		OperationID: op.ID,
		Summary: fmt.Sprintf("The asset issuer reclaimed %s %s from %s. %s",
			op.Amount, op.AssetCode, op.From, clawbackContext),
		Issuer:      issuer,
		From:        op.From,
		AssetCode:   op.AssetCode,
		AssetIssuer: op.AssetIssuer,
		Amount:      op.Amount,
	}
}

type ClawbackClaimableBalanceExplanation struct {
	OperationID string `json:"operation_id"`
	Summary     string `json:"summary"`
	Issuer      string `json:"issuer"`
	BalanceID   string `json:"balance_id"`
}

func ExplainClawbackClaimableBalance(op ClawbackClaimableBalance) ClawbackClaimableBalanceExplanation {
	issuer := op.Issuer
	if issuer == "" {
		issuer = UnknownIssuer
	}
	return ClawbackClaimableBalanceExplanation{
		OperationID: op.ID,
		Summary: fmt.Sprintf("The asset issuer clawed back claimable balance %s. %s",
			ShortenBalanceID(op.BalanceID), clawbackContext),
		Issuer:    issuer,
		BalanceID: op.BalanceID,
	}
}

type SetOptionsExplanation struct {
	OperationID string   `json:"operation_id"`
	Summary     string   `json:"summary"`
	Account     string   `json:"account"`
	Changes     []string `json:"changes"`
}

// ExplainSetOptions lists every field the operation touched, in a fixed order.
func ExplainSetOptions(op SetOptions) SetOptionsExplanation {
	account := op.Account
	if account == "" {
		account = UnknownAccount
	}

	changes := []string{}
	if op.InflationDest != nil {
		changes = append(changes, "set inflation destination to "+*op.InflationDest)
	}
	if op.MasterWeight != nil {
		if *op.MasterWeight == 0 {
			changes = append(changes, "disabled the master key")
		} else {
			changes = append(changes, "set master key weight to "+strconv.FormatUint(uint64(*op.MasterWeight), 10))
		}
	}
	if op.LowThreshold != nil {
		changes = append(changes, fmt.Sprintf("set low threshold to %d", *op.LowThreshold))
	}
	if op.MedThreshold != nil {
		changes = append(changes, fmt.Sprintf("set medium threshold to %d", *op.MedThreshold))
	}
	if op.HighThreshold != nil {
		changes = append(changes, fmt.Sprintf("set high threshold to %d", *op.HighThreshold))
	}
	if op.HomeDomain != nil {
		if *op.HomeDomain == "" {
			changes = append(changes, "cleared the home domain")
		} else {
			changes = append(changes, "set home domain to "+*op.HomeDomain)
		}
	}
	if op.SetFlags > 0 {
		changes = append(changes, "enabled account flag(s): "+FormatFlags(op.SetFlags))
	}
	if op.ClearFlags > 0 {
		changes = append(changes, "disabled account flag(s): "+FormatFlags(op.ClearFlags))
	}
	if op.SignerKey != nil {
		key := ShortenKey(*op.SignerKey)
		switch {
		case op.SignerWeight == nil:
			changes = append(changes, "modified signer "+key)
		case *op.SignerWeight == 0:
			changes = append(changes, "removed signer "+key)
		default:
			changes = append(changes, fmt.Sprintf("added signer %s with weight %d", key, *op.SignerWeight))
		}
	}

	var summary string
	if len(changes) == 0 {
		summary = account + " submitted a set_options operation with no recognised changes."
	} else {
		summary = account + " updated their account: " + JoinNatural(changes)
	}

	return SetOptionsExplanation{
		OperationID: op.ID,
		Summary:     summary,
		Account:     account,
		Changes:     changes,
	}
}

// OperationExplanation is the kind-independent envelope used when every
// operation of a transaction is explained. Details holds the kind-specific
// record, or nil for unsupported kinds.
type OperationExplanation struct {
	OperationID string `json:"operation_id"`
	Type        string `json:"type"`
	Summary     string `json:"summary"`
	Supported   bool   `json:"supported"`
	Details     any    `json:"details,omitempty"`
}

// ExplainOperation dispatches op to its explainer.
func ExplainOperation(op Operation, labels LabelResolver) OperationExplanation {
	out := OperationExplanation{
		OperationID: op.OperationID(),
		Type:        op.Type(),
		Supported:   true,
	}

	switch v := op.(type) {
	case Payment:
		e := ExplainPayment(v, labels)
		out.Summary, out.Details = e.Summary, e
	case CreateAccount:
		e := ExplainCreateAccount(v)
		out.Summary, out.Details = e.Summary, e
	case ChangeTrust:
		e := ExplainChangeTrust(v)
		out.Summary, out.Details = e.Summary, e
	case ManageOffer:
		e := ExplainManageOffer(v)
		out.Summary, out.Details = e.Summary, e
	case PathPayment:
		e := ExplainPathPayment(v)
		out.Summary, out.Details = e.Summary, e
	case Clawback:
		e := ExplainClawback(v)
		out.Summary, out.Details = e.Summary, e
	case ClawbackClaimableBalance:
		e := ExplainClawbackClaimableBalance(v)
		out.Summary, out.Details = e.Summary, e
	case SetOptions:
		e := ExplainSetOptions(v)
		out.Summary, out.Details = e.Summary, e
	default:
		out.Supported = false
		out.Summary = fmt.Sprintf("This %s operation is not yet explained.", op.Type())
	}

	return out
}

// ExplainOperations explains every operation of tx in order.
func ExplainOperations(tx Transaction, labels LabelResolver) ([]OperationExplanation, error) {
	if len(tx.Operations) == 0 {
		return nil, ErrEmptyTransaction
	}
	out := make([]OperationExplanation, 0, len(tx.Operations))
	for _, op := range tx.Operations {
		out = append(out, ExplainOperation(op, labels))
	}
	return out, nil
}
