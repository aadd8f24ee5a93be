package explain

// Operation is one of the closed set of operation kinds the engine knows about.
// Unrecognised upstream types are carried as Other.
type Operation interface {
	// OperationID returns the upstream operation id.
	OperationID() string
	// Type returns the upstream type discriminant, e.g. "payment".
	Type() string

	operation()
}

// OfferSide tells which side of the book a ManageOffer was placed on.
type OfferSide int

const (
	OfferSell OfferSide = iota
	OfferBuy
)

func (s OfferSide) String() string {
	if s == OfferBuy {
		return "buy"
	}
	return "sell"
}

// PathMode tells which amount of a PathPayment was fixed.
type PathMode int

const (
	StrictSend PathMode = iota
	StrictReceive
)

func (m PathMode) String() string {
	if m == StrictReceive {
		return "strict_receive"
	}
	return "strict_send"
}

// Payment moves an asset from one account to another. Source is empty when
// the upstream record omits it.
type Payment struct {
	ID          string
	Source      string
	Destination string
	Asset       string
	Amount      string
}

type CreateAccount struct {
	ID              string
	Funder          string
	NewAccount      string
	StartingBalance string
}

type ChangeTrust struct {
	ID          string
	Trustor     string
	AssetCode   string
	AssetIssuer string
	Limit       string
}

// ManageOffer covers both manage_sell_offer and manage_buy_offer.
// OfferID is zero for a new offer.
type ManageOffer struct {
	ID      string
	Side    OfferSide
	Seller  string
	Selling string
	Buying  string
	Amount  string
	Price   string
	OfferID uint64
}

// PathPayment covers both strict send and strict receive. Path holds the
// formatted intermediate assets in hop order.
type PathPayment struct {
	ID          string
	Mode        PathMode
	Sender      string
	Destination string
	SendAsset   string
	SendAmount  string
	DestAsset   string
	DestAmount  string
	Path        []string
}

type Clawback struct {
	ID          string
	Issuer      string
	From        string
	AssetCode   string
	AssetIssuer string
	Amount      string
}

type ClawbackClaimableBalance struct {
	ID        string
	Issuer    string
	BalanceID string
}

// SetOptions carries only the fields the operation actually changed; nil
// means untouched. Flag masks of zero mean no flags.
type SetOptions struct {
	ID            string
	Account       string
	InflationDest *string
	MasterWeight  *uint32
	LowThreshold  *uint32
	MedThreshold  *uint32
	HighThreshold *uint32
	HomeDomain    *string
	SetFlags      uint32
	ClearFlags    uint32
	SignerKey     *string
	SignerWeight  *uint32
}

// Other stands in for every operation type without a dedicated explainer.
type Other struct {
	ID       string
	TypeName string
}

func (o Payment) OperationID() string                  { return o.ID }
func (o CreateAccount) OperationID() string            { return o.ID }
func (o ChangeTrust) OperationID() string              { return o.ID }
func (o ManageOffer) OperationID() string              { return o.ID }
func (o PathPayment) OperationID() string              { return o.ID }
func (o Clawback) OperationID() string                 { return o.ID }
func (o ClawbackClaimableBalance) OperationID() string { return o.ID }
func (o SetOptions) OperationID() string               { return o.ID }
func (o Other) OperationID() string                    { return o.ID }

func (Payment) Type() string                  { return "payment" }
func (CreateAccount) Type() string            { return "create_account" }
func (ChangeTrust) Type() string              { return "change_trust" }
func (ClawbackClaimableBalance) Type() string { return "clawback_claimable_balance" }
func (Clawback) Type() string                 { return "clawback" }
func (SetOptions) Type() string               { return "set_options" }
func (o Other) Type() string                  { return o.TypeName }

func (o ManageOffer) Type() string {
	if o.Side == OfferBuy {
		return "manage_buy_offer"
	}
	return "manage_sell_offer"
}

func (o PathPayment) Type() string {
	if o.Mode == StrictReceive {
		return "path_payment_strict_receive"
	}
	return "path_payment_strict_send"
}

func (Payment) operation()                  {}
func (CreateAccount) operation()            {}
func (ChangeTrust) operation()              {}
func (ManageOffer) operation()              {}
func (PathPayment) operation()              {}
func (Clawback) operation()                 {}
func (ClawbackClaimableBalance) operation() {}
func (SetOptions) operation()               {}
func (Other) operation()                    {}

// MaxTextMemoBytes is the protocol limit on a text memo.
const MaxTextMemoBytes = 28

// Memo is the optional annotation attached to a transaction.
type Memo interface {
	memo()
}

type NoMemo struct{}

type TextMemo struct{ Text string }

type IDMemo struct{ ID uint64 }

// HashMemo and ReturnMemo hold the hex encoding of a 32-byte value.
type HashMemo struct{ Hash string }

type ReturnMemo struct{ Hash string }

func (NoMemo) memo()     {}
func (TextMemo) memo()   {}
func (IDMemo) memo()     {}
func (HashMemo) memo()   {}
func (ReturnMemo) memo() {}

// NewTextMemo returns false when text is longer than 28 bytes.
func NewTextMemo(text string) (TextMemo, bool) {
	if len(text) > MaxTextMemoBytes {
		return TextMemo{}, false
	}
	return TextMemo{Text: text}, true
}

// Transaction is the engine's read-only view of one ledger transaction.
// Memo is nil when the transaction carries none.
type Transaction struct {
	Hash       string
	Successful bool
	FeeCharged uint64
	Operations []Operation
	Memo       Memo
}
