package horizon

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/brojonat/stellar-explain/service/explain"
)

const nativeAssetType = "native"

// FormatAsset renders an asset triple for display: "XLM (native)" for the
// native asset, "CODE (ISSUER)" when both parts are known, the bare code when
// only the code is, and "Unknown" otherwise.
func FormatAsset(assetType string, code, issuer *string) string {
	if assetType == nativeAssetType {
		return "XLM (native)"
	}
	c, i := deref(code), deref(issuer)
	switch {
	case c != "" && i != "":
		return fmt.Sprintf("%s (%s)", c, i)
	case c != "":
		return c
	default:
		return "Unknown"
	}
}

// MapOperation converts one Horizon operation into the engine's model.
// It never fails: unknown types become explain.Other and missing fields
// take the documented defaults.
func MapOperation(op Operation) explain.Operation {
	switch op.Type {
	case "payment":
		return explain.Payment{
			ID:          op.ID,
			Source:      deref(op.From),
			Destination: deref(op.To),
			Asset:       FormatAsset(orDefault(op.AssetType, nativeAssetType), op.AssetCode, op.AssetIssuer),
			Amount:      amountOrZero(op.Amount),
		}
	case "create_account":
		return explain.CreateAccount{
			ID:              op.ID,
			Funder:          orDefault(op.Funder, op.SourceAccount),
			NewAccount:      deref(op.Account),
			StartingBalance: amountOrZero(op.StartingBalance),
		}
	case "change_trust":
		return explain.ChangeTrust{
			ID:          op.ID,
			Trustor:     orDefault(op.Trustor, op.SourceAccount),
			AssetCode:   deref(op.AssetCode),
			AssetIssuer: deref(op.AssetIssuer),
			Limit:       amountOrZero(op.Limit),
		}
	case "manage_sell_offer", "manage_buy_offer":
		side := explain.OfferSell
		if op.Type == "manage_buy_offer" {
			side = explain.OfferBuy
		}
		var offerID uint64
		if op.OfferID != nil {
			offerID = uint64(*op.OfferID)
		}
		return explain.ManageOffer{
			ID:      op.ID,
			Side:    side,
			Seller:  op.SourceAccount,
			Selling: FormatAsset(deref(op.SellingAssetType), op.SellingAssetCode, op.SellingAssetIssuer),
			Buying:  FormatAsset(deref(op.BuyingAssetType), op.BuyingAssetCode, op.BuyingAssetIssuer),
			Amount:  amountOrZero(op.Amount),
			Price:   amountOrZero(op.Price),
			OfferID: offerID,
		}
	case "path_payment_strict_send", "path_payment_strict_receive":
		mode := explain.StrictSend
		if op.Type == "path_payment_strict_receive" {
			mode = explain.StrictReceive
		}
		path := make([]string, 0, len(op.Path))
		for _, hop := range op.Path {
			path = append(path, FormatAsset(hop.AssetType, hop.AssetCode, hop.AssetIssuer))
		}
		return explain.PathPayment{
			ID:          op.ID,
			Mode:        mode,
			Sender:      deref(op.From),
			Destination: deref(op.To),
			SendAsset:   FormatAsset(deref(op.SourceAssetType), op.SourceAssetCode, op.SourceAssetIssuer),
			SendAmount:  amountOrZero(op.SourceAmount),
			DestAsset:   FormatAsset(deref(op.AssetType), op.AssetCode, op.AssetIssuer),
			DestAmount:  amountOrZero(op.Amount),
			Path:        path,
		}
	case "clawback":
		return explain.Clawback{
			ID:          op.ID,
			Issuer:      op.SourceAccount,
			From:        deref(op.From),
			AssetCode:   deref(op.AssetCode),
			AssetIssuer: deref(op.AssetIssuer),
			Amount:      amountOrZero(op.Amount),
		}
	case "clawback_claimable_balance":
		return explain.ClawbackClaimableBalance{
			ID:        op.ID,
			Issuer:    op.SourceAccount,
			BalanceID: deref(op.BalanceID),
		}
	case "set_options":
		so := explain.SetOptions{
			ID:            op.ID,
			Account:       op.SourceAccount,
			InflationDest: op.InflationDest,
			MasterWeight:  op.MasterKeyWeight,
			LowThreshold:  op.LowThreshold,
			MedThreshold:  op.MedThreshold,
			HighThreshold: op.HighThreshold,
			HomeDomain:    op.HomeDomain,
			SignerKey:     op.SignerKey,
			SignerWeight:  op.SignerWeight,
		}
		if op.SetFlags != nil {
			so.SetFlags = uint32(*op.SetFlags)
		}
		if op.ClearFlags != nil {
			so.ClearFlags = uint32(*op.ClearFlags)
		}
		return so
	default:
		return explain.Other{ID: op.ID, TypeName: op.Type}
	}
}

// MapTransaction builds the engine's transaction from a Horizon transaction
// and its operations. An unparsable fee_charged is an error.
func MapTransaction(tx Transaction, ops []Operation) (explain.Transaction, error) {
	fee, err := tx.FeeCharged.Uint64()
	if err != nil {
		return explain.Transaction{}, fmt.Errorf("invalid fee_charged %q for transaction %s: %w", tx.FeeCharged, tx.Hash, err)
	}

	mapped := make([]explain.Operation, 0, len(ops))
	for _, op := range ops {
		mapped = append(mapped, MapOperation(op))
	}

	return explain.Transaction{
		Hash:       tx.Hash,
		Successful: tx.Successful,
		FeeCharged: fee,
		Operations: mapped,
		Memo:       MapMemo(tx.MemoType, tx.Memo),
	}, nil
}

// MapMemo converts Horizon's memo_type/memo pair. It returns nil for "none",
// unknown types, missing values, over-long text and unparsable ids. Hash and
// return memos arrive base64 encoded and are re-encoded as hex.
func MapMemo(memoType string, value *string) explain.Memo {
	if value == nil {
		return nil
	}
	switch memoType {
	case "text":
		m, ok := explain.NewTextMemo(*value)
		if !ok {
			return nil
		}
		return m
	case "id":
		id, err := strconv.ParseUint(*value, 10, 64)
		if err != nil {
			return nil
		}
		return explain.IDMemo{ID: id}
	case "hash":
		return explain.HashMemo{Hash: memoHex(*value)}
	case "return":
		return explain.ReturnMemo{Hash: memoHex(*value)}
	default:
		return nil
	}
}

// memoHex decodes a base64 memo hash to hex, passing through values that
// are not base64.
func memoHex(v string) string {
	raw, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return v
	}
	return hex.EncodeToString(raw)
}

// MapFeeStats parses a fee stats snapshot; any unparsable field fails it.
func MapFeeStats(fs FeeStats) (explain.FeeStats, error) {
	var out explain.FeeStats
	fields := []struct {
		name string
		raw  NumericString
		dst  *uint64
	}{
		{"last_ledger_base_fee", fs.LastLedgerBaseFee, &out.BaseFee},
		{"fee_charged.min", fs.FeeCharged.Min, &out.MinFee},
		{"fee_charged.max", fs.FeeCharged.Max, &out.MaxFee},
		{"fee_charged.mode", fs.FeeCharged.Mode, &out.ModeFee},
		{"fee_charged.p90", fs.FeeCharged.P90, &out.P90Fee},
	}
	for _, f := range fields {
		v, err := f.raw.Uint64()
		if err != nil {
			return explain.FeeStats{}, fmt.Errorf("invalid fee stats field %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = v
	}
	return out, nil
}

// MapAccount converts an account resource.
func MapAccount(a Account) explain.Account {
	out := explain.Account{
		AccountID:  a.AccountID,
		Sequence:   string(a.Sequence),
		HomeDomain: deref(a.HomeDomain),
		Flags: explain.AccountFlags{
			AuthRequired:        a.Flags.AuthRequired,
			AuthRevocable:       a.Flags.AuthRevocable,
			AuthImmutable:       a.Flags.AuthImmutable,
			AuthClawbackEnabled: a.Flags.AuthClawbackEnabled,
		},
	}
	for _, b := range a.Balances {
		out.Balances = append(out.Balances, explain.Balance{
			AssetType:   b.AssetType,
			AssetCode:   deref(b.AssetCode),
			AssetIssuer: deref(b.AssetIssuer),
			Balance:     b.Balance,
		})
	}
	for _, s := range a.Signers {
		out.Signers = append(out.Signers, explain.Signer{Key: s.Key, Weight: s.Weight, Type: s.Type})
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orDefault(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}

func amountOrZero(s *string) string {
	return orDefault(s, "0")
}
