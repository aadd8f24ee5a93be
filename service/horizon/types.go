package horizon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// These types mirror the subset of Horizon's JSON that the mapper reads.
// Optional fields are pointers so the mapper can tell absent from empty.

// Transaction is a Horizon transaction resource.
type Transaction struct {
	ID             string        `json:"id"`
	Hash           string        `json:"hash"`
	PagingToken    string        `json:"paging_token"`
	Successful     bool          `json:"successful"`
	Ledger         uint64        `json:"ledger"`
	CreatedAt      string        `json:"created_at"`
	SourceAccount  string        `json:"source_account"`
	FeeCharged     NumericString `json:"fee_charged"`
	OperationCount int           `json:"operation_count"`
	MemoType       string        `json:"memo_type"`
	Memo           *string       `json:"memo"`
}

// PathAsset is one intermediate hop of a path payment.
type PathAsset struct {
	AssetType   string  `json:"asset_type"`
	AssetCode   *string `json:"asset_code"`
	AssetIssuer *string `json:"asset_issuer"`
}

// Operation is a Horizon operation resource. Horizon reuses field names
// across operation types, so one struct covers every kind we map.
type Operation struct {
	ID              string `json:"id"`
	PagingToken     string `json:"paging_token"`
	Type            string `json:"type"`
	SourceAccount   string `json:"source_account"`
	TransactionHash string `json:"transaction_hash"`
	CreatedAt       string `json:"created_at"`

	// payment, path payments, clawback
	From        *string `json:"from"`
	To          *string `json:"to"`
	AssetType   *string `json:"asset_type"`
	AssetCode   *string `json:"asset_code"`
	AssetIssuer *string `json:"asset_issuer"`
	Amount      *string `json:"amount"`

	// create_account
	Funder          *string `json:"funder"`
	Account         *string `json:"account"`
	StartingBalance *string `json:"starting_balance"`

	// change_trust
	Trustor *string `json:"trustor"`
	Trustee *string `json:"trustee"`
	Limit   *string `json:"limit"`

	// manage_sell_offer, manage_buy_offer
	SellingAssetType   *string     `json:"selling_asset_type"`
	SellingAssetCode   *string     `json:"selling_asset_code"`
	SellingAssetIssuer *string     `json:"selling_asset_issuer"`
	BuyingAssetType    *string     `json:"buying_asset_type"`
	BuyingAssetCode    *string     `json:"buying_asset_code"`
	BuyingAssetIssuer  *string     `json:"buying_asset_issuer"`
	Price              *string     `json:"price"`
	OfferID            *FlexUint64 `json:"offer_id"`

	// path_payment_strict_send, path_payment_strict_receive
	SourceAmount      *string     `json:"source_amount"`
	SourceAssetType   *string     `json:"source_asset_type"`
	SourceAssetCode   *string     `json:"source_asset_code"`
	SourceAssetIssuer *string     `json:"source_asset_issuer"`
	Path              []PathAsset `json:"path"`

	// clawback_claimable_balance
	BalanceID *string `json:"balance_id"`

	// set_options
	InflationDest   *string   `json:"inflation_dest"`
	MasterKeyWeight *uint32   `json:"master_key_weight"`
	LowThreshold    *uint32   `json:"low_threshold"`
	MedThreshold    *uint32   `json:"med_threshold"`
	HighThreshold   *uint32   `json:"high_threshold"`
	HomeDomain      *string   `json:"home_domain"`
	SetFlags        *FlagMask `json:"set_flags"`
	ClearFlags      *FlagMask `json:"clear_flags"`
	SignerKey       *string   `json:"signer_key"`
	SignerWeight    *uint32   `json:"signer_weight"`
}

// FeeStats is the /fee_stats resource. Every number arrives as a string.
type FeeStats struct {
	LastLedger         NumericString   `json:"last_ledger"`
	LastLedgerBaseFee  NumericString   `json:"last_ledger_base_fee"`
	LedgerCapacityUsed NumericString   `json:"ledger_capacity_usage"`
	FeeCharged         FeeDistribution `json:"fee_charged"`
}

type FeeDistribution struct {
	Min  NumericString `json:"min"`
	Max  NumericString `json:"max"`
	Mode NumericString `json:"mode"`
	P90  NumericString `json:"p90"`
}

type Balance struct {
	AssetType   string  `json:"asset_type"`
	AssetCode   *string `json:"asset_code"`
	AssetIssuer *string `json:"asset_issuer"`
	Balance     string  `json:"balance"`
}

type Signer struct {
	Key    string `json:"key"`
	Weight uint32 `json:"weight"`
	Type   string `json:"type"`
}

type AccountFlags struct {
	AuthRequired        bool `json:"auth_required"`
	AuthRevocable       bool `json:"auth_revocable"`
	AuthImmutable       bool `json:"auth_immutable"`
	AuthClawbackEnabled bool `json:"auth_clawback_enabled"`
}

// Account is the /accounts/{id} resource.
type Account struct {
	AccountID  string        `json:"account_id"`
	Sequence   NumericString `json:"sequence"`
	Balances   []Balance     `json:"balances"`
	Signers    []Signer      `json:"signers"`
	HomeDomain *string       `json:"home_domain"`
	Flags      AccountFlags  `json:"flags"`
}

// Root is the subset of the Horizon root resource used for health checks.
type Root struct {
	HorizonVersion           string `json:"horizon_version"`
	CoreLatestLedger         uint64 `json:"core_latest_ledger"`
	HistoryLatestLedger      uint64 `json:"history_latest_ledger"`
	NetworkPassphrase        string `json:"network_passphrase"`
	CurrentProtocolVersion   int    `json:"current_protocol_version"`
	SupportedProtocolVersion int    `json:"supported_protocol_version"`
}

// page is the HAL envelope around collection responses.
type page[T any] struct {
	Links struct {
		Next struct {
			Href string `json:"href"`
		} `json:"next"`
	} `json:"_links"`
	Embedded struct {
		Records []T `json:"records"`
	} `json:"_embedded"`
}

// NumericString holds a decimal number that Horizon may send either as a
// JSON string or as a bare number.
type NumericString string

func (n *NumericString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = NumericString(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("numeric field: %w", err)
	}
	*n = NumericString(num.String())
	return nil
}

// Uint64 parses the value as an unsigned integer.
func (n NumericString) Uint64() (uint64, error) {
	return strconv.ParseUint(string(n), 10, 64)
}

// FlexUint64 accepts a number or a numeric string. offer_id is a string in
// current Horizon releases and a number in older ones.
type FlexUint64 uint64

func (f *FlexUint64) UnmarshalJSON(data []byte) error {
	var n NumericString
	if err := n.UnmarshalJSON(data); err != nil {
		return err
	}
	if n == "" {
		*f = 0
		return nil
	}
	v, err := n.Uint64()
	if err != nil {
		return fmt.Errorf("invalid unsigned integer %q: %w", n, err)
	}
	*f = FlexUint64(v)
	return nil
}

// FlagMask accepts either a single integer mask or an array of flag values,
// which are OR-ed together.
type FlagMask uint32

func (m *FlagMask) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = 0
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var flags []uint32
		if err := json.Unmarshal(data, &flags); err != nil {
			return fmt.Errorf("flag list: %w", err)
		}
		var mask uint32
		for _, f := range flags {
			mask |= f
		}
		*m = FlagMask(mask)
		return nil
	}
	var v uint32
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("flag mask: %w", err)
	}
	*m = FlagMask(v)
	return nil
}
