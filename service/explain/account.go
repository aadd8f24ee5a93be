package explain

import "fmt"

// Balance is one line of an account's holdings. AssetType "native" is XLM.
type Balance struct {
	AssetType   string
	AssetCode   string
	AssetIssuer string
	Balance     string
}

type Signer struct {
	Key    string
	Weight uint32
	Type   string
}

type AccountFlags struct {
	AuthRequired        bool
	AuthRevocable       bool
	AuthImmutable       bool
	AuthClawbackEnabled bool
}

// Account is the engine's view of an account's current state.
type Account struct {
	AccountID  string
	Sequence   string
	Balances   []Balance
	Signers    []Signer
	HomeDomain string
	Flags      AccountFlags
}

type AccountExplanation struct {
	AccountID        string   `json:"account_id"`
	Label            *string  `json:"label,omitempty"`
	Summary          string   `json:"summary"`
	XLMBalance       string   `json:"xlm_balance"`
	AssetCount       int      `json:"asset_count"`
	SignerCount      int      `json:"signer_count"`
	HomeDomain       *string  `json:"home_domain,omitempty"`
	FlagDescriptions []string `json:"flag_descriptions"`
}

// ExplainAccount summarises holdings, signers and authorization flags.
func ExplainAccount(a Account, labels LabelResolver) AccountExplanation {
	xlm := "0"
	others := 0
	for _, b := range a.Balances {
		if b.AssetType == "native" {
			xlm = b.Balance
			continue
		}
		others++
	}
	signers := len(a.Signers)

	summary := fmt.Sprintf("This account holds %s XLM", xlm)
	if others > 0 {
		summary += fmt.Sprintf(" and %d other %s", others, pluralize(others, "asset", "assets"))
	}
	summary += fmt.Sprintf(". It has %d %s", signers, pluralize(signers, "signer", "signers"))
	if a.HomeDomain != "" {
		summary += " and home domain " + a.HomeDomain + "."
	} else {
		summary += "."
	}

	flags := []string{}
	if a.Flags.AuthRequired {
		flags = append(flags, "Auth required: accounts must be authorized before holding this asset.")
	}
	if a.Flags.AuthRevocable {
		flags = append(flags, "Auth revocable: the issuer can freeze this asset in a holder's account.")
	}
	if a.Flags.AuthImmutable {
		flags = append(flags, "Auth immutable: account flags and signers can no longer be changed.")
	}
	if a.Flags.AuthClawbackEnabled {
		flags = append(flags, "Clawback enabled: the issuer can claw back this asset from holders.")
	}

	out := AccountExplanation{
		AccountID:        a.AccountID,
		Summary:          summary,
		XLMBalance:       xlm,
		AssetCount:       others,
		SignerCount:      signers,
		FlagDescriptions: flags,
	}
	if a.HomeDomain != "" {
		d := a.HomeDomain
		out.HomeDomain = &d
	}
	if labels != nil {
		if l, ok := labels.Resolve(a.AccountID); ok {
			out.Label = &l
		}
	}
	return out
}
