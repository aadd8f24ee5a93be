package explain

import "strings"

// LabelResolver maps an account address to a human-readable label such as an
// exchange name. Implementations must be safe for concurrent reads.
type LabelResolver interface {
	Resolve(address string) (string, bool)
}

// StaticLabels is an immutable address to label table. Keys are stored
// trimmed and upper-cased; lookups normalise the same way.
type StaticLabels map[string]string

// NewStaticLabels copies m into a normalised table.
func NewStaticLabels(m map[string]string) StaticLabels {
	out := make(StaticLabels, len(m))
	for addr, label := range m {
		out[normalizeAddress(addr)] = label
	}
	return out
}

func (l StaticLabels) Resolve(address string) (string, bool) {
	label, ok := l[normalizeAddress(address)]
	return label, ok
}

// Merge returns a new table with other's entries layered over l.
func (l StaticLabels) Merge(other map[string]string) StaticLabels {
	out := make(StaticLabels, len(l)+len(other))
	for k, v := range l {
		out[k] = v
	}
	for k, v := range other {
		out[normalizeAddress(k)] = v
	}
	return out
}

func normalizeAddress(address string) string {
	return strings.ToUpper(strings.TrimSpace(address))
}

// DisplayAddress renders "Label (ADDRESS)" for known addresses and the raw
// address otherwise. A nil resolver means no labels.
func DisplayAddress(address string, labels LabelResolver) string {
	if labels == nil || address == "" {
		return address
	}
	if label, ok := labels.Resolve(address); ok {
		return label + " (" + address + ")"
	}
	return address
}

// Networks understood by DefaultLabels.
const (
	NetworkPublic  = "public"
	NetworkTestnet = "testnet"
)

var publicLabels = map[string]string{
	"GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWHF": "Stellar Foundation",
	"GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAH6H5": "SDF Distribution",
	"GBINANCEAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA":  "Binance",
	"GCOINBASEAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA":  "Coinbase",
	"GKRAKENAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA":   "Kraken",
	"GROBINHOODAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA":  "Robinhood",
	"GANCHORAGEAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA":  "Anchorage Digital",
	"GUSDCISSUERAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA":  "USDC Issuer (Circle)",
	"GSTRONGHOLDAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA":  "Stronghold",
	"GTEMPOEUROAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA":  "Tempo",
	"GLOBSTRVAULTAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA":  "LOBSTR Vault",
}

// DefaultLabels returns the built-in label table for a network. Testnet has
// no well-known addresses, so its table is empty.
func DefaultLabels(network string) StaticLabels {
	if network == NetworkPublic {
		return NewStaticLabels(publicLabels)
	}
	return StaticLabels{}
}
