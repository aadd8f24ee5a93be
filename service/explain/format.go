package explain

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// StroopsPerXLM is the number of stroops in one lumen.
const StroopsPerXLM = 10_000_000

// ShortenKey renders keys longer than 12 characters as first4...last4.
func ShortenKey(key string) string {
	if len(key) > 12 {
		return key[:4] + "..." + key[len(key)-4:]
	}
	return key
}

// ShortenBalanceID renders claimable balance ids longer than 16 characters
// as first8...last4.
func ShortenBalanceID(id string) string {
	if len(id) > 16 {
		return id[:8] + "..." + id[len(id)-4:]
	}
	return id
}

// FormatHash renders memo hashes longer than 20 characters as first8...last8.
func FormatHash(hash string) string {
	if len(hash) > 20 {
		return hash[:8] + "..." + hash[len(hash)-8:]
	}
	return hash
}

// JoinNatural joins items as an English list: "a", "a and b", "a, b, and c".
func JoinNatural(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		head := strings.Join(items[:len(items)-1], ", ")
		return head + ", and " + items[len(items)-1]
	}
}

// Account flag bits as they appear in set_options set_flags/clear_flags.
const (
	FlagAuthRequired    uint32 = 1
	FlagAuthRevocable   uint32 = 2
	FlagAuthImmutable   uint32 = 4
	FlagClawbackEnabled uint32 = 8
)

var flagNames = []struct {
	bit  uint32
	name string
}{
	{FlagAuthRequired, "AUTH_REQUIRED"},
	{FlagAuthRevocable, "AUTH_REVOCABLE"},
	{FlagAuthImmutable, "AUTH_IMMUTABLE"},
	{FlagClawbackEnabled, "CLAWBACK_ENABLED"},
}

// DecodeFlags returns the names of the known bits set in mask, lowest bit first.
func DecodeFlags(mask uint32) []string {
	var names []string
	for _, f := range flagNames {
		if mask&f.bit != 0 {
			names = append(names, f.name)
		}
	}
	return names
}

// FormatFlags joins the decoded flag names with ", ". A mask with no known
// bits is rendered as its decimal value.
func FormatFlags(mask uint32) string {
	names := DecodeFlags(mask)
	if len(names) == 0 {
		return strconv.FormatUint(uint64(mask), 10)
	}
	return strings.Join(names, ", ")
}

// StroopsToXLM converts stroops to a lumen amount with exactly 7 decimals.
func StroopsToXLM(stroops uint64) string {
	v := new(big.Int).SetUint64(stroops)
	return decimal.NewFromBigInt(v, -7).StringFixed(7)
}

// FormatLedgerTime turns "2024-01-15T14:32:00Z" into "2024-01-15 at 14:32 UTC".
// Input without a 'T' separator is returned unchanged. Never fails.
func FormatLedgerTime(iso string) string {
	s := strings.TrimSpace(iso)
	pos := strings.IndexByte(s, 'T')
	if pos < 0 {
		return iso
	}

	date := s[:pos]
	clock := s[pos+1:]

	switch {
	case strings.IndexByte(clock, 'Z') >= 0:
		clock = clock[:strings.IndexByte(clock, 'Z')]
	case strings.IndexByte(clock, '+') >= 0:
		clock = clock[:strings.IndexByte(clock, '+')]
	case len(clock) > 1 && strings.IndexByte(clock[1:], '-') >= 0:
		// only an offset suffix like -05:00, never the leading character
		clock = clock[:strings.IndexByte(clock[1:], '-')+1]
	}

	if len(clock) >= 5 {
		clock = clock[:5]
	}

	return fmt.Sprintf("%s at %s UTC", date, clock)
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
