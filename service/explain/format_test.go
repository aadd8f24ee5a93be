package explain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinNatural(t *testing.T) {
	tests := []struct {
		name  string
		items []string
		want  string
	}{
		{"empty", nil, ""},
		{"one", []string{"a"}, "a"},
		{"two", []string{"a", "b"}, "a and b"},
		{"three", []string{"a", "b", "c"}, "a, b, and c"},
		{"four", []string{"a", "b", "c", "d"}, "a, b, c, and d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, JoinNatural(tt.items))
		})
	}
}

func TestJoinNatural_SingleOxfordComma(t *testing.T) {
	for n := 3; n <= 8; n++ {
		items := make([]string, n)
		for i := range items {
			items[i] = "x"
		}
		got := JoinNatural(items)
		assert.Equal(t, 1, countSubstr(got, ", and "), "n=%d", n)
		assert.Equal(t, n-1, countSubstr(got, ","), "n=%d", n)
	}
}

func countSubstr(s, sub string) int {
	n := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			n++
		}
	}
	return n
}

func TestShortenKey(t *testing.T) {
	assert.Equal(t, "GABC", ShortenKey("GABC"))
	assert.Equal(t, "GABCDEFGHIJK", ShortenKey("GABCDEFGHIJK"))
	assert.Equal(t, "GABC...KLMN", ShortenKey("GABCDEFGHIJKLMN"))
}

func TestShortenBalanceID(t *testing.T) {
	assert.Equal(t, "0000000012345678", ShortenBalanceID("0000000012345678"))
	assert.Equal(t, "00000000...cdef", ShortenBalanceID("00000000abcdef0123456789abcdef"))
}

func TestFormatHash(t *testing.T) {
	assert.Equal(t, "short", FormatHash("short"))
	hash := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	assert.Equal(t, "e3b0c442...7852b855", FormatHash(hash))
}

func TestDecodeFlags(t *testing.T) {
	assert.Nil(t, DecodeFlags(0))
	assert.Equal(t, []string{"AUTH_REQUIRED"}, DecodeFlags(1))
	assert.Equal(t, []string{"AUTH_REQUIRED", "AUTH_REVOCABLE"}, DecodeFlags(3))
	assert.Equal(t, []string{"AUTH_REQUIRED", "AUTH_REVOCABLE", "AUTH_IMMUTABLE", "CLAWBACK_ENABLED"}, DecodeFlags(15))
	assert.Equal(t, []string{"CLAWBACK_ENABLED"}, DecodeFlags(8|16))
}

func TestFormatFlags(t *testing.T) {
	assert.Equal(t, "AUTH_REVOCABLE, CLAWBACK_ENABLED", FormatFlags(10))
	assert.Equal(t, "16", FormatFlags(16))
}

func TestStroopsToXLM(t *testing.T) {
	tests := []struct {
		stroops uint64
		want    string
	}{
		{0, "0.0000000"},
		{1, "0.0000001"},
		{100, "0.0000100"},
		{10_000_000, "1.0000000"},
		{12_345_678_901, "1234.5678901"},
		{18_446_744_073_709_551_615, "1844674407370.9551615"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StroopsToXLM(tt.stroops), "stroops=%d", tt.stroops)
	}
}

func TestFormatLedgerTime(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"utc suffix", "2024-01-15T14:32:00Z", "2024-01-15 at 14:32 UTC"},
		{"plus offset", "2024-01-15T14:32:00+00:00", "2024-01-15 at 14:32 UTC"},
		{"minus offset", "2024-01-15T09:05:59-05:00", "2024-01-15 at 09:05 UTC"},
		{"no zone", "2024-01-15T14:32:00", "2024-01-15 at 14:32 UTC"},
		{"surrounding space", "  2024-01-15T14:32:00Z ", "2024-01-15 at 14:32 UTC"},
		{"short time", "2024-01-15T14", "2024-01-15 at 14 UTC"},
		{"empty time", "2024-01-15T", "2024-01-15 at  UTC"},
		{"date only", "2024-01-15", "2024-01-15"},
		{"garbage", "not a timestamp", "not a timestamp"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatLedgerTime(tt.in))
		})
	}
}

func TestFormatLedgerTime_NoSeparatorIsByteIdentical(t *testing.T) {
	in := " 2024-01-15 "
	assert.Equal(t, in, FormatLedgerTime(in))
}
