package explain

import (
	"fmt"
	"math"
	"strings"
)

// HighFeeMultiple is how many times the base fee a charge may reach before it
// is reported as above average.
const HighFeeMultiple = 5

// FeeStats is a point-in-time snapshot of network fees, all in stroops.
type FeeStats struct {
	BaseFee uint64 `json:"base_fee"`
	MinFee  uint64 `json:"min_fee"`
	MaxFee  uint64 `json:"max_fee"`
	ModeFee uint64 `json:"mode_fee"`
	P90Fee  uint64 `json:"p90_fee"`
}

// DefaultFeeStats returns typical network values for use when the live
// snapshot is unavailable.
func DefaultFeeStats() FeeStats {
	return FeeStats{
		BaseFee: 100,
		MinFee:  100,
		MaxFee:  100_000,
		ModeFee: 100,
		P90Fee:  1_000,
	}
}

// IsHighFee reports whether fee is strictly more than five times base.
func IsHighFee(fee, base uint64) bool {
	if base > math.MaxUint64/HighFeeMultiple {
		return false
	}
	return fee > base*HighFeeMultiple
}

// IsHighFee reports whether fee is high relative to the snapshot's base fee.
func (s FeeStats) IsHighFee(fee uint64) bool {
	return IsHighFee(fee, s.BaseFee)
}

// FeeMultiplier is fee divided by base, floored. A zero base counts as 1.
func FeeMultiplier(fee, base uint64) uint64 {
	return fee / max(base, 1)
}

// FeePriority selects a recommended fee level.
type FeePriority string

const (
	PriorityLow    FeePriority = "low"
	PriorityMedium FeePriority = "medium"
	PriorityHigh   FeePriority = "high"
)

// RecommendedFee suggests a fee in stroops for the given priority. Unknown
// priorities get the base fee.
func (s FeeStats) RecommendedFee(p FeePriority) uint64 {
	switch FeePriority(strings.ToLower(string(p))) {
	case PriorityMedium:
		return max(s.ModeFee, s.BaseFee)
	case PriorityHigh:
		return max(s.P90Fee, s.ModeFee)
	default:
		return s.BaseFee
	}
}

// ExplainFee describes the fee a transaction paid. Without stats only the
// amount is stated.
func ExplainFee(feeCharged uint64, stats *FeeStats) string {
	xlm := StroopsToXLM(feeCharged)
	if stats == nil {
		return fmt.Sprintf("A fee of %s XLM was charged.", xlm)
	}
	if stats.IsHighFee(feeCharged) {
		return fmt.Sprintf("A fee of %s XLM was charged. This is above average — %dx the base fee.",
			xlm, FeeMultiplier(feeCharged, stats.BaseFee))
	}
	return fmt.Sprintf("A fee of %s XLM was charged. This is a standard network fee.", xlm)
}
