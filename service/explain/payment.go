package explain

import "fmt"

// UnknownAccount stands in for a source account the upstream record omitted.
const UnknownAccount = "Unknown"

// PaymentExplanation describes one payment operation.
type PaymentExplanation struct {
	OperationID string `json:"operation_id"`
	Summary     string `json:"summary"`
	From        string `json:"from"`
	To          string `json:"to"`
	Asset       string `json:"asset"`
	Amount      string `json:"amount"`
}

// ExplainPayment produces "<from> sent <amount> <asset> to <to>". Addresses
// known to labels are rendered as "Label (ADDRESS)".
func ExplainPayment(p Payment, labels LabelResolver) PaymentExplanation {
	from := p.Source
	if from == "" {
		from = UnknownAccount
	}

	summary := fmt.Sprintf("%s sent %s %s to %s",
		DisplayAddress(from, labels), p.Amount, p.Asset, DisplayAddress(p.Destination, labels))

	return PaymentExplanation{
		OperationID: p.ID,
		Summary:     summary,
		From:        from,
		To:          p.Destination,
		Asset:       p.Asset,
		Amount:      p.Amount,
	}
}

// ExplainPaymentWithFee is ExplainPayment with a note on how the transaction
// fee compares to the network base fee.
func ExplainPaymentWithFee(p Payment, labels LabelResolver, feeCharged uint64, stats FeeStats) PaymentExplanation {
	e := ExplainPayment(p, labels)
	if stats.IsHighFee(feeCharged) {
		e.Summary += fmt.Sprintf(". The transaction fee was above average — %dx the base fee.",
			FeeMultiplier(feeCharged, stats.BaseFee))
	} else {
		e.Summary += ". The transaction fee was standard."
	}
	return e
}
