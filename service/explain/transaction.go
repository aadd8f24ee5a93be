package explain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyTransaction is returned when a transaction has no operations at all.
var ErrEmptyTransaction = errors.New("transaction contains no operations")

// ProductName is how summaries refer to this service.
const ProductName = "Stellar Explain"

// TransactionExplanation is the full explanation of one transaction. Optional
// fields are omitted from JSON when unknown.
type TransactionExplanation struct {
	TransactionHash     string               `json:"transaction_hash"`
	Successful          bool                 `json:"successful"`
	Summary             string               `json:"summary"`
	PaymentExplanations []PaymentExplanation `json:"payment_explanations"`
	SkippedOperations   int                  `json:"skipped_operations"`
	MemoExplanation     *string              `json:"memo_explanation,omitempty"`
	FeeExplanation      *string              `json:"fee_explanation,omitempty"`
	LedgerClosedAt      *string              `json:"ledger_closed_at,omitempty"`
	Ledger              *uint64              `json:"ledger,omitempty"`
}

// Context carries the optional inputs that enrich a transaction explanation.
// The zero value explains with no fee stats, no ledger data and no labels.
type Context struct {
	FeeStats       *FeeStats
	LedgerClosedAt *string
	Ledger         *uint64
	Labels         LabelResolver
}

// ExplainTransaction explains the payments of tx and summarises the rest.
// The only error is ErrEmptyTransaction.
func ExplainTransaction(tx Transaction, c Context) (TransactionExplanation, error) {
	total := len(tx.Operations)
	if total == 0 {
		return TransactionExplanation{}, ErrEmptyTransaction
	}

	payments := make([]PaymentExplanation, 0, total)
	for _, op := range tx.Operations {
		p, ok := op.(Payment)
		if !ok {
			continue
		}
		if c.FeeStats != nil {
			payments = append(payments, ExplainPaymentWithFee(p, c.Labels, tx.FeeCharged, *c.FeeStats))
		} else {
			payments = append(payments, ExplainPayment(p, c.Labels))
		}
	}
	skipped := total - len(payments)

	summary := transactionSummary(tx.Successful, len(payments), skipped)
	switch {
	case c.LedgerClosedAt != nil && c.Ledger != nil:
		summary += fmt.Sprintf(" This transaction was confirmed on %s (ledger #%d).", FormatLedgerTime(*c.LedgerClosedAt), *c.Ledger)
	case c.LedgerClosedAt != nil:
		summary += fmt.Sprintf(" This transaction was confirmed on %s.", FormatLedgerTime(*c.LedgerClosedAt))
	case c.Ledger != nil:
		summary += fmt.Sprintf(" Included in ledger #%d.", *c.Ledger)
	}

	out := TransactionExplanation{
		TransactionHash:     tx.Hash,
		Successful:          tx.Successful,
		Summary:             summary,
		PaymentExplanations: payments,
		SkippedOperations:   skipped,
		LedgerClosedAt:      c.LedgerClosedAt,
		Ledger:              c.Ledger,
	}
	if memo, ok := ExplainMemo(tx.Memo); ok {
		out.MemoExplanation = &memo
	}
	fee := ExplainFee(tx.FeeCharged, c.FeeStats)
	out.FeeExplanation = &fee

	return out, nil
}

func transactionSummary(successful bool, payments, skipped int) string {
	status := "failed"
	if successful {
		status = "successful"
	}

	if payments == 0 {
		return fmt.Sprintf("This %s transaction contains %d %s that %s does not yet support.",
			status, skipped, pluralize(skipped, "operation", "operations"), ProductName)
	}

	paymentText := "1 payment"
	if payments != 1 {
		paymentText = fmt.Sprintf("%d payments", payments)
	}

	parts := []string{fmt.Sprintf("This %s transaction contains %s", status, paymentText)}
	if skipped == 1 {
		parts = append(parts, "1 other operation was skipped")
	} else if skipped > 1 {
		parts = append(parts, fmt.Sprintf("%d other operations were skipped", skipped))
	}

	return strings.Join(parts, ". ") + "."
}
