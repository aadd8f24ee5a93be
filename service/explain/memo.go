package explain

import "fmt"

// ExplainMemo describes a memo in plain English. It returns false for a nil
// memo or NoMemo.
func ExplainMemo(m Memo) (string, bool) {
	switch v := m.(type) {
	case TextMemo:
		return fmt.Sprintf("This transaction includes a text memo: \"%s\"", v.Text), true
	case IDMemo:
		return fmt.Sprintf("This transaction includes an ID memo: %d. This is typically used as a reference number, customer ID, or invoice number.", v.ID), true
	case HashMemo:
		return fmt.Sprintf("This transaction includes a hash memo: %s. This is typically used to reference a document, contract, or other data.", FormatHash(v.Hash)), true
	case ReturnMemo:
		return fmt.Sprintf("This transaction includes a return memo: %s. This indicates a refund or return transaction.", FormatHash(v.Hash)), true
	default:
		return "", false
	}
}

// MemoTypeName returns a short label such as "Text memo".
func MemoTypeName(m Memo) string {
	switch m.(type) {
	case TextMemo:
		return "Text memo"
	case IDMemo:
		return "ID memo"
	case HashMemo:
		return "Hash memo"
	case ReturnMemo:
		return "Return memo"
	default:
		return "No memo"
	}
}

// MemoUsageContext says what a memo of this type is commonly used for.
func MemoUsageContext(m Memo) string {
	switch m.(type) {
	case TextMemo:
		return "Text memos are commonly used for payment references, order numbers, or short notes"
	case IDMemo:
		return "ID memos are commonly used for customer IDs, invoice numbers, or internal reference numbers"
	case HashMemo:
		return "Hash memos are commonly used to reference documents, contracts, or to implement hash time-locked contracts (HTLCs)"
	case ReturnMemo:
		return "Return memos indicate refund or return transactions, referencing the original transaction"
	default:
		return "No additional context provided"
	}
}
