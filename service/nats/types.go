package nats

import (
	"time"

	"github.com/brojonat/stellar-explain/service/explain"
	"github.com/brojonat/stellar-explain/service/horizon"
)

// ExplanationEvent is published for each new transaction on a watched account.
// This is published to the subject "explanations.{account_id}" in JetStream.
type ExplanationEvent struct {
	// Account and network the watch was registered for
	AccountID string `json:"account_id"`
	Network   string `json:"network"`

	// Transaction identifiers
	TransactionHash string `json:"transaction_hash"`
	PagingToken     string `json:"paging_token"`
	Ledger          uint64 `json:"ledger,omitempty"`
	LedgerClosedAt  string `json:"ledger_closed_at,omitempty"`

	// Memo classification for consumers that only need the type
	MemoType    string `json:"memo_type"`
	MemoContext string `json:"memo_context"`

	Explanation explain.TransactionExplanation `json:"explanation"`

	PublishedAt time.Time `json:"published_at"`
}

// NewExplanationEvent builds the event for one explained transaction.
func NewExplanationEvent(accountID, network string, b *horizon.TransactionBundle, exp explain.TransactionExplanation) *ExplanationEvent {
	return &ExplanationEvent{
		AccountID:       accountID,
		Network:         network,
		TransactionHash: b.Transaction.Hash,
		PagingToken:     b.PagingToken,
		Ledger:          b.Ledger,
		LedgerClosedAt:  b.ClosedAt,
		MemoType:        explain.MemoTypeName(b.Transaction.Memo),
		MemoContext:     explain.MemoUsageContext(b.Transaction.Memo),
		Explanation:     exp,
		PublishedAt:     time.Now().UTC(),
	}
}

// MsgID is the JetStream de-duplication id. JetStream drops repeats across
// the whole stream, so the account is part of it: a payment between two
// watched accounts is one transaction but two events.
func (e *ExplanationEvent) MsgID() string {
	return e.Network + ":" + e.AccountID + ":" + e.TransactionHash
}
