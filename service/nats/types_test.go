package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/brojonat/stellar-explain/service/explain"
	"github.com/brojonat/stellar-explain/service/horizon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBundle(hash string) *horizon.TransactionBundle {
	return &horizon.TransactionBundle{
		Transaction: explain.Transaction{Hash: hash, Successful: true, Memo: explain.TextMemo{Text: "inv-1"}},
		Ledger:      42,
		ClosedAt:    "2024-01-15T14:32:00Z",
		PagingToken: "pt-" + hash,
	}
}

func TestNewExplanationEvent(t *testing.T) {
	exp := explain.TransactionExplanation{TransactionHash: "abc", Summary: "This successful transaction contains 1 payment."}
	event := NewExplanationEvent("GACC", "testnet", testBundle("abc"), exp)

	assert.Equal(t, "GACC", event.AccountID)
	assert.Equal(t, "abc", event.TransactionHash)
	assert.Equal(t, "pt-abc", event.PagingToken)
	assert.Equal(t, uint64(42), event.Ledger)
	assert.Equal(t, "Text memo", event.MemoType)
	assert.Contains(t, event.MemoContext, "payment references")
	assert.False(t, event.PublishedAt.IsZero())

	raw, err := json.Marshal(event)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "abc", decoded["explanation"].(map[string]any)["transaction_hash"])
}

func TestExplanationEvent_MsgIDPerAccount(t *testing.T) {
	exp := explain.TransactionExplanation{TransactionHash: "abc"}
	sender := NewExplanationEvent("GSENDER", "public", testBundle("abc"), exp)
	receiver := NewExplanationEvent("GRECEIVER", "public", testBundle("abc"), exp)

	assert.Equal(t, "public:GSENDER:abc", sender.MsgID())
	assert.NotEqual(t, sender.MsgID(), receiver.MsgID(), "one transaction on two watches must not dedup")

	retry := NewExplanationEvent("GSENDER", "public", testBundle("abc"), exp)
	assert.Equal(t, sender.MsgID(), retry.MsgID())

	testnet := NewExplanationEvent("GSENDER", "testnet", testBundle("abc"), exp)
	assert.NotEqual(t, sender.MsgID(), testnet.MsgID())
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "explanations.GACC", Subject("GACC"))
	assert.Equal(t, "explanations.*", StreamSubjects)
}

func TestMockPublisher_Batch(t *testing.T) {
	ctx := context.Background()
	m := NewMockPublisher()
	events := []*ExplanationEvent{
		{AccountID: "GA", TransactionHash: "1"},
		{AccountID: "GB", TransactionHash: "2"},
		{AccountID: "GA", TransactionHash: "3"},
	}

	n, err := m.PublishExplanationBatch(ctx, events)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, m.GetPublishedEventsForAccount("GA"), 2)

	m.Reset()
	m.SetBatchFailAfter(1, errors.New("nats down"))
	n, err = m.PublishExplanationBatch(ctx, events)
	assert.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, m.GetPublishedEvents(), 1)

	require.NoError(t, m.Close())
	assert.True(t, m.IsClosed())
}
