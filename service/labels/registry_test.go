package labels

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brojonat/stellar-explain/service/cache"
	"github.com/brojonat/stellar-explain/service/db"
	"github.com/brojonat/stellar-explain/service/explain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const coinbase = "GCOINBASEAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

type fakeSource struct {
	labels []*db.Label
	err    error
	asked  string
}

func (f *fakeSource) ListLabels(_ context.Context, network string) ([]*db.Label, error) {
	f.asked = network
	return f.labels, f.err
}

func TestRegistry_BuiltinOnly(t *testing.T) {
	r := NewRegistry(explain.NetworkPublic, nil, nil)
	require.NoError(t, r.Reload(context.Background()))

	label, ok := r.Resolve(coinbase)
	require.True(t, ok)
	assert.Equal(t, "Coinbase", label)
	assert.True(t, r.IsBuiltin(coinbase))
}

func TestRegistry_OperatorLabelsWin(t *testing.T) {
	src := &fakeSource{labels: []*db.Label{
		{Address: coinbase, Network: "public", Label: "Coinbase Custody"},
		{Address: "gnewaddress", Network: "public", Label: "New"},
	}}
	r := NewRegistry(explain.NetworkPublic, src, nil)
	require.NoError(t, r.Reload(context.Background()))
	assert.Equal(t, "public", src.asked)

	label, _ := r.Resolve(coinbase)
	assert.Equal(t, "Coinbase Custody", label)
	label, ok := r.Resolve("GNEWADDRESS")
	require.True(t, ok)
	assert.Equal(t, "New", label)

	assert.Equal(t, "Coinbase Custody ("+coinbase+")", explain.DisplayAddress(coinbase, r))
}

func TestRegistry_ReloadErrorKeepsSnapshot(t *testing.T) {
	src := &fakeSource{labels: []*db.Label{{Address: "GA", Label: "Alpha"}}}
	r := NewRegistry(explain.NetworkTestnet, src, nil)
	require.NoError(t, r.Reload(context.Background()))

	src.err = errors.New("connection refused")
	assert.Error(t, r.Reload(context.Background()))

	label, ok := r.Resolve("GA")
	require.True(t, ok)
	assert.Equal(t, "Alpha", label)
}

func TestRegistry_SnapshotIsIndependent(t *testing.T) {
	src := &fakeSource{labels: []*db.Label{{Address: "GA", Label: "Alpha"}}}
	r := NewRegistry(explain.NetworkTestnet, src, nil)
	before := r.Snapshot()
	require.NoError(t, r.Reload(context.Background()))

	assert.Empty(t, before)
	assert.Len(t, r.Snapshot(), 1)
}

func TestRegistry_OnChange(t *testing.T) {
	src := &fakeSource{labels: []*db.Label{{Address: "GA", Label: "Alpha"}}}
	r := NewRegistry(explain.NetworkTestnet, src, nil)
	changes := 0
	r.OnChange(func() { changes++ })

	require.NoError(t, r.Reload(context.Background()))
	assert.Equal(t, 1, changes)

	require.NoError(t, r.Reload(context.Background()))
	assert.Equal(t, 1, changes, "an identical table is not a change")

	src.labels = []*db.Label{{Address: "GA", Label: "Alpha Exchange"}}
	require.NoError(t, r.Reload(context.Background()))
	assert.Equal(t, 2, changes)

	src.err = errors.New("connection refused")
	require.Error(t, r.Reload(context.Background()))
	assert.Equal(t, 2, changes)
}

func TestRegistry_RunNotifiesOnRemoteEdit(t *testing.T) {
	src := &fakeSource{labels: []*db.Label{{Address: "GA", Label: "Exchange X"}}}
	r := NewRegistry(explain.NetworkTestnet, src, nil)
	explanations := cache.New(10, time.Minute, nil)
	explanations.Put(cache.Key{Network: explain.NetworkTestnet, Hash: "abc"}, explain.TransactionExplanation{Summary: "GA sent 1 XLM (native) to GB"})
	changed := make(chan struct{}, 10)
	r.OnChange(func() {
		explanations.Purge()
		changed <- struct{}{}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx, 5*time.Millisecond)

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("reload did not report the new label")
	}
	label, ok := r.Resolve("GA")
	require.True(t, ok)
	assert.Equal(t, "Exchange X", label)
	assert.Equal(t, 0, explanations.Len(), "explanations rendered with old labels are dropped")

	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, changed, "unchanged reloads do not notify")
}
