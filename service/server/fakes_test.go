package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brojonat/stellar-explain/service/cache"
	"github.com/brojonat/stellar-explain/service/config"
	"github.com/brojonat/stellar-explain/service/db"
	"github.com/brojonat/stellar-explain/service/explain"
	"github.com/brojonat/stellar-explain/service/horizon"
	"github.com/brojonat/stellar-explain/service/labels"
	"github.com/stretchr/testify/require"
)

const (
	testHash    = "3389e9f0f1a65f19736cacf544c2e825313e8447f569233bb8db39aa607c8889"
	testAccount = "GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWHF"
	otherAcct   = "GBRPYHIL2CI3FNQ4BXLFMNDLFJUNPU2HY3ZMFSHONUCEOASW7QC7OX2H"
)

type fakeHorizon struct {
	mu         sync.Mutex
	network    string
	reachable  bool
	txs        map[string]*horizon.TransactionBundle
	accounts   map[string]horizon.Account
	accountTxs []*horizon.TransactionBundle
	nextCursor string
	err        error
	fetchCalls int
	lastParams horizon.PageParams
	feeStats   explain.FeeStats
	feeErr     error
}

func newFakeHorizon() *fakeHorizon {
	return &fakeHorizon{
		network:   explain.NetworkPublic,
		reachable: true,
		txs:       map[string]*horizon.TransactionBundle{},
		accounts:  map[string]horizon.Account{},
	}
}

func (f *fakeHorizon) Network() string { return f.network }

func (f *fakeHorizon) Reachable(ctx context.Context) bool { return f.reachable }

func (f *fakeHorizon) FetchTransaction(ctx context.Context, hash string) (*horizon.TransactionBundle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.err != nil {
		return nil, f.err
	}
	b, ok := f.txs[hash]
	if !ok {
		return nil, horizon.ErrNotFound
	}
	return b, nil
}

func (f *fakeHorizon) GetAccount(ctx context.Context, accountID string) (horizon.Account, error) {
	if f.err != nil {
		return horizon.Account{}, f.err
	}
	a, ok := f.accounts[accountID]
	if !ok {
		return horizon.Account{}, horizon.ErrNotFound
	}
	return a, nil
}

func (f *fakeHorizon) FeeStats(ctx context.Context) (explain.FeeStats, error) {
	if f.feeErr != nil {
		return explain.FeeStats{}, f.feeErr
	}
	return f.feeStats, nil
}

func (f *fakeHorizon) FetchAccountTransactions(ctx context.Context, accountID string, params horizon.PageParams) ([]*horizon.TransactionBundle, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastParams = params
	if f.err != nil {
		return nil, "", f.err
	}
	return f.accountTxs, f.nextCursor, nil
}

func paymentTx(hash string, fee uint64) *horizon.TransactionBundle {
	return &horizon.TransactionBundle{
		Transaction: explain.Transaction{
			Hash:       hash,
			Successful: true,
			FeeCharged: fee,
			Operations: []explain.Operation{
				explain.Payment{ID: "1", Source: "GCOINBASEAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", Destination: otherAcct, Asset: "XLM (native)", Amount: "500.0000000"},
			},
		},
		Ledger:      50123456,
		ClosedAt:    "2024-01-15T14:32:00Z",
		PagingToken: "215271437549568",
		FeeStats:    &explain.FeeStats{BaseFee: 100, MinFee: 100, MaxFee: 1000, ModeFee: 100, P90Fee: 200},
	}
}

// memLabelStore is an in-memory LabelStore that also feeds the registry.
type memLabelStore struct {
	mu     sync.Mutex
	labels map[string]*db.Label
	err    error
}

func newMemLabelStore() *memLabelStore {
	return &memLabelStore{labels: map[string]*db.Label{}}
}

func (s *memLabelStore) UpsertLabel(ctx context.Context, p db.UpsertLabelParams) (*db.Label, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	now := time.Now().UTC()
	l := &db.Label{Address: p.Address, Network: p.Network, Label: p.Label, CreatedAt: now, UpdatedAt: now}
	s.labels[p.Network+"/"+p.Address] = l
	return l, nil
}

func (s *memLabelStore) ListLabels(ctx context.Context, network string) ([]*db.Label, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*db.Label, 0)
	for _, l := range s.labels {
		if l.Network == network {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *memLabelStore) DeleteLabel(ctx context.Context, address, network string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := network + "/" + address
	if _, ok := s.labels[key]; !ok {
		return db.ErrNotFound
	}
	delete(s.labels, key)
	return nil
}

// memWatchStore is an in-memory WatchStore.
type memWatchStore struct {
	mu      sync.Mutex
	watches map[string]*db.Watch
}

func newMemWatchStore() *memWatchStore {
	return &memWatchStore{watches: map[string]*db.Watch{}}
}

func (s *memWatchStore) UpsertWatch(ctx context.Context, p db.UpsertWatchParams) (*db.Watch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := p.Network + "/" + p.AccountID
	now := time.Now().UTC()
	w, ok := s.watches[key]
	if !ok {
		w = &db.Watch{AccountID: p.AccountID, Network: p.Network, CreatedAt: now}
		s.watches[key] = w
	}
	w.WebhookURL = p.WebhookURL
	w.PollInterval = p.PollInterval
	switch {
	case p.Status != "":
		w.Status = p.Status
	case !ok:
		w.Status = db.WatchStatusActive
	}
	w.UpdatedAt = now
	cp := *w
	return &cp, nil
}

func (s *memWatchStore) GetWatch(ctx context.Context, accountID, network string) (*db.Watch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.watches[network+"/"+accountID]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *memWatchStore) ListWatches(ctx context.Context, network string) ([]*db.Watch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*db.Watch, 0)
	for _, w := range s.watches {
		if network == "" || w.Network == network {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memWatchStore) UpdateWatchStatus(ctx context.Context, accountID, network, status string) (*db.Watch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.watches[network+"/"+accountID]
	if !ok {
		return nil, db.ErrNotFound
	}
	w.Status = status
	cp := *w
	return &cp, nil
}

func (s *memWatchStore) DeleteWatch(ctx context.Context, accountID, network string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := network + "/" + accountID
	if _, ok := s.watches[key]; !ok {
		return db.ErrNotFound
	}
	delete(s.watches, key)
	return nil
}

func (s *memWatchStore) WatchExists(ctx context.Context, accountID, network string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.watches[network+"/"+accountID]
	return ok, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		Network:             explain.NetworkPublic,
		DefaultPollInterval: time.Minute,
	}
}

// testOptions returns options with the required dependencies filled in.
func testOptions(hz *fakeHorizon) Options {
	return Options{
		Config:  testConfig(),
		Horizon: hz,
		Cache:   cache.New(16, time.Minute, nil),
		Labels:  labels.NewRegistry(hz.network, nil, testLogger()),
		Logger:  testLogger(),
	}
}

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(opts).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, method, url, body string) (*http.Response, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}
