package horizon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/stellar-explain/service/explain"
	"github.com/brojonat/stellar-explain/service/metrics"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBackoff = 250 * time.Millisecond

	// accountFanOut bounds concurrent operation fetches when explaining a
	// page of account transactions.
	accountFanOut = 5
)

// Client provides the Horizon reads the service needs, guarded by a circuit
// breaker and retried with exponential backoff on transient failures.
type Client struct {
	api        API
	breaker    *gobreaker.CircuitBreaker
	network    string
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewClient creates a new Horizon client. The network parameter labels logs
// and metrics. If metrics is nil, no metrics will be recorded.
func NewClient(api API, network string, maxRetries int, m *metrics.Metrics, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}

	c := &Client{
		api:        api,
		network:    network,
		maxRetries: maxRetries,
		backoff:    defaultBackoff,
		logger:     logger,
		metrics:    m,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "horizon-" + network,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("horizon circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
			if c.metrics != nil {
				c.metrics.RecordBreakerState(c.network, float64(to))
			}
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isClientError(err)
		},
	})
	return c
}

// Network returns the network label the client was built for.
func (c *Client) Network() string {
	return c.network
}

// call runs fn through the breaker, retrying transient failures.
func call[T any](ctx context.Context, c *Client, endpoint string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		start := time.Now()
		res, err := c.breaker.Execute(func() (interface{}, error) {
			return fn(ctx)
		})
		duration := time.Since(start).Seconds()

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			if c.metrics != nil {
				c.metrics.RecordHorizonRequest(endpoint, "rejected", c.network, duration)
			}
			return zero, fmt.Errorf("%w: circuit breaker %s", ErrUnavailable, c.breaker.State())
		}

		if c.metrics != nil {
			c.metrics.RecordHorizonRequest(endpoint, requestStatus(err), c.network, duration)
		}
		if err == nil {
			return res.(T), nil
		}

		if !IsRetryable(err) || attempt >= c.maxRetries {
			return zero, err
		}

		wait := c.backoff << attempt
		c.logger.WarnContext(ctx, "horizon request failed, retrying",
			"endpoint", endpoint,
			"attempt", attempt+1,
			"backoff", wait,
			"error", err,
		)
		if c.metrics != nil {
			c.metrics.RecordHorizonRetry(endpoint, reason(err))
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func requestStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func (c *Client) GetTransaction(ctx context.Context, hash string) (Transaction, error) {
	return call(ctx, c, "transaction", func(ctx context.Context) (Transaction, error) {
		return c.api.GetTransaction(ctx, hash)
	})
}

func (c *Client) GetTransactionOperations(ctx context.Context, hash string) ([]Operation, error) {
	return call(ctx, c, "operations", func(ctx context.Context) ([]Operation, error) {
		return c.api.GetTransactionOperations(ctx, hash)
	})
}

func (c *Client) GetFeeStats(ctx context.Context) (FeeStats, error) {
	return call(ctx, c, "fee_stats", c.api.GetFeeStats)
}

func (c *Client) GetAccount(ctx context.Context, accountID string) (Account, error) {
	return call(ctx, c, "account", func(ctx context.Context) (Account, error) {
		return c.api.GetAccount(ctx, accountID)
	})
}

func (c *Client) GetAccountTransactions(ctx context.Context, accountID string, params PageParams) (TransactionPage, error) {
	return call(ctx, c, "account_transactions", func(ctx context.Context) (TransactionPage, error) {
		return c.api.GetAccountTransactions(ctx, accountID, params)
	})
}

// Reachable reports whether the Horizon root answers.
func (c *Client) Reachable(ctx context.Context) bool {
	_, err := call(ctx, c, "root", c.api.Root)
	if err != nil {
		c.logger.WarnContext(ctx, "horizon unreachable", "error", err)
		return false
	}
	return true
}

// LatestLedger returns the newest ledger Horizon has ingested into history.
func (c *Client) LatestLedger(ctx context.Context) (uint64, error) {
	root, err := call(ctx, c, "root", c.api.Root)
	if err != nil {
		return 0, err
	}
	return root.HistoryLatestLedger, nil
}

// TransactionBundle is everything needed to explain one transaction.
type TransactionBundle struct {
	Transaction explain.Transaction
	Ledger      uint64
	ClosedAt    string
	PagingToken string

	// FeeStats is nil when the fee stats request failed.
	FeeStats *explain.FeeStats
}

// ExplainContext returns the orchestrator context for the bundle.
func (b *TransactionBundle) ExplainContext(labels explain.LabelResolver) explain.Context {
	ec := explain.Context{FeeStats: b.FeeStats, Labels: labels}
	if b.ClosedAt != "" {
		closedAt := b.ClosedAt
		ec.LedgerClosedAt = &closedAt
	}
	if b.Ledger > 0 {
		ledger := b.Ledger
		ec.Ledger = &ledger
	}
	return ec
}

// FetchTransaction loads a transaction and its operations concurrently, plus
// fee stats on a best-effort basis. The transaction and operations are both
// required; a fee stats failure only leaves FeeStats nil.
func (c *Client) FetchTransaction(ctx context.Context, hash string) (*TransactionBundle, error) {
	feeCtx, cancelFee := context.WithCancel(ctx)
	defer cancelFee()
	feeDone := make(chan *explain.FeeStats, 1)
	go func() {
		feeDone <- c.fetchFeeStats(feeCtx)
	}()

	var (
		tx  Transaction
		ops []Operation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tx, err = c.GetTransaction(gctx, hash)
		return err
	})
	g.Go(func() error {
		var err error
		ops, err = c.GetTransactionOperations(gctx, hash)
		return err
	})
	if err := g.Wait(); err != nil {
		cancelFee()
		<-feeDone
		return nil, err
	}

	bundle, err := newBundle(tx, ops)
	if err != nil {
		cancelFee()
		<-feeDone
		return nil, err
	}
	bundle.FeeStats = <-feeDone
	return bundle, nil
}

// FetchAccountTransactions loads a page of an account's transactions with the
// operations of each, fetching operations with bounded concurrency. Bundles
// keep Horizon's order. The returned cursor continues after the page.
func (c *Client) FetchAccountTransactions(ctx context.Context, accountID string, params PageParams) ([]*TransactionBundle, string, error) {
	page, err := c.GetAccountTransactions(ctx, accountID, params)
	if err != nil {
		return nil, "", err
	}
	if len(page.Records) == 0 {
		return nil, page.NextCursor, nil
	}

	fees := c.fetchFeeStats(ctx)

	bundles := make([]*TransactionBundle, len(page.Records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(accountFanOut)
	for i, tx := range page.Records {
		g.Go(func() error {
			ops, err := c.GetTransactionOperations(gctx, tx.Hash)
			if err != nil {
				return fmt.Errorf("failed to get operations for %s: %w", tx.Hash, err)
			}
			b, err := newBundle(tx, ops)
			if err != nil {
				return err
			}
			b.FeeStats = fees
			bundles[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, "", err
	}
	return bundles, page.NextCursor, nil
}

// FeeStats loads the network fee snapshot in stroops.
func (c *Client) FeeStats(ctx context.Context) (explain.FeeStats, error) {
	raw, err := c.GetFeeStats(ctx)
	if err != nil {
		return explain.FeeStats{}, err
	}
	return MapFeeStats(raw)
}

func (c *Client) fetchFeeStats(ctx context.Context) *explain.FeeStats {
	fs, err := c.FeeStats(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.WarnContext(ctx, "fee stats unavailable, explaining without fee context", "error", err)
		}
		return nil
	}
	return &fs
}

func newBundle(tx Transaction, ops []Operation) (*TransactionBundle, error) {
	mapped, err := MapTransaction(tx, ops)
	if err != nil {
		return nil, err
	}
	return &TransactionBundle{
		Transaction: mapped,
		Ledger:      tx.Ledger,
		ClosedAt:    tx.CreatedAt,
		PagingToken: tx.PagingToken,
	}, nil
}
