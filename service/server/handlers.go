package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/stellar-explain/service/cache"
	"github.com/brojonat/stellar-explain/service/explain"
	"github.com/brojonat/stellar-explain/service/horizon"
	"github.com/brojonat/stellar-explain/service/metrics"
	"github.com/go-playground/validator/v10"
)

const (
	defaultAccountTxLimit = 10
	maxAccountTxLimit     = 50

	// upstreamTimeout bounds the Horizon calls behind a single request.
	upstreamTimeout = 30 * time.Second
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status           string `json:"status"`
	Network          string `json:"network"`
	HorizonReachable bool   `json:"horizon_reachable"`
	Version          string `json:"version"`
}

// AccountTransactionsResponse is one page of explained account transactions.
type AccountTransactionsResponse struct {
	AccountID    string                           `json:"account_id"`
	Transactions []explain.TransactionExplanation `json:"transactions"`
	NextCursor   string                           `json:"next_cursor,omitempty"`
}

// FeesResponse is the body of GET /api/v1/fees. Source is "default" when
// Horizon's fee stats could not be loaded.
type FeesResponse struct {
	Network     string           `json:"network"`
	Source      string           `json:"source"`
	Stats       explain.FeeStats `json:"stats"`
	Recommended RecommendedFees  `json:"recommended"`
}

// RecommendedFees are per-priority fee suggestions in stroops.
type RecommendedFees struct {
	Low    uint64 `json:"low"`
	Medium uint64 `json:"medium"`
	High   uint64 `json:"high"`
}

type accountTxQuery struct {
	Limit  int    `query:"limit" validate:"min=1,max=50"`
	Order  string `query:"order" validate:"oneof=asc desc"`
	Cursor string `query:"cursor" validate:"max=64"`
}

func recordExplanation(m *metrics.Metrics, kind string, err error) {
	if m == nil {
		return
	}
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, explain.ErrEmptyTransaction):
		status = "empty"
	case errors.Is(err, horizon.ErrNotFound):
		status = "not_found"
	default:
		status = "error"
	}
	m.RecordExplanation(kind, status)
}

// handleHealth reports whether Horizon is reachable.
// GET /health
func handleHealth(hz HorizonClient, version string, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		resp := HealthResponse{
			Status:           "ok",
			Network:          hz.Network(),
			HorizonReachable: hz.Reachable(ctx),
			Version:          version,
		}

		status := http.StatusOK
		if !resp.HorizonReachable {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			logger.WarnContext(r.Context(), "horizon unreachable",
				"request_id", RequestIDFromContext(r.Context()),
				"network", resp.Network,
			)
		}
		writeJSON(w, resp, status)
	})
}

// handleFees reports the current fee snapshot with a suggested fee per
// priority, falling back to typical network values when Horizon fails.
// GET /api/v1/fees
func handleFees(hz HorizonClient, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), upstreamTimeout)
		defer cancel()

		source := "horizon"
		stats, err := hz.FeeStats(ctx)
		if err != nil {
			logger.WarnContext(r.Context(), "fee stats unavailable, serving defaults",
				"request_id", RequestIDFromContext(r.Context()),
				"error", err,
			)
			source = "default"
			stats = explain.DefaultFeeStats()
		}

		writeJSON(w, FeesResponse{
			Network: hz.Network(),
			Source:  source,
			Stats:   stats,
			Recommended: RecommendedFees{
				Low:    stats.RecommendedFee(explain.PriorityLow),
				Medium: stats.RecommendedFee(explain.PriorityMedium),
				High:   stats.RecommendedFee(explain.PriorityHigh),
			},
		}, http.StatusOK)
	})
}

// fetchAndExplain loads a transaction from Horizon and runs the engine on it.
func fetchAndExplain(ctx context.Context, hz HorizonClient, labels Labels, hash string) (*horizon.TransactionBundle, explain.TransactionExplanation, error) {
	ctx, cancel := context.WithTimeout(ctx, upstreamTimeout)
	defer cancel()

	bundle, err := hz.FetchTransaction(ctx, hash)
	if err != nil {
		return nil, explain.TransactionExplanation{}, err
	}
	exp, err := explain.ExplainTransaction(bundle.Transaction, bundle.ExplainContext(labels.Snapshot()))
	if err != nil {
		return nil, explain.TransactionExplanation{}, err
	}
	return bundle, exp, nil
}

// handleExplainTransaction explains a transaction, serving from the cache
// when possible.
// GET /api/v1/tx/{hash}
func handleExplainTransaction(hz HorizonClient, c *cache.ExplanationCache, labels Labels, v *validator.Validate, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hash := strings.ToLower(r.PathValue("hash"))
		if !validateVar(w, v, "hash", hash, "stellar_hash") {
			return
		}

		key := cache.Key{Network: hz.Network(), Hash: hash}
		if entry, ok := c.Get(key); ok {
			writeJSON(w, entry.Explanation, http.StatusOK)
			return
		}

		bundle, exp, err := fetchAndExplain(r.Context(), hz, labels, hash)
		recordExplanation(m, "transaction", err)
		if err != nil {
			logger.WarnContext(r.Context(), "failed to explain transaction",
				"request_id", RequestIDFromContext(r.Context()),
				"hash", hash,
				"error", err,
			)
			writeUpstreamError(w, err, msgTxNotFound)
			return
		}

		c.Put(key, exp)
		if m != nil {
			m.RecordOperationsPerTransaction(hz.Network(), len(bundle.Transaction.Operations))
		}

		logger.DebugContext(r.Context(), "transaction explained",
			"request_id", RequestIDFromContext(r.Context()),
			"hash", hash,
			"payments", len(exp.PaymentExplanations),
			"skipped", exp.SkippedOperations,
		)
		writeJSON(w, exp, http.StatusOK)
	})
}

// handleExplainOperations explains every operation of a transaction.
// GET /api/v1/tx/{hash}/operations
func handleExplainOperations(hz HorizonClient, c *cache.ExplanationCache, labels Labels, v *validator.Validate, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hash := strings.ToLower(r.PathValue("hash"))
		if !validateVar(w, v, "hash", hash, "stellar_hash") {
			return
		}

		key := cache.Key{Network: hz.Network(), Hash: hash}
		if entry, ok := c.Get(key); ok && entry.Operations != nil {
			writeJSON(w, entry.Operations, http.StatusOK)
			return
		}

		bundle, exp, err := fetchAndExplain(r.Context(), hz, labels, hash)
		recordExplanation(m, "operations", err)
		if err != nil {
			logger.WarnContext(r.Context(), "failed to explain operations",
				"request_id", RequestIDFromContext(r.Context()),
				"hash", hash,
				"error", err,
			)
			writeUpstreamError(w, err, msgTxNotFound)
			return
		}

		ops, err := explain.ExplainOperations(bundle.Transaction, labels.Snapshot())
		if err != nil {
			writeUpstreamError(w, err, msgTxNotFound)
			return
		}
		if m != nil {
			for _, op := range ops {
				m.RecordOperationExplained(op.Type, op.Supported)
			}
		}

		c.PutOperations(key, exp, ops)
		writeJSON(w, ops, http.StatusOK)
	})
}

// handleExplainAccount explains an account's balances, signers and flags.
// GET /api/v1/account/{id}
func handleExplainAccount(hz HorizonClient, labels Labels, v *validator.Validate, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !validateVar(w, v, "account id", id, "stellar_account") {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), upstreamTimeout)
		defer cancel()

		acc, err := hz.GetAccount(ctx, id)
		recordExplanation(m, "account", err)
		if err != nil {
			logger.WarnContext(r.Context(), "failed to load account",
				"request_id", RequestIDFromContext(r.Context()),
				"account_id", id,
				"error", err,
			)
			writeUpstreamError(w, err, msgAccountNotFound)
			return
		}

		writeJSON(w, explain.ExplainAccount(horizon.MapAccount(acc), labels.Snapshot()), http.StatusOK)
	})
}

// handleAccountTransactions explains a page of an account's transactions.
// Transactions without operations are left out of the page.
// GET /api/v1/account/{id}/transactions?limit=&order=&cursor=
func handleAccountTransactions(hz HorizonClient, labels Labels, v *validator.Validate, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !validateVar(w, v, "account id", id, "stellar_account") {
			return
		}

		q := accountTxQuery{
			Limit:  defaultAccountTxLimit,
			Order:  "desc",
			Cursor: r.URL.Query().Get("cursor"),
		}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, CodeBadRequest, "limit must be an integer", http.StatusBadRequest)
				return
			}
			q.Limit = limit
		}
		if raw := r.URL.Query().Get("order"); raw != "" {
			q.Order = strings.ToLower(raw)
		}
		if err := v.Struct(q); err != nil {
			writeError(w, CodeBadRequest, validationMessage(err), http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), upstreamTimeout)
		defer cancel()

		bundles, next, err := hz.FetchAccountTransactions(ctx, id, horizon.PageParams{
			Limit:  q.Limit,
			Order:  q.Order,
			Cursor: q.Cursor,
		})
		if err != nil {
			recordExplanation(m, "account_transactions", err)
			logger.WarnContext(r.Context(), "failed to load account transactions",
				"request_id", RequestIDFromContext(r.Context()),
				"account_id", id,
				"error", err,
			)
			writeUpstreamError(w, err, msgAccountNotFound)
			return
		}

		snapshot := labels.Snapshot()
		resp := AccountTransactionsResponse{
			AccountID:    id,
			Transactions: make([]explain.TransactionExplanation, 0, len(bundles)),
			NextCursor:   next,
		}
		for _, b := range bundles {
			exp, err := explain.ExplainTransaction(b.Transaction, b.ExplainContext(snapshot))
			if errors.Is(err, explain.ErrEmptyTransaction) {
				continue
			}
			if err != nil {
				recordExplanation(m, "account_transactions", err)
				writeUpstreamError(w, err, msgAccountNotFound)
				return
			}
			resp.Transactions = append(resp.Transactions, exp)
		}
		recordExplanation(m, "account_transactions", nil)

		writeJSON(w, resp, http.StatusOK)
	})
}
