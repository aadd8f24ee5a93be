package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/stellar-explain/service/cache"
	"github.com/brojonat/stellar-explain/service/config"
	"github.com/brojonat/stellar-explain/service/db"
	"github.com/brojonat/stellar-explain/service/explain"
	"github.com/brojonat/stellar-explain/service/horizon"
	"github.com/brojonat/stellar-explain/service/metrics"
	"github.com/brojonat/stellar-explain/service/temporal"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version is reported by /health. Overridden at build time with -ldflags.
var Version = "dev"

// HorizonClient is the upstream surface the handlers need.
// *horizon.Client implements it.
type HorizonClient interface {
	Network() string
	Reachable(ctx context.Context) bool
	FetchTransaction(ctx context.Context, hash string) (*horizon.TransactionBundle, error)
	GetAccount(ctx context.Context, accountID string) (horizon.Account, error)
	FeeStats(ctx context.Context) (explain.FeeStats, error)
	FetchAccountTransactions(ctx context.Context, accountID string, params horizon.PageParams) ([]*horizon.TransactionBundle, string, error)
}

// Labels is the label table the handlers explain with.
// *labels.Registry implements it.
type Labels interface {
	Snapshot() explain.StaticLabels
	Reload(ctx context.Context) error
	IsBuiltin(address string) bool
}

// LabelStore persists operator labels. *db.Store implements it.
type LabelStore interface {
	UpsertLabel(ctx context.Context, params db.UpsertLabelParams) (*db.Label, error)
	ListLabels(ctx context.Context, network string) ([]*db.Label, error)
	DeleteLabel(ctx context.Context, address, network string) error
}

// WatchStore persists account watches. *db.Store implements it.
type WatchStore interface {
	UpsertWatch(ctx context.Context, params db.UpsertWatchParams) (*db.Watch, error)
	GetWatch(ctx context.Context, accountID, network string) (*db.Watch, error)
	ListWatches(ctx context.Context, network string) ([]*db.Watch, error)
	UpdateWatchStatus(ctx context.Context, accountID, network, status string) (*db.Watch, error)
	DeleteWatch(ctx context.Context, accountID, network string) error
	WatchExists(ctx context.Context, accountID, network string) (bool, error)
}

// Options holds the server's dependencies. Horizon, Cache and Labels are
// required; the rest are optional and disable their routes when nil.
type Options struct {
	Config    *config.Config
	Horizon   HorizonClient
	Cache     *cache.ExplanationCache
	Labels    Labels
	LabelDB   LabelStore
	Watches   WatchStore
	Scheduler temporal.Scheduler
	Stream    *SSEStream
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Server represents the HTTP server for the explanation API.
type Server struct {
	opts     Options
	validate *validator.Validate
	limiter  *ipRateLimiter
	logger   *slog.Logger
	server   *http.Server
}

// New creates a new HTTP server with the given dependencies.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Config == nil {
		opts.Config = &config.Config{Network: opts.Horizon.Network(), DefaultPollInterval: time.Minute}
	}
	s := &Server{
		opts:     opts,
		validate: newValidator(),
		logger:   opts.Logger,
	}
	if opts.Config.RateLimitRPS > 0 {
		s.limiter = newIPRateLimiter(opts.Config.RateLimitRPS, opts.Config.RateLimitBurst, opts.Config.TrustedProxies)
	}
	return s
}

// route registers handler behind the per-route middleware: rate limiting,
// then HTTP metrics under name.
func (s *Server) route(mux *http.ServeMux, pattern, name string, h http.Handler) {
	h = metrics.HTTPMetricsMiddleware(s.opts.Metrics, name)(h)
	h = rateLimitMiddleware(s.limiter, s.opts.Metrics, name, h)
	mux.Handle(pattern, h)
}

// Handler builds the full routing tree.
func (s *Server) Handler() http.Handler {
	o := s.opts
	network := o.Config.Network
	mux := http.NewServeMux()

	// Explanation routes
	s.route(mux, "GET /api/v1/tx/{hash}", "tx", handleExplainTransaction(o.Horizon, o.Cache, o.Labels, s.validate, o.Metrics, s.logger))
	s.route(mux, "GET /api/v1/tx/{hash}/operations", "tx_operations", handleExplainOperations(o.Horizon, o.Cache, o.Labels, s.validate, o.Metrics, s.logger))
	s.route(mux, "GET /api/v1/account/{id}", "account", handleExplainAccount(o.Horizon, o.Labels, s.validate, o.Metrics, s.logger))
	s.route(mux, "GET /api/v1/account/{id}/transactions", "account_transactions", handleAccountTransactions(o.Horizon, o.Labels, s.validate, o.Metrics, s.logger))
	s.route(mux, "GET /api/v1/fees", "fees", handleFees(o.Horizon, s.logger))

	// Label routes
	s.route(mux, "GET /api/v1/labels", "labels", handleListLabels(o.Labels, o.LabelDB, network, s.logger))
	if o.LabelDB != nil {
		s.route(mux, "PUT /api/v1/labels/{address}", "label", handlePutLabel(o.LabelDB, o.Labels, o.Cache, s.validate, network, s.logger))
		s.route(mux, "DELETE /api/v1/labels/{address}", "label", handleDeleteLabel(o.LabelDB, o.Labels, o.Cache, s.validate, network, s.logger))
	} else {
		disabled := handleDisabled(msgLabelsDisabled)
		mux.Handle("PUT /api/v1/labels/{address}", disabled)
		mux.Handle("DELETE /api/v1/labels/{address}", disabled)
		s.logger.Warn("database not configured, label management disabled")
	}

	// Watch routes
	if o.Watches != nil && o.Scheduler != nil {
		s.route(mux, "POST /api/v1/watches", "watches", handleCreateWatch(o.Watches, o.Scheduler, o.Config, s.validate, s.logger))
		s.route(mux, "GET /api/v1/watches", "watches", handleListWatches(o.Watches, network, s.logger))
		s.route(mux, "GET /api/v1/watches/{account}", "watch", handleGetWatch(o.Watches, s.validate, network, s.logger))
		s.route(mux, "PATCH /api/v1/watches/{account}", "watch", handleUpdateWatch(o.Watches, s.validate, network, s.logger))
		s.route(mux, "DELETE /api/v1/watches/{account}", "watch", handleDeleteWatch(o.Watches, o.Scheduler, s.validate, network, s.logger))
	} else {
		disabled := handleDisabled(msgWatchesDisabled)
		mux.Handle("/api/v1/watches", disabled)
		mux.Handle("/api/v1/watches/{account}", disabled)
		s.logger.Warn("database or temporal not configured, watch endpoints disabled")
	}

	// SSE streaming endpoint (if the stream is configured). Not rate limited
	// past the initial request and not timed by the metrics middleware.
	if o.Stream != nil {
		mux.Handle("GET /api/v1/stream/{account}", rateLimitMiddleware(s.limiter, o.Metrics, "stream", handleStreamExplanations(o.Stream, s.validate, s.logger)))
		s.logger.Info("SSE streaming endpoint enabled")
	} else {
		mux.Handle("GET /api/v1/stream/{account}", handleDisabled(msgStreamingDisabled))
		s.logger.Warn("NATS not configured, streaming endpoint disabled")
	}

	mux.Handle("GET /health", handleHealth(o.Horizon, Version, s.logger))

	// Prometheus metrics endpoint (if metrics collector is configured)
	if o.Metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, CodeNotFound, "route not found", http.StatusNotFound)
	}))

	var handler http.Handler = mux
	handler = corsMiddleware(o.Config.CORSAllowedOrigins, handler)
	handler = requestIDMiddleware(s.logger, handler)
	return handler
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start(ctx context.Context) error {
	if s.limiter != nil {
		go s.limiter.runSweeper(ctx)
	}

	s.server = &http.Server{
		Addr:        s.opts.Config.ServerAddr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: SSE responses are long lived. Handlers bound
		// their own upstream calls.
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.server.Addr, "network", s.opts.Config.Network)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	// Close the stream first (disconnects all SSE clients)
	if s.opts.Stream != nil {
		s.opts.Stream.Close()
	}

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func handleDisabled(message string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, CodeUnavailable, message, http.StatusServiceUnavailable)
	})
}
