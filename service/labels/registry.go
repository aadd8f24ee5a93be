// Package labels serves address labels to the explanation engine: the
// built-in table for the network with operator labels from Postgres on top.
package labels

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync/atomic"
	"time"

	"github.com/brojonat/stellar-explain/service/db"
	"github.com/brojonat/stellar-explain/service/explain"
)

// Source lists the operator labels for a network. *db.Store implements it.
type Source interface {
	ListLabels(ctx context.Context, network string) ([]*db.Label, error)
}

// Registry holds the current label table. Reads never block; Reload swaps in
// a fresh snapshot.
type Registry struct {
	network  string
	defaults explain.StaticLabels
	source   Source
	logger   *slog.Logger
	current  atomic.Pointer[explain.StaticLabels]
	onChange func()
}

// NewRegistry creates a registry seeded with the built-in labels. A nil
// source means built-in labels only.
func NewRegistry(network string, source Source, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		network:  network,
		defaults: explain.DefaultLabels(network),
		source:   source,
		logger:   logger,
	}
	r.current.Store(&r.defaults)
	return r
}

// Reload rebuilds the table from the built-in labels and the source. On
// error the previous snapshot stays in place.
func (r *Registry) Reload(ctx context.Context) error {
	if r.source == nil {
		return nil
	}
	rows, err := r.source.ListLabels(ctx, r.network)
	if err != nil {
		return fmt.Errorf("failed to load labels: %w", err)
	}

	operator := make(map[string]string, len(rows))
	for _, l := range rows {
		operator[l.Address] = l.Label
	}
	merged := r.defaults.Merge(operator)
	previous := r.current.Swap(&merged)
	if r.onChange != nil && !maps.Equal(*previous, merged) {
		r.onChange()
	}

	r.logger.DebugContext(ctx, "labels reloaded",
		"network", r.network,
		"builtin", len(r.defaults),
		"operator", len(operator),
	)
	return nil
}

// OnChange registers fn to run after a reload that changed the table, such as
// an edit made through another replica. Call it before Run.
func (r *Registry) OnChange(fn func()) {
	r.onChange = fn
}

// Run reloads every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Reload(ctx); err != nil {
				r.logger.WarnContext(ctx, "label reload failed", "error", err)
			}
		}
	}
}

// Snapshot returns the current table. Callers must not modify it.
func (r *Registry) Snapshot() explain.StaticLabels {
	return *r.current.Load()
}

func (r *Registry) Resolve(address string) (string, bool) {
	return r.Snapshot().Resolve(address)
}

// IsBuiltin reports whether address has a built-in label.
func (r *Registry) IsBuiltin(address string) bool {
	_, ok := r.defaults.Resolve(address)
	return ok
}
