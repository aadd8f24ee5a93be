package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/brojonat/stellar-explain/service/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

// ErrNotFound is returned when a label or watch does not exist.
var ErrNotFound = errors.New("db: not found")

// Watch statuses.
const (
	WatchStatusActive = "active"
	WatchStatusPaused = "paused"
	WatchStatusError  = "error"
)

// Store provides database operations for operator labels and account watches.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// If metrics is nil, no metrics will be recorded.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{
		pool:    pool,
		metrics: m,
	}
}

// Migrate creates the tables the store needs. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) observe(operation, table string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	s.metrics.RecordDBQuery(operation, table, time.Since(start).Seconds(), err)
}

// Label is an operator-assigned name for an address on one network.
type Label struct {
	Address   string
	Network   string
	Label     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UpsertLabelParams contains the parameters for creating or renaming a label.
type UpsertLabelParams struct {
	Address string
	Network string
	Label   string
}

const labelColumns = `address, network, label, created_at, updated_at`

func scanLabel(row pgx.Row) (*Label, error) {
	var l Label
	var createdAt, updatedAt pgtype.Timestamptz
	if err := row.Scan(&l.Address, &l.Network, &l.Label, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	l.CreatedAt = createdAt.Time
	l.UpdatedAt = updatedAt.Time
	return &l, nil
}

// UpsertLabel creates a label or replaces the text of an existing one.
func (s *Store) UpsertLabel(ctx context.Context, params UpsertLabelParams) (l *Label, err error) {
	defer func(start time.Time) { s.observe("upsert", "account_labels", start, err) }(time.Now())

	row := s.pool.QueryRow(ctx, `
		INSERT INTO account_labels (address, network, label)
		VALUES ($1, $2, $3)
		ON CONFLICT (address, network) DO UPDATE
		SET label = EXCLUDED.label, updated_at = now()
		RETURNING `+labelColumns,
		params.Address, params.Network, params.Label,
	)
	return scanLabel(row)
}

// GetLabel retrieves the label for an address on a network.
func (s *Store) GetLabel(ctx context.Context, address, network string) (l *Label, err error) {
	defer func(start time.Time) { s.observe("select", "account_labels", start, err) }(time.Now())

	row := s.pool.QueryRow(ctx, `SELECT `+labelColumns+` FROM account_labels WHERE address = $1 AND network = $2`, address, network)
	return scanLabel(row)
}

// ListLabels returns every label for a network ordered by address.
func (s *Store) ListLabels(ctx context.Context, network string) (labels []*Label, err error) {
	defer func(start time.Time) { s.observe("list", "account_labels", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, `SELECT `+labelColumns+` FROM account_labels WHERE network = $1 ORDER BY address`, network)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	labels = make([]*Label, 0)
	for rows.Next() {
		l, err := scanLabel(rows)
		if err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// DeleteLabel removes a label. It returns ErrNotFound when none existed.
func (s *Store) DeleteLabel(ctx context.Context, address, network string) (err error) {
	defer func(start time.Time) { s.observe("delete", "account_labels", start, err) }(time.Now())

	tag, err := s.pool.Exec(ctx, `DELETE FROM account_labels WHERE address = $1 AND network = $2`, address, network)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Watch is an account being polled for new transactions.
type Watch struct {
	AccountID    string
	Network      string
	WebhookURL   *string
	PollInterval time.Duration
	Cursor       *string // paging token of the newest transaction seen
	Status       string
	LastPollTime *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UpsertWatchParams contains the parameters for creating or updating a watch.
// An existing watch keeps its cursor.
type UpsertWatchParams struct {
	AccountID    string
	Network      string
	WebhookURL   *string
	PollInterval time.Duration
	Status       string
}

const watchColumns = `account_id, network, webhook_url, poll_interval, cursor, status, last_poll_time, created_at, updated_at`

func scanWatch(row pgx.Row) (*Watch, error) {
	var (
		w                    Watch
		webhook, cursor      pgtype.Text
		interval             pgtype.Interval
		lastPoll             pgtype.Timestamptz
		createdAt, updatedAt pgtype.Timestamptz
	)
	err := row.Scan(&w.AccountID, &w.Network, &webhook, &interval, &cursor, &w.Status, &lastPoll, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	w.WebhookURL = stringPtrFromPgtext(webhook)
	w.Cursor = stringPtrFromPgtext(cursor)
	w.PollInterval = durationFromPgInterval(interval)
	w.LastPollTime = timePtrFromPgTimestamptz(lastPoll)
	w.CreatedAt = createdAt.Time
	w.UpdatedAt = updatedAt.Time
	return &w, nil
}

// UpsertWatch creates a watch or updates its webhook and interval. An empty
// Status creates the watch active and leaves an existing watch's status alone.
func (s *Store) UpsertWatch(ctx context.Context, params UpsertWatchParams) (w *Watch, err error) {
	defer func(start time.Time) { s.observe("upsert", "account_watches", start, err) }(time.Now())

	status := pgtype.Text{String: params.Status, Valid: params.Status != ""}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO account_watches (account_id, network, webhook_url, poll_interval, status)
		VALUES ($1, $2, $3, $4, COALESCE($5::text, 'active'))
		ON CONFLICT (account_id, network) DO UPDATE
		SET webhook_url = EXCLUDED.webhook_url,
		    poll_interval = EXCLUDED.poll_interval,
		    status = COALESCE($5::text, account_watches.status),
		    updated_at = now()
		RETURNING `+watchColumns,
		params.AccountID, params.Network, pgtextFromStringPtr(params.WebhookURL), pgIntervalFromDuration(params.PollInterval), status,
	)
	return scanWatch(row)
}

// GetWatch retrieves a watch by account and network.
func (s *Store) GetWatch(ctx context.Context, accountID, network string) (w *Watch, err error) {
	defer func(start time.Time) { s.observe("select", "account_watches", start, err) }(time.Now())

	row := s.pool.QueryRow(ctx, `SELECT `+watchColumns+` FROM account_watches WHERE account_id = $1 AND network = $2`, accountID, network)
	return scanWatch(row)
}

// ListWatches returns the watches on a network, or on every network when
// network is empty.
func (s *Store) ListWatches(ctx context.Context, network string) (watches []*Watch, err error) {
	defer func(start time.Time) { s.observe("list", "account_watches", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, `
		SELECT `+watchColumns+` FROM account_watches
		WHERE $1 = '' OR network = $1
		ORDER BY network, account_id`, network)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	watches = make([]*Watch, 0)
	for rows.Next() {
		w, err := scanWatch(rows)
		if err != nil {
			return nil, err
		}
		watches = append(watches, w)
	}
	return watches, rows.Err()
}

// UpdateWatchCursor records the newest transaction seen and the poll time.
// A nil cursor keeps the stored one.
func (s *Store) UpdateWatchCursor(ctx context.Context, accountID, network string, cursor *string, pollTime time.Time) (w *Watch, err error) {
	defer func(start time.Time) { s.observe("update", "account_watches", start, err) }(time.Now())

	row := s.pool.QueryRow(ctx, `
		UPDATE account_watches
		SET cursor = COALESCE($3, cursor), last_poll_time = $4, updated_at = now()
		WHERE account_id = $1 AND network = $2
		RETURNING `+watchColumns,
		accountID, network, pgtextFromStringPtr(cursor), pgtype.Timestamptz{Time: pollTime, Valid: true},
	)
	return scanWatch(row)
}

// UpdateWatchStatus sets a watch's status.
func (s *Store) UpdateWatchStatus(ctx context.Context, accountID, network, status string) (w *Watch, err error) {
	defer func(start time.Time) { s.observe("update", "account_watches", start, err) }(time.Now())

	row := s.pool.QueryRow(ctx, `
		UPDATE account_watches SET status = $3, updated_at = now()
		WHERE account_id = $1 AND network = $2
		RETURNING `+watchColumns,
		accountID, network, status,
	)
	return scanWatch(row)
}

// DeleteWatch removes a watch. It returns ErrNotFound when none existed.
func (s *Store) DeleteWatch(ctx context.Context, accountID, network string) (err error) {
	defer func(start time.Time) { s.observe("delete", "account_watches", start, err) }(time.Now())

	tag, err := s.pool.Exec(ctx, `DELETE FROM account_watches WHERE account_id = $1 AND network = $2`, accountID, network)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// WatchExists checks whether an account is watched on a network.
func (s *Store) WatchExists(ctx context.Context, accountID, network string) (exists bool, err error) {
	defer func(start time.Time) { s.observe("exists", "account_watches", start, err) }(time.Now())

	err = s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM account_watches WHERE account_id = $1 AND network = $2)`, accountID, network).Scan(&exists)
	return exists, err
}

func pgtextFromStringPtr(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func stringPtrFromPgtext(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func pgIntervalFromDuration(d time.Duration) pgtype.Interval {
	return pgtype.Interval{
		Microseconds: d.Microseconds(),
		Valid:        true,
	}
}

func durationFromPgInterval(i pgtype.Interval) time.Duration {
	if !i.Valid {
		return 0
	}
	d := time.Duration(i.Microseconds) * time.Microsecond
	d += time.Duration(i.Days) * 24 * time.Hour
	d += time.Duration(i.Months) * 30 * 24 * time.Hour
	return d
}

func timePtrFromPgTimestamptz(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
