package temporal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/brojonat/stellar-explain/service/db"
	"github.com/brojonat/stellar-explain/service/explain"
	"github.com/brojonat/stellar-explain/service/horizon"
	"github.com/brojonat/stellar-explain/service/metrics"
	natspkg "github.com/brojonat/stellar-explain/service/nats"
	temporalsdk "go.temporal.io/sdk/temporal"
)

// PollLimit is the most transactions a single poll explains.
const PollLimit = 50

// WebhookEvent is the event name sent to webhook subscribers.
const WebhookEvent = "new_transaction"

// WatchAccountInput identifies the watch a scheduled run polls.
type WatchAccountInput struct {
	AccountID string `json:"account_id"`
	Network   string `json:"network"`
}

// WatchAccountResult summarizes one run of WatchAccountWorkflow.
type WatchAccountResult struct {
	AccountID        string    `json:"account_id"`
	Network          string    `json:"network"`
	PollTime         time.Time `json:"poll_time"`
	TransactionCount int       `json:"transaction_count"`
	Published        int       `json:"published"`
	WebhookDelivered bool      `json:"webhook_delivered"`
	Cursor           *string   `json:"cursor,omitempty"`
	Skipped          bool      `json:"skipped"`
	Error            *string   `json:"error,omitempty"`
}

// LoadWatchResult is the stored state of a watch.
type LoadWatchResult struct {
	Found      bool    `json:"found"`
	Status     string  `json:"status"`
	Cursor     *string `json:"cursor,omitempty"`
	WebhookURL *string `json:"webhook_url,omitempty"`
}

// PollAccountInput contains parameters for the PollAccount activity.
type PollAccountInput struct {
	AccountID string  `json:"account_id"`
	Network   string  `json:"network"`
	Cursor    *string `json:"cursor,omitempty"`
	Limit     int     `json:"limit"`
}

// PollAccountResult contains the explained transactions found after the cursor.
type PollAccountResult struct {
	Events []*natspkg.ExplanationEvent `json:"events"`
	// NewestCursor is the paging token of the newest transaction seen,
	// including ones without operations. Nil when nothing was seen.
	NewestCursor *string `json:"newest_cursor,omitempty"`
	Baseline     bool    `json:"baseline"`
	Skipped      int     `json:"skipped"`
}

// PublishExplanationsInput contains the events to publish.
type PublishExplanationsInput struct {
	Events []*natspkg.ExplanationEvent `json:"events"`
}

// PublishExplanationsResult reports how many events reached NATS.
type PublishExplanationsResult struct {
	Published int `json:"published"`
}

// NotifyWebhookInput contains the webhook delivery parameters.
type NotifyWebhookInput struct {
	URL          string                           `json:"url"`
	AccountID    string                           `json:"account_id"`
	Network      string                           `json:"network"`
	Explanations []explain.TransactionExplanation `json:"explanations"`
}

// WebhookPayload is the JSON body POSTed to webhook subscribers.
type WebhookPayload struct {
	Account      string                           `json:"account"`
	Event        string                           `json:"event"`
	Network      string                           `json:"network"`
	Explanations []explain.TransactionExplanation `json:"explanations"`
}

// SaveCursorInput contains the state recorded after a poll.
type SaveCursorInput struct {
	AccountID string    `json:"account_id"`
	Network   string    `json:"network"`
	Cursor    *string   `json:"cursor,omitempty"` // nil keeps the stored cursor
	PollTime  time.Time `json:"poll_time"`
	Status    string    `json:"status"`
}

// StoreInterface defines the database operations needed by activities.
// This allows for easy mocking in tests.
type StoreInterface interface {
	GetWatch(ctx context.Context, accountID, network string) (*db.Watch, error)
	UpdateWatchCursor(ctx context.Context, accountID, network string, cursor *string, pollTime time.Time) (*db.Watch, error)
	UpdateWatchStatus(ctx context.Context, accountID, network, status string) (*db.Watch, error)
}

// HorizonClientInterface defines the Horizon reads needed by activities.
// *horizon.Client implements it.
type HorizonClientInterface interface {
	Network() string
	LatestLedger(ctx context.Context) (uint64, error)
	GetAccountTransactions(ctx context.Context, accountID string, params horizon.PageParams) (horizon.TransactionPage, error)
	FetchAccountTransactions(ctx context.Context, accountID string, params horizon.PageParams) ([]*horizon.TransactionBundle, string, error)
}

// PublisherInterface defines the NATS publishing operations needed by activities.
type PublisherInterface interface {
	PublishExplanationBatch(ctx context.Context, events []*natspkg.ExplanationEvent) (int, error)
}

// Activities holds the dependencies needed by Temporal activities.
// Following go-kit pattern, all dependencies are explicit.
type Activities struct {
	store      StoreInterface
	horizon    HorizonClientInterface
	publisher  PublisherInterface // nil disables publishing
	labels     explain.LabelResolver
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// If metrics is nil, no metrics will be recorded.
func NewActivities(
	store StoreInterface,
	horizonClient HorizonClientInterface,
	publisher PublisherInterface,
	labels explain.LabelResolver,
	httpClient *http.Client,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Activities{
		store:      store,
		horizon:    horizonClient,
		publisher:  publisher,
		labels:     labels,
		httpClient: httpClient,
		metrics:    m,
		logger:     logger,
	}
}

func (a *Activities) recordDuration(activity string, start time.Time) {
	if a.metrics != nil {
		a.metrics.RecordActivityDuration(activity, time.Since(start).Seconds())
	}
}

// LoadWatch reads the watch row. A missing row is not an error: the schedule
// may outlive a watch deleted out of band.
func (a *Activities) LoadWatch(ctx context.Context, input WatchAccountInput) (*LoadWatchResult, error) {
	defer a.recordDuration("LoadWatch", time.Now())

	w, err := a.store.GetWatch(ctx, input.AccountID, input.Network)
	if errors.Is(err, db.ErrNotFound) {
		a.logger.WarnContext(ctx, "watch not found",
			"account_id", input.AccountID,
			"network", input.Network,
		)
		return &LoadWatchResult{Found: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load watch: %w", err)
	}

	return &LoadWatchResult{
		Found:      true,
		Status:     w.Status,
		Cursor:     w.Cursor,
		WebhookURL: w.WebhookURL,
	}, nil
}

// PollAccount fetches the account's transactions after the cursor, oldest
// first, and explains each one. Without a cursor it only records the newest
// existing transaction as the baseline, so a new watch reports transactions
// from now on.
func (a *Activities) PollAccount(ctx context.Context, input PollAccountInput) (result *PollAccountResult, err error) {
	start := time.Now()
	defer func() {
		a.recordDuration("PollAccount", start)
		if a.metrics != nil {
			status := "success"
			if err != nil {
				status = "error"
			}
			a.metrics.RecordWatchPoll(input.Network, status, time.Since(start).Seconds())
		}
	}()

	if input.Network != a.horizon.Network() {
		return nil, temporalsdk.NewNonRetryableApplicationError(
			fmt.Sprintf("worker serves %s, watch is on %s", a.horizon.Network(), input.Network),
			"NetworkMismatch", nil)
	}

	if input.Cursor == nil {
		return a.baseline(ctx, input)
	}

	limit := input.Limit
	if limit <= 0 || limit > PollLimit {
		limit = PollLimit
	}

	a.logger.DebugContext(ctx, "polling horizon",
		"account_id", input.AccountID,
		"cursor", *input.Cursor,
		"limit", limit,
	)

	bundles, _, err := a.horizon.FetchAccountTransactions(ctx, input.AccountID, horizon.PageParams{
		Limit:  limit,
		Order:  "asc",
		Cursor: *input.Cursor,
	})
	if errors.Is(err, horizon.ErrNotFound) {
		// unfunded accounts have no transactions yet
		return &PollAccountResult{Events: []*natspkg.ExplanationEvent{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	result = &PollAccountResult{Events: make([]*natspkg.ExplanationEvent, 0, len(bundles))}
	for _, b := range bundles {
		token := b.PagingToken
		result.NewestCursor = &token

		exp, err := explain.ExplainTransaction(b.Transaction, b.ExplainContext(a.labels))
		if errors.Is(err, explain.ErrEmptyTransaction) {
			result.Skipped++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to explain %s: %w", b.Transaction.Hash, err)
		}
		if a.metrics != nil {
			a.metrics.RecordExplanation("watch", "success")
		}
		result.Events = append(result.Events, natspkg.NewExplanationEvent(input.AccountID, input.Network, b, exp))
	}

	if a.metrics != nil {
		a.metrics.RecordWatchTransactionsFound(input.Network, len(result.Events))
	}

	a.logger.InfoContext(ctx, "polled account",
		"account_id", input.AccountID,
		"network", input.Network,
		"transactions", len(bundles),
		"explained", len(result.Events),
		"skipped", result.Skipped,
	)

	return result, nil
}

func (a *Activities) baseline(ctx context.Context, input PollAccountInput) (*PollAccountResult, error) {
	page, err := a.horizon.GetAccountTransactions(ctx, input.AccountID, horizon.PageParams{Limit: 1, Order: "desc"})
	if err != nil && !errors.Is(err, horizon.ErrNotFound) {
		return nil, fmt.Errorf("failed to fetch newest transaction: %w", err)
	}

	result := &PollAccountResult{Events: []*natspkg.ExplanationEvent{}, Baseline: true}
	if len(page.Records) > 0 {
		token := page.Records[0].PagingToken
		result.NewestCursor = &token
	} else {
		// Horizon echoes a "now" cursor back unchanged, so pin the baseline
		// to the first paging token of the latest ledger instead.
		ledger, err := a.horizon.LatestLedger(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch latest ledger: %w", err)
		}
		token := LedgerCursor(ledger)
		result.NewestCursor = &token
	}

	a.logger.InfoContext(ctx, "recorded watch baseline",
		"account_id", input.AccountID,
		"cursor", *result.NewestCursor,
	)
	return result, nil
}

// LedgerCursor is the paging token that sorts before every transaction
// closed after the given ledger.
func LedgerCursor(ledger uint64) string {
	return strconv.FormatUint(ledger<<32, 10)
}

// PublishExplanations publishes the events to NATS in order.
func (a *Activities) PublishExplanations(ctx context.Context, input PublishExplanationsInput) (*PublishExplanationsResult, error) {
	defer a.recordDuration("PublishExplanations", time.Now())

	if a.publisher == nil {
		a.logger.DebugContext(ctx, "no publisher configured, skipping", "events", len(input.Events))
		return &PublishExplanationsResult{}, nil
	}
	if len(input.Events) == 0 {
		return &PublishExplanationsResult{}, nil
	}

	n, err := a.publisher.PublishExplanationBatch(ctx, input.Events)
	if err != nil {
		return nil, fmt.Errorf("published %d of %d explanations: %w", n, len(input.Events), err)
	}
	return &PublishExplanationsResult{Published: n}, nil
}

// NotifyWebhook POSTs the new explanations to the watch's webhook.
func (a *Activities) NotifyWebhook(ctx context.Context, input NotifyWebhookInput) (err error) {
	defer a.recordDuration("NotifyWebhook", time.Now())
	defer func() {
		if a.metrics != nil {
			status := "success"
			if err != nil {
				status = "error"
			}
			a.metrics.RecordWebhookDelivery(status)
		}
	}()

	body, err := json.Marshal(WebhookPayload{
		Account:      input.AccountID,
		Event:        WebhookEvent,
		Network:      input.Network,
		Explanations: input.Explanations,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, input.URL, bytes.NewReader(body))
	if err != nil {
		return temporalsdk.NewNonRetryableApplicationError("invalid webhook url", "InvalidWebhook", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "stellar-explain-webhook")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	a.logger.InfoContext(ctx, "webhook delivered",
		"account_id", input.AccountID,
		"url", input.URL,
		"explanations", len(input.Explanations),
	)
	return nil
}

// SaveCursor records the poll time, the newest cursor and the watch status.
func (a *Activities) SaveCursor(ctx context.Context, input SaveCursorInput) error {
	defer a.recordDuration("SaveCursor", time.Now())

	w, err := a.store.UpdateWatchCursor(ctx, input.AccountID, input.Network, input.Cursor, input.PollTime)
	if errors.Is(err, db.ErrNotFound) {
		// deleted while the poll ran
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}

	if input.Status != "" && w.Status != input.Status && w.Status != db.WatchStatusPaused {
		if _, err := a.store.UpdateWatchStatus(ctx, input.AccountID, input.Network, input.Status); err != nil {
			return fmt.Errorf("failed to update watch status: %w", err)
		}
		a.logger.InfoContext(ctx, "watch status changed",
			"account_id", input.AccountID,
			"from", w.Status,
			"to", input.Status,
		)
	}
	return nil
}
