package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/brojonat/stellar-explain/service/explain"
)

// Watch is an account the server polls for new transactions.
type Watch struct {
	AccountID    string        `json:"account_id"`
	Network      string        `json:"network"`
	WebhookURL   *string       `json:"webhook_url,omitempty"`
	PollInterval time.Duration `json:"poll_interval"`
	Cursor       *string       `json:"cursor,omitempty"`
	Status       string        `json:"status"` // active, paused, error
	LastPollTime *time.Time    `json:"last_poll_time,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Label is one entry of the server's active label table.
type Label struct {
	Address   string     `json:"address"`
	Label     string     `json:"label"`
	Source    string     `json:"source"` // builtin or operator
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Health is the server's /health report.
type Health struct {
	Status           string `json:"status"`
	Network          string `json:"network"`
	HorizonReachable bool   `json:"horizon_reachable"`
	Version          string `json:"version"`
}

// TransactionPage is one page of explained account transactions.
type TransactionPage struct {
	AccountID    string                           `json:"account_id"`
	Transactions []explain.TransactionExplanation `json:"transactions"`
	NextCursor   string                           `json:"next_cursor,omitempty"`
}

// PageOptions selects a page of account transactions. Zero values use the
// server defaults.
type PageOptions struct {
	Limit  int
	Order  string
	Cursor string
}

// CreateWatchRequest registers or updates a watch. An empty PollInterval
// uses the server default.
type CreateWatchRequest struct {
	AccountID    string
	WebhookURL   string
	PollInterval time.Duration
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("request failed with status %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client is the HTTP client for the stellar-explain API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new API client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// ExplainTransaction returns the plain-English explanation of a transaction.
func (c *Client) ExplainTransaction(ctx context.Context, hash string) (*explain.TransactionExplanation, error) {
	var out explain.TransactionExplanation
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/tx/"+url.PathEscape(hash), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExplainOperations explains every operation of a transaction. Details are
// decoded as generic JSON objects.
func (c *Client) ExplainOperations(ctx context.Context, hash string) ([]explain.OperationExplanation, error) {
	var out []explain.OperationExplanation
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/tx/"+url.PathEscape(hash)+"/operations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ExplainAccount explains an account's balances, signers and flags.
func (c *Client) ExplainAccount(ctx context.Context, accountID string) (*explain.AccountExplanation, error) {
	var out explain.AccountExplanation
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/account/"+url.PathEscape(accountID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAccountTransactions explains one page of an account's transactions.
func (c *Client) ListAccountTransactions(ctx context.Context, accountID string, opts PageOptions) (*TransactionPage, error) {
	q := url.Values{}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Order != "" {
		q.Set("order", opts.Order)
	}
	if opts.Cursor != "" {
		q.Set("cursor", opts.Cursor)
	}
	path := "/api/v1/account/" + url.PathEscape(accountID) + "/transactions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out TransactionPage
	if _, err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health returns the server's health report. A degraded server answers 503
// with a report, which is returned together with an *APIError.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	status, raw, err := c.send(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusServiceUnavailable {
		return nil, parseErrorResponse(status, raw)
	}

	var out Health
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if status == http.StatusServiceUnavailable {
		return &out, &APIError{StatusCode: status, Message: "server is " + out.Status}
	}
	return &out, nil
}

// CreateWatch starts watching an account. It reports whether the watch was
// newly created.
func (c *Client) CreateWatch(ctx context.Context, req CreateWatchRequest) (*Watch, bool, error) {
	body := map[string]interface{}{
		"account_id": req.AccountID,
	}
	if req.WebhookURL != "" {
		body["webhook_url"] = req.WebhookURL
	}
	if req.PollInterval > 0 {
		body["poll_interval"] = req.PollInterval.String()
	}

	var resp watchResponse
	status, err := c.do(ctx, http.MethodPost, "/api/v1/watches", body, &resp)
	if err != nil {
		return nil, false, err
	}
	created := status == http.StatusCreated

	w, err := responseToWatch(&resp)
	if err != nil {
		return nil, false, err
	}
	c.logger.Debug("watch saved", "account_id", req.AccountID, "created", created)
	return w, created, nil
}

// ListWatches returns every watch on the server's network.
func (c *Client) ListWatches(ctx context.Context) ([]*Watch, error) {
	var response struct {
		Watches []watchResponse `json:"watches"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/watches", nil, &response); err != nil {
		return nil, err
	}

	watches := make([]*Watch, len(response.Watches))
	for i := range response.Watches {
		w, err := responseToWatch(&response.Watches[i])
		if err != nil {
			return nil, fmt.Errorf("failed to parse watch %s: %w", response.Watches[i].AccountID, err)
		}
		watches[i] = w
	}
	return watches, nil
}

// GetWatch returns the watch for one account.
func (c *Client) GetWatch(ctx context.Context, accountID string) (*Watch, error) {
	var resp watchResponse
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/watches/"+url.PathEscape(accountID), nil, &resp); err != nil {
		return nil, err
	}
	return responseToWatch(&resp)
}

// UpdateWatch sets a watch's status to active or paused.
func (c *Client) UpdateWatch(ctx context.Context, accountID, status string) (*Watch, error) {
	var resp watchResponse
	body := map[string]string{"status": status}
	if _, err := c.do(ctx, http.MethodPatch, "/api/v1/watches/"+url.PathEscape(accountID), body, &resp); err != nil {
		return nil, err
	}
	return responseToWatch(&resp)
}

// DeleteWatch stops watching an account.
func (c *Client) DeleteWatch(ctx context.Context, accountID string) error {
	if _, err := c.do(ctx, http.MethodDelete, "/api/v1/watches/"+url.PathEscape(accountID), nil, nil); err != nil {
		return err
	}
	c.logger.Debug("watch deleted", "account_id", accountID)
	return nil
}

// ListLabels returns the server's active label table.
func (c *Client) ListLabels(ctx context.Context) ([]Label, error) {
	var response struct {
		Labels []Label `json:"labels"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/labels", nil, &response); err != nil {
		return nil, err
	}
	return response.Labels, nil
}

// PutLabel creates or replaces an operator label.
func (c *Client) PutLabel(ctx context.Context, address, label string) (*Label, error) {
	var out Label
	body := map[string]string{"label": label}
	if _, err := c.do(ctx, http.MethodPut, "/api/v1/labels/"+url.PathEscape(address), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteLabel removes an operator label.
func (c *Client) DeleteLabel(ctx context.Context, address string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/v1/labels/"+url.PathEscape(address), nil, nil)
	return err
}

// do sends a request and decodes a 2xx response into out. Other statuses
// are returned as an *APIError.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) (int, error) {
	status, raw, err := c.send(ctx, method, path, body)
	if err != nil {
		return 0, err
	}
	if status < 200 || status >= 300 {
		return status, parseErrorResponse(status, raw)
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return status, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return status, nil
}

// send performs the request and returns the status and raw body.
func (c *Client) send(ctx context.Context, method, path string, body interface{}) (int, []byte, error) {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		r = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, raw, nil
}

// watchResponse is the API response format for a watch.
// The server returns poll_interval as a string (e.g. "30s").
type watchResponse struct {
	AccountID    string     `json:"account_id"`
	Network      string     `json:"network"`
	WebhookURL   *string    `json:"webhook_url,omitempty"`
	PollInterval string     `json:"poll_interval"`
	Cursor       *string    `json:"cursor,omitempty"`
	Status       string     `json:"status"`
	LastPollTime *time.Time `json:"last_poll_time,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// responseToWatch converts an API response to a Watch.
func responseToWatch(resp *watchResponse) (*Watch, error) {
	pollInterval, err := time.ParseDuration(resp.PollInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid poll_interval %q: %w", resp.PollInterval, err)
	}

	return &Watch{
		AccountID:    resp.AccountID,
		Network:      resp.Network,
		WebhookURL:   resp.WebhookURL,
		PollInterval: pollInterval,
		Cursor:       resp.Cursor,
		Status:       resp.Status,
		LastPollTime: resp.LastPollTime,
		CreatedAt:    resp.CreatedAt,
		UpdatedAt:    resp.UpdatedAt,
	}, nil
}

// parseErrorResponse builds an APIError from an error body, falling back to
// the raw body when it is not the server's error shape.
func parseErrorResponse(status int, body []byte) error {
	var errResp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return &APIError{StatusCode: status, Message: string(bytes.TrimSpace(body))}
	}
	return &APIError{StatusCode: status, Code: errResp.Error.Code, Message: errResp.Error.Message}
}
