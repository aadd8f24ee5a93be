package horizon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// PageParams selects a page of a Horizon collection.
type PageParams struct {
	Limit  int    // 1..200; 0 means Horizon's default
	Order  string // "asc" or "desc"; empty means Horizon's default
	Cursor string // paging token to continue after
}

// TransactionPage is one page of an account's transactions.
type TransactionPage struct {
	Records    []Transaction
	NextCursor string
}

// API is the set of Horizon endpoints the service reads.
// Client wraps an API so tests can substitute a fake for the real network.
type API interface {
	GetTransaction(ctx context.Context, hash string) (Transaction, error)
	GetTransactionOperations(ctx context.Context, hash string) ([]Operation, error)
	GetFeeStats(ctx context.Context) (FeeStats, error)
	GetAccount(ctx context.Context, accountID string) (Account, error)
	GetAccountTransactions(ctx context.Context, accountID string, params PageParams) (TransactionPage, error)
	Root(ctx context.Context) (Root, error)
}

// operationsPageLimit is Horizon's largest page. A transaction holds at most
// 100 operations, so one page always covers it.
const operationsPageLimit = 200

// httpAPI talks to a Horizon server over HTTP.
type httpAPI struct {
	baseURL string
	http    *http.Client
}

// NewHTTPAPI returns an API backed by the Horizon instance at baseURL.
func NewHTTPAPI(baseURL string, timeout time.Duration) API {
	return &httpAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (h *httpAPI) GetTransaction(ctx context.Context, hash string) (Transaction, error) {
	var tx Transaction
	err := h.get(ctx, "/transactions/"+url.PathEscape(hash), nil, &tx)
	return tx, err
}

func (h *httpAPI) GetTransactionOperations(ctx context.Context, hash string) ([]Operation, error) {
	var p page[Operation]
	q := url.Values{"limit": {strconv.Itoa(operationsPageLimit)}}
	if err := h.get(ctx, "/transactions/"+url.PathEscape(hash)+"/operations", q, &p); err != nil {
		return nil, err
	}
	return p.Embedded.Records, nil
}

func (h *httpAPI) GetFeeStats(ctx context.Context) (FeeStats, error) {
	var fs FeeStats
	err := h.get(ctx, "/fee_stats", nil, &fs)
	return fs, err
}

func (h *httpAPI) GetAccount(ctx context.Context, accountID string) (Account, error) {
	var a Account
	err := h.get(ctx, "/accounts/"+url.PathEscape(accountID), nil, &a)
	return a, err
}

func (h *httpAPI) GetAccountTransactions(ctx context.Context, accountID string, params PageParams) (TransactionPage, error) {
	q := url.Values{}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Order != "" {
		q.Set("order", params.Order)
	}
	if params.Cursor != "" {
		q.Set("cursor", params.Cursor)
	}

	var p page[Transaction]
	if err := h.get(ctx, "/accounts/"+url.PathEscape(accountID)+"/transactions", q, &p); err != nil {
		return TransactionPage{}, err
	}

	out := TransactionPage{Records: p.Embedded.Records}
	if n := len(out.Records); n > 0 {
		out.NextCursor = out.Records[n-1].PagingToken
	}
	return out, nil
}

func (h *httpAPI) Root(ctx context.Context) (Root, error) {
	var r Root
	err := h.get(ctx, "/", nil, &r)
	return r, err
}

func (h *httpAPI) get(ctx context.Context, path string, query url.Values, out any) error {
	u := h.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		herr := &Error{StatusCode: resp.StatusCode}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(body, herr)
		herr.StatusCode = resp.StatusCode
		return herr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode horizon response for %s: %w", path, err)
	}
	return nil
}
