package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testHash    = "3389e9f0f1a65f19736cacf544c2e825313e8447f569233bb8db39aa607c8889"
	testAccount = "GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWHF"
)

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{"code": code, "message": message},
	})
}

func TestExplainTransaction_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/tx/"+testHash, r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"transaction_hash":     testHash,
			"successful":           true,
			"summary":              "This successful transaction contains 1 payment.",
			"payment_explanations": []interface{}{},
			"skipped_operations":   0,
			"fee_explanation":      "A fee of 0.0000100 XLM was charged.",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	exp, err := client.ExplainTransaction(context.Background(), testHash)
	require.NoError(t, err)
	assert.Equal(t, testHash, exp.TransactionHash)
	assert.True(t, exp.Successful)
	require.NotNil(t, exp.FeeExplanation)
	assert.Equal(t, "A fee of 0.0000100 XLM was charged.", *exp.FeeExplanation)
}

func TestExplainTransaction_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "Transaction not found on the Stellar network.")
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.ExplainTransaction(context.Background(), testHash)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
	assert.Equal(t, "Transaction not found on the Stellar network.", apiErr.Message)
	assert.Contains(t, err.Error(), "status 404")
}

func TestErrorResponse_NonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.ExplainAccount(context.Background(), testAccount)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Empty(t, apiErr.Code)
	assert.Equal(t, "bad gateway", apiErr.Message)
	assert.False(t, IsNotFound(err))
}

func TestExplainOperations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/tx/"+testHash+"/operations", r.URL.Path)
		w.Write([]byte(`[{"operation_id":"1","type":"payment","summary":"A sent 1 XLM (native) to B","supported":true,"details":{"amount":"1"}},{"operation_id":"2","type":"bump_sequence","summary":"This bump_sequence operation is not yet explained.","supported":false}]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	ops, err := client.ExplainOperations(context.Background(), testHash)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "payment", ops[0].Type)
	assert.Equal(t, map[string]interface{}{"amount": "1"}, ops[0].Details)
	assert.False(t, ops[1].Supported)
	assert.Nil(t, ops[1].Details)
}

func TestListAccountTransactions_Query(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/account/"+testAccount+"/transactions", r.URL.Path)
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"account_id":"` + testAccount + `","transactions":[],"next_cursor":"99"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	page, err := client.ListAccountTransactions(context.Background(), testAccount, PageOptions{Limit: 5, Order: "asc", Cursor: "42"})
	require.NoError(t, err)
	assert.Equal(t, "cursor=42&limit=5&order=asc", gotQuery)
	assert.Equal(t, "99", page.NextCursor)
	assert.Empty(t, page.Transactions)

	_, err = client.ListAccountTransactions(context.Background(), testAccount, PageOptions{})
	require.NoError(t, err)
	assert.Empty(t, gotQuery)
}

func TestHealth(t *testing.T) {
	reachable := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status, state := http.StatusOK, "ok"
		if !reachable {
			status, state = http.StatusServiceUnavailable, "degraded"
		}
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":            state,
			"network":           "public",
			"horizon_reachable": reachable,
			"version":           "dev",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	h, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Health{Status: "ok", Network: "public", HorizonReachable: true, Version: "dev"}, h)

	reachable = false
	h, err = client.Health(context.Background())
	require.Error(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "degraded", h.Status)
	assert.False(t, h.HorizonReachable)
}

func TestCreateWatch(t *testing.T) {
	exists := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/watches", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, testAccount, body["account_id"])
		assert.Equal(t, "https://example.com/hook", body["webhook_url"])
		assert.Equal(t, "30s", body["poll_interval"])

		status := http.StatusCreated
		if exists {
			status = http.StatusOK
		}
		exists = true
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"account_id":    testAccount,
			"network":       "public",
			"webhook_url":   "https://example.com/hook",
			"poll_interval": "30s",
			"status":        "active",
			"created_at":    time.Now(),
			"updated_at":    time.Now(),
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	req := CreateWatchRequest{AccountID: testAccount, WebhookURL: "https://example.com/hook", PollInterval: 30 * time.Second}

	w, created, err := client.CreateWatch(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 30*time.Second, w.PollInterval)
	require.NotNil(t, w.WebhookURL)

	_, created, err = client.CreateWatch(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestCreateWatch_ValidationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body, "webhook_url")
		assert.NotContains(t, body, "poll_interval")
		writeAPIError(w, http.StatusBadRequest, "BAD_REQUEST", "account_id must be a 56-character Stellar account ID starting with G")
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, _, err := client.CreateWatch(context.Background(), CreateWatchRequest{AccountID: "GBAD"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account_id must be a 56-character")
}

func TestListAndGetWatches(t *testing.T) {
	lastPoll := time.Now().Add(-time.Minute).UTC().Truncate(time.Second)
	watch := map[string]interface{}{
		"account_id":     testAccount,
		"network":        "public",
		"poll_interval":  "1m0s",
		"cursor":         "215271437549568",
		"status":         "error",
		"last_poll_time": lastPoll,
		"created_at":     time.Now(),
		"updated_at":     time.Now(),
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/watches":
			json.NewEncoder(w).Encode(map[string]interface{}{"watches": []interface{}{watch}})
		case "/api/v1/watches/" + testAccount:
			json.NewEncoder(w).Encode(watch)
		default:
			writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "watch not found")
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	watches, err := client.ListWatches(context.Background())
	require.NoError(t, err)
	require.Len(t, watches, 1)
	assert.Equal(t, time.Minute, watches[0].PollInterval)
	assert.Equal(t, "error", watches[0].Status)
	require.NotNil(t, watches[0].Cursor)
	assert.Equal(t, "215271437549568", *watches[0].Cursor)
	require.NotNil(t, watches[0].LastPollTime)
	assert.True(t, lastPoll.Equal(*watches[0].LastPollTime))

	w, err := client.GetWatch(context.Background(), testAccount)
	require.NoError(t, err)
	assert.Equal(t, testAccount, w.AccountID)

	_, err = client.GetWatch(context.Background(), "GOTHER")
	assert.True(t, IsNotFound(err))
}

func TestGetWatch_InvalidPollInterval(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"account_id":"` + testAccount + `","poll_interval":"forever","status":"active"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.GetWatch(context.Background(), testAccount)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid poll_interval")
}

func TestUpdateAndDeleteWatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/watches/"+testAccount, r.URL.Path)
		switch r.Method {
		case http.MethodPatch:
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "paused", body["status"])
			w.Write([]byte(`{"account_id":"` + testAccount + `","poll_interval":"30s","status":"paused"}`))
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	w, err := client.UpdateWatch(context.Background(), testAccount, "paused")
	require.NoError(t, err)
	assert.Equal(t, "paused", w.Status)

	assert.NoError(t, client.DeleteWatch(context.Background(), testAccount))
}

func TestLabels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`{"network":"public","labels":[{"address":"` + testAccount + `","label":"Stellar Foundation","source":"builtin"}]}`))
		case http.MethodPut:
			assert.Equal(t, "/api/v1/labels/"+testAccount, r.URL.Path)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			w.Write([]byte(`{"address":"` + testAccount + `","label":"` + body["label"] + `","source":"operator","updated_at":"2024-01-15T14:32:00Z"}`))
		case http.MethodDelete:
			writeAPIError(w, http.StatusNotFound, "NOT_FOUND", "built-in labels cannot be deleted")
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	labels, err := client.ListLabels(context.Background())
	require.NoError(t, err)
	require.Len(t, labels, 1)
	assert.Equal(t, "builtin", labels[0].Source)
	assert.Nil(t, labels[0].UpdatedAt)

	l, err := client.PutLabel(context.Background(), testAccount, "SDF")
	require.NoError(t, err)
	assert.Equal(t, "SDF", l.Label)
	assert.Equal(t, "operator", l.Source)
	require.NotNil(t, l.UpdatedAt)

	err = client.DeleteLabel(context.Background(), testAccount)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "built-in labels cannot be deleted")
}
