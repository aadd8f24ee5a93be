package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/brojonat/stellar-explain/service/db"
	"github.com/brojonat/stellar-explain/service/explain"
	"github.com/brojonat/stellar-explain/service/temporal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func watchOptions() (Options, *memWatchStore, *temporal.MockScheduler) {
	store := newMemWatchStore()
	sched := temporal.NewMockScheduler()
	opts := testOptions(newFakeHorizon())
	opts.Watches = store
	opts.Scheduler = sched
	return opts, store, sched
}

func TestCreateWatch(t *testing.T) {
	opts, store, sched := watchOptions()
	srv := newTestServer(t, opts)

	resp, body := doRequest(t, http.MethodPost, srv.URL+"/api/v1/watches",
		`{"account_id":"`+testAccount+`","webhook_url":"https://example.com/hook","poll_interval":"30s"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	var wr WatchResponse
	require.NoError(t, json.Unmarshal([]byte(body), &wr))
	assert.Equal(t, testAccount, wr.AccountID)
	assert.Equal(t, explain.NetworkPublic, wr.Network)
	require.NotNil(t, wr.WebhookURL)
	assert.Equal(t, "https://example.com/hook", *wr.WebhookURL)
	assert.Equal(t, "30s", wr.PollInterval)
	assert.Equal(t, db.WatchStatusActive, wr.Status)

	interval, ok := sched.GetScheduleInterval(testAccount, explain.NetworkPublic)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, interval)

	// re-posting updates the watch in place
	resp, body = doRequest(t, http.MethodPost, srv.URL+"/api/v1/watches", `{"account_id":"`+testAccount+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	var updated WatchResponse
	require.NoError(t, json.Unmarshal([]byte(body), &updated))
	assert.Equal(t, "1m0s", updated.PollInterval, "falls back to the default interval")
	assert.Nil(t, updated.WebhookURL)

	interval, _ = sched.GetScheduleInterval(testAccount, explain.NetworkPublic)
	assert.Equal(t, time.Minute, interval)
	assert.Equal(t, 1, sched.ScheduleCount())
	assert.Len(t, store.watches, 1)
}

func TestCreateWatch_Validation(t *testing.T) {
	opts, store, sched := watchOptions()
	srv := newTestServer(t, opts)

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"missing account", `{}`, "account_id is required"},
		{"bad account", `{"account_id":"GABC"}`, "account_id must be a 56-character Stellar account ID starting with G"},
		{"bad webhook", `{"account_id":"` + testAccount + `","webhook_url":"not a url"}`, "webhook_url must be a valid URL"},
		{"bad interval", `{"account_id":"` + testAccount + `","poll_interval":"soon"}`, "poll_interval must be a duration such as 30s or 5m"},
		{"interval too short", `{"account_id":"` + testAccount + `","poll_interval":"5s"}`, "poll_interval must be between 10s and 24h0m0s"},
		{"interval too long", `{"account_id":"` + testAccount + `","poll_interval":"25h"}`, "poll_interval must be between 10s and 24h0m0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doRequest(t, http.MethodPost, srv.URL+"/api/v1/watches", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.wantMsg, decodeError(t, body).Message)
		})
	}
	assert.Empty(t, store.watches)
	assert.Zero(t, sched.ScheduleCount())
}

func TestCreateWatch_ScheduleFailureRollsBack(t *testing.T) {
	opts, store, sched := watchOptions()
	sched.SetUpsertError(errors.New("temporal unavailable"))
	srv := newTestServer(t, opts)

	resp, body := doRequest(t, http.MethodPost, srv.URL+"/api/v1/watches", `{"account_id":"`+testAccount+`"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "failed to schedule watch", decodeError(t, body).Message)
	assert.Empty(t, store.watches)
}

func TestGetAndListWatches(t *testing.T) {
	opts, _, _ := watchOptions()
	srv := newTestServer(t, opts)

	resp, body := doRequest(t, http.MethodGet, srv.URL+"/api/v1/watches/"+testAccount, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "watch not found", decodeError(t, body).Message)

	for _, acct := range []string{testAccount, otherAcct} {
		resp, _ = doRequest(t, http.MethodPost, srv.URL+"/api/v1/watches", `{"account_id":"`+acct+`"}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, body = doRequest(t, http.MethodGet, srv.URL+"/api/v1/watches/"+otherAcct, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var wr WatchResponse
	require.NoError(t, json.Unmarshal([]byte(body), &wr))
	assert.Equal(t, otherAcct, wr.AccountID)

	resp, body = doRequest(t, http.MethodGet, srv.URL+"/api/v1/watches", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Watches []WatchResponse `json:"watches"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	assert.Len(t, list.Watches, 2)
}

func TestUpdateWatch(t *testing.T) {
	opts, _, _ := watchOptions()
	srv := newTestServer(t, opts)
	url := srv.URL + "/api/v1/watches/" + testAccount

	resp, _ := doRequest(t, http.MethodPatch, url, `{"status":"paused"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doRequest(t, http.MethodPost, srv.URL+"/api/v1/watches", `{"account_id":"`+testAccount+`"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doRequest(t, http.MethodPatch, url, `{"status":"paused"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	var wr WatchResponse
	require.NoError(t, json.Unmarshal([]byte(body), &wr))
	assert.Equal(t, db.WatchStatusPaused, wr.Status)

	resp, body = doRequest(t, http.MethodPatch, url, `{"status":"error"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "status must be one of: active, paused", decodeError(t, body).Message)
}

func TestCreateWatch_RepostKeepsPausedStatus(t *testing.T) {
	opts, _, _ := watchOptions()
	srv := newTestServer(t, opts)

	resp, _ := doRequest(t, http.MethodPost, srv.URL+"/api/v1/watches", `{"account_id":"`+testAccount+`"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = doRequest(t, http.MethodPatch, srv.URL+"/api/v1/watches/"+testAccount, `{"status":"paused"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doRequest(t, http.MethodPost, srv.URL+"/api/v1/watches",
		`{"account_id":"`+testAccount+`","poll_interval":"5m"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	var wr WatchResponse
	require.NoError(t, json.Unmarshal([]byte(body), &wr))
	assert.Equal(t, db.WatchStatusPaused, wr.Status)
	assert.Equal(t, "5m0s", wr.PollInterval)
}

func TestDeleteWatch(t *testing.T) {
	opts, store, sched := watchOptions()
	srv := newTestServer(t, opts)
	url := srv.URL + "/api/v1/watches/" + testAccount

	resp, _ := doRequest(t, http.MethodDelete, url, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doRequest(t, http.MethodPost, srv.URL+"/api/v1/watches", `{"account_id":"`+testAccount+`"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doRequest(t, http.MethodDelete, url, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, store.watches)
	assert.False(t, sched.ScheduleExists(testAccount, explain.NetworkPublic))
}

func TestDeleteWatch_ScheduleErrorStillDeletes(t *testing.T) {
	opts, store, sched := watchOptions()
	srv := newTestServer(t, opts)

	resp, _ := doRequest(t, http.MethodPost, srv.URL+"/api/v1/watches", `{"account_id":"`+testAccount+`"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	sched.SetDeleteError(errors.New("temporal unavailable"))
	resp, _ = doRequest(t, http.MethodDelete, srv.URL+"/api/v1/watches/"+testAccount, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, store.watches)
}
