package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthServer(t *testing.T, status int, body map[string]interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthCommand_Healthy(t *testing.T) {
	srv := healthServer(t, http.StatusOK, map[string]interface{}{
		"status":            "ok",
		"network":           "testnet",
		"horizon_reachable": true,
		"version":           "1.2.3",
	})

	out, _, err := runApp(t, "--server", srv.URL, "server", "health")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Server is ok")
	assert.Contains(t, out, "testnet")
	assert.Contains(t, out, "1.2.3")
}

func TestHealthCommand_Degraded(t *testing.T) {
	srv := healthServer(t, http.StatusServiceUnavailable, map[string]interface{}{
		"status":            "degraded",
		"network":           "public",
		"horizon_reachable": false,
		"version":           "1.2.3",
	})

	out, _, err := runApp(t, "--server", srv.URL, "server", "health")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "degraded")
	assert.Contains(t, out, "✗ Server is degraded")
	assert.Contains(t, out, "Horizon reachable: false")
}

func TestHealthCommand_JQ(t *testing.T) {
	srv := healthServer(t, http.StatusOK, map[string]interface{}{
		"status":            "ok",
		"network":           "testnet",
		"horizon_reachable": true,
		"version":           "dev",
	})

	out, _, err := runApp(t, "--server", srv.URL, "--jq", ".network", "server", "health")
	require.NoError(t, err)
	assert.Equal(t, "testnet\n", out)
}

func TestHealthCommand_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, _, err := runApp(t, "--server", srv.URL, "server", "health")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "health check failed")
}

func TestVersionCommand(t *testing.T) {
	out, _, err := runApp(t, "server", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: dev")
	assert.Contains(t, out, "Commit:  unknown")
}
