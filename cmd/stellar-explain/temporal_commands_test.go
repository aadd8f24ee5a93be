package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/brojonat/stellar-explain/service/db"
	"github.com/brojonat/stellar-explain/service/temporal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile(t *testing.T) {
	watches := []*db.Watch{
		{AccountID: "GACTIVE", Network: "testnet", Status: db.WatchStatusActive},
		{AccountID: "GPAUSED", Network: "testnet", Status: db.WatchStatusPaused},
		{AccountID: "GNOSCHED", Network: "testnet", Status: db.WatchStatusError},
		{AccountID: "GPUBLIC", Network: "public", Status: db.WatchStatusActive},
	}
	ids := []string{
		"watch-testnet-GACTIVE",
		"watch-testnet-GPAUSED",
		"watch-testnet-GZOMBIE",
		"watch-testnet-GALSOZOMBIE",
		"watch-public-GOTHER",
		"some-unrelated-schedule",
	}

	missing, orphaned := reconcile(watches, ids, "testnet")

	require.Len(t, missing, 1)
	assert.Equal(t, "GNOSCHED", missing[0].AccountID)
	assert.Equal(t, []string{"watch-testnet-GALSOZOMBIE", "watch-testnet-GZOMBIE"}, orphaned)
}

func TestReconcile_InSync(t *testing.T) {
	watches := []*db.Watch{{AccountID: "GA", Network: "public"}}
	missing, orphaned := reconcile(watches, []string{"watch-public-GA"}, "public")
	assert.Empty(t, missing)
	assert.Empty(t, orphaned)

	missing, orphaned = reconcile(nil, nil, "public")
	assert.Empty(t, missing)
	assert.Empty(t, orphaned)
}

func TestPrintScheduleInfo(t *testing.T) {
	last := time.Date(2024, 1, 15, 14, 32, 0, 0, time.UTC)
	var buf bytes.Buffer
	printScheduleInfo(&buf, &temporal.ScheduleInfo{
		ID:         "watch-testnet-GA",
		Workflow:   temporal.WorkflowName,
		TaskQueue:  "stellar-explain",
		Interval:   time.Minute,
		Paused:     true,
		RecentRuns: 3,
		LastRun:    &last,
	})

	out := buf.String()
	assert.Contains(t, out, "Schedule: watch-testnet-GA")
	assert.Contains(t, out, "State:       paused")
	assert.Contains(t, out, "Interval:    1m0s")
	assert.Contains(t, out, "Last Run:    2024-01-15T14:32:00Z")
	assert.NotContains(t, out, "Next Run")
}

func TestFilterWatchesByStatus(t *testing.T) {
	watches := []*db.Watch{
		{AccountID: "GA", Status: db.WatchStatusActive},
		{AccountID: "GB", Status: db.WatchStatusPaused},
	}
	assert.Len(t, filterWatchesByStatus(watches, ""), 2)

	paused := filterWatchesByStatus(watches, db.WatchStatusPaused)
	require.Len(t, paused, 1)
	assert.Equal(t, "GB", paused[0].AccountID)
}
