package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertWatch(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	hook := "https://example.com/hook"
	w, err := store.UpsertWatch(ctx, UpsertWatchParams{
		AccountID:    "GWATCHED",
		Network:      "testnet",
		WebhookURL:   &hook,
		PollInterval: 30 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, WatchStatusActive, w.Status)
	assert.Equal(t, 30*time.Second, w.PollInterval)
	require.NotNil(t, w.WebhookURL)
	assert.Equal(t, hook, *w.WebhookURL)
	assert.Nil(t, w.Cursor)
	assert.Nil(t, w.LastPollTime)

	exists, err := store.WatchExists(ctx, "GWATCHED", "testnet")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.WatchExists(ctx, "GWATCHED", "public")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUpsertWatch_KeepsCursor(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	_, err := store.UpsertWatch(ctx, UpsertWatchParams{AccountID: "GW", Network: "testnet", PollInterval: time.Minute})
	require.NoError(t, err)

	cursor := "123456789-1"
	polled := time.Now().UTC().Truncate(time.Second)
	_, err = store.UpdateWatchCursor(ctx, "GW", "testnet", &cursor, polled)
	require.NoError(t, err)

	w, err := store.UpsertWatch(ctx, UpsertWatchParams{AccountID: "GW", Network: "testnet", PollInterval: 2 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, w.PollInterval)
	assert.Nil(t, w.WebhookURL)
	require.NotNil(t, w.Cursor)
	assert.Equal(t, cursor, *w.Cursor)
	require.NotNil(t, w.LastPollTime)
	assert.True(t, polled.Equal(*w.LastPollTime))
}

func TestUpsertWatch_KeepsStatusUnlessGiven(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	_, err := store.UpsertWatch(ctx, UpsertWatchParams{AccountID: "GW", Network: "testnet", PollInterval: time.Minute})
	require.NoError(t, err)
	_, err = store.UpdateWatchStatus(ctx, "GW", "testnet", WatchStatusPaused)
	require.NoError(t, err)

	w, err := store.UpsertWatch(ctx, UpsertWatchParams{AccountID: "GW", Network: "testnet", PollInterval: 2 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, WatchStatusPaused, w.Status)
	assert.Equal(t, 2*time.Minute, w.PollInterval)

	w, err = store.UpsertWatch(ctx, UpsertWatchParams{AccountID: "GW", Network: "testnet", PollInterval: time.Minute, Status: WatchStatusActive})
	require.NoError(t, err)
	assert.Equal(t, WatchStatusActive, w.Status)
}

func TestUpdateWatchCursor_NilKeepsCursor(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	_, err := store.UpsertWatch(ctx, UpsertWatchParams{AccountID: "GW", Network: "testnet", PollInterval: time.Minute})
	require.NoError(t, err)

	cursor := "1"
	_, err = store.UpdateWatchCursor(ctx, "GW", "testnet", &cursor, time.Now())
	require.NoError(t, err)

	w, err := store.UpdateWatchCursor(ctx, "GW", "testnet", nil, time.Now())
	require.NoError(t, err)
	require.NotNil(t, w.Cursor)
	assert.Equal(t, "1", *w.Cursor)

	_, err = store.UpdateWatchCursor(ctx, "GMISSING", "testnet", nil, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListWatches(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	for _, p := range []UpsertWatchParams{
		{AccountID: "GB", Network: "testnet", PollInterval: time.Minute},
		{AccountID: "GA", Network: "testnet", PollInterval: time.Minute},
		{AccountID: "GC", Network: "public", PollInterval: time.Minute},
	} {
		_, err := store.UpsertWatch(ctx, p)
		require.NoError(t, err)
	}

	all, err := store.ListWatches(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	testnet, err := store.ListWatches(ctx, "testnet")
	require.NoError(t, err)
	require.Len(t, testnet, 2)
	assert.Equal(t, "GA", testnet[0].AccountID)
}

func TestUpdateWatchStatusAndDelete(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	_, err := store.UpsertWatch(ctx, UpsertWatchParams{AccountID: "GW", Network: "testnet", PollInterval: time.Minute})
	require.NoError(t, err)

	w, err := store.UpdateWatchStatus(ctx, "GW", "testnet", WatchStatusPaused)
	require.NoError(t, err)
	assert.Equal(t, WatchStatusPaused, w.Status)

	require.NoError(t, store.DeleteWatch(ctx, "GW", "testnet"))
	assert.ErrorIs(t, store.DeleteWatch(ctx, "GW", "testnet"), ErrNotFound)

	_, err = store.GetWatch(ctx, "GW", "testnet")
	assert.ErrorIs(t, err, ErrNotFound)
}
