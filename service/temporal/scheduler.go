package temporal

import (
	"context"
	"strings"
	"time"
)

const schedulePrefix = "watch-"

// Scheduler manages Temporal schedules for account watches.
// Each watch gets its own schedule that triggers WatchAccountWorkflow.
type Scheduler interface {
	// UpsertWatchSchedule creates the schedule for a watch, or updates its
	// interval when it already exists.
	UpsertWatchSchedule(ctx context.Context, accountID, network string, interval time.Duration) error

	// DeleteWatchSchedule deletes the schedule for a watch.
	DeleteWatchSchedule(ctx context.Context, accountID, network string) error
}

// scheduleID returns the Temporal schedule ID for a watch.
func scheduleID(accountID, network string) string {
	return schedulePrefix + network + "-" + accountID
}

// ParseScheduleID reverses scheduleID. Networks never contain a dash, so the
// first dash after the prefix splits network from account.
func ParseScheduleID(id string) (accountID, network string, ok bool) {
	rest, found := strings.CutPrefix(id, schedulePrefix)
	if !found {
		return "", "", false
	}
	network, accountID, found = strings.Cut(rest, "-")
	if !found || network == "" || accountID == "" || strings.Contains(accountID, "-") {
		return "", "", false
	}
	return accountID, network, true
}

// workflowID returns the ID used by scheduled workflow runs of a watch.
func workflowID(accountID, network string) string {
	return "watch-account-" + network + "-" + accountID
}
