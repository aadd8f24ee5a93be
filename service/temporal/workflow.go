package temporal

import (
	"fmt"
	"time"

	"github.com/brojonat/stellar-explain/service/db"
	"github.com/brojonat/stellar-explain/service/explain"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// WatchAccountWorkflow polls one watched Stellar account for new
// transactions. It is triggered by a Temporal schedule at the watch's
// poll interval.
//
// The workflow performs these steps:
// 1. Load the watch (LoadWatch); paused or deleted watches stop here
// 2. Explain transactions after the stored cursor (PollAccount)
// 3. Publish the explanations to NATS (PublishExplanations)
// 4. POST them to the watch's webhook (NotifyWebhook); failures are logged only
// 5. Save the newest cursor and poll time (SaveCursor)
func WatchAccountWorkflow(ctx workflow.Context, input WatchAccountInput) (*WatchAccountResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("WatchAccountWorkflow started", "account_id", input.AccountID, "network", input.Network)

	result := &WatchAccountResult{
		AccountID: input.AccountID,
		Network:   input.Network,
		PollTime:  workflow.Now(ctx),
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})

	// Step 1: load the watch
	var watch *LoadWatchResult
	if err := workflow.ExecuteActivity(ctx, a.LoadWatch, input).Get(ctx, &watch); err != nil {
		errMsg := fmt.Sprintf("failed to load watch: %v", err)
		result.Error = &errMsg
		return result, fmt.Errorf("failed to load watch: %w", err)
	}
	if !watch.Found || watch.Status == db.WatchStatusPaused {
		logger.Info("watch inactive, skipping poll", "found", watch.Found, "status", watch.Status)
		result.Skipped = true
		return result, nil
	}

	// Step 2: poll Horizon and explain
	var poll *PollAccountResult
	err := workflow.ExecuteActivity(ctx, a.PollAccount, PollAccountInput{
		AccountID: input.AccountID,
		Network:   input.Network,
		Cursor:    watch.Cursor,
		Limit:     PollLimit,
	}).Get(ctx, &poll)
	if err != nil {
		logger.Error("failed to poll account", "account_id", input.AccountID, "error", err)
		errMsg := fmt.Sprintf("failed to poll account: %v", err)
		result.Error = &errMsg

		saveErr := workflow.ExecuteActivity(ctx, a.SaveCursor, SaveCursorInput{
			AccountID: input.AccountID,
			Network:   input.Network,
			PollTime:  result.PollTime,
			Status:    db.WatchStatusError,
		}).Get(ctx, nil)
		if saveErr != nil {
			logger.Warn("failed to record watch error", "error", saveErr)
		}
		return result, fmt.Errorf("failed to poll account: %w", err)
	}

	result.TransactionCount = len(poll.Events)
	result.Cursor = poll.NewestCursor

	if len(poll.Events) > 0 {
		// Step 3: publish. A failure leaves the cursor untouched so the
		// next run re-polls; duplicate messages are dropped by JetStream.
		var published *PublishExplanationsResult
		err = workflow.ExecuteActivity(ctx, a.PublishExplanations, PublishExplanationsInput{Events: poll.Events}).Get(ctx, &published)
		if err != nil {
			errMsg := fmt.Sprintf("failed to publish explanations: %v", err)
			result.Error = &errMsg
			return result, fmt.Errorf("failed to publish explanations: %w", err)
		}
		result.Published = published.Published

		// Step 4: webhook
		if watch.WebhookURL != nil && *watch.WebhookURL != "" {
			explanations := make([]explain.TransactionExplanation, len(poll.Events))
			for i, e := range poll.Events {
				explanations[i] = e.Explanation
			}
			err = workflow.ExecuteActivity(ctx, a.NotifyWebhook, NotifyWebhookInput{
				URL:          *watch.WebhookURL,
				AccountID:    input.AccountID,
				Network:      input.Network,
				Explanations: explanations,
			}).Get(ctx, nil)
			if err != nil {
				logger.Warn("webhook delivery failed", "account_id", input.AccountID, "error", err)
			} else {
				result.WebhookDelivered = true
			}
		}
	}

	// Step 5: save the cursor
	err = workflow.ExecuteActivity(ctx, a.SaveCursor, SaveCursorInput{
		AccountID: input.AccountID,
		Network:   input.Network,
		Cursor:    poll.NewestCursor,
		PollTime:  result.PollTime,
		Status:    db.WatchStatusActive,
	}).Get(ctx, nil)
	if err != nil {
		errMsg := fmt.Sprintf("failed to save cursor: %v", err)
		result.Error = &errMsg
		return result, fmt.Errorf("failed to save cursor: %w", err)
	}

	logger.Info("WatchAccountWorkflow completed successfully",
		"account_id", input.AccountID,
		"transaction_count", result.TransactionCount,
		"published", result.Published,
		"baseline", poll.Baseline,
	)

	return result, nil
}
