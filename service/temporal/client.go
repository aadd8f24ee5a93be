package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
)

// WorkflowName is the registered name of WatchAccountWorkflow.
const WorkflowName = "WatchAccountWorkflow"

// Client is a production implementation of Scheduler that talks to Temporal.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}, nil
}

func (c *Client) createWatchSchedule(ctx context.Context, accountID, network string, interval time.Duration) error {
	id := scheduleID(accountID, network)

	_, err := c.client.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID: id,
		Spec: client.ScheduleSpec{
			Intervals: []client.ScheduleIntervalSpec{{Every: interval}},
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        workflowID(accountID, network),
			Workflow:  WorkflowName,
			TaskQueue: c.taskQueue,
			Args:      []interface{}{WatchAccountInput{AccountID: accountID, Network: network}},
		},
		Memo: map[string]interface{}{
			"account_id": accountID,
			"network":    network,
			"created_by": "stellar-explain",
		},
	})
	if err != nil {
		c.logger.Error("failed to create schedule",
			"account_id", accountID,
			"schedule_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to create schedule %q: %w", id, err)
	}

	c.logger.Info("watch schedule created",
		"account_id", accountID,
		"network", network,
		"schedule_id", id,
		"interval", interval,
	)
	return nil
}

// UpsertWatchSchedule creates or updates the schedule for a watch.
// If the schedule already exists, it updates the poll interval.
func (c *Client) UpsertWatchSchedule(ctx context.Context, accountID, network string, interval time.Duration) error {
	id := scheduleID(accountID, network)

	handle := c.client.ScheduleClient().GetHandle(ctx, id)
	if _, err := handle.Describe(ctx); err != nil {
		c.logger.Debug("schedule not found, creating new one",
			"schedule_id", id,
			"error", err,
		)
		return c.createWatchSchedule(ctx, accountID, network, interval)
	}

	err := handle.Update(ctx, client.ScheduleUpdateOptions{
		DoUpdate: func(input client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
			input.Description.Schedule.Spec.Intervals = []client.ScheduleIntervalSpec{
				{Every: interval},
			}
			return &client.ScheduleUpdate{
				Schedule: &input.Description.Schedule,
			}, nil
		},
	})
	if err != nil {
		c.logger.Error("failed to update schedule",
			"account_id", accountID,
			"schedule_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to update schedule %q: %w", id, err)
	}

	c.logger.Info("watch schedule updated",
		"account_id", accountID,
		"network", network,
		"schedule_id", id,
		"interval", interval,
	)
	return nil
}

// DeleteWatchSchedule deletes the Temporal schedule for a watch.
func (c *Client) DeleteWatchSchedule(ctx context.Context, accountID, network string) error {
	id := scheduleID(accountID, network)

	handle := c.client.ScheduleClient().GetHandle(ctx, id)
	if err := handle.Delete(ctx); err != nil {
		c.logger.Error("failed to delete schedule",
			"account_id", accountID,
			"schedule_id", id,
			"error", err,
		)
		return fmt.Errorf("failed to delete schedule %q: %w", id, err)
	}

	c.logger.Info("watch schedule deleted",
		"account_id", accountID,
		"network", network,
		"schedule_id", id,
	)
	return nil
}

// ScheduleInfo summarizes a watch schedule.
type ScheduleInfo struct {
	ID         string        `json:"id"`
	Workflow   string        `json:"workflow"`
	TaskQueue  string        `json:"task_queue"`
	Interval   time.Duration `json:"interval"`
	Paused     bool          `json:"paused"`
	RecentRuns int           `json:"recent_runs"`
	LastRun    *time.Time    `json:"last_run,omitempty"`
	NextRun    *time.Time    `json:"next_run,omitempty"`
}

// DescribeWatchSchedule returns the current state of a watch's schedule.
func (c *Client) DescribeWatchSchedule(ctx context.Context, accountID, network string) (*ScheduleInfo, error) {
	id := scheduleID(accountID, network)
	desc, err := c.client.ScheduleClient().GetHandle(ctx, id).Describe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to describe schedule %q: %w", id, err)
	}

	info := &ScheduleInfo{
		ID:         id,
		Paused:     desc.Schedule.State.Paused,
		RecentRuns: len(desc.Info.RecentActions),
	}
	if wa, ok := desc.Schedule.Action.(*client.ScheduleWorkflowAction); ok {
		info.TaskQueue = wa.TaskQueue
		if name, ok := wa.Workflow.(string); ok {
			info.Workflow = name
		}
	}
	if len(desc.Schedule.Spec.Intervals) > 0 {
		info.Interval = desc.Schedule.Spec.Intervals[0].Every
	}
	if n := len(desc.Info.RecentActions); n > 0 {
		last := desc.Info.RecentActions[n-1].ActualTime
		info.LastRun = &last
	}
	if len(desc.Info.NextActionTimes) > 0 {
		next := desc.Info.NextActionTimes[0]
		info.NextRun = &next
	}
	return info, nil
}

// ListWatchSchedules returns the IDs of every watch schedule in the namespace.
func (c *Client) ListWatchSchedules(ctx context.Context) ([]string, error) {
	iter, err := c.client.ScheduleClient().List(ctx, client.ScheduleListOptions{
		PageSize: 1000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}

	var ids []string
	for iter.HasNext() {
		entry, err := iter.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate schedules: %w", err)
		}
		if _, _, ok := ParseScheduleID(entry.ID); ok {
			ids = append(ids, entry.ID)
		}
	}
	return ids, nil
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
