package main

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/brojonat/stellar-explain/service/db"
	"github.com/brojonat/stellar-explain/service/temporal"
	"github.com/urfave/cli/v2"
)

func listSchedulesCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-schedules",
		Usage:   "List Temporal schedules that poll watched accounts",
		Aliases: []string{"ls"},
		Action: func(c *cli.Context) error {
			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			ids, err := tc.ListWatchSchedules(c.Context)
			if err != nil {
				return err
			}
			sort.Strings(ids)

			if wantJSON(c) {
				return output(c, ids)
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SCHEDULE ID\tNETWORK\tACCOUNT")
			for _, id := range ids {
				account, network, _ := temporal.ParseScheduleID(id)
				fmt.Fprintf(w, "%s\t%s\t%s\n", id, network, account)
			}
			w.Flush()

			fmt.Fprintf(c.App.ErrWriter, "\nTotal: %d schedules\n", len(ids))
			return nil
		},
	}
}

func describeScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "describe-schedule",
		Usage:     "Show details of the schedule behind a watch",
		ArgsUsage: "ACCOUNT_ID|SCHEDULE_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: account id or schedule id")
			}

			account, network := c.Args().First(), c.String("network")
			if a, n, ok := temporal.ParseScheduleID(account); ok {
				account, network = a, n
			}

			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			info, err := tc.DescribeWatchSchedule(c.Context, account, network)
			if err != nil {
				return err
			}

			if wantJSON(c) {
				return output(c, info)
			}
			printScheduleInfo(c.App.Writer, info)
			return nil
		},
	}
}

func printScheduleInfo(w io.Writer, info *temporal.ScheduleInfo) {
	state := "running"
	if info.Paused {
		state = "paused"
	}
	fmt.Fprintf(w, "Schedule: %s\n", info.ID)
	fmt.Fprintf(w, "  State:       %s\n", state)
	fmt.Fprintf(w, "  Workflow:    %s\n", info.Workflow)
	fmt.Fprintf(w, "  Task Queue:  %s\n", info.TaskQueue)
	fmt.Fprintf(w, "  Interval:    %v\n", info.Interval)
	fmt.Fprintf(w, "  Recent Runs: %d\n", info.RecentRuns)
	if info.LastRun != nil {
		fmt.Fprintf(w, "  Last Run:    %s\n", info.LastRun.Format(time.RFC3339))
	}
	if info.NextRun != nil {
		fmt.Fprintf(w, "  Next Run:    %s\n", info.NextRun.Format(time.RFC3339))
	}
}

func reconcileCommand() *cli.Command {
	return &cli.Command{
		Name:  "reconcile",
		Usage: "Check for inconsistencies between stored watches and Temporal schedules",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "fix",
				Usage: "Create missing schedules and delete orphaned ones",
			},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			network := c.String("network")
			watches, err := store.ListWatches(c.Context, network)
			if err != nil {
				return fmt.Errorf("failed to list watches: %w", err)
			}
			ids, err := tc.ListWatchSchedules(c.Context)
			if err != nil {
				return err
			}

			missing, orphaned := reconcile(watches, ids, network)

			out := c.App.Writer
			fmt.Fprintf(out, "Reconciliation Report (%s):\n", network)
			fmt.Fprintf(out, "  Watches in DB:      %d\n", len(watches))
			fmt.Fprintf(out, "  Missing schedules:  %d\n", len(missing))
			fmt.Fprintf(out, "  Orphaned schedules: %d\n", len(orphaned))
			for _, w := range missing {
				fmt.Fprintf(out, "  - missing:  %s\n", w.AccountID)
			}
			for _, id := range orphaned {
				fmt.Fprintf(out, "  - orphaned: %s\n", id)
			}

			if !c.Bool("fix") {
				if len(missing)+len(orphaned) > 0 {
					fmt.Fprintln(out, "\nRun with --fix to repair.")
				}
				return nil
			}

			var failed int
			for _, w := range missing {
				if err := tc.UpsertWatchSchedule(c.Context, w.AccountID, w.Network, w.PollInterval); err != nil {
					fmt.Fprintf(c.App.ErrWriter, "✗ failed to create schedule for %s: %v\n", w.AccountID, err)
					failed++
					continue
				}
				fmt.Fprintf(out, "✓ created schedule for %s\n", w.AccountID)
			}
			for _, id := range orphaned {
				account, net, _ := temporal.ParseScheduleID(id)
				if err := tc.DeleteWatchSchedule(c.Context, account, net); err != nil {
					fmt.Fprintf(c.App.ErrWriter, "✗ failed to delete schedule %s: %v\n", id, err)
					failed++
					continue
				}
				fmt.Fprintf(out, "✓ deleted schedule %s\n", id)
			}
			if failed > 0 {
				return fmt.Errorf("%d repairs failed", failed)
			}
			return nil
		},
	}
}

// reconcile compares stored watches for network against schedule IDs. Every
// watch needs a schedule, paused ones included, since the workflow skips them.
// Schedules for other networks are ignored.
func reconcile(watches []*db.Watch, scheduleIDs []string, network string) (missing []*db.Watch, orphaned []string) {
	scheduled := make(map[string]bool, len(scheduleIDs))
	for _, id := range scheduleIDs {
		account, net, ok := temporal.ParseScheduleID(id)
		if !ok || net != network {
			continue
		}
		scheduled[account] = true
	}

	watched := make(map[string]bool, len(watches))
	for _, w := range watches {
		if w.Network != network {
			continue
		}
		watched[w.AccountID] = true
		if !scheduled[w.AccountID] {
			missing = append(missing, w)
		}
	}

	for _, id := range scheduleIDs {
		account, net, ok := temporal.ParseScheduleID(id)
		if !ok || net != network {
			continue
		}
		if !watched[account] {
			orphaned = append(orphaned, id)
		}
	}
	sort.Strings(orphaned)
	return missing, orphaned
}

// getTemporalClient connects to --temporal-host. Created schedules target
// --task-queue.
func getTemporalClient(c *cli.Context) (*temporal.Client, error) {
	logger := slog.New(slog.NewJSONHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	return temporal.NewClient(
		c.String("temporal-host"),
		c.String("temporal-namespace"),
		c.String("task-queue"),
		logger,
	)
}
