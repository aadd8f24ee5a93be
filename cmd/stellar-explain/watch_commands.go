package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/brojonat/stellar-explain/client"
	"github.com/urfave/cli/v2"
)

func watchCommands() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Account watch commands",
		Subcommands: []*cli.Command{
			watchAddCommand(),
			watchListCommand(),
			watchGetCommand(),
			watchStatusCommand("pause", "paused", "Pause polling for an account"),
			watchStatusCommand("resume", "active", "Resume polling for a paused account"),
			watchRemoveCommand(),
		},
	}
}

func watchAddCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Watch an account for new transactions",
		ArgsUsage: "ACCOUNT_ID",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "poll-interval",
				Aliases: []string{"i"},
				Usage:   "How often to poll for new transactions (e.g., 30s, 1m); server default when unset",
			},
			&cli.StringFlag{
				Name:    "webhook",
				Aliases: []string{"w"},
				Usage:   "URL to POST new explanations to",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: account id")
			}

			watch, created, err := newAPIClient(c).CreateWatch(c.Context, client.CreateWatchRequest{
				AccountID:    c.Args().First(),
				WebhookURL:   c.String("webhook"),
				PollInterval: c.Duration("poll-interval"),
			})
			if err != nil {
				return fmt.Errorf("failed to create watch: %w", err)
			}

			if wantJSON(c) {
				return output(c, watch)
			}
			if created {
				fmt.Fprintln(c.App.Writer, "✓ Watch created")
			} else {
				fmt.Fprintln(c.App.Writer, "✓ Watch updated")
			}
			printWatch(c.App.Writer, watch)
			return nil
		},
	}
}

func watchListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List watched accounts",
		Action: func(c *cli.Context) error {
			watches, err := newAPIClient(c).ListWatches(c.Context)
			if err != nil {
				return fmt.Errorf("failed to list watches: %w", err)
			}

			if wantJSON(c) {
				return output(c, watches)
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ACCOUNT\tSTATUS\tPOLL INTERVAL\tLAST POLL\tWEBHOOK")
			for _, watch := range watches {
				lastPoll := "never"
				if watch.LastPollTime != nil {
					lastPoll = watch.LastPollTime.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%s\n",
					watch.AccountID,
					watch.Status,
					watch.PollInterval,
					lastPoll,
					optional(watch.WebhookURL, "-"),
				)
			}
			w.Flush()

			fmt.Fprintf(c.App.ErrWriter, "\nTotal: %d watches\n", len(watches))
			return nil
		},
	}
}

func watchGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Aliases:   []string{"show"},
		Usage:     "Get details for a watched account",
		ArgsUsage: "ACCOUNT_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: account id")
			}

			watch, err := newAPIClient(c).GetWatch(c.Context, c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to get watch: %w", err)
			}

			if wantJSON(c) {
				return output(c, watch)
			}
			printWatch(c.App.Writer, watch)
			return nil
		},
	}
}

func watchStatusCommand(name, status, usage string) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "ACCOUNT_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: account id")
			}

			watch, err := newAPIClient(c).UpdateWatch(c.Context, c.Args().First(), status)
			if err != nil {
				return fmt.Errorf("failed to %s watch: %w", name, err)
			}

			if wantJSON(c) {
				return output(c, watch)
			}
			fmt.Fprintf(c.App.Writer, "✓ Watch %s\n", watch.Status)
			printWatch(c.App.Writer, watch)
			return nil
		},
	}
}

func watchRemoveCommand() *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Aliases:   []string{"rm", "delete"},
		Usage:     "Stop watching an account",
		ArgsUsage: "ACCOUNT_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: account id")
			}

			account := c.Args().First()
			if err := newAPIClient(c).DeleteWatch(c.Context, account); err != nil {
				return fmt.Errorf("failed to delete watch: %w", err)
			}

			if wantJSON(c) {
				return output(c, map[string]string{"account_id": account, "status": "deleted"})
			}
			fmt.Fprintf(c.App.Writer, "✓ Watch removed\n  Account: %s\n", account)
			return nil
		},
	}
}

func printWatch(w io.Writer, watch *client.Watch) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Account:       %s\n", watch.AccountID)
	fmt.Fprintf(w, "Network:       %s\n", watch.Network)
	fmt.Fprintf(w, "Status:        %s\n", watch.Status)
	fmt.Fprintf(w, "Poll Interval: %s\n", watch.PollInterval)
	fmt.Fprintf(w, "Webhook:       %s\n", optional(watch.WebhookURL, "(none)"))
	fmt.Fprintf(w, "Cursor:        %s\n", optional(watch.Cursor, "(baseline pending)"))
	if watch.LastPollTime != nil {
		fmt.Fprintf(w, "Last Poll:     %s\n", watch.LastPollTime.Format(time.RFC3339))
	} else {
		fmt.Fprintf(w, "Last Poll:     (never)\n")
	}
	fmt.Fprintln(w, rule)
}
