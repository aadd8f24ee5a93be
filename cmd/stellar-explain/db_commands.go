package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/brojonat/stellar-explain/service/db"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create or update the database schema",
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			if err := store.Migrate(c.Context); err != nil {
				return fmt.Errorf("failed to migrate: %w", err)
			}
			fmt.Fprintln(c.App.Writer, "✓ Schema is up to date")
			return nil
		},
	}
}

func listWatchesCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-watches",
		Usage:   "List watches stored in the database",
		Aliases: []string{"watches"},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "status",
				Usage: "Filter by status (active, paused, error)",
			},
			&cli.BoolFlag{
				Name:  "all-networks",
				Usage: "List watches for every network instead of --network",
			},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			network := c.String("network")
			if c.Bool("all-networks") {
				network = ""
			}
			watches, err := store.ListWatches(c.Context, network)
			if err != nil {
				return fmt.Errorf("failed to list watches: %w", err)
			}
			watches = filterWatchesByStatus(watches, c.String("status"))

			if wantJSON(c) {
				return output(c, watches)
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ACCOUNT\tNETWORK\tSTATUS\tPOLL INTERVAL\tLAST POLL\tCURSOR")
			for _, watch := range watches {
				lastPoll := "never"
				if watch.LastPollTime != nil {
					lastPoll = watch.LastPollTime.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\t%s\n",
					watch.AccountID,
					watch.Network,
					watch.Status,
					watch.PollInterval,
					lastPoll,
					optional(watch.Cursor, "-"),
				)
			}
			w.Flush()

			fmt.Fprintf(c.App.ErrWriter, "\nTotal: %d watches\n", len(watches))
			return nil
		},
	}
}

func filterWatchesByStatus(watches []*db.Watch, status string) []*db.Watch {
	if status == "" {
		return watches
	}
	filtered := make([]*db.Watch, 0, len(watches))
	for _, w := range watches {
		if w.Status == status {
			filtered = append(filtered, w)
		}
	}
	return filtered
}

func listLabelsCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-labels",
		Usage:   "List operator labels stored in the database for --network",
		Aliases: []string{"labels"},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			labels, err := store.ListLabels(c.Context, c.String("network"))
			if err != nil {
				return fmt.Errorf("failed to list labels: %w", err)
			}

			if wantJSON(c) {
				return output(c, labels)
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ADDRESS\tLABEL\tUPDATED")
			for _, l := range labels {
				fmt.Fprintf(w, "%s\t%s\t%s\n", l.Address, l.Label, l.UpdatedAt.Format(time.RFC3339))
			}
			w.Flush()

			fmt.Fprintf(c.App.ErrWriter, "\nTotal: %d labels\n", len(labels))
			return nil
		},
	}
}

// getStore opens a pool for --database-url. The returned func closes it.
func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	pool, err := pgxpool.New(c.Context, dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db.NewStore(pool, nil), pool.Close, nil
}
