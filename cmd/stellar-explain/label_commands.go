package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
)

func labelCommands() *cli.Command {
	return &cli.Command{
		Name:  "label",
		Usage: "Address label commands",
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List the active label table",
				Action: func(c *cli.Context) error {
					labels, err := newAPIClient(c).ListLabels(c.Context)
					if err != nil {
						return fmt.Errorf("failed to list labels: %w", err)
					}

					if wantJSON(c) {
						return output(c, labels)
					}

					w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
					fmt.Fprintln(w, "ADDRESS\tLABEL\tSOURCE\tUPDATED")
					for _, l := range labels {
						updated := "-"
						if l.UpdatedAt != nil {
							updated = l.UpdatedAt.Format(time.RFC3339)
						}
						fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", l.Address, l.Label, l.Source, updated)
					}
					return w.Flush()
				},
			},
			{
				Name:      "set",
				Usage:     "Create or replace an operator label",
				ArgsUsage: "ADDRESS LABEL",
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return fmt.Errorf("requires exactly two arguments: address and label")
					}

					l, err := newAPIClient(c).PutLabel(c.Context, c.Args().Get(0), c.Args().Get(1))
					if err != nil {
						return fmt.Errorf("failed to set label: %w", err)
					}

					if wantJSON(c) {
						return output(c, l)
					}
					fmt.Fprintf(c.App.Writer, "✓ Label set\n  %s → %s\n", l.Address, l.Label)
					return nil
				},
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm", "delete"},
				Usage:     "Remove an operator label",
				ArgsUsage: "ADDRESS",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("requires exactly one argument: address")
					}

					address := c.Args().First()
					if err := newAPIClient(c).DeleteLabel(c.Context, address); err != nil {
						return fmt.Errorf("failed to remove label: %w", err)
					}

					if wantJSON(c) {
						return output(c, map[string]string{"address": address, "status": "deleted"})
					}
					fmt.Fprintf(c.App.Writer, "✓ Label removed\n  Address: %s\n", address)
					return nil
				},
			},
		},
	}
}
