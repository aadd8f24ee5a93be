package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check server health",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 5 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
			defer cancel()

			health, err := newAPIClient(c).Health(ctx)
			if health == nil {
				return fmt.Errorf("health check failed: %w", err)
			}

			if wantJSON(c) {
				if outErr := output(c, health); outErr != nil {
					return outErr
				}
			} else {
				mark := "✓"
				if err != nil {
					mark = "✗"
				}
				fmt.Fprintf(c.App.Writer, "%s Server is %s\n", mark, health.Status)
				fmt.Fprintf(c.App.Writer, "  URL:               %s\n", c.String("server"))
				fmt.Fprintf(c.App.Writer, "  Network:           %s\n", health.Network)
				fmt.Fprintf(c.App.Writer, "  Horizon reachable: %t\n", health.HorizonReachable)
				fmt.Fprintf(c.App.Writer, "  Version:           %s\n", health.Version)
			}

			if err != nil {
				return fmt.Errorf("server is unhealthy: %s", health.Status)
			}
			return nil
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			fmt.Fprintf(c.App.Writer, "stellar-explain CLI\n")
			fmt.Fprintf(c.App.Writer, "  Version: %s\n", version)
			fmt.Fprintf(c.App.Writer, "  Commit:  %s\n", commit)
			fmt.Fprintf(c.App.Writer, "  Built:   %s\n", date)
			return nil
		},
	}
}
