package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/brojonat/stellar-explain/client"
	"github.com/brojonat/stellar-explain/service/explain"
	"github.com/urfave/cli/v2"
)

func txCommand() *cli.Command {
	return &cli.Command{
		Name:      "tx",
		Aliases:   []string{"transaction"},
		Usage:     "Explain a transaction in plain English",
		ArgsUsage: "TRANSACTION_HASH",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: transaction hash")
			}

			exp, err := newAPIClient(c).ExplainTransaction(c.Context, c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to explain transaction: %w", err)
			}

			if wantJSON(c) {
				return output(c, exp)
			}
			printTransaction(c.App.Writer, exp)
			return nil
		},
	}
}

func opsCommand() *cli.Command {
	return &cli.Command{
		Name:      "ops",
		Aliases:   []string{"operations"},
		Usage:     "Explain every operation of a transaction",
		ArgsUsage: "TRANSACTION_HASH",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: transaction hash")
			}

			ops, err := newAPIClient(c).ExplainOperations(c.Context, c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to explain operations: %w", err)
			}

			if wantJSON(c) {
				return output(c, ops)
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tSUPPORTED\tSUMMARY")
			for _, op := range ops {
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", op.OperationID, op.Type, op.Supported, op.Summary)
			}
			return w.Flush()
		},
	}
}

func accountCommand() *cli.Command {
	return &cli.Command{
		Name:      "account",
		Usage:     "Explain an account's balances, signers and flags",
		ArgsUsage: "ACCOUNT_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: account id")
			}

			exp, err := newAPIClient(c).ExplainAccount(c.Context, c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to explain account: %w", err)
			}

			if wantJSON(c) {
				return output(c, exp)
			}

			w := c.App.Writer
			fmt.Fprintln(w, rule)
			fmt.Fprintf(w, "Account:     %s\n", exp.AccountID)
			if exp.Label != nil {
				fmt.Fprintf(w, "Label:       %s\n", *exp.Label)
			}
			fmt.Fprintf(w, "XLM:         %s\n", exp.XLMBalance)
			fmt.Fprintf(w, "Assets:      %d\n", exp.AssetCount)
			fmt.Fprintf(w, "Signers:     %d\n", exp.SignerCount)
			fmt.Fprintf(w, "Home Domain: %s\n", optional(exp.HomeDomain, "(none)"))
			fmt.Fprintln(w, rule)
			fmt.Fprintln(w, exp.Summary)
			for _, f := range exp.FlagDescriptions {
				fmt.Fprintf(w, "  • %s\n", f)
			}
			return nil
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Aliases:   []string{"account-txs"},
		Usage:     "Explain a page of an account's transactions",
		ArgsUsage: "ACCOUNT_ID",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Transactions per page (1-50)",
				Value:   10,
			},
			&cli.StringFlag{
				Name:  "order",
				Usage: "Sort order: asc or desc",
				Value: "desc",
			},
			&cli.StringFlag{
				Name:  "cursor",
				Usage: "Paging token to continue from",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: account id")
			}

			page, err := newAPIClient(c).ListAccountTransactions(c.Context, c.Args().First(), client.PageOptions{
				Limit:  c.Int("limit"),
				Order:  c.String("order"),
				Cursor: c.String("cursor"),
			})
			if err != nil {
				return fmt.Errorf("failed to list account transactions: %w", err)
			}

			if wantJSON(c) {
				return output(c, page)
			}

			for i := range page.Transactions {
				printTransaction(c.App.Writer, &page.Transactions[i])
				fmt.Fprintln(c.App.Writer)
			}
			if page.NextCursor != "" {
				fmt.Fprintf(c.App.ErrWriter, "Next page: --cursor %s\n", page.NextCursor)
			}
			return nil
		},
	}
}

func printTransaction(w io.Writer, exp *explain.TransactionExplanation) {
	fmt.Fprintln(w, rule)
	status := "✓ Successful"
	if !exp.Successful {
		status = "✗ Failed"
	}
	fmt.Fprintf(w, "%s transaction %s\n", status, exp.TransactionHash)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, exp.Summary)

	if len(exp.PaymentExplanations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Payments:")
		for _, p := range exp.PaymentExplanations {
			fmt.Fprintf(w, "  • %s\n", p.Summary)
		}
	}
	if exp.SkippedOperations > 0 {
		fmt.Fprintf(w, "  (%d other %s not shown)\n", exp.SkippedOperations, plural(exp.SkippedOperations, "operation", "operations"))
	}

	var notes []string
	if exp.MemoExplanation != nil {
		notes = append(notes, *exp.MemoExplanation)
	}
	if exp.FeeExplanation != nil {
		notes = append(notes, *exp.FeeExplanation)
	}
	if len(notes) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, strings.Join(notes, "\n"))
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
