package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	natspkg "github.com/brojonat/stellar-explain/service/nats"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

func streamCommand() *cli.Command {
	return &cli.Command{
		Name:      "stream",
		Usage:     "Follow explanations of new transactions for a watched account (SSE)",
		ArgsUsage: "ACCOUNT_ID",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "must-jq",
				Usage: "Only show events for which this jq expression is truthy (repeatable)",
			},
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "Exit after this many matching events (0 streams until interrupted)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: account id")
			}
			account := c.Args().First()
			jsonOutput := wantJSON(c)

			filters := make([]*gojq.Code, 0, len(c.StringSlice("must-jq")))
			for _, expr := range c.StringSlice("must-jq") {
				code, err := compileJQ(expr)
				if err != nil {
					return err
				}
				filters = append(filters, code)
			}

			// Create context that cancels on interrupt
			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)
			go func() {
				select {
				case <-sigChan:
					cancel()
				case <-ctx.Done():
				}
			}()

			streamURL := fmt.Sprintf("%s/api/v1/stream/%s", c.String("server"), url.PathEscape(account))
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
			if err != nil {
				return fmt.Errorf("failed to create request: %w", err)
			}
			req.Header.Set("Accept", "text/event-stream")

			// No timeout for streaming
			resp, err := (&http.Client{}).Do(req)
			if err != nil {
				return fmt.Errorf("failed to connect to SSE endpoint: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				return fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			}

			if !jsonOutput {
				fmt.Fprintf(c.App.ErrWriter, "Streaming explanations for %s... (Ctrl+C to stop)\n\n", account)
			}

			h := &sseHandler{
				out:     c.App.Writer,
				errOut:  c.App.ErrWriter,
				json:    jsonOutput,
				jq:      c.String("jq"),
				filters: filters,
				limit:   c.Int("count"),
			}
			err = readSSE(resp.Body, h.handle)
			if errors.Is(err, errStreamDone) {
				return nil
			}
			if err != nil {
				if ctx.Err() != nil {
					if !jsonOutput {
						fmt.Fprintf(c.App.ErrWriter, "\nDisconnected\n")
					}
					return nil
				}
				return fmt.Errorf("error reading SSE stream: %w", err)
			}
			return nil
		},
	}
}

var errStreamDone = errors.New("stream done")

// readSSE parses an event stream and calls fn for every complete event.
// Comment lines such as keepalives are ignored.
func readSSE(r io.Reader, fn func(event, data string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var event string
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if event != "" && len(data) > 0 {
				if err := fn(event, strings.Join(data, "\n")); err != nil {
					return err
				}
			}
			event, data = "", nil
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	return scanner.Err()
}

type sseHandler struct {
	out     io.Writer
	errOut  io.Writer
	json    bool
	jq      string
	filters []*gojq.Code
	limit   int
	seen    int
}

func (h *sseHandler) handle(event, data string) error {
	switch event {
	case "connected":
		if !h.json {
			fmt.Fprintf(h.errOut, "✓ Connected\n\n")
		}
		return nil

	case "explanation":
		var raw interface{}
		if err := json.Unmarshal([]byte(data), &raw); err != nil {
			fmt.Fprintf(h.errOut, "Error decoding event: %v\n", err)
			return nil
		}
		if !matchesAll(h.filters, raw) {
			return nil
		}

		switch {
		case h.jq != "":
			if err := outputJQ(h.out, raw, h.jq); err != nil {
				return err
			}
		case h.json:
			fmt.Fprintln(h.out, data)
		default:
			var ev natspkg.ExplanationEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				fmt.Fprintf(h.errOut, "Error decoding event: %v\n", err)
				return nil
			}
			printTransaction(h.out, &ev.Explanation)
			fmt.Fprintln(h.out)
		}

		h.seen++
		if h.limit > 0 && h.seen >= h.limit {
			return errStreamDone
		}
		return nil

	case "error":
		var errInfo map[string]interface{}
		if err := json.Unmarshal([]byte(data), &errInfo); err != nil {
			return err
		}
		return fmt.Errorf("server error: %v", errInfo["error"])

	default:
		return nil
	}
}
