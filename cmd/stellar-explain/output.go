package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/brojonat/stellar-explain/client"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// newAPIClient builds an API client for the --server URL that only logs errors.
func newAPIClient(c *cli.Context) *client.Client {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	return client.NewClient(c.String("server"), nil, logger)
}

// wantJSON reports whether the caller asked for machine-readable output.
func wantJSON(c *cli.Context) bool {
	return c.Bool("json") || c.String("jq") != ""
}

// output writes v as indented JSON, or through the --jq expression when set.
func output(c *cli.Context, v interface{}) error {
	if expr := c.String("jq"); expr != "" {
		return outputJQ(c.App.Writer, v, expr)
	}
	return outputJSON(c.App.Writer, v)
}

func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputJQ runs expr over v and writes each result on its own line. String
// results are written raw.
func outputJQ(w io.Writer, v interface{}, expr string) error {
	code, err := compileJQ(expr)
	if err != nil {
		return err
	}
	input, err := toJQInput(v)
	if err != nil {
		return err
	}

	iter := code.Run(input)
	for {
		result, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, isErr := result.(error); isErr {
			return fmt.Errorf("jq: %w", err)
		}
		if s, isString := result.(string); isString {
			fmt.Fprintln(w, s)
			continue
		}
		raw, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("jq: %w", err)
		}
		fmt.Fprintln(w, string(raw))
	}
}

func compileJQ(expr string) (*gojq.Code, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", expr, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", expr, err)
	}
	return code, nil
}

// toJQInput round-trips v through JSON so gojq sees plain maps and slices.
func toJQInput(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal output: %w", err)
	}
	var input interface{}
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("failed to unmarshal output: %w", err)
	}
	return input, nil
}

// matchesAll reports whether every filter yields a truthy first result for v.
func matchesAll(filters []*gojq.Code, v interface{}) bool {
	for _, code := range filters {
		result, ok := code.Run(v).Next()
		if !ok {
			return false
		}
		if _, isErr := result.(error); isErr {
			return false
		}
		if !isTruthy(result) {
			return false
		}
	}
	return true
}

// isTruthy checks if a jq result value is truthy.
// In jq, false and null are falsy, everything else is truthy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

func optional(s *string, fallback string) string {
	if s != nil && *s != "" {
		return *s
	}
	return fallback
}
