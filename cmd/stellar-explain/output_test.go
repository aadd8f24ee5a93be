package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/brojonat/stellar-explain/service/explain"
	natspkg "github.com/brojonat/stellar-explain/service/nats"
	"github.com/itchyny/gojq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputJQ(t *testing.T) {
	v := map[string]interface{}{
		"summary": "hello",
		"items":   []int{1, 2},
	}

	var buf bytes.Buffer
	require.NoError(t, outputJQ(&buf, v, ".summary"))
	assert.Equal(t, "hello\n", buf.String())

	buf.Reset()
	require.NoError(t, outputJQ(&buf, v, ".items[]"))
	assert.Equal(t, "1\n2\n", buf.String())

	buf.Reset()
	require.NoError(t, outputJQ(&buf, v, "{n: (.items | length)}"))
	assert.Equal(t, "{\"n\":2}\n", buf.String())

	err := outputJQ(&buf, v, ".summary | ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse jq filter")

	err = outputJQ(&buf, v, ".summary | error(\"boom\")")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jq:")
}

func TestIsTruthy(t *testing.T) {
	assert.False(t, isTruthy(nil))
	assert.False(t, isTruthy(false))
	assert.True(t, isTruthy(true))
	assert.True(t, isTruthy(0))
	assert.True(t, isTruthy(""))
	assert.True(t, isTruthy([]interface{}{}))
}

func mustCompile(t *testing.T, exprs ...string) []*gojq.Code {
	t.Helper()
	codes := make([]*gojq.Code, 0, len(exprs))
	for _, e := range exprs {
		code, err := compileJQ(e)
		require.NoError(t, err)
		codes = append(codes, code)
	}
	return codes
}

func TestMatchesAll(t *testing.T) {
	v := map[string]interface{}{"successful": true, "skipped_operations": float64(2)}

	assert.True(t, matchesAll(nil, v))
	assert.True(t, matchesAll(mustCompile(t, ".successful", ".skipped_operations > 1"), v))
	assert.False(t, matchesAll(mustCompile(t, ".successful", ".skipped_operations > 5"), v))
	assert.False(t, matchesAll(mustCompile(t, ".missing"), v))
	assert.False(t, matchesAll(mustCompile(t, "empty"), v))
	assert.False(t, matchesAll(mustCompile(t, ".successful | error"), v))
}

func TestOptional(t *testing.T) {
	s := "value"
	empty := ""
	assert.Equal(t, "value", optional(&s, "-"))
	assert.Equal(t, "-", optional(&empty, "-"))
	assert.Equal(t, "-", optional(nil, "-"))
}

func TestReadSSE(t *testing.T) {
	stream := strings.Join([]string{
		": keepalive",
		"event: connected",
		`data: {"account_id":"GA"}`,
		"",
		"event: explanation",
		"data: line one",
		"data: line two",
		"",
		"data: no event name",
		"",
	}, "\n")

	type ev struct{ event, data string }
	var got []ev
	err := readSSE(strings.NewReader(stream), func(event, data string) error {
		got = append(got, ev{event, data})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []ev{
		{"connected", `{"account_id":"GA"}`},
		{"explanation", "line one\nline two"},
	}, got)

	stop := errors.New("stop")
	err = readSSE(strings.NewReader(stream), func(string, string) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func explanationEventData(t *testing.T, hash string, successful bool) string {
	t.Helper()
	exp := sampleExplanation()
	exp.TransactionHash = hash
	exp.Successful = successful
	raw, err := json.Marshal(natspkg.ExplanationEvent{
		AccountID:       "GA",
		Network:         explain.NetworkTestnet,
		TransactionHash: hash,
		PagingToken:     "1",
		Explanation:     exp,
	})
	require.NoError(t, err)
	return string(raw)
}

func TestSSEHandler_Pretty(t *testing.T) {
	var out, errOut bytes.Buffer
	h := &sseHandler{out: &out, errOut: &errOut}

	require.NoError(t, h.handle("connected", `{}`))
	require.NoError(t, h.handle("explanation", explanationEventData(t, "aaa", true)))
	require.NoError(t, h.handle("keepalive", `{}`))

	assert.Contains(t, errOut.String(), "✓ Connected")
	assert.Contains(t, out.String(), "✓ Successful transaction aaa")
	assert.Equal(t, 1, h.seen)
}

func TestSSEHandler_FiltersAndCount(t *testing.T) {
	var out, errOut bytes.Buffer
	h := &sseHandler{
		out:     &out,
		errOut:  &errOut,
		json:    true,
		jq:      ".transaction_hash",
		filters: mustCompile(t, ".explanation.successful"),
		limit:   2,
	}

	require.NoError(t, h.handle("explanation", explanationEventData(t, "aaa", true)))
	require.NoError(t, h.handle("explanation", explanationEventData(t, "bbb", false)))
	err := h.handle("explanation", explanationEventData(t, "ccc", true))
	assert.ErrorIs(t, err, errStreamDone)

	assert.Equal(t, "aaa\nccc\n", out.String())
	assert.Empty(t, errOut.String(), "json mode stays quiet on stderr")
}

func TestSSEHandler_BadDataAndServerError(t *testing.T) {
	var out, errOut bytes.Buffer
	h := &sseHandler{out: &out, errOut: &errOut}

	require.NoError(t, h.handle("explanation", "not json"))
	assert.Contains(t, errOut.String(), "Error decoding event")
	assert.Equal(t, 0, h.seen)

	err := h.handle("error", `{"error":"subscription closed"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscription closed")
}
