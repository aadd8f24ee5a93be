package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/stellar-explain/service/metrics"
	natspkg "github.com/brojonat/stellar-explain/service/nats"
	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// SSEStream relays explanation events from JetStream to Server-Sent Events
// clients.
type SSEStream struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewSSEStream connects to NATS and makes sure the explanations stream exists
// so clients can subscribe before the worker publishes anything.
func NewSSEStream(natsURL string, m *metrics.Metrics, logger *slog.Logger) (*SSEStream, error) {
	nc, err := natspkg.Connect(natsURL, "stellar-explain-sse")
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := natspkg.EnsureStream(ctx, js, logger); err != nil {
		nc.Close()
		return nil, err
	}

	logger.Info("SSE stream initialized", "nats_url", natsURL)

	return &SSEStream{
		nc:      nc,
		js:      js,
		metrics: m,
		logger:  logger,
	}, nil
}

// Close closes the NATS connection.
func (s *SSEStream) Close() error {
	if s.nc != nil {
		s.nc.Close()
		s.logger.Info("SSE stream closed")
	}
	return nil
}

// writeSSE writes one event and flushes it to the client.
func writeSSE(w io.Writer, event string, data []byte) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// handleStreamExplanations streams explanation events for one account as
// they are published by watch workflows.
// GET /api/v1/stream/{account}
func handleStreamExplanations(stream *SSEStream, v *validator.Validate, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account := r.PathValue("account")
		if !validateVar(w, v, "account", account, "stellar_account") {
			return
		}
		ctx := r.Context()

		cons, err := stream.js.CreateOrUpdateConsumer(ctx, natspkg.StreamName, jetstream.ConsumerConfig{
			FilterSubject: natspkg.Subject(account),
			AckPolicy:     jetstream.AckExplicitPolicy,
			DeliverPolicy: jetstream.DeliverNewPolicy, // Only deliver new messages after consumer creation
			// Ephemeral: removed once inactive
			InactiveThreshold: time.Minute,
		})
		if err != nil {
			logger.ErrorContext(ctx, "failed to create consumer", "account", account, "error", err)
			writeError(w, CodeUpstreamError, "failed to subscribe", http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		if stream.metrics != nil {
			stream.metrics.RecordSSEConnectionChange(1)
			defer stream.metrics.RecordSSEConnectionChange(-1)
		}

		logger.DebugContext(ctx, "SSE client connected",
			"account", account,
			"remote_addr", r.RemoteAddr,
		)

		msgChan := make(chan jetstream.Msg, 10)
		cc, err := cons.Consume(func(msg jetstream.Msg) {
			select {
			case msgChan <- msg:
			case <-ctx.Done():
			}
		})
		if err != nil {
			logger.ErrorContext(ctx, "failed to start consuming messages", "error", err)
			writeSSE(w, "error", []byte(`{"error":"failed to subscribe"}`))
			return
		}
		defer cc.Stop()

		connected, _ := json.Marshal(map[string]string{"account": account})
		writeSSE(w, "connected", connected)

		// Keepalive comments stop proxies from closing idle connections
		keepalive := time.NewTicker(15 * time.Second)
		defer keepalive.Stop()

		for {
			select {
			case <-keepalive.C:
				fmt.Fprintf(w, ": keepalive\n\n")
				if flusher, ok := w.(http.Flusher); ok {
					flusher.Flush()
				}

			case msg := <-msgChan:
				var event natspkg.ExplanationEvent
				if err := json.Unmarshal(msg.Data(), &event); err != nil {
					logger.WarnContext(ctx, "failed to unmarshal event", "error", err)
					msg.Ack()
					continue
				}

				writeSSE(w, "explanation", msg.Data())
				msg.Ack()
				if stream.metrics != nil {
					stream.metrics.RecordSSEEventSent("explanation")
				}

				logger.DebugContext(ctx, "sent explanation event",
					"account", account,
					"transaction_hash", event.TransactionHash,
				)

			case <-ctx.Done():
				logger.DebugContext(ctx, "SSE client disconnected",
					"account", account,
					"remote_addr", r.RemoteAddr,
				)
				return
			}
		}
	})
}
