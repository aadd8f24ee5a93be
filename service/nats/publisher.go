package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/stellar-explain/service/metrics"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher defines the interface for publishing explanation events to NATS.
type Publisher interface {
	// PublishExplanation publishes a single event to the subject
	// "explanations.{account_id}".
	PublishExplanation(ctx context.Context, event *ExplanationEvent) error

	// PublishExplanationBatch publishes events in order. It returns the
	// number published; a failure stops the batch so ordering holds.
	PublishExplanationBatch(ctx context.Context, events []*ExplanationEvent) (int, error)

	// Close closes the connection to NATS.
	Close() error
}

const (
	// StreamName is the name of the JetStream stream for explanation events.
	StreamName = "EXPLANATIONS"

	// SubjectPrefix is the first token of every event subject.
	SubjectPrefix = "explanations"

	// StreamSubjects is the subject pattern for the stream.
	StreamSubjects = SubjectPrefix + ".*"

	// StreamRetention is how long messages are retained.
	StreamRetention = 7 * 24 * time.Hour
)

// Subject returns the subject events for accountID are published on.
func Subject(accountID string) string {
	return SubjectPrefix + "." + accountID
}

// Connect dials NATS with the reconnect policy every component uses.
func Connect(natsURL, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name(name),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// JetStreamPublisher publishes explanation events to NATS JetStream.
type JetStreamPublisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewPublisher creates a new JetStream publisher.
// It connects to NATS and ensures the stream exists.
func NewPublisher(natsURL string, m *metrics.Metrics, logger *slog.Logger) (*JetStreamPublisher, error) {
	nc, err := Connect(natsURL, "stellar-explain-publisher")
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher := &JetStreamPublisher{
		nc:      nc,
		js:      js,
		metrics: m,
		logger:  logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := EnsureStream(ctx, js, logger); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("NATS publisher initialized",
		"url", natsURL,
		"stream", StreamName,
	)

	return publisher, nil
}

// EnsureStream creates the explanations stream if it doesn't exist.
func EnsureStream(ctx context.Context, js jetstream.JetStream, logger *slog.Logger) error {
	stream, err := js.Stream(ctx, StreamName)
	if err == nil {
		if info, err := stream.Info(ctx); err == nil {
			logger.Debug("JetStream stream already exists",
				"stream", StreamName,
				"messages", info.State.Msgs,
			)
		}
		return nil
	}

	logger.Info("creating JetStream stream", "stream", StreamName)

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Explanations of new transactions on watched Stellar accounts",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	logger.Info("JetStream stream created successfully", "stream", StreamName)
	return nil
}

// PublishExplanation publishes a single explanation event.
func (p *JetStreamPublisher) PublishExplanation(ctx context.Context, event *ExplanationEvent) error {
	subject := Subject(event.AccountID)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal explanation event: %w", err)
	}

	start := time.Now()
	_, err = p.js.Publish(ctx, subject, data, jetstream.WithMsgID(event.MsgID()))
	status := "success"
	if err != nil {
		status = "error"
	}
	if p.metrics != nil {
		p.metrics.RecordNATSPublish(SubjectPrefix, status, time.Since(start).Seconds())
	}
	if err != nil {
		return fmt.Errorf("failed to publish explanation: %w", err)
	}

	p.logger.Debug("published explanation event",
		"subject", subject,
		"transaction_hash", event.TransactionHash,
	)

	return nil
}

// PublishExplanationBatch publishes events in order and stops at the first
// failure.
func (p *JetStreamPublisher) PublishExplanationBatch(ctx context.Context, events []*ExplanationEvent) (int, error) {
	for i, event := range events {
		if err := p.PublishExplanation(ctx, event); err != nil {
			p.logger.Error("failed to publish explanation in batch",
				"transaction_hash", event.TransactionHash,
				"account", event.AccountID,
				"published", i,
				"error", err,
			)
			return i, err
		}
	}

	p.logger.Debug("published explanation batch", "count", len(events))
	return len(events), nil
}

// Close closes the connection to NATS.
func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("NATS publisher closed")
	}
	return nil
}
