package nats

import (
	"context"
	"sync"
)

// MockPublisher is a mock implementation of Publisher for testing.
type MockPublisher struct {
	mu              sync.RWMutex
	publishedEvents []*ExplanationEvent
	publishError    error
	failAfter       int // batch publishes this many before failing; -1 disables
	closed          bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		publishedEvents: make([]*ExplanationEvent, 0),
		failAfter:       -1,
	}
}

// PublishExplanation records the event and returns any configured error.
func (m *MockPublisher) PublishExplanation(ctx context.Context, event *ExplanationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}
	m.publishedEvents = append(m.publishedEvents, event)
	return nil
}

// PublishExplanationBatch records events until the configured failure point.
func (m *MockPublisher) PublishExplanationBatch(ctx context.Context, events []*ExplanationEvent) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, event := range events {
		if m.publishError != nil && (m.failAfter < 0 || i >= m.failAfter) {
			return i, m.publishError
		}
		m.publishedEvents = append(m.publishedEvents, event)
	}
	return len(events), nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetPublishedEvents returns a copy of all published events.
func (m *MockPublisher) GetPublishedEvents() []*ExplanationEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*ExplanationEvent, len(m.publishedEvents))
	copy(events, m.publishedEvents)
	return events
}

// GetPublishedEventsForAccount returns events published for one account.
func (m *MockPublisher) GetPublishedEventsForAccount(accountID string) []*ExplanationEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*ExplanationEvent, 0)
	for _, event := range m.publishedEvents {
		if event.AccountID == accountID {
			events = append(events, event)
		}
	}
	return events
}

// SetPublishError configures the mock to fail publishes with err.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
	m.failAfter = -1
}

// SetBatchFailAfter makes batches publish n events and then fail with err.
func (m *MockPublisher) SetBatchFailAfter(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
	m.failAfter = n
}

// Reset clears all published events and errors.
func (m *MockPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishedEvents = make([]*ExplanationEvent, 0)
	m.publishError = nil
	m.failAfter = -1
	m.closed = false
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
