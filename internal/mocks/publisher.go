package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/caro-api/internal/events"
)

var _ events.Publisher = (*MockPublisher)(nil)

// MockPublisher implements events.Publisher.
type MockPublisher struct {
	PublishFn func(ctx context.Context, event events.Event) error
	Err       error

	mu        sync.Mutex
	published []events.Event
}

// Publish records event unless publishing fails.
func (m *MockPublisher) Publish(ctx context.Context, event events.Event) error {
	if m.PublishFn != nil {
		if err := m.PublishFn(ctx, event); err != nil {
			return err
		}
	} else if m.Err != nil {
		return m.Err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, event)
	return nil
}

// Events returns the events published successfully, in order.
func (m *MockPublisher) Events() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.Event(nil), m.published...)
}

// CardReviewedEvents returns the published CardReviewedEvents.
func (m *MockPublisher) CardReviewedEvents() []events.CardReviewedEvent {
	var reviewed []events.CardReviewedEvent
	for _, e := range m.Events() {
		if r, ok := e.(events.CardReviewedEvent); ok {
			reviewed = append(reviewed, r)
		}
	}
	return reviewed
}
