package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/caro-api/internal/domain"
	"github.com/phrazzld/caro-api/internal/service/notification"
)

var _ notification.Sender = (*MockSender)(nil)

// MockSender implements notification.Sender.
type MockSender struct {
	SendFn func(ctx context.Context, n domain.Notification) error
	Err    error

	mu   sync.Mutex
	sent []domain.Notification
}

// Send records n, whether or not the send fails.
func (m *MockSender) Send(ctx context.Context, n domain.Notification) error {
	m.mu.Lock()
	m.sent = append(m.sent, n)
	err := m.Err
	m.mu.Unlock()

	if m.SendFn != nil {
		return m.SendFn(ctx, n)
	}
	return err
}

// Notifications returns every notification passed to Send.
func (m *MockSender) Notifications() []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Notification(nil), m.sent...)
}
