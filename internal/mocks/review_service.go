package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/caro-api/internal/service/review"
)

var _ review.Service = (*MockReviewService)(nil)

// MockReviewService implements review.Service.
type MockReviewService struct {
	InitializeCardForReviewFn func(ctx context.Context, memberID, cardID int64) (*review.ReviewRecordView, error)
	RecordReviewFn            func(ctx context.Context, cmd review.RecordReviewCommand) (*review.ReviewRecordView, error)
	GetTodayReviewCardIDsFn   func(ctx context.Context, memberID int64) ([]int64, error)
	GetTodayReviewsFn         func(ctx context.Context, memberID int64) ([]review.ReviewRecordView, error)
	GetReviewRecordFn         func(ctx context.Context, memberID, cardID int64) (*review.ReviewRecordView, error)

	// Defaults returned when no hook is set.
	Record  *review.ReviewRecordView
	Records []review.ReviewRecordView
	CardIDs []int64
	Err     error

	mu       sync.Mutex
	calls    int
	commands []review.RecordReviewCommand
}

func (m *MockReviewService) track(cmd *review.RecordReviewCommand) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if cmd != nil {
		m.commands = append(m.commands, *cmd)
	}
}

// Calls returns how many service methods were called.
func (m *MockReviewService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Commands returns the commands passed to RecordReview.
func (m *MockReviewService) Commands() []review.RecordReviewCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]review.RecordReviewCommand(nil), m.commands...)
}

// InitializeCardForReview implements review.Service.
func (m *MockReviewService) InitializeCardForReview(
	ctx context.Context,
	memberID, cardID int64,
) (*review.ReviewRecordView, error) {
	m.track(nil)
	if m.InitializeCardForReviewFn != nil {
		return m.InitializeCardForReviewFn(ctx, memberID, cardID)
	}
	return m.Record, m.Err
}

// RecordReview implements review.Service.
func (m *MockReviewService) RecordReview(
	ctx context.Context,
	cmd review.RecordReviewCommand,
) (*review.ReviewRecordView, error) {
	m.track(&cmd)
	if m.RecordReviewFn != nil {
		return m.RecordReviewFn(ctx, cmd)
	}
	return m.Record, m.Err
}

// GetTodayReviewCardIDs implements review.Service.
func (m *MockReviewService) GetTodayReviewCardIDs(ctx context.Context, memberID int64) ([]int64, error) {
	m.track(nil)
	if m.GetTodayReviewCardIDsFn != nil {
		return m.GetTodayReviewCardIDsFn(ctx, memberID)
	}
	return m.CardIDs, m.Err
}

// GetTodayReviews implements review.Service.
func (m *MockReviewService) GetTodayReviews(ctx context.Context, memberID int64) ([]review.ReviewRecordView, error) {
	m.track(nil)
	if m.GetTodayReviewsFn != nil {
		return m.GetTodayReviewsFn(ctx, memberID)
	}
	return m.Records, m.Err
}

// GetReviewRecord implements review.Service.
func (m *MockReviewService) GetReviewRecord(
	ctx context.Context,
	memberID, cardID int64,
) (*review.ReviewRecordView, error) {
	m.track(nil)
	if m.GetReviewRecordFn != nil {
		return m.GetReviewRecordFn(ctx, memberID, cardID)
	}
	return m.Record, m.Err
}
