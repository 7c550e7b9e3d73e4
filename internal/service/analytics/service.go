// Package analytics keeps per-day study totals of every member, fed by
// CardReviewedEvent.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/caro-api/internal/domain"
	"github.com/phrazzld/caro-api/internal/events"
	"github.com/phrazzld/caro-api/internal/platform/logger"
	"github.com/phrazzld/caro-api/internal/service"
	"github.com/phrazzld/caro-api/internal/store"
)

// HandlerID identifies the analytics subscriber on the event bus.
const HandlerID = "analytics.daily_stats"

// DailyStats is the read-only view of one member's study on one date.
type DailyStats struct {
	MemberID    int64  `json:"memberId"`
	Date        string `json:"date"`
	TotalCards  int    `json:"totalCards"`
	TotalTimeMs int64  `json:"totalTimeMs"`
}

// Config tunes a Service. The zero value counts days in UTC.
type Config struct {
	// Location defines the calendar day a review is counted on.
	Location *time.Location
	Now      func() time.Time
}

// Service records study totals and answers queries about them.
type Service struct {
	stats    store.DailyStatStore
	location *time.Location
	now      func() time.Time
	logger   *slog.Logger
}

var _ events.Handler = (*Service)(nil)

// NewService creates an analytics Service.
func NewService(stats store.DailyStatStore, config Config, logger *slog.Logger) *Service {
	if stats == nil {
		panic("stats cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		stats:    stats,
		location: config.Location,
		now:      config.Now,
		logger:   logger.With(slog.String("component", "analytics_service")),
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// HandleEvent adds one card and its review time to the member's total for
// the date the card was reviewed on.
func (s *Service) HandleEvent(ctx context.Context, event events.Event) error {
	reviewed, ok := event.(events.CardReviewedEvent)
	if !ok {
		return fmt.Errorf("%w: %T", events.ErrUnexpectedEvent, event)
	}

	date := domain.DateOf(reviewed.ReviewedAt, s.location)
	if err := s.stats.Increment(ctx, reviewed.MemberID, date, 1, reviewed.ReviewTimeMs); err != nil {
		return service.NewError("record_study", "failed to update daily stats", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Debug("study recorded",
		slog.Int64("member_id", reviewed.MemberID),
		slog.Int64("card_id", reviewed.CardID),
		slog.String("date", date.Format(time.DateOnly)),
		slog.Int64("review_time_ms", reviewed.ReviewTimeMs))
	return nil
}

// GetDailyStats returns the member's totals on date.
// Returns store.ErrDailyStatNotFound if the member did not study that day.
func (s *Service) GetDailyStats(ctx context.Context, memberID int64, date time.Time) (*DailyStats, error) {
	stat, err := s.stats.Get(ctx, memberID, domain.DateOf(date, time.UTC))
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, err
		}
		return nil, service.NewError("get_daily_stats", "failed to load daily stats", err)
	}

	return &DailyStats{
		MemberID:    stat.MemberID,
		Date:        stat.Date.Format(time.DateOnly),
		TotalCards:  stat.TotalCards,
		TotalTimeMs: stat.TotalTimeMs,
	}, nil
}

// GetCardCount returns how many cards the member reviewed on date, zero when
// nothing was recorded.
func (s *Service) GetCardCount(ctx context.Context, memberID int64, date time.Time) (int, error) {
	stat, err := s.stats.Get(ctx, memberID, domain.DateOf(date, time.UTC))
	if err != nil {
		if store.IsNotFoundError(err) {
			return 0, nil
		}
		return 0, service.NewError("get_card_count", "failed to load daily stats", err)
	}
	return stat.TotalCards, nil
}

// GetTodayCardCount returns GetCardCount for today in the configured location.
func (s *Service) GetTodayCardCount(ctx context.Context, memberID int64) (int, error) {
	return s.GetCardCount(ctx, memberID, domain.DateOf(s.now(), s.location))
}

// GetTodayStats returns GetDailyStats for today in the configured location.
func (s *Service) GetTodayStats(ctx context.Context, memberID int64) (*DailyStats, error) {
	return s.GetDailyStats(ctx, memberID, domain.DateOf(s.now(), s.location))
}
