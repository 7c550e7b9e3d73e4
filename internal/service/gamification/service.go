// Package gamification turns reviews into experience, levels, study streaks,
// and badges.
package gamification

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/phrazzld/caro-api/internal/domain"
	"github.com/phrazzld/caro-api/internal/events"
	"github.com/phrazzld/caro-api/internal/platform/logger"
	"github.com/phrazzld/caro-api/internal/service"
	"github.com/phrazzld/caro-api/internal/service/notification"
	"github.com/phrazzld/caro-api/internal/store"
)

// HandlerID identifies the gamification subscriber on the event bus.
const HandlerID = "gamification.experience"

// Badge thresholds.
const (
	level5Threshold = 5
	streakThreshold = 7
)

// MemberStats is the read-only view of a member's progress.
type MemberStats struct {
	MemberID   int64 `json:"memberId"`
	TotalExp   int64 `json:"totalExp"`
	Level      int   `json:"level"`
	StreakDays int   `json:"streakDays"`
}

// BadgeView is the read-only view of an earned badge.
type BadgeView struct {
	ID          int64     `json:"id"`
	Type        string    `json:"badgeType"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	EarnedAt    time.Time `json:"earnedAt"`
}

// Config tunes a Service.
type Config struct {
	// Location defines the calendar day a review extends the streak on.
	Location *time.Location
	// BadgeCacheSize bounds the cache of badges known to be awarded.
	// Zero disables the cache.
	BadgeCacheSize int
	Now            func() time.Time
}

type badgeKey struct {
	memberID  int64
	badgeType domain.BadgeType
}

// Service owns member progress and earned badges.
type Service struct {
	db       *sql.DB
	progress store.MemberProgressStore
	badges   store.BadgeStore
	sender   notification.Sender
	awarded  *lru.Cache[badgeKey, struct{}]
	location *time.Location
	now      func() time.Time
	logger   *slog.Logger
}

var _ events.Handler = (*Service)(nil)

// NewService creates a gamification Service. progress and badges must not be
// bound to a transaction.
func NewService(
	db *sql.DB,
	progress store.MemberProgressStore,
	badges store.BadgeStore,
	sender notification.Sender,
	config Config,
	logger *slog.Logger,
) (*Service, error) {
	if db == nil {
		panic("db cannot be nil")
	}
	if progress == nil {
		panic("progress cannot be nil")
	}
	if badges == nil {
		panic("badges cannot be nil")
	}
	if sender == nil {
		panic("sender cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		db:       db,
		progress: progress,
		badges:   badges,
		sender:   sender,
		location: config.Location,
		now:      config.Now,
		logger:   logger.With(slog.String("component", "gamification_service")),
	}
	if config.BadgeCacheSize > 0 {
		cache, err := lru.New[badgeKey, struct{}](config.BadgeCacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create badge cache: %w", err)
		}
		s.awarded = cache
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// HandleEvent grants experience for the review, updates the streak, and
// awards the badges the new progress qualifies for, all in one transaction.
// A notification is sent for each new badge once the transaction commits.
func (s *Service) HandleEvent(ctx context.Context, event events.Event) error {
	reviewed, ok := event.(events.CardReviewedEvent)
	if !ok {
		return fmt.Errorf("%w: %T", events.ErrUnexpectedEvent, event)
	}
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := s.now()
	studied := domain.DateOf(reviewed.ReviewedAt, s.location)
	exp := domain.ExperienceForQuality(reviewed.Quality)

	var (
		updated *domain.MemberProgress
		earned  []*domain.Badge
	)
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		initial, err := domain.NewMemberProgress(reviewed.MemberID, now)
		if err != nil {
			return err
		}

		progress := s.progress.WithTx(tx)
		current, err := progress.FindOrCreateForUpdate(ctx, initial)
		if err != nil {
			return fmt.Errorf("failed to load member progress: %w", err)
		}

		previousLevel := current.Level
		current.AddExperience(exp, now)
		current.UpdateStreak(studied, now)

		if err := progress.Save(ctx, current); err != nil {
			return fmt.Errorf("failed to save member progress: %w", err)
		}

		earned, err = s.checkAndAwardBadges(ctx, s.badges.WithTx(tx), current, previousLevel, now)
		if err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return service.NewError("add_experience", "failed to update member progress", err)
	}

	log.Debug("experience granted",
		slog.Int64("member_id", updated.MemberID),
		slog.Int64("exp", exp),
		slog.Int64("total_exp", updated.TotalExp),
		slog.Int("level", updated.Level),
		slog.Int("streak_days", updated.StreakDays))

	for _, badge := range earned {
		s.remember(badge.MemberID, badge.Type)
		log.Info("badge awarded",
			slog.Int64("member_id", badge.MemberID),
			slog.String("badge_type", string(badge.Type)))
		s.notifyBadge(ctx, badge)
	}
	return nil
}

// checkAndAwardBadges returns the badges newly stored for progress.
func (s *Service) checkAndAwardBadges(
	ctx context.Context,
	badges store.BadgeStore,
	progress *domain.MemberProgress,
	previousLevel int,
	now time.Time,
) ([]*domain.Badge, error) {
	var candidates []domain.BadgeType
	if progress.TotalExp > 0 {
		candidates = append(candidates, domain.BadgeFirstReview)
	}
	if progress.Level >= level5Threshold && previousLevel < level5Threshold {
		candidates = append(candidates, domain.BadgeLevel5)
	}
	if progress.StreakDays >= streakThreshold {
		candidates = append(candidates, domain.BadgeStreak7)
	}

	var earned []*domain.Badge
	for _, t := range candidates {
		badge, err := s.award(ctx, badges, progress.MemberID, t, now)
		if err != nil {
			return nil, err
		}
		if badge != nil {
			earned = append(earned, badge)
		}
	}
	return earned, nil
}

// AwardBadge gives the member a badge of type t unless they already hold one.
// It reports whether the badge was stored by this call; concurrent calls for
// the same member and type store exactly one badge.
func (s *Service) AwardBadge(ctx context.Context, memberID int64, t domain.BadgeType) (bool, error) {
	badge, err := s.award(ctx, s.badges, memberID, t, s.now())
	if err != nil {
		return false, service.NewError("award_badge", "failed to award badge", err)
	}
	if badge == nil {
		return false, nil
	}

	s.remember(memberID, t)
	s.notifyBadge(ctx, badge)
	return true, nil
}

// award stores a badge unless it is known, returning nil when the member
// already holds it.
func (s *Service) award(
	ctx context.Context,
	badges store.BadgeStore,
	memberID int64,
	t domain.BadgeType,
	now time.Time,
) (*domain.Badge, error) {
	if s.known(memberID, t) {
		return nil, nil
	}

	exists, err := badges.Exists(ctx, memberID, t)
	if err != nil {
		return nil, fmt.Errorf("failed to check badge %s: %w", t, err)
	}
	if exists {
		s.remember(memberID, t)
		return nil, nil
	}

	badge, err := domain.NewBadge(memberID, t, now)
	if err != nil {
		return nil, err
	}
	created, err := badges.Create(ctx, badge)
	if err != nil {
		return nil, fmt.Errorf("failed to store badge %s: %w", t, err)
	}
	if !created {
		return nil, nil
	}
	return badge, nil
}

func (s *Service) known(memberID int64, t domain.BadgeType) bool {
	if s.awarded == nil {
		return false
	}
	return s.awarded.Contains(badgeKey{memberID, t})
}

// remember must only be called for badges that are committed.
func (s *Service) remember(memberID int64, t domain.BadgeType) {
	if s.awarded != nil {
		s.awarded.Add(badgeKey{memberID, t}, struct{}{})
	}
}

// notifyBadge is best effort: the badge is already stored.
func (s *Service) notifyBadge(ctx context.Context, badge *domain.Badge) {
	err := s.sender.Send(ctx, domain.Notification{
		MemberID: badge.MemberID,
		Title:    "Badge earned!",
		Message:  fmt.Sprintf("%s: %s", badge.Name, badge.Description),
		Type:     domain.NotificationBadgeEarned,
		SentAt:   s.now(),
	})
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("failed to send badge notification",
			slog.String("error", err.Error()),
			slog.Int64("member_id", badge.MemberID),
			slog.String("badge_type", string(badge.Type)))
	}
}

// GetMemberStats returns the member's progress. A member who never studied
// is at level 1 with no experience.
func (s *Service) GetMemberStats(ctx context.Context, memberID int64) (*MemberStats, error) {
	progress, err := s.progress.Get(ctx, memberID)
	if err != nil {
		if !store.IsNotFoundError(err) {
			return nil, service.NewError("get_member_stats", "failed to load member progress", err)
		}
		progress = &domain.MemberProgress{MemberID: memberID, Level: 1}
	}

	return &MemberStats{
		MemberID:   progress.MemberID,
		TotalExp:   progress.TotalExp,
		Level:      progress.Level,
		StreakDays: progress.StreakDays,
	}, nil
}

// GetEarnedBadges returns the member's badges, oldest first.
func (s *Service) GetEarnedBadges(ctx context.Context, memberID int64) ([]BadgeView, error) {
	badges, err := s.badges.ListByMember(ctx, memberID)
	if err != nil {
		return nil, service.NewError("get_earned_badges", "failed to list badges", err)
	}

	views := make([]BadgeView, 0, len(badges))
	for _, badge := range badges {
		views = append(views, BadgeView{
			ID:          badge.ID,
			Type:        string(badge.Type),
			Name:        badge.Name,
			Description: badge.Description,
			EarnedAt:    badge.EarnedAt,
		})
	}
	return views, nil
}
