package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/caro-api/internal/domain"
	"github.com/phrazzld/caro-api/internal/events"
	"github.com/phrazzld/caro-api/internal/platform/logger"
	"github.com/phrazzld/caro-api/internal/service"
)

// GoalHandlerID identifies the daily goal subscriber on the event bus.
const GoalHandlerID = "notification.daily_goal"

// DefaultDailyGoalCards is the daily goal when none is configured.
const DefaultDailyGoalCards = 20

// CardCounter reports how many cards a member reviewed on a date.
// analytics.Service implements it.
type CardCounter interface {
	GetCardCount(ctx context.Context, memberID int64, date time.Time) (int, error)
}

// GoalConfig tunes a GoalNotifier.
type GoalConfig struct {
	// DailyGoalCards is the number of cards that completes the daily goal.
	DailyGoalCards int
	// Location defines the calendar day a review counts towards.
	Location *time.Location
	Now      func() time.Time
}

// GoalNotifier tells a member when they reach their daily card goal.
//
// The notification is sent when the day's count equals the goal exactly.
// The count is read from analytics, which consumes the same event
// concurrently, so a delivery may observe the count before or after its own
// review was added. When two deliveries observe the same count, or when the
// goal count is skipped, the notification is sent twice or not at all.
type GoalNotifier struct {
	counter  CardCounter
	sender   Sender
	goal     int
	location *time.Location
	now      func() time.Time
	logger   *slog.Logger
}

var _ events.Handler = (*GoalNotifier)(nil)

// NewGoalNotifier creates a GoalNotifier.
func NewGoalNotifier(counter CardCounter, sender Sender, config GoalConfig, logger *slog.Logger) *GoalNotifier {
	if counter == nil {
		panic("counter cannot be nil")
	}
	if sender == nil {
		panic("sender cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	n := &GoalNotifier{
		counter:  counter,
		sender:   sender,
		goal:     config.DailyGoalCards,
		location: config.Location,
		now:      config.Now,
		logger:   logger.With(slog.String("component", "goal_notifier")),
	}
	if n.goal <= 0 {
		n.goal = DefaultDailyGoalCards
	}
	if n.location == nil {
		n.location = time.UTC
	}
	if n.now == nil {
		n.now = time.Now
	}
	return n
}

// HandleEvent checks the member's count for the day of the review and sends
// GOAL_ACHIEVED when it equals the goal.
func (n *GoalNotifier) HandleEvent(ctx context.Context, event events.Event) error {
	reviewed, ok := event.(events.CardReviewedEvent)
	if !ok {
		return fmt.Errorf("%w: %T", events.ErrUnexpectedEvent, event)
	}
	log := logger.FromContextOrDefault(ctx, n.logger)

	date := domain.DateOf(reviewed.ReviewedAt, n.location)
	count, err := n.counter.GetCardCount(ctx, reviewed.MemberID, date)
	if err != nil {
		return service.NewError("check_daily_goal", "failed to read card count", err)
	}

	log.Debug("daily goal progress",
		slog.Int64("member_id", reviewed.MemberID),
		slog.Int("count", count),
		slog.Int("goal", n.goal))

	if count != n.goal {
		return nil
	}

	err = n.sender.Send(ctx, domain.Notification{
		MemberID: reviewed.MemberID,
		Title:    "Daily goal achieved!",
		Message:  fmt.Sprintf("Great work! You studied all %d cards of today's goal.", n.goal),
		Type:     domain.NotificationGoalAchieved,
		SentAt:   n.now(),
	})
	if err != nil {
		return service.NewError("check_daily_goal", "failed to send goal notification", err)
	}

	log.Info("daily goal achieved",
		slog.Int64("member_id", reviewed.MemberID),
		slog.Int("goal", n.goal))
	return nil
}
