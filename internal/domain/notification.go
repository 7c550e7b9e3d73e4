package domain

import "time"

// NotificationType classifies a member notification.
type NotificationType string

// Notification types.
const (
	NotificationGoalAchieved   NotificationType = "GOAL_ACHIEVED"
	NotificationDeckCompleted  NotificationType = "DECK_COMPLETED"
	NotificationBadgeEarned    NotificationType = "BADGE_EARNED"
	NotificationStreakReminder NotificationType = "STREAK_REMINDER"
	NotificationSystem         NotificationType = "SYSTEM"
)

// Notification is a message delivered to a member.
type Notification struct {
	MemberID int64            `json:"memberId"`
	Title    string           `json:"title"`
	Message  string           `json:"message"`
	Type     NotificationType `json:"type"`
	SentAt   time.Time        `json:"sentAt"`
}
