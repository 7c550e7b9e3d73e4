package domain

import "time"

// BadgeType identifies an achievement. A member holds each type at most once.
type BadgeType string

// Badge types awarded by the gamification subscriber.
const (
	BadgeFirstReview BadgeType = "FIRST_REVIEW"
	BadgeLevel5      BadgeType = "LEVEL_5"
	BadgeStreak7     BadgeType = "STREAK_7"
)

// BadgeDefinition is the display text of a badge type.
type BadgeDefinition struct {
	Type        BadgeType
	Name        string
	Description string
}

var badgeDefinitions = map[BadgeType]BadgeDefinition{
	BadgeFirstReview: {BadgeFirstReview, "First Review!", "Completed your first review"},
	BadgeLevel5:      {BadgeLevel5, "Level 5 Reached", "Reached level 5"},
	BadgeStreak7:     {BadgeStreak7, "7-Day Streak", "Studied 7 days in a row"},
}

// Definition returns the display text for t and whether t is known.
func (t BadgeType) Definition() (BadgeDefinition, bool) {
	def, ok := badgeDefinitions[t]
	return def, ok
}

// Badge is an achievement earned by a member.
type Badge struct {
	ID          int64     `json:"id"`
	MemberID    int64     `json:"memberId"`
	Type        BadgeType `json:"badgeType"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	EarnedAt    time.Time `json:"earnedAt"`
}

// NewBadge builds an unsaved badge of type t for memberID.
func NewBadge(memberID int64, t BadgeType, now time.Time) (*Badge, error) {
	if memberID <= 0 {
		return nil, ErrInvalidID
	}
	def, ok := t.Definition()
	if !ok {
		return nil, ErrValidation
	}
	return &Badge{
		MemberID:    memberID,
		Type:        t,
		Name:        def.Name,
		Description: def.Description,
		EarnedAt:    now,
	}, nil
}
