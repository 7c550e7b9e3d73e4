package domain

import (
	"errors"
	"time"
)

// ExpPerLevel is the experience needed to advance one level.
const ExpPerLevel = 100

// ErrEmptyProgressMemberID is returned when a MemberProgress has no member.
var ErrEmptyProgressMemberID = errors.New("member progress member ID must be positive")

// MemberProgress is the experience, level, and study streak of a member.
// It is owned by the gamification subscriber.
type MemberProgress struct {
	MemberID      int64      `json:"memberId"`
	TotalExp      int64      `json:"totalExp"`
	Level         int        `json:"level"`
	StreakDays    int        `json:"streakDays"`
	LastStudyDate *time.Time `json:"lastStudyDate,omitempty"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// NewMemberProgress returns the progress of a member who has never studied.
func NewMemberProgress(memberID int64, now time.Time) (*MemberProgress, error) {
	if memberID <= 0 {
		return nil, ErrEmptyProgressMemberID
	}
	return &MemberProgress{
		MemberID:  memberID,
		Level:     1,
		UpdatedAt: now,
	}, nil
}

// ExperienceForQuality maps a review quality to the experience it earns.
func ExperienceForQuality(quality int) int64 {
	switch {
	case quality >= 4:
		return 15
	case quality >= 3:
		return 10
	default:
		return 5
	}
}

// LevelForExp returns the level reached with totalExp experience.
func LevelForExp(totalExp int64) int {
	level := int(totalExp/ExpPerLevel) + 1
	if level < 1 {
		return 1
	}
	return level
}

// AddExperience adds exp and recomputes the level.
func (p *MemberProgress) AddExperience(exp int64, now time.Time) {
	p.TotalExp += exp
	p.Level = LevelForExp(p.TotalExp)
	p.UpdatedAt = now
}

// UpdateStreak records a study session on today.
// Studying on the day after the last study date extends the streak, studying
// again on the same day leaves it unchanged, and any gap resets it to 1.
func (p *MemberProgress) UpdateStreak(today time.Time, now time.Time) {
	switch {
	case p.LastStudyDate == nil:
		p.StreakDays = 1
	case SameDate(AddDays(*p.LastStudyDate, 1), today):
		p.StreakDays++
	case SameDate(*p.LastStudyDate, today):
	default:
		p.StreakDays = 1
	}
	studied := today
	p.LastStudyDate = &studied
	p.UpdatedAt = now
}
