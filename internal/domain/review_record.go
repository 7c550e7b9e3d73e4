package domain

import (
	"errors"
	"time"
)

// SM-2 bounds shared by the scheduler and the review record.
const (
	// DefaultEaseFactor is the ease factor of a card that has never been reviewed.
	DefaultEaseFactor = 2.5

	// MinEaseFactor is the floor below which the ease factor never drops.
	MinEaseFactor = 1.3

	// MinQuality and MaxQuality bound the self-assessed recall quality.
	MinQuality = 0
	MaxQuality = 5
)

// Common validation errors for ReviewRecord
var (
	ErrEmptyRecordMemberID  = errors.New("review record member ID must be positive")
	ErrEmptyRecordCardID    = errors.New("review record card ID must be positive")
	ErrInvalidInterval      = errors.New("interval must be greater than or equal to 0")
	ErrInvalidRepetitions   = errors.New("repetitions must be greater than or equal to 0")
	ErrInvalidEaseFactor    = errors.New("ease factor must be at least 1.3")
	ErrInvalidRecordQuality = errors.New("last quality must be between 0 and 5")
)

// ReviewRecord is the SM-2 scheduling state of one card for one member.
// There is at most one record per (MemberID, CardID).
type ReviewRecord struct {
	ID             int64     `json:"id"`
	MemberID       int64     `json:"memberId"`
	CardID         int64     `json:"cardId"`
	EaseFactor     float64   `json:"easeFactor"`
	Interval       int       `json:"interval"`    // Days until the next review
	Repetitions    int       `json:"repetitions"` // Consecutive successful reviews
	NextReviewDate time.Time `json:"nextReviewDate"`
	LastQuality    int       `json:"lastQuality"` // 0 on a record that was never reviewed
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// NewReviewRecord creates the initial record for a card that has not been
// reviewed yet. The card is due on today.
func NewReviewRecord(memberID, cardID int64, today time.Time, now time.Time) (*ReviewRecord, error) {
	record := &ReviewRecord{
		MemberID:       memberID,
		CardID:         cardID,
		EaseFactor:     DefaultEaseFactor,
		Interval:       0,
		Repetitions:    0,
		NextReviewDate: today,
		LastQuality:    0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}

	return record, nil
}

// Validate checks if the ReviewRecord has valid data.
func (r *ReviewRecord) Validate() error {
	if r.MemberID <= 0 {
		return ErrEmptyRecordMemberID
	}

	if r.CardID <= 0 {
		return ErrEmptyRecordCardID
	}

	if r.Interval < 0 {
		return ErrInvalidInterval
	}

	if r.Repetitions < 0 {
		return ErrInvalidRepetitions
	}

	if r.EaseFactor < MinEaseFactor {
		return ErrInvalidEaseFactor
	}

	if r.LastQuality < MinQuality || r.LastQuality > MaxQuality {
		return ErrInvalidRecordQuality
	}

	return nil
}

// isDue reports whether the card should be reviewed on today.
func (r *ReviewRecord) isDue(today time.Time) bool {
	return !r.NextReviewDate.After(today)
}
