package srs

import (
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/caro-api/internal/domain"
)

// Common errors
var (
	ErrNilRecord = errors.New("review record cannot be nil")

	// ErrInvalidQuality is both a domain.ErrValidation and a domain.ErrInvalidQuality.
	ErrInvalidQuality = fmt.Errorf("%w: %w", domain.ErrValidation, domain.ErrInvalidQuality)

	// ErrInvalidState is returned when the input state violates the record invariants.
	ErrInvalidState = fmt.Errorf("%w: invalid scheduling state", domain.ErrValidation)
)

// Service defines the interface for SM-2 scheduling operations
type Service interface {
	// Compute runs one scheduling step on state for a review of the given
	// quality performed on today.
	Compute(quality int, state State, today time.Time) (Result, error)

	// CalculateNextReview returns a copy of record with the scheduling fields,
	// LastQuality, and UpdatedAt replaced by the outcome of the review.
	CalculateNextReview(
		record *domain.ReviewRecord,
		quality int,
		today time.Time,
		now time.Time,
	) (*domain.ReviewRecord, error)

	// NewRecord returns the initial record for a card that was never reviewed.
	NewRecord(memberID, cardID int64, today time.Time, now time.Time) (*domain.ReviewRecord, error)
}

// defaultService is the standard implementation of the Service interface
type defaultService struct {
	params *Params
}

// NewDefaultService creates a new SRS service with default parameters
func NewDefaultService() Service {
	return &defaultService{
		params: NewDefaultParams(),
	}
}

// NewServiceWithParams creates a new SRS service with custom parameters
func NewServiceWithParams(params *Params) Service {
	if params == nil {
		params = NewDefaultParams()
	}
	return &defaultService{
		params: params,
	}
}

// Compute implements Service.Compute. An ease factor below the configured
// floor, left by an older floor setting, is raised to the floor first.
func (s *defaultService) Compute(quality int, state State, today time.Time) (Result, error) {
	if !isValidQuality(quality) {
		return Result{}, ErrInvalidQuality
	}
	if !(state.EaseFactor > 0) || state.Interval < 0 || state.Repetitions < 0 {
		return Result{}, ErrInvalidState
	}
	state.EaseFactor = max(state.EaseFactor, s.params.MinEaseFactor)

	return calculateNext(state, quality, today, s.params), nil
}

// CalculateNextReview implements Service.CalculateNextReview
func (s *defaultService) CalculateNextReview(
	record *domain.ReviewRecord,
	quality int,
	today time.Time,
	now time.Time,
) (*domain.ReviewRecord, error) {
	if record == nil {
		return nil, ErrNilRecord
	}

	result, err := s.Compute(quality, State{
		EaseFactor:  record.EaseFactor,
		Interval:    record.Interval,
		Repetitions: record.Repetitions,
	}, today)
	if err != nil {
		return nil, err
	}

	next := *record
	next.EaseFactor = result.EaseFactor
	next.Interval = result.Interval
	next.Repetitions = result.Repetitions
	next.NextReviewDate = result.NextReviewDate
	next.LastQuality = quality
	next.UpdatedAt = now

	return &next, nil
}

// NewRecord implements Service.NewRecord
func (s *defaultService) NewRecord(
	memberID, cardID int64,
	today time.Time,
	now time.Time,
) (*domain.ReviewRecord, error) {
	record, err := domain.NewReviewRecord(memberID, cardID, today, now)
	if err != nil {
		return nil, err
	}
	record.EaseFactor = s.params.InitialEaseFactor
	return record, nil
}

// isValidQuality checks if the given quality is on the 0..5 scale
func isValidQuality(quality int) bool {
	return quality >= domain.MinQuality && quality <= domain.MaxQuality
}
