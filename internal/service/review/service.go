// Package review schedules cards for review with SM-2 and announces every
// committed review on the event bus.
package review

import (
	"context"
	"fmt"
	"time"

	"github.com/phrazzld/caro-api/internal/domain"
	"go.opentelemetry.io/otel/trace"
)

// ErrInvalidReviewData is returned when a review or initialization request
// has a non-positive ID, a quality outside 0..5, or a non-positive duration.
var ErrInvalidReviewData = fmt.Errorf("%w: invalid review data", domain.ErrValidation)

// RecordReviewCommand is one self-assessed review of a card.
type RecordReviewCommand struct {
	MemberID     int64 `json:"memberId"     validate:"gt=0"`
	CardID       int64 `json:"cardId"       validate:"gt=0"`
	DeckID       int64 `json:"deckId"       validate:"gt=0"`
	Quality      int   `json:"quality"      validate:"gte=0,lte=5"`
	ReviewTimeMs int64 `json:"reviewTimeMs" validate:"gt=0"`
}

// ReviewRecordView is the read-only projection of a review record returned
// to callers. NextReviewDate is formatted as YYYY-MM-DD.
type ReviewRecordView struct {
	ID             int64   `json:"id"`
	MemberID       int64   `json:"memberId"`
	CardID         int64   `json:"cardId"`
	EaseFactor     float64 `json:"easeFactor"`
	Interval       int     `json:"interval"`
	Repetitions    int     `json:"repetitions"`
	NextReviewDate string  `json:"nextReviewDate"`
	LastQuality    int     `json:"lastQuality"`
}

// NewReviewRecordView projects record.
func NewReviewRecordView(record *domain.ReviewRecord) ReviewRecordView {
	return ReviewRecordView{
		ID:             record.ID,
		MemberID:       record.MemberID,
		CardID:         record.CardID,
		EaseFactor:     record.EaseFactor,
		Interval:       record.Interval,
		Repetitions:    record.Repetitions,
		NextReviewDate: record.NextReviewDate.Format(time.DateOnly),
		LastQuality:    record.LastQuality,
	}
}

// Service schedules card reviews for members.
type Service interface {
	// InitializeCardForReview makes the card due today for the member unless
	// it already has a record, in which case the existing record is returned
	// unchanged. Concurrent calls produce a single record.
	InitializeCardForReview(ctx context.Context, memberID, cardID int64) (*ReviewRecordView, error)

	// RecordReview applies one review to the card's schedule and returns the
	// updated record.
	//
	// The read-compute-write runs in one transaction holding the record's row
	// lock, so concurrent reviews of the same card never lose an update.
	// Transient database conflicts retry the whole transaction.
	//
	// After the transaction commits, a CardReviewedEvent is published. The
	// outcome of the subscribers never affects the returned record, and a
	// failure to publish is logged without failing the review.
	//
	// Returns ErrInvalidReviewData, with nothing written or published, when
	// cmd is invalid.
	RecordReview(ctx context.Context, cmd RecordReviewCommand) (*ReviewRecordView, error)

	// GetTodayReviewCardIDs returns the IDs of the member's cards due today,
	// ordered by next review date and then card ID.
	GetTodayReviewCardIDs(ctx context.Context, memberID int64) ([]int64, error)

	// GetTodayReviews returns the records of GetTodayReviewCardIDs.
	GetTodayReviews(ctx context.Context, memberID int64) ([]ReviewRecordView, error)

	// GetReviewRecord returns the member's record for a card.
	// Returns store.ErrReviewRecordNotFound if the card was never initialized.
	GetReviewRecord(ctx context.Context, memberID, cardID int64) (*ReviewRecordView, error)
}

// Config tunes a Service. The zero value schedules in UTC on the wall clock.
type Config struct {
	// Location defines the calendar day "today" refers to.
	Location *time.Location
	// MaxConflictRetries bounds how often a conflicting review transaction is
	// retried. Zero disables retries.
	MaxConflictRetries int
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
	// MapError translates driver errors that escape the stores, such as a
	// busy SQLite database refusing BEGIN, into store errors.
	MapError func(error) error
	// TracerProvider defaults to the global OpenTelemetry provider.
	TracerProvider trace.TracerProvider
}
