package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/phrazzld/caro-api/internal/domain"
)

// ReviewRecordStore defines the interface for review record persistence.
// Version: 1.0
type ReviewRecordStore interface {
	// Find retrieves the review record of a member for a card.
	// Returns ErrReviewRecordNotFound if the card was never initialized or reviewed.
	// NOTE: This method does NOT lock the row.
	Find(ctx context.Context, memberID, cardID int64) (*domain.ReviewRecord, error)

	// FindOrCreate inserts initial unless a record for the same member and card
	// already exists, then returns the stored record. created reports whether
	// initial was inserted. Concurrent callers observe a single record.
	FindOrCreate(ctx context.Context, initial *domain.ReviewRecord) (record *domain.ReviewRecord, created bool, err error)

	// FindOrCreateForUpdate behaves like FindOrCreate and additionally locks the
	// row until the surrounding transaction ends. It must be called on a store
	// bound to a transaction with WithTx.
	FindOrCreateForUpdate(ctx context.Context, initial *domain.ReviewRecord) (*domain.ReviewRecord, error)

	// Save writes the scheduling fields, LastQuality, and UpdatedAt of an
	// existing record identified by MemberID and CardID.
	// Returns ErrReviewRecordNotFound if the record does not exist.
	// Returns validation errors from the domain ReviewRecord if data is invalid.
	Save(ctx context.Context, record *domain.ReviewRecord) error

	// FindDue returns the member's records whose next review date is on or
	// before date, ordered by next review date and then card ID.
	FindDue(ctx context.Context, memberID int64, date time.Time) ([]*domain.ReviewRecord, error)

	// FindDueCardIDs returns the card IDs of FindDue in the same order.
	FindDueCardIDs(ctx context.Context, memberID int64, date time.Time) ([]int64, error)

	// WithTx returns a new ReviewRecordStore instance that uses the provided transaction.
	// This allows for multiple operations to be executed within a single transaction.
	// The transaction should be created and managed by the caller (typically a service).
	WithTx(tx *sql.Tx) ReviewRecordStore
}
