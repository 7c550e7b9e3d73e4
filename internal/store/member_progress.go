package store

import (
	"context"
	"database/sql"

	"github.com/phrazzld/caro-api/internal/domain"
)

// MemberProgressStore persists experience, level, and streak per member.
type MemberProgressStore interface {
	// Get returns the progress of a member.
	// Returns ErrMemberProgressNotFound if the member never studied.
	Get(ctx context.Context, memberID int64) (*domain.MemberProgress, error)

	// FindOrCreateForUpdate inserts initial if the member has no progress row,
	// then returns the row locked until the surrounding transaction ends.
	FindOrCreateForUpdate(ctx context.Context, initial *domain.MemberProgress) (*domain.MemberProgress, error)

	// Save updates an existing progress row.
	Save(ctx context.Context, progress *domain.MemberProgress) error

	WithTx(tx *sql.Tx) MemberProgressStore
}
