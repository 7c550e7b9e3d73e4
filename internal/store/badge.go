package store

import (
	"context"
	"database/sql"

	"github.com/phrazzld/caro-api/internal/domain"
)

// BadgeStore persists earned badges. A member holds each badge type at most once.
type BadgeStore interface {
	// Exists reports whether the member already earned a badge of type t.
	Exists(ctx context.Context, memberID int64, t domain.BadgeType) (bool, error)

	// Create inserts badge unless the member already holds its type.
	// created is false, with a nil error, when the badge already existed.
	// On insert badge.ID is set.
	Create(ctx context.Context, badge *domain.Badge) (created bool, err error)

	// ListByMember returns the member's badges, oldest first.
	ListByMember(ctx context.Context, memberID int64) ([]*domain.Badge, error)

	WithTx(tx *sql.Tx) BadgeStore
}
