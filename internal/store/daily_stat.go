package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/phrazzld/caro-api/internal/domain"
)

// DailyStatStore persists per-member, per-date study totals.
type DailyStatStore interface {
	// Increment atomically adds cards and timeMs to the (memberID, date) row,
	// creating it when absent.
	Increment(ctx context.Context, memberID int64, date time.Time, cards int, timeMs int64) error

	// Get returns the totals of a member on date.
	// Returns ErrDailyStatNotFound if nothing was recorded for that date.
	Get(ctx context.Context, memberID int64, date time.Time) (*domain.DailyStudyStat, error)

	WithTx(tx *sql.Tx) DailyStatStore
}
