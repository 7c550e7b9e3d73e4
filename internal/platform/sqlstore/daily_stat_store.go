package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/phrazzld/caro-api/internal/domain"
	"github.com/phrazzld/caro-api/internal/store"
)

const dailyStatsTable = "daily_study_stats"

// DailyStatStore implements store.DailyStatStore.
type DailyStatStore struct {
	db      store.DBTX
	dialect Dialect
	logger  *slog.Logger
}

// NewDailyStatStore creates a daily study stat store on db.
func NewDailyStatStore(db store.DBTX, dialect Dialect, logger *slog.Logger) *DailyStatStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &DailyStatStore{
		db:      db,
		dialect: dialect,
		logger:  logger.With(slog.String("component", "daily_stat_store")),
	}
}

var _ store.DailyStatStore = (*DailyStatStore)(nil)

// WithTx implements store.DailyStatStore.WithTx
func (s *DailyStatStore) WithTx(tx *sql.Tx) store.DailyStatStore {
	return &DailyStatStore{db: tx, dialect: s.dialect, logger: s.logger}
}

// Increment implements store.DailyStatStore.Increment
// The row is created and incremented in one statement so concurrent
// increments never lose an update.
func (s *DailyStatStore) Increment(
	ctx context.Context,
	memberID int64,
	date time.Time,
	cards int,
	timeMs int64,
) error {
	if memberID <= 0 {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, domain.ErrInvalidID)
	}
	if cards < 0 || timeMs < 0 {
		return fmt.Errorf("%w: negative increment", store.ErrInvalidEntity)
	}

	query, args, err := s.dialect.builder().
		Insert(dailyStatsTable).
		Columns("member_id", "stat_date", "total_cards", "total_time_ms").
		Values(memberID, dateArg(date), cards, timeMs).
		Suffix("ON CONFLICT (member_id, stat_date) DO UPDATE SET " +
			"total_cards = daily_study_stats.total_cards + excluded.total_cards, " +
			"total_time_ms = daily_study_stats.total_time_ms + excluded.total_time_ms").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build daily stat upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return store.NewStoreError("daily_stat", "increment", "upsert failed", s.dialect.mapError(err))
	}
	return nil
}

// Get implements store.DailyStatStore.Get
func (s *DailyStatStore) Get(ctx context.Context, memberID int64, date time.Time) (*domain.DailyStudyStat, error) {
	query, args, err := s.dialect.builder().
		Select("member_id", "stat_date", "total_cards", "total_time_ms").
		From(dailyStatsTable).
		Where(sq.Eq{"member_id": memberID, "stat_date": dateArg(date)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build daily stat query: %w", err)
	}

	var (
		stat     domain.DailyStudyStat
		statDate timeValue
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&stat.MemberID,
		&statDate,
		&stat.TotalCards,
		&stat.TotalTimeMs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrDailyStatNotFound
		}
		return nil, store.NewStoreError("daily_stat", "get", "query failed", s.dialect.mapError(err))
	}
	stat.Date = statDate.date()
	return &stat, nil
}
