package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/phrazzld/caro-api/internal/domain"
	"github.com/phrazzld/caro-api/internal/platform/logger"
	"github.com/phrazzld/caro-api/internal/store"
)

const memberProgressTable = "member_progress"

var memberProgressColumns = []string{
	"member_id",
	"total_exp",
	"level",
	"streak_days",
	"last_study_date",
	"updated_at",
}

// MemberProgressStore implements store.MemberProgressStore.
type MemberProgressStore struct {
	db      store.DBTX
	dialect Dialect
	logger  *slog.Logger
}

// NewMemberProgressStore creates a member progress store on db.
func NewMemberProgressStore(db store.DBTX, dialect Dialect, logger *slog.Logger) *MemberProgressStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &MemberProgressStore{
		db:      db,
		dialect: dialect,
		logger:  logger.With(slog.String("component", "member_progress_store")),
	}
}

var _ store.MemberProgressStore = (*MemberProgressStore)(nil)

// WithTx implements store.MemberProgressStore.WithTx
func (s *MemberProgressStore) WithTx(tx *sql.Tx) store.MemberProgressStore {
	return &MemberProgressStore{db: tx, dialect: s.dialect, logger: s.logger}
}

// Get implements store.MemberProgressStore.Get
func (s *MemberProgressStore) Get(ctx context.Context, memberID int64) (*domain.MemberProgress, error) {
	return s.get(ctx, memberID, false)
}

// FindOrCreateForUpdate implements store.MemberProgressStore.FindOrCreateForUpdate
func (s *MemberProgressStore) FindOrCreateForUpdate(
	ctx context.Context,
	initial *domain.MemberProgress,
) (*domain.MemberProgress, error) {
	if initial == nil || initial.MemberID <= 0 {
		return nil, fmt.Errorf("%w: %w", store.ErrInvalidEntity, domain.ErrEmptyProgressMemberID)
	}

	query, args, err := s.dialect.builder().
		Insert(memberProgressTable).
		Columns(memberProgressColumns...).
		Values(
			initial.MemberID,
			initial.TotalExp,
			initial.Level,
			initial.StreakDays,
			nullableDateArg(initial.LastStudyDate),
			timestampArg(initial.UpdatedAt),
		).
		Suffix("ON CONFLICT (member_id) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build member progress insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, store.NewStoreError("member_progress", "create", "insert failed", s.dialect.mapError(err))
	}

	return s.get(ctx, initial.MemberID, true)
}

// Save implements store.MemberProgressStore.Save
func (s *MemberProgressStore) Save(ctx context.Context, progress *domain.MemberProgress) error {
	if progress == nil || progress.MemberID <= 0 {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, domain.ErrEmptyProgressMemberID)
	}

	query, args, err := s.dialect.builder().
		Update(memberProgressTable).
		Set("total_exp", progress.TotalExp).
		Set("level", progress.Level).
		Set("streak_days", progress.StreakDays).
		Set("last_study_date", nullableDateArg(progress.LastStudyDate)).
		Set("updated_at", timestampArg(progress.UpdatedAt)).
		Where(sq.Eq{"member_id": progress.MemberID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build member progress update: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return store.NewStoreError("member_progress", "save", "update failed", s.dialect.mapError(err))
	}
	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrMemberProgressNotFound
	}

	logger.FromContextOrDefault(ctx, s.logger).Debug("member progress saved",
		slog.Int64("member_id", progress.MemberID),
		slog.Int64("total_exp", progress.TotalExp),
		slog.Int("level", progress.Level),
		slog.Int("streak_days", progress.StreakDays))
	return nil
}

func (s *MemberProgressStore) get(
	ctx context.Context,
	memberID int64,
	forUpdate bool,
) (*domain.MemberProgress, error) {
	builder := s.dialect.builder().
		Select(memberProgressColumns...).
		From(memberProgressTable).
		Where(sq.Eq{"member_id": memberID})

	query, args, err := s.dialect.lockFor(builder, forUpdate).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build member progress query: %w", err)
	}

	var (
		progress  domain.MemberProgress
		lastStudy timeValue
		updatedAt timeValue
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&progress.MemberID,
		&progress.TotalExp,
		&progress.Level,
		&progress.StreakDays,
		&lastStudy,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrMemberProgressNotFound
		}
		return nil, store.NewStoreError("member_progress", "get", "query failed", s.dialect.mapError(err))
	}

	progress.LastStudyDate = lastStudy.datePtr()
	progress.UpdatedAt = updatedAt.Time
	return &progress, nil
}
