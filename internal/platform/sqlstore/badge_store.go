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

const earnedBadgesTable = "earned_badges"

// BadgeStore implements store.BadgeStore.
type BadgeStore struct {
	db      store.DBTX
	dialect Dialect
	logger  *slog.Logger
}

// NewBadgeStore creates a badge store on db.
func NewBadgeStore(db store.DBTX, dialect Dialect, logger *slog.Logger) *BadgeStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &BadgeStore{
		db:      db,
		dialect: dialect,
		logger:  logger.With(slog.String("component", "badge_store")),
	}
}

var _ store.BadgeStore = (*BadgeStore)(nil)

// WithTx implements store.BadgeStore.WithTx
func (s *BadgeStore) WithTx(tx *sql.Tx) store.BadgeStore {
	return &BadgeStore{db: tx, dialect: s.dialect, logger: s.logger}
}

// Exists implements store.BadgeStore.Exists
func (s *BadgeStore) Exists(ctx context.Context, memberID int64, t domain.BadgeType) (bool, error) {
	query, args, err := s.dialect.builder().
		Select("COUNT(*)").
		From(earnedBadgesTable).
		Where(sq.Eq{"member_id": memberID, "badge_type": string(t)}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build badge query: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, store.NewStoreError("badge", "exists", "query failed", s.dialect.mapError(err))
	}
	return count > 0, nil
}

// Create implements store.BadgeStore.Create
func (s *BadgeStore) Create(ctx context.Context, badge *domain.Badge) (bool, error) {
	if badge == nil || badge.MemberID <= 0 {
		return false, fmt.Errorf("%w: %w", store.ErrInvalidEntity, domain.ErrInvalidID)
	}
	if _, ok := badge.Type.Definition(); !ok {
		return false, fmt.Errorf("%w: unknown badge type %q", store.ErrInvalidEntity, badge.Type)
	}

	query, args, err := s.dialect.builder().
		Insert(earnedBadgesTable).
		Columns("member_id", "badge_type", "name", "description", "earned_at").
		Values(badge.MemberID, string(badge.Type), badge.Name, badge.Description, timestampArg(badge.EarnedAt)).
		Suffix("ON CONFLICT (member_id, badge_type) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build badge insert: %w", err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, store.NewStoreError("badge", "create", "insert failed", s.dialect.mapError(err))
	}
	badge.ID = id

	logger.FromContextOrDefault(ctx, s.logger).Info("badge awarded",
		slog.Int64("member_id", badge.MemberID),
		slog.String("badge_type", string(badge.Type)))
	return true, nil
}

// ListByMember implements store.BadgeStore.ListByMember
func (s *BadgeStore) ListByMember(ctx context.Context, memberID int64) ([]*domain.Badge, error) {
	query, args, err := s.dialect.builder().
		Select("id", "member_id", "badge_type", "name", "description", "earned_at").
		From(earnedBadgesTable).
		Where(sq.Eq{"member_id": memberID}).
		OrderBy("earned_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build badge list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.NewStoreError("badge", "list", "query failed", s.dialect.mapError(err))
	}
	defer func() { _ = rows.Close() }()

	badges := make([]*domain.Badge, 0)
	for rows.Next() {
		var (
			badge     domain.Badge
			badgeType string
			earnedAt  timeValue
		)
		if err := rows.Scan(&badge.ID, &badge.MemberID, &badgeType, &badge.Name, &badge.Description, &earnedAt); err != nil {
			return nil, store.NewStoreError("badge", "list", "scan failed", err)
		}
		badge.Type = domain.BadgeType(badgeType)
		badge.EarnedAt = earnedAt.Time
		badges = append(badges, &badge)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("badge", "list", "iteration failed", s.dialect.mapError(err))
	}
	return badges, nil
}
