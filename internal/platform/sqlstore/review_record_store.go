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
	"github.com/phrazzld/caro-api/internal/platform/logger"
	"github.com/phrazzld/caro-api/internal/store"
)

const reviewRecordsTable = "review_records"

var reviewRecordColumns = []string{
	"id",
	"member_id",
	"card_id",
	"ease_factor",
	"interval_days",
	"repetitions",
	"next_review_date",
	"last_quality",
	"created_at",
	"updated_at",
}

// ReviewRecordStore implements store.ReviewRecordStore.
type ReviewRecordStore struct {
	db      store.DBTX
	dialect Dialect
	logger  *slog.Logger
}

// NewReviewRecordStore creates a review record store on db, which may be a
// connection pool or a transaction.
// If logger is nil, a default logger will be used.
func NewReviewRecordStore(db store.DBTX, dialect Dialect, logger *slog.Logger) *ReviewRecordStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ReviewRecordStore{
		db:      db,
		dialect: dialect,
		logger:  logger.With(slog.String("component", "review_record_store")),
	}
}

var _ store.ReviewRecordStore = (*ReviewRecordStore)(nil)

// WithTx implements store.ReviewRecordStore.WithTx
func (s *ReviewRecordStore) WithTx(tx *sql.Tx) store.ReviewRecordStore {
	return &ReviewRecordStore{
		db:      tx,
		dialect: s.dialect,
		logger:  s.logger,
	}
}

// Find implements store.ReviewRecordStore.Find
func (s *ReviewRecordStore) Find(ctx context.Context, memberID, cardID int64) (*domain.ReviewRecord, error) {
	return s.find(ctx, memberID, cardID, false)
}

// FindOrCreate implements store.ReviewRecordStore.FindOrCreate
func (s *ReviewRecordStore) FindOrCreate(
	ctx context.Context,
	initial *domain.ReviewRecord,
) (*domain.ReviewRecord, bool, error) {
	created, err := s.insertIfAbsent(ctx, initial)
	if err != nil {
		return nil, false, err
	}

	record, err := s.find(ctx, initial.MemberID, initial.CardID, false)
	if err != nil {
		return nil, false, err
	}
	return record, created, nil
}

// FindOrCreateForUpdate implements store.ReviewRecordStore.FindOrCreateForUpdate
func (s *ReviewRecordStore) FindOrCreateForUpdate(
	ctx context.Context,
	initial *domain.ReviewRecord,
) (*domain.ReviewRecord, error) {
	if _, err := s.insertIfAbsent(ctx, initial); err != nil {
		return nil, err
	}
	return s.find(ctx, initial.MemberID, initial.CardID, true)
}

// Save implements store.ReviewRecordStore.Save
func (s *ReviewRecordStore) Save(ctx context.Context, record *domain.ReviewRecord) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if record == nil {
		return fmt.Errorf("%w: nil review record", store.ErrInvalidEntity)
	}
	if err := record.Validate(); err != nil {
		log.Warn("invalid review record rejected",
			slog.Int64("member_id", record.MemberID),
			slog.Int64("card_id", record.CardID),
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	query, args, err := s.dialect.builder().
		Update(reviewRecordsTable).
		Set("ease_factor", record.EaseFactor).
		Set("interval_days", record.Interval).
		Set("repetitions", record.Repetitions).
		Set("next_review_date", dateArg(record.NextReviewDate)).
		Set("last_quality", record.LastQuality).
		Set("updated_at", timestampArg(record.UpdatedAt)).
		Where(sq.Eq{"member_id": record.MemberID, "card_id": record.CardID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build review record update: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to save review record",
			slog.Int64("member_id", record.MemberID),
			slog.Int64("card_id", record.CardID),
			slog.String("error", err.Error()))
		return store.NewStoreError("review_record", "save", "update failed", s.dialect.mapError(err))
	}

	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrReviewRecordNotFound
	}

	log.Debug("review record saved",
		slog.Int64("member_id", record.MemberID),
		slog.Int64("card_id", record.CardID),
		slog.Int("interval", record.Interval),
		slog.Time("next_review_date", record.NextReviewDate))
	return nil
}

// FindDue implements store.ReviewRecordStore.FindDue
func (s *ReviewRecordStore) FindDue(
	ctx context.Context,
	memberID int64,
	date time.Time,
) ([]*domain.ReviewRecord, error) {
	query, args, err := s.dueQuery(reviewRecordColumns, memberID, date)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.NewStoreError("review_record", "find_due", "query failed", s.dialect.mapError(err))
	}
	defer func() { _ = rows.Close() }()

	records := make([]*domain.ReviewRecord, 0)
	for rows.Next() {
		record, err := scanReviewRecord(rows)
		if err != nil {
			return nil, store.NewStoreError("review_record", "find_due", "scan failed", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("review_record", "find_due", "iteration failed", s.dialect.mapError(err))
	}
	return records, nil
}

// FindDueCardIDs implements store.ReviewRecordStore.FindDueCardIDs
func (s *ReviewRecordStore) FindDueCardIDs(ctx context.Context, memberID int64, date time.Time) ([]int64, error) {
	query, args, err := s.dueQuery([]string{"card_id"}, memberID, date)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.NewStoreError("review_record", "find_due_card_ids", "query failed", s.dialect.mapError(err))
	}
	defer func() { _ = rows.Close() }()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, store.NewStoreError("review_record", "find_due_card_ids", "scan failed", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("review_record", "find_due_card_ids", "iteration failed", s.dialect.mapError(err))
	}
	return ids, nil
}

func (s *ReviewRecordStore) dueQuery(columns []string, memberID int64, date time.Time) (string, []any, error) {
	query, args, err := s.dialect.builder().
		Select(columns...).
		From(reviewRecordsTable).
		Where(sq.Eq{"member_id": memberID}).
		Where(sq.LtOrEq{"next_review_date": dateArg(date)}).
		OrderBy("next_review_date ASC", "card_id ASC").
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build due query: %w", err)
	}
	return query, args, nil
}

// insertIfAbsent inserts initial unless the member already has a record for
// the card, and reports whether a row was inserted.
func (s *ReviewRecordStore) insertIfAbsent(ctx context.Context, initial *domain.ReviewRecord) (bool, error) {
	if initial == nil {
		return false, fmt.Errorf("%w: nil review record", store.ErrInvalidEntity)
	}
	if err := initial.Validate(); err != nil {
		return false, fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	query, args, err := s.dialect.builder().
		Insert(reviewRecordsTable).
		Columns(reviewRecordColumns[1:]...).
		Values(
			initial.MemberID,
			initial.CardID,
			initial.EaseFactor,
			initial.Interval,
			initial.Repetitions,
			dateArg(initial.NextReviewDate),
			initial.LastQuality,
			timestampArg(initial.CreatedAt),
			timestampArg(initial.UpdatedAt),
		).
		Suffix("ON CONFLICT (member_id, card_id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build review record insert: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, store.NewStoreError("review_record", "create", "insert failed", s.dialect.mapError(err))
	}

	n, err := rowsAffected(result)
	if err != nil {
		return false, err
	}
	if n == 1 {
		logger.FromContextOrDefault(ctx, s.logger).Debug("review record created",
			slog.Int64("member_id", initial.MemberID),
			slog.Int64("card_id", initial.CardID))
	}
	return n == 1, nil
}

func (s *ReviewRecordStore) find(
	ctx context.Context,
	memberID, cardID int64,
	forUpdate bool,
) (*domain.ReviewRecord, error) {
	builder := s.dialect.builder().
		Select(reviewRecordColumns...).
		From(reviewRecordsTable).
		Where(sq.Eq{"member_id": memberID, "card_id": cardID})

	query, args, err := s.dialect.lockFor(builder, forUpdate).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build review record query: %w", err)
	}

	record, err := scanReviewRecord(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrReviewRecordNotFound
		}
		return nil, store.NewStoreError("review_record", "find", "query failed", s.dialect.mapError(err))
	}
	return record, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReviewRecord(row rowScanner) (*domain.ReviewRecord, error) {
	var (
		record    domain.ReviewRecord
		next      timeValue
		createdAt timeValue
		updatedAt timeValue
	)
	if err := row.Scan(
		&record.ID,
		&record.MemberID,
		&record.CardID,
		&record.EaseFactor,
		&record.Interval,
		&record.Repetitions,
		&next,
		&record.LastQuality,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	record.NextReviewDate = next.date()
	record.CreatedAt = createdAt.Time
	record.UpdatedAt = updatedAt.Time
	return &record, nil
}
