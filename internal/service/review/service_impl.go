package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/caro-api/internal/domain"
	"github.com/phrazzld/caro-api/internal/domain/srs"
	"github.com/phrazzld/caro-api/internal/events"
	"github.com/phrazzld/caro-api/internal/platform/logger"
	"github.com/phrazzld/caro-api/internal/service"
	"github.com/phrazzld/caro-api/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/phrazzld/caro-api/internal/service/review"

// Retry delays between conflicting review transactions.
const (
	retryInitialInterval = 10 * time.Millisecond
	retryMaxInterval     = 200 * time.Millisecond
)

// Verify interface compliance at compile time
var _ Service = (*reviewService)(nil)

type reviewService struct {
	db         *sql.DB
	records    store.ReviewRecordStore
	srs        srs.Service
	publisher  events.Publisher
	validate   *validator.Validate
	tracer     trace.Tracer
	location   *time.Location
	maxRetries int
	now        func() time.Time
	mapError   func(error) error
	logger     *slog.Logger
}

// NewService creates a review Service. records must not be bound to a
// transaction; RecordReview binds it to its own with WithTx.
func NewService(
	db *sql.DB,
	records store.ReviewRecordStore,
	srsService srs.Service,
	publisher events.Publisher,
	config Config,
	logger *slog.Logger,
) Service {
	if db == nil {
		panic("db cannot be nil")
	}
	if records == nil {
		panic("records cannot be nil")
	}
	if srsService == nil {
		panic("srsService cannot be nil")
	}
	if publisher == nil {
		panic("publisher cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	s := &reviewService{
		db:         db,
		records:    records,
		srs:        srsService,
		publisher:  publisher,
		validate:   newValidator(),
		location:   config.Location,
		maxRetries: max(config.MaxConflictRetries, 0),
		now:        config.Now,
		mapError:   config.MapError,
		logger:     logger.With(slog.String("component", "review_service")),
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.mapError == nil {
		s.mapError = func(err error) error { return err }
	}
	if config.TracerProvider != nil {
		s.tracer = config.TracerProvider.Tracer(tracerName)
	} else {
		s.tracer = otel.Tracer(tracerName)
	}
	return s
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *reviewService) today() time.Time {
	return domain.DateOf(s.now(), s.location)
}

// InitializeCardForReview implements Service.InitializeCardForReview.
func (s *reviewService) InitializeCardForReview(
	ctx context.Context,
	memberID, cardID int64,
) (*ReviewRecordView, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if memberID <= 0 || cardID <= 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReviewData, domain.ErrInvalidID)
	}

	now := s.now().UTC()
	initial, err := s.srs.NewRecord(memberID, cardID, domain.DateOf(now, s.location), now)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReviewData, err)
	}

	record, created, err := s.records.FindOrCreate(ctx, initial)
	if err != nil {
		log.Error("failed to initialize card for review",
			slog.String("error", err.Error()),
			slog.Int64("member_id", memberID),
			slog.Int64("card_id", cardID))
		return nil, service.NewError("initialize_card", "failed to create review record", err)
	}

	if created {
		log.Info("card initialized for review",
			slog.Int64("member_id", memberID),
			slog.Int64("card_id", cardID))
	} else {
		log.Debug("card already initialized",
			slog.Int64("member_id", memberID),
			slog.Int64("card_id", cardID))
	}

	view := NewReviewRecordView(record)
	return &view, nil
}

// RecordReview implements Service.RecordReview.
func (s *reviewService) RecordReview(
	ctx context.Context,
	cmd RecordReviewCommand,
) (*ReviewRecordView, error) {
	ctx, span := s.tracer.Start(ctx, "review.RecordReview",
		trace.WithAttributes(
			attribute.Int64("member.id", cmd.MemberID),
			attribute.Int64("card.id", cmd.CardID),
			attribute.Int("review.quality", cmd.Quality),
		))
	defer span.End()

	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.Int64("member_id", cmd.MemberID),
		slog.Int64("card_id", cmd.CardID))

	if err := s.validate.Struct(cmd); err != nil {
		log.Warn("invalid review", slog.String("error", describeValidation(err)))
		err = fmt.Errorf("%w: %s", ErrInvalidReviewData, describeValidation(err))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	reviewedAt := s.now().UTC()
	today := domain.DateOf(reviewedAt, s.location)

	var saved *domain.ReviewRecord
	attempts := 0
	operation := func() error {
		attempts++
		err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
			var err error
			saved, err = s.schedule(ctx, s.records.WithTx(tx), cmd, today, reviewedAt)
			return err
		})
		if err == nil {
			return nil
		}
		if s.isConflict(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryInitialInterval
	policy.MaxInterval = retryMaxInterval
	policy.MaxElapsedTime = 0

	err := backoff.RetryNotify(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.maxRetries)), ctx),
		func(err error, wait time.Duration) {
			log.Warn("review transaction conflicted, retrying",
				slog.String("error", err.Error()),
				slog.Int("attempt", attempts),
				slog.Duration("wait", wait))
		},
	)
	span.SetAttributes(attribute.Int("review.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "record review failed")
		if errors.Is(err, domain.ErrValidation) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidReviewData, err)
		}
		log.Error("failed to record review",
			slog.String("error", err.Error()),
			slog.Int("attempts", attempts))
		return nil, service.NewError("record_review", "failed to update review record", err)
	}

	log.Debug("review recorded",
		slog.Int("quality", cmd.Quality),
		slog.Int("interval", saved.Interval),
		slog.String("next_review_date", saved.NextReviewDate.Format(time.DateOnly)))

	event := events.NewCardReviewedEvent(
		saved.ID,
		cmd.MemberID,
		cmd.CardID,
		cmd.DeckID,
		cmd.Quality,
		cmd.ReviewTimeMs,
		reviewedAt,
	)
	if err := s.publisher.Publish(ctx, event); err != nil {
		// The review is committed; subscribers simply miss this one.
		log.Error("failed to publish card reviewed event",
			slog.String("error", err.Error()),
			slog.String("event_id", event.EventID))
		span.RecordError(err)
	}

	view := NewReviewRecordView(saved)
	return &view, nil
}

// schedule loads or creates the locked record, applies the review, and saves it.
func (s *reviewService) schedule(
	ctx context.Context,
	records store.ReviewRecordStore,
	cmd RecordReviewCommand,
	today, now time.Time,
) (*domain.ReviewRecord, error) {
	initial, err := s.srs.NewRecord(cmd.MemberID, cmd.CardID, today, now)
	if err != nil {
		return nil, err
	}

	current, err := records.FindOrCreateForUpdate(ctx, initial)
	if err != nil {
		return nil, fmt.Errorf("failed to load review record: %w", err)
	}

	next, err := s.srs.CalculateNextReview(current, cmd.Quality, today, now)
	if err != nil {
		return nil, err
	}

	if err := records.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to save review record: %w", err)
	}
	return next, nil
}

func (s *reviewService) isConflict(err error) bool {
	return store.IsConflictError(err) || store.IsConflictError(s.mapError(err))
}

// GetTodayReviewCardIDs implements Service.GetTodayReviewCardIDs.
func (s *reviewService) GetTodayReviewCardIDs(ctx context.Context, memberID int64) ([]int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if memberID <= 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReviewData, domain.ErrInvalidID)
	}

	ids, err := s.records.FindDueCardIDs(ctx, memberID, s.today())
	if err != nil {
		log.Error("failed to find due cards",
			slog.String("error", err.Error()),
			slog.Int64("member_id", memberID))
		return nil, service.NewError("get_today_reviews", "failed to find due cards", err)
	}
	return ids, nil
}

// GetTodayReviews implements Service.GetTodayReviews.
func (s *reviewService) GetTodayReviews(ctx context.Context, memberID int64) ([]ReviewRecordView, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if memberID <= 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReviewData, domain.ErrInvalidID)
	}

	records, err := s.records.FindDue(ctx, memberID, s.today())
	if err != nil {
		log.Error("failed to find due records",
			slog.String("error", err.Error()),
			slog.Int64("member_id", memberID))
		return nil, service.NewError("get_today_reviews", "failed to find due records", err)
	}

	views := make([]ReviewRecordView, 0, len(records))
	for _, record := range records {
		views = append(views, NewReviewRecordView(record))
	}
	return views, nil
}

// GetReviewRecord implements Service.GetReviewRecord.
func (s *reviewService) GetReviewRecord(
	ctx context.Context,
	memberID, cardID int64,
) (*ReviewRecordView, error) {
	if memberID <= 0 || cardID <= 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReviewData, domain.ErrInvalidID)
	}

	record, err := s.records.Find(ctx, memberID, cardID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, err
		}
		return nil, service.NewError("get_review_record", "failed to find review record", err)
	}

	view := NewReviewRecordView(record)
	return &view, nil
}

// describeValidation lists the fields that failed validation.
func describeValidation(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s must satisfy %s", fe.Field(), rule))
	}
	return strings.Join(parts, ", ")
}
