package review_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/phrazzld/caro-api/internal/domain"
	"github.com/phrazzld/caro-api/internal/domain/srs"
	"github.com/phrazzld/caro-api/internal/events"
	"github.com/phrazzld/caro-api/internal/mocks"
	"github.com/phrazzld/caro-api/internal/platform/sqlstore"
	"github.com/phrazzld/caro-api/internal/service"
	"github.com/phrazzld/caro-api/internal/service/review"
	"github.com/phrazzld/caro-api/internal/store"
	"github.com/phrazzld/caro-api/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var clock = time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)

// flakyStore fails the first saves with saveErr.
type flakyStore struct {
	store.ReviewRecordStore
	failures *atomic.Int32
	saveErr  error
}

func (f *flakyStore) WithTx(tx *sql.Tx) store.ReviewRecordStore {
	return &flakyStore{
		ReviewRecordStore: f.ReviewRecordStore.WithTx(tx),
		failures:          f.failures,
		saveErr:           f.saveErr,
	}
}

func (f *flakyStore) Save(ctx context.Context, record *domain.ReviewRecord) error {
	if f.failures.Add(-1) >= 0 {
		return f.saveErr
	}
	return f.ReviewRecordStore.Save(ctx, record)
}

type fixture struct {
	db        *testdb.DB
	records   store.ReviewRecordStore
	publisher *mocks.MockPublisher
	service   review.Service
}

func newFixture(t *testing.T, config review.Config) *fixture {
	t.Helper()

	db := testdb.New(t)
	records := sqlstore.NewReviewRecordStore(db, db.Dialect, nil)
	publisher := &mocks.MockPublisher{}
	if config.Now == nil {
		config.Now = func() time.Time { return clock }
	}

	return &fixture{
		db:        db,
		records:   records,
		publisher: publisher,
		service:   review.NewService(db.DB, records, srs.NewDefaultService(), publisher, config, nil),
	}
}

func reviewCmd(quality int) review.RecordReviewCommand {
	return review.RecordReviewCommand{
		MemberID:     1,
		CardID:       100,
		DeckID:       10,
		Quality:      quality,
		ReviewTimeMs: 4200,
	}
}

func TestRecordReview_SchedulesWithSM2(t *testing.T) {
	t.Parallel()

	f := newFixture(t, review.Config{})
	ctx := context.Background()

	steps := []struct {
		quality         int
		wantInterval    int
		wantRepetitions int
		wantEase        float64
		wantNext        string
	}{
		{5, 1, 1, 2.6, "2024-01-16"},
		{5, 6, 2, 2.7, "2024-01-21"},
		{5, 17, 3, 2.8, "2024-02-01"},
		{2, 1, 0, 2.6, "2024-01-16"},
	}

	for i, step := range steps {
		view, err := f.service.RecordReview(ctx, reviewCmd(step.quality))
		require.NoError(t, err, "step %d", i)
		assert.Equal(t, step.wantInterval, view.Interval, "step %d interval", i)
		assert.Equal(t, step.wantRepetitions, view.Repetitions, "step %d repetitions", i)
		assert.InDelta(t, step.wantEase, view.EaseFactor, 1e-9, "step %d ease", i)
		assert.Equal(t, step.wantNext, view.NextReviewDate, "step %d next date", i)
		assert.Equal(t, step.quality, view.LastQuality, "step %d last quality", i)
	}

	stored, err := f.records.Find(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Interval)
	assert.Equal(t, 0, stored.Repetitions)

	published := f.publisher.CardReviewedEvents()
	require.Len(t, published, len(steps))
	for i, event := range published {
		assert.NotEmpty(t, event.EventID)
		assert.Equal(t, stored.ID, event.ReviewID)
		assert.Equal(t, int64(1), event.MemberID)
		assert.Equal(t, int64(100), event.CardID)
		assert.Equal(t, int64(10), event.DeckID)
		assert.Equal(t, steps[i].quality, event.Quality)
		assert.Equal(t, int64(4200), event.ReviewTimeMs)
		assert.True(t, clock.Equal(event.ReviewedAt))
	}
}

func TestRecordReview_InvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		edit func(cmd *review.RecordReviewCommand)
	}{
		{"quality below range", func(cmd *review.RecordReviewCommand) { cmd.Quality = -1 }},
		{"quality above range", func(cmd *review.RecordReviewCommand) { cmd.Quality = 6 }},
		{"zero review time", func(cmd *review.RecordReviewCommand) { cmd.ReviewTimeMs = 0 }},
		{"negative review time", func(cmd *review.RecordReviewCommand) { cmd.ReviewTimeMs = -5 }},
		{"zero member", func(cmd *review.RecordReviewCommand) { cmd.MemberID = 0 }},
		{"zero card", func(cmd *review.RecordReviewCommand) { cmd.CardID = 0 }},
		{"zero deck", func(cmd *review.RecordReviewCommand) { cmd.DeckID = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t, review.Config{})
			ctx := context.Background()

			cmd := reviewCmd(4)
			tt.edit(&cmd)

			view, err := f.service.RecordReview(ctx, cmd)
			assert.Nil(t, view)
			assert.ErrorIs(t, err, review.ErrInvalidReviewData)
			assert.ErrorIs(t, err, domain.ErrValidation)

			_, err = f.records.Find(ctx, cmd.MemberID, cmd.CardID)
			assert.ErrorIs(t, err, store.ErrReviewRecordNotFound)
			assert.Empty(t, f.publisher.CardReviewedEvents())
		})
	}
}

func TestRecordReview_InvalidInputNamesField(t *testing.T) {
	t.Parallel()

	f := newFixture(t, review.Config{})

	cmd := reviewCmd(7)
	_, err := f.service.RecordReview(context.Background(), cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quality must satisfy lte=5")
}

func TestRecordReview_PublishFailureKeepsReview(t *testing.T) {
	t.Parallel()

	f := newFixture(t, review.Config{})
	f.publisher.Err = events.ErrBusClosed
	ctx := context.Background()

	view, err := f.service.RecordReview(ctx, reviewCmd(4))
	require.NoError(t, err)
	assert.Equal(t, 1, view.Repetitions)

	stored, err := f.records.Find(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Repetitions)
	assert.Equal(t, 4, stored.LastQuality)
}

func TestRecordReview_RetriesConflicts(t *testing.T) {
	t.Parallel()

	conflict := store.NewStoreError("review_record", "save", "database is busy", store.ErrConflict)

	tests := []struct {
		name       string
		failures   int32
		maxRetries int
		wantErr    bool
	}{
		{name: "succeeds after retries", failures: 2, maxRetries: 3},
		{name: "gives up after max retries", failures: 3, maxRetries: 1, wantErr: true},
		{name: "no retries configured", failures: 1, maxRetries: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db := testdb.New(t)
			failures := &atomic.Int32{}
			failures.Store(tt.failures)
			records := &flakyStore{
				ReviewRecordStore: sqlstore.NewReviewRecordStore(db, db.Dialect, nil),
				failures:          failures,
				saveErr:           conflict,
			}
			publisher := &mocks.MockPublisher{}
			svc := review.NewService(db.DB, records, srs.NewDefaultService(), publisher, review.Config{
				MaxConflictRetries: tt.maxRetries,
				Now:                func() time.Time { return clock },
			}, nil)
			ctx := context.Background()

			view, err := svc.RecordReview(ctx, reviewCmd(5))

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, store.ErrConflict)
				var serviceErr *service.ServiceError
				require.ErrorAs(t, err, &serviceErr)
				assert.Equal(t, "record_review", serviceErr.Operation)
				assert.Empty(t, publisher.CardReviewedEvents())

				// The rolled back attempts left nothing behind.
				_, err = records.Find(ctx, 1, 100)
				assert.ErrorIs(t, err, store.ErrReviewRecordNotFound)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, 1, view.Repetitions)
			assert.Len(t, publisher.CardReviewedEvents(), 1)
		})
	}
}

func TestRecordReview_MapsEscapedDriverErrors(t *testing.T) {
	t.Parallel()

	errBusy := errors.New("database is locked")

	db := testdb.New(t)
	failures := &atomic.Int32{}
	failures.Store(1)
	records := &flakyStore{
		ReviewRecordStore: sqlstore.NewReviewRecordStore(db, db.Dialect, nil),
		failures:          failures,
		saveErr:           errBusy,
	}
	svc := review.NewService(db.DB, records, srs.NewDefaultService(), &mocks.MockPublisher{}, review.Config{
		MaxConflictRetries: 2,
		Now:                func() time.Time { return clock },
		MapError: func(err error) error {
			if errors.Is(err, errBusy) {
				return store.ErrConflict
			}
			return err
		},
	}, nil)

	view, err := svc.RecordReview(context.Background(), reviewCmd(3))
	require.NoError(t, err)
	assert.Equal(t, 1, view.Repetitions)
}

func TestRecordReview_DoesNotRetryOtherErrors(t *testing.T) {
	t.Parallel()

	errBroken := errors.New("disk on fire")

	db := testdb.New(t)
	failures := &atomic.Int32{}
	failures.Store(1)
	records := &flakyStore{
		ReviewRecordStore: sqlstore.NewReviewRecordStore(db, db.Dialect, nil),
		failures:          failures,
		saveErr:           errBroken,
	}
	svc := review.NewService(db.DB, records, srs.NewDefaultService(), &mocks.MockPublisher{}, review.Config{
		MaxConflictRetries: 5,
		Now:                func() time.Time { return clock },
	}, nil)

	_, err := svc.RecordReview(context.Background(), reviewCmd(3))
	assert.ErrorIs(t, err, errBroken)
	assert.Equal(t, int32(0), failures.Load(), "save should run exactly once")
}

func TestRecordReview_ConcurrentReviewsOfOneCard(t *testing.T) {
	t.Parallel()

	f := newFixture(t, review.Config{MaxConflictRetries: 5})
	ctx := context.Background()

	const reviewers = 8
	var wg sync.WaitGroup
	errs := make(chan error, reviewers)
	for range reviewers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.RecordReview(ctx, reviewCmd(5))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := f.records.Find(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, reviewers, stored.Repetitions, "every review must build on the previous one")
	assert.Len(t, f.publisher.CardReviewedEvents(), reviewers)
}

func TestRecordReview_Span(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	f := newFixture(t, review.Config{TracerProvider: provider})

	_, err := f.service.RecordReview(context.Background(), reviewCmd(4))
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "review.RecordReview", spans[0].Name())

	attrs := map[string]any{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, int64(1), attrs["member.id"])
	assert.Equal(t, int64(100), attrs["card.id"])
	assert.Equal(t, int64(1), attrs["review.attempts"])
}

func TestInitializeCardForReview(t *testing.T) {
	t.Parallel()

	f := newFixture(t, review.Config{})
	ctx := context.Background()

	view, err := f.service.InitializeCardForReview(ctx, 1, 100)
	require.NoError(t, err)
	assert.NotZero(t, view.ID)
	assert.Equal(t, domain.DefaultEaseFactor, view.EaseFactor)
	assert.Equal(t, 0, view.Interval)
	assert.Equal(t, 0, view.Repetitions)
	assert.Equal(t, "2024-01-15", view.NextReviewDate)

	_, err = f.service.RecordReview(ctx, reviewCmd(5))
	require.NoError(t, err)

	// Initializing again leaves the reviewed record untouched.
	again, err := f.service.InitializeCardForReview(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, view.ID, again.ID)
	assert.Equal(t, 1, again.Repetitions)
	assert.Equal(t, "2024-01-16", again.NextReviewDate)

	assert.Len(t, f.publisher.CardReviewedEvents(), 1, "initializing publishes nothing")
}

func TestInitializeCardForReview_Concurrent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, review.Config{})
	ctx := context.Background()

	const callers = 10
	ids := make(chan int64, callers)
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			view, err := f.service.InitializeCardForReview(ctx, 1, 100)
			if assert.NoError(t, err) {
				ids <- view.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	var first int64
	for id := range ids {
		if first == 0 {
			first = id
		}
		assert.Equal(t, first, id)
	}
}

func TestInitializeCardForReview_InvalidIDs(t *testing.T) {
	t.Parallel()

	f := newFixture(t, review.Config{})

	_, err := f.service.InitializeCardForReview(context.Background(), 0, 100)
	assert.ErrorIs(t, err, review.ErrInvalidReviewData)

	_, err = f.service.InitializeCardForReview(context.Background(), 1, -3)
	assert.ErrorIs(t, err, review.ErrInvalidReviewData)
}

func TestTodayReviews(t *testing.T) {
	t.Parallel()

	f := newFixture(t, review.Config{})
	ctx := context.Background()

	for _, cardID := range []int64{300, 100, 200} {
		_, err := f.service.InitializeCardForReview(ctx, 1, cardID)
		require.NoError(t, err)
	}
	// Another member's card is never listed.
	_, err := f.service.InitializeCardForReview(ctx, 2, 150)
	require.NoError(t, err)

	ids, err := f.service.GetTodayReviewCardIDs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 200, 300}, ids)

	cmd := reviewCmd(5)
	cmd.CardID = 200
	_, err = f.service.RecordReview(ctx, cmd)
	require.NoError(t, err)

	ids, err = f.service.GetTodayReviewCardIDs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 300}, ids)

	views, err := f.service.GetTodayReviews(ctx, 1)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, int64(100), views[0].CardID)
	assert.Equal(t, int64(300), views[1].CardID)
	assert.Equal(t, "2024-01-15", views[0].NextReviewDate)

	empty, err := f.service.GetTodayReviewCardIDs(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTodayUsesConfiguredLocation(t *testing.T) {
	t.Parallel()

	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	// 20:00 UTC on the 15th is already the 16th in Seoul.
	evening := time.Date(2024, 1, 15, 20, 0, 0, 0, time.UTC)
	f := newFixture(t, review.Config{
		Location: seoul,
		Now:      func() time.Time { return evening },
	})
	ctx := context.Background()

	view, err := f.service.InitializeCardForReview(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-16", view.NextReviewDate)

	reviewed, err := f.service.RecordReview(ctx, reviewCmd(5))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-17", reviewed.NextReviewDate)
}

func TestGetReviewRecord(t *testing.T) {
	t.Parallel()

	f := newFixture(t, review.Config{})
	ctx := context.Background()

	_, err := f.service.GetReviewRecord(ctx, 1, 100)
	assert.ErrorIs(t, err, store.ErrReviewRecordNotFound)
	assert.True(t, store.IsNotFoundError(err))

	_, err = f.service.RecordReview(ctx, reviewCmd(3))
	require.NoError(t, err)

	view, err := f.service.GetReviewRecord(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 3, view.LastQuality)
	assert.Equal(t, 1, view.Interval)
}

func TestRecordReview_ReviewedAtIsUTC(t *testing.T) {
	t.Parallel()

	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	local := clock.In(seoul)
	f := newFixture(t, review.Config{
		Now: func() time.Time { return local },
	})

	_, err = f.service.RecordReview(context.Background(), reviewCmd(4))
	require.NoError(t, err)

	published := f.publisher.CardReviewedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, time.UTC, published[0].ReviewedAt.Location())
	assert.True(t, clock.Equal(published[0].ReviewedAt))
}

func TestRecordReview_LongStreakStaysReadable(t *testing.T) {
	t.Parallel()

	f := newFixture(t, review.Config{})
	ctx := context.Background()

	for i := 0; i < 40; i++ {
		view, err := f.service.RecordReview(ctx, reviewCmd(5))
		require.NoError(t, err, "review %d", i)
		require.Positive(t, view.Interval, "review %d", i)
		require.LessOrEqual(t, view.Interval, srs.DefaultMaxInterval, "review %d", i)
	}

	view, err := f.service.GetReviewRecord(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, srs.DefaultMaxInterval, view.Interval)
	assert.Equal(t, 40, view.Repetitions)
	assert.Equal(t, clock.AddDate(0, 0, srs.DefaultMaxInterval).Format(time.DateOnly), view.NextReviewDate)
}
