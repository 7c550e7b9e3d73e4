package sqlstore_test

import (
	"context"
	"sync"
	"testing"

	"github.com/phrazzld/caro-api/internal/platform/sqlstore"
	"github.com/phrazzld/caro-api/internal/store"
	"github.com/phrazzld/caro-api/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyStatStore_Increment(t *testing.T) {
	t.Parallel()

	db := testdb.New(t)
	s := sqlstore.NewDailyStatStore(db, db.Dialect, nil)
	ctx := context.Background()

	_, err := s.Get(ctx, 1, today)
	assert.ErrorIs(t, err, store.ErrDailyStatNotFound)

	require.NoError(t, s.Increment(ctx, 1, today, 1, 5000))
	require.NoError(t, s.Increment(ctx, 1, today, 1, 3000))
	require.NoError(t, s.Increment(ctx, 1, today.AddDate(0, 0, 1), 1, 1000))

	stat, err := s.Get(ctx, 1, today)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stat.MemberID)
	assert.Equal(t, today, stat.Date)
	assert.Equal(t, 2, stat.TotalCards)
	assert.Equal(t, int64(8000), stat.TotalTimeMs)

	next, err := s.Get(ctx, 1, today.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, next.TotalCards)
}

func TestDailyStatStore_IncrementRejectsInvalid(t *testing.T) {
	t.Parallel()

	db := testdb.New(t)
	s := sqlstore.NewDailyStatStore(db, db.Dialect, nil)

	assert.ErrorIs(t, s.Increment(context.Background(), 0, today, 1, 0), store.ErrInvalidEntity)
	assert.ErrorIs(t, s.Increment(context.Background(), 1, today, -1, 0), store.ErrInvalidEntity)
}

func TestDailyStatStore_ConcurrentIncrements(t *testing.T) {
	t.Parallel()

	db := testdb.New(t)
	s := sqlstore.NewDailyStatStore(db, db.Dialect, nil)

	const reviews = 20
	var wg sync.WaitGroup
	for i := 0; i < reviews; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Increment(context.Background(), 4, today, 1, 100))
		}()
	}
	wg.Wait()

	stat, err := s.Get(context.Background(), 4, today)
	require.NoError(t, err)
	assert.Equal(t, reviews, stat.TotalCards)
	assert.Equal(t, int64(reviews*100), stat.TotalTimeMs)
}
