package sqlstore_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/phrazzld/caro-api/internal/domain"
	"github.com/phrazzld/caro-api/internal/platform/sqlstore"
	"github.com/phrazzld/caro-api/internal/store"
	"github.com/phrazzld/caro-api/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBadge(t *testing.T, memberID int64, badgeType domain.BadgeType, at time.Time) *domain.Badge {
	t.Helper()
	badge, err := domain.NewBadge(memberID, badgeType, at)
	require.NoError(t, err)
	return badge
}

func TestBadgeStore_CreateOnce(t *testing.T) {
	t.Parallel()

	db := testdb.New(t)
	s := sqlstore.NewBadgeStore(db, db.Dialect, nil)
	ctx := context.Background()

	exists, err := s.Exists(ctx, 1, domain.BadgeFirstReview)
	require.NoError(t, err)
	assert.False(t, exists)

	badge := newBadge(t, 1, domain.BadgeFirstReview, now)
	created, err := s.Create(ctx, badge)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, badge.ID)

	created, err = s.Create(ctx, newBadge(t, 1, domain.BadgeFirstReview, now.Add(time.Hour)))
	require.NoError(t, err)
	assert.False(t, created)

	exists, err = s.Exists(ctx, 1, domain.BadgeFirstReview)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.Exists(ctx, 2, domain.BadgeFirstReview)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBadgeStore_CreateRejectsUnknownType(t *testing.T) {
	t.Parallel()

	db := testdb.New(t)
	s := sqlstore.NewBadgeStore(db, db.Dialect, nil)

	_, err := s.Create(context.Background(), &domain.Badge{MemberID: 1, Type: "BOGUS"})
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
}

func TestBadgeStore_ConcurrentCreate(t *testing.T) {
	t.Parallel()

	db := testdb.New(t)
	s := sqlstore.NewBadgeStore(db, db.Dialect, nil)

	var (
		wg      sync.WaitGroup
		created atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Create(context.Background(), newBadge(t, 3, domain.BadgeLevel5, now))
			if assert.NoError(t, err) && ok {
				created.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	badges, err := s.ListByMember(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, badges, 1)
}

func TestBadgeStore_ListByMember(t *testing.T) {
	t.Parallel()

	db := testdb.New(t)
	s := sqlstore.NewBadgeStore(db, db.Dialect, nil)
	ctx := context.Background()

	_, err := s.Create(ctx, newBadge(t, 1, domain.BadgeLevel5, now.Add(time.Hour)))
	require.NoError(t, err)
	_, err = s.Create(ctx, newBadge(t, 1, domain.BadgeFirstReview, now))
	require.NoError(t, err)

	badges, err := s.ListByMember(ctx, 1)
	require.NoError(t, err)
	require.Len(t, badges, 2)
	assert.Equal(t, domain.BadgeFirstReview, badges[0].Type)
	assert.Equal(t, "First Review!", badges[0].Name)
	assert.Equal(t, "Completed your first review", badges[0].Description)
	assert.True(t, now.Equal(badges[0].EarnedAt))
	assert.Equal(t, domain.BadgeLevel5, badges[1].Type)

	none, err := s.ListByMember(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, none)
}
