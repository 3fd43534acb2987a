package memory

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/enrule/langbot/internal/errors"
)

func newTestStore() (*ViolationStore, *time.Time) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewViolationStore()
	s.now = func() time.Time { return now }
	return s, &now
}

func TestIncrementCountsWithinTTL(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := newTestStore()
	for i := int64(1); i <= 4; i++ {
		count, err := s.IncrementViolation(ctx, 42, "John", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	v, err := s.GetViolation(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, int64(4), v.Count)
	assert.Equal(t, "john", v.Username)
}

func TestIncrementConcurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := newTestStore()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.IncrementViolation(ctx, 7, "", time.Hour)
		}()
	}
	wg.Wait()

	v, err := s.GetViolation(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(100), v.Count)
}

func TestRecordsExpire(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, now := newTestStore()
	_, err := s.IncrementViolation(ctx, 1, "alice", time.Minute)
	require.NoError(t, err)

	*now = now.Add(30 * time.Second)
	count, err := s.IncrementViolation(ctx, 1, "alice", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	*now = now.Add(61 * time.Second)
	v, err := s.GetViolation(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = s.ResolveUsername(ctx, "@alice")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestZeroTTLKeepsRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, now := newTestStore()
	_, err := s.IncrementViolation(ctx, 1, "", 0)
	require.NoError(t, err)

	*now = now.Add(24 * 365 * time.Hour)
	v, err := s.GetViolation(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, int64(1), v.Count)
}

func TestDeleteViolationByHandle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := newTestStore()
	_, err := s.IncrementViolation(ctx, 99, "john", time.Hour)
	require.NoError(t, err)

	userID, err := s.ResolveUsername(ctx, "@John")
	require.NoError(t, err)
	assert.Equal(t, int64(99), userID)

	deleted, err := s.DeleteViolation(ctx, userID)
	require.NoError(t, err)
	assert.True(t, deleted)

	v, err := s.GetViolation(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, v)
	_, err = s.ResolveUsername(ctx, "john")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	deleted, err = s.DeleteViolation(ctx, 99)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDeleteAllViolations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := newTestStore()
	for _, id := range []int64{3, 1, 2} {
		_, err := s.IncrementViolation(ctx, id, "", time.Hour)
		require.NoError(t, err)
	}
	_, err := s.IncrementViolation(ctx, 4, "dave", time.Hour)
	require.NoError(t, err)

	ids, err := s.DeleteAllViolations(ctx)
	require.NoError(t, err)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	assert.Equal(t, []int64{1, 2, 3, 4}, ids)

	_, err = s.ResolveUsername(ctx, "dave")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	ids, err = s.DeleteAllViolations(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
