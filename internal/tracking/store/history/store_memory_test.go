package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rumbo/internal/tracking/models"
	"rumbo/pkg/domain"
)

// tickingClock hands out strictly increasing timestamps so created_at
// ordering is deterministic.
func tickingClock(start time.Time, step time.Duration) func() time.Time {
	current := start
	return func() time.Time {
		t := current
		current = current.Add(step)
		return t
	}
}

func TestMemoryStore_ImmediateCap(t *testing.T) {
	start := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	ctx := context.Background()
	subject := domain.SubjectID(11)

	t.Run("12 sequential inserts keep exactly 10, oldest 2 evicted", func(t *testing.T) {
		store := NewMemory(WithMemoryClock(tickingClock(start, time.Minute)))

		var lons []float64
		for i := 0; i < 12; i++ {
			lon := -74.0 - float64(i)/100
			lons = append(lons, lon)
			_, err := store.InsertDirect(ctx, subject, 1, 4.65, lon)
			require.NoError(t, err)
		}

		count, err := store.CountForSubject(ctx, subject)
		require.NoError(t, err)
		assert.Equal(t, 10, count)

		recs, err := store.MostRecent(ctx, subject, 10)
		require.NoError(t, err)
		require.Len(t, recs, 10)
		for i, rec := range recs {
			assert.Equal(t, lons[11-i], rec.Longitude, "expected last 10 writes in descending recency order")
		}
	})

	t.Run("cap check uses pre-insert count", func(t *testing.T) {
		store := NewMemory(WithMemoryClock(tickingClock(start, time.Minute)))

		for i := 0; i < 9; i++ {
			_, err := store.InsertDirect(ctx, subject, 1, 4.65, -74.0)
			require.NoError(t, err)
		}

		// Pre-insert count 9 < 10: no eviction, count becomes 10.
		_, err := store.InsertDirect(ctx, subject, 1, 4.65, -74.0)
		require.NoError(t, err)
		count, err := store.CountForSubject(ctx, subject)
		require.NoError(t, err)
		assert.Equal(t, 10, count)

		// Pre-insert count 10 >= 10: one eviction, count stays 10.
		_, err = store.InsertDirect(ctx, subject, 1, 4.65, -74.0)
		require.NoError(t, err)
		count, err = store.CountForSubject(ctx, subject)
		require.NoError(t, err)
		assert.Equal(t, 10, count)

		recs, err := store.MostRecent(ctx, subject, 10)
		require.NoError(t, err)
		require.Len(t, recs, 10)
		// The very first insert (at start) was the one evicted.
		assert.Equal(t, start.Add(time.Minute), recs[9].CreatedAt.UTC())
	})
}

func TestMemoryStore_ArchivalCap(t *testing.T) {
	start := time.Date(2026, 2, 10, 3, 0, 0, 0, time.UTC)
	ctx := context.Background()
	subject := domain.SubjectID(42)
	store := NewMemory(WithMemoryClock(tickingClock(start, time.Second)))

	captured := start.Add(-time.Hour)
	for i := 0; i < 35; i++ {
		loc := models.NewLiveLocation(subject, 1, 4.65, -74.0, captured.Add(time.Duration(i)*time.Minute))
		_, err := store.InsertFromArchive(ctx, loc)
		require.NoError(t, err)
	}

	// 35 records: at the trigger but not over it, nothing deleted yet.
	count, err := store.CountForSubject(ctx, subject)
	require.NoError(t, err)
	assert.Equal(t, 35, count)

	// The insert that makes 36 crosses the trigger and trims to 30.
	loc := models.NewLiveLocation(subject, 1, 4.65, -74.0, captured.Add(35*time.Minute))
	_, err = store.InsertFromArchive(ctx, loc)
	require.NoError(t, err)

	count, err = store.CountForSubject(ctx, subject)
	require.NoError(t, err)
	assert.Equal(t, 30, count)

	recs, err := store.MostRecent(ctx, subject, 30)
	require.NoError(t, err)
	require.Len(t, recs, 30)
	// The 30 most recent capture times survive: minutes 6..35.
	assert.Equal(t, captured.Add(35*time.Minute), recs[0].CreatedAt.UTC())
	assert.Equal(t, captured.Add(6*time.Minute), recs[29].CreatedAt.UTC())
}

func TestMemoryStore_InsertFromArchivePreservesCaptureTime(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	captured := time.Date(2026, 2, 9, 17, 30, 0, 0, time.UTC)
	loc := models.NewLiveLocation(23, 1, 4.6505, -74.0635, captured)

	rec, err := store.InsertFromArchive(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, captured, rec.CreatedAt.UTC(), "created_at must be the original event time, not archival time")
	assert.Equal(t, 4.6505, rec.Latitude)
}

func TestMemoryStore_HistoryWindow(t *testing.T) {
	start := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	ctx := context.Background()
	subject := domain.SubjectID(8)
	store := NewMemory(WithMemoryClock(tickingClock(start, time.Hour)))

	for i := 0; i < 5; i++ {
		_, err := store.InsertDirect(ctx, subject, 1, 4.65, -74.0)
		require.NoError(t, err)
	}

	// Only inserts at or after start+2h fall inside the window.
	recs, err := store.History(ctx, subject, 10, start.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Len(t, recs, 3)

	recs, err = store.History(ctx, subject, 2, start)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.True(t, recs[0].CreatedAt.After(recs[1].CreatedAt), "newest first")
}

func TestMemoryStore_IDsNeverReused(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(WithMemoryClock(tickingClock(time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC), time.Minute)))
	subject := domain.SubjectID(3)

	seen := make(map[int64]bool)
	for i := 0; i < 25; i++ {
		rec, err := store.InsertDirect(ctx, subject, 1, 4.65, -74.0)
		require.NoError(t, err)
		assert.False(t, seen[rec.ID], "id %d reused", rec.ID)
		seen[rec.ID] = true
	}
}
