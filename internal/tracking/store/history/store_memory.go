package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"rumbo/internal/tracking/models"
	"rumbo/pkg/domain"
)

// MemoryStore is an in-memory history store with the same retention
// semantics as the PostgreSQL implementation. It backs unit tests and
// single-process development setups.
type MemoryStore struct {
	mu        sync.Mutex
	records   map[domain.SubjectID][]models.PersistedLocation
	nextID    int64
	clock     func() time.Time
	insertErr map[domain.SubjectID]error
}

// MemoryStoreOption configures a MemoryStore instance.
type MemoryStoreOption func(*MemoryStore)

// WithMemoryClock sets the clock function for testability.
func WithMemoryClock(clock func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewMemory constructs an in-memory history store.
func NewMemory(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		records:   make(map[domain.SubjectID][]models.PersistedLocation),
		nextID:    1,
		clock:     time.Now,
		insertErr: make(map[domain.SubjectID]error),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// FailInsertsFor makes inserts for a subject return err. Tests use it to
// simulate durable write failures during a sweep. Pass nil to clear.
func (s *MemoryStore) FailInsertsFor(subjectID domain.SubjectID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.insertErr, subjectID)
		return
	}
	s.insertErr[subjectID] = err
}

func (s *MemoryStore) InsertDirect(_ context.Context, subjectID domain.SubjectID, packageID domain.PackageID, lat, lon float64) (models.PersistedLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.insertErr[subjectID]; err != nil {
		return models.PersistedLocation{}, err
	}

	recs := s.records[subjectID]
	if len(recs) >= immediateCap {
		recs = recs[len(recs)-immediateKeep:]
	}

	now := s.clock()
	rec := s.append(subjectID, packageID, lat, lon, now, now, recs)
	return rec, nil
}

func (s *MemoryStore) InsertFromArchive(_ context.Context, loc models.LiveLocation) (models.PersistedLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.insertErr[loc.SubjectID]; err != nil {
		return models.PersistedLocation{}, err
	}

	rec := s.append(loc.SubjectID, loc.PackageID, loc.Latitude, loc.Longitude, loc.CapturedTime(), s.clock(), s.records[loc.SubjectID])

	if recs := s.records[loc.SubjectID]; len(recs) > archivalTrigger {
		s.records[loc.SubjectID] = recs[len(recs)-archivalKeep:]
	}
	return rec, nil
}

// append inserts a record keeping the subject's slice ordered by created_at
// then id, oldest first. Caller holds the lock.
func (s *MemoryStore) append(subjectID domain.SubjectID, packageID domain.PackageID, lat, lon float64, createdAt, updatedAt time.Time, recs []models.PersistedLocation) models.PersistedLocation {
	rec := models.PersistedLocation{
		ID:        s.nextID,
		SubjectID: subjectID,
		PackageID: packageID,
		Latitude:  lat,
		Longitude: lon,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
	s.nextID++

	recs = append(recs, rec)
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].ID < recs[j].ID
		}
		return recs[i].CreatedAt.Before(recs[j].CreatedAt)
	})
	s.records[subjectID] = recs
	return rec
}

func (s *MemoryStore) CountForSubject(_ context.Context, subjectID domain.SubjectID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records[subjectID]), nil
}

func (s *MemoryStore) MostRecent(_ context.Context, subjectID domain.SubjectID, limit int) ([]models.PersistedLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newestFirst(subjectID, limit, time.Time{}), nil
}

func (s *MemoryStore) History(_ context.Context, subjectID domain.SubjectID, limit int, since time.Time) ([]models.PersistedLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newestFirst(subjectID, limit, since), nil
}

// newestFirst returns up to limit records at or after since, newest first.
// Caller holds the lock.
func (s *MemoryStore) newestFirst(subjectID domain.SubjectID, limit int, since time.Time) []models.PersistedLocation {
	recs := s.records[subjectID]
	out := make([]models.PersistedLocation, 0, limit)
	for i := len(recs) - 1; i >= 0 && len(out) < limit; i-- {
		if recs[i].CreatedAt.Before(since) {
			continue
		}
		out = append(out, recs[i])
	}
	return out
}
