package live

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"rumbo/internal/tracking/models"
	"rumbo/pkg/domain"
	"rumbo/pkg/sentinel"
)

// MemoryStore is an in-memory live location store. It mirrors the Redis
// behavior, including TTL expiry and raw-payload decoding, so unit tests
// exercise the same code paths the archival sweep sees in production.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[domain.SubjectID]memoryEntry
	clock   func() time.Time
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
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

// NewMemory constructs an in-memory live location store.
func NewMemory(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[domain.SubjectID]memoryEntry),
		clock:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *MemoryStore) Put(_ context.Context, subjectID domain.SubjectID, packageID domain.PackageID, lat, lon float64) (models.LiveLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	loc := models.NewLiveLocation(subjectID, packageID, lat, lon, now)
	payload, err := json.Marshal(loc)
	if err != nil {
		return models.LiveLocation{}, fmt.Errorf("encode live location: %w", err)
	}
	s.entries[subjectID] = memoryEntry{payload: payload, expiresAt: now.Add(TTL)}
	return loc, nil
}

func (s *MemoryStore) Get(_ context.Context, subjectID domain.SubjectID) (models.LiveLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[subjectID]
	if !ok || !s.clock().Before(entry.expiresAt) {
		return models.LiveLocation{}, fmt.Errorf("live location for subject %s: %w", subjectID, sentinel.ErrNotFound)
	}
	var loc models.LiveLocation
	if err := json.Unmarshal(entry.payload, &loc); err != nil {
		return models.LiveLocation{}, fmt.Errorf("%w: live location for subject %s: %v", sentinel.ErrDecode, subjectID, err)
	}
	return loc, nil
}

func (s *MemoryStore) ListAll(_ context.Context) (map[domain.SubjectID]models.LiveLocation, []DecodeFailure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock()
	entries := make(map[domain.SubjectID]models.LiveLocation, len(s.entries))
	var failures []DecodeFailure
	for subjectID, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			continue
		}
		var loc models.LiveLocation
		if err := json.Unmarshal(entry.payload, &loc); err != nil {
			failures = append(failures, DecodeFailure{Key: liveKey(subjectID), Err: err})
			continue
		}
		entries[loc.SubjectID] = loc
	}
	return entries, failures, nil
}

func (s *MemoryStore) Delete(_ context.Context, subjectID domain.SubjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[subjectID]; !ok {
		return false, nil
	}
	delete(s.entries, subjectID)
	return true, nil
}

// PutRaw stores an arbitrary payload under a subject's key. Tests use it to
// simulate corrupt or partial cache entries.
func (s *MemoryStore) PutRaw(subjectID domain.SubjectID, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[subjectID] = memoryEntry{payload: payload, expiresAt: s.clock().Add(TTL)}
}
