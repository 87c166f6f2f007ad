package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"rumbo/internal/tracking/models"
	"rumbo/pkg/domain"
	"rumbo/pkg/sentinel"
)

var (
	putDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rumbo_live_put_duration_ms",
		Help:    "Latency of live location writes in milliseconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
	})
)

const (
	// Redis key prefix for live locations, one key per subject.
	liveKeyPrefix = "live:subject:"

	// TTL is the fixed lifetime of a live location. Every Put resets it;
	// there is no refresh without a full value overwrite.
	TTL = 600 * time.Second

	scanBatch = 100
)

// DecodeFailure records a cache entry that exists but cannot be parsed.
// Listing skips these instead of aborting the snapshot.
type DecodeFailure struct {
	Key string
	Err error
}

// RedisStore holds the most recent position per subject with automatic
// expiry. This is the production implementation backing the archival sweep.
type RedisStore struct {
	client *redis.Client
	clock  func() time.Time
}

// RedisStoreOption configures a RedisStore instance.
type RedisStoreOption func(*RedisStore)

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) RedisStoreOption {
	return func(s *RedisStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewRedis constructs a Redis-backed live location store.
func NewRedis(client *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		client: client,
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func liveKey(subjectID domain.SubjectID) string {
	return liveKeyPrefix + subjectID.String()
}

// Put stores the current position for a subject, unconditionally replacing
// any prior value and resetting the TTL.
func (s *RedisStore) Put(ctx context.Context, subjectID domain.SubjectID, packageID domain.PackageID, lat, lon float64) (models.LiveLocation, error) {
	start := time.Now()
	defer func() {
		putDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	loc := models.NewLiveLocation(subjectID, packageID, lat, lon, s.clock())
	payload, err := json.Marshal(loc)
	if err != nil {
		return models.LiveLocation{}, fmt.Errorf("encode live location: %w", err)
	}
	if err := s.client.Set(ctx, liveKey(subjectID), payload, TTL).Err(); err != nil {
		return models.LiveLocation{}, fmt.Errorf("%w: set live location for subject %s: %v", sentinel.ErrUnavailable, subjectID, err)
	}
	return loc, nil
}

// Get reads the current position for a subject. Returns sentinel.ErrNotFound
// once the TTL has elapsed; that is the expected case, not a failure.
func (s *RedisStore) Get(ctx context.Context, subjectID domain.SubjectID) (models.LiveLocation, error) {
	payload, err := s.client.Get(ctx, liveKey(subjectID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.LiveLocation{}, fmt.Errorf("live location for subject %s: %w", subjectID, sentinel.ErrNotFound)
	}
	if err != nil {
		return models.LiveLocation{}, fmt.Errorf("%w: get live location for subject %s: %v", sentinel.ErrUnavailable, subjectID, err)
	}

	var loc models.LiveLocation
	if err := json.Unmarshal(payload, &loc); err != nil {
		return models.LiveLocation{}, fmt.Errorf("%w: live location for subject %s: %v", sentinel.ErrDecode, subjectID, err)
	}
	return loc, nil
}

// ListAll enumerates every currently live entry. Entries that fail to decode
// are skipped and reported so a corrupt payload never aborts the snapshot.
func (s *RedisStore) ListAll(ctx context.Context) (map[domain.SubjectID]models.LiveLocation, []DecodeFailure, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, liveKeyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: scan live locations: %v", sentinel.ErrUnavailable, err)
	}

	entries := make(map[domain.SubjectID]models.LiveLocation, len(keys))
	if len(keys) == 0 {
		return entries, nil, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read live locations: %v", sentinel.ErrUnavailable, err)
	}

	var failures []DecodeFailure
	for i, value := range values {
		if value == nil {
			// Expired between scan and read.
			continue
		}
		raw, ok := value.(string)
		if !ok {
			failures = append(failures, DecodeFailure{Key: keys[i], Err: fmt.Errorf("unexpected value type %T", value)})
			continue
		}
		var loc models.LiveLocation
		if err := json.Unmarshal([]byte(raw), &loc); err != nil {
			failures = append(failures, DecodeFailure{Key: keys[i], Err: err})
			continue
		}
		entries[loc.SubjectID] = loc
	}
	return entries, failures, nil
}

// Delete removes the entry if present. Idempotent; reports whether anything
// was removed.
func (s *RedisStore) Delete(ctx context.Context, subjectID domain.SubjectID) (bool, error) {
	removed, err := s.client.Del(ctx, liveKey(subjectID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: delete live location for subject %s: %v", sentinel.ErrUnavailable, subjectID, err)
	}
	return removed > 0, nil
}
