//go:build integration

package live_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rumbo/internal/tracking/store/live"
	"rumbo/pkg/domain"
	"rumbo/pkg/sentinel"
	"rumbo/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *live.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = live.NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestPutGetRoundtrip() {
	ctx := context.Background()

	put, err := s.store.Put(ctx, 23, 1, 4.6505, -74.0635)
	s.Require().NoError(err)
	s.Equal(domain.SubjectID(23), put.SubjectID)

	got, err := s.store.Get(ctx, 23)
	s.Require().NoError(err)
	s.Equal(put, got)
}

func (s *RedisStoreSuite) TestPutSetsTTL() {
	ctx := context.Background()

	_, err := s.store.Put(ctx, 7, 1, 4.6, -74.1)
	s.Require().NoError(err)

	ttl, err := s.redis.Client.TTL(ctx, "live:subject:7").Result()
	s.Require().NoError(err)
	s.Greater(ttl, 9*time.Minute)
	s.LessOrEqual(ttl, 10*time.Minute)
}

func (s *RedisStoreSuite) TestGetMissingReturnsNotFound() {
	_, err := s.store.Get(context.Background(), 404)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestDeleteIsIdempotent() {
	ctx := context.Background()

	removed, err := s.store.Delete(ctx, 5)
	s.Require().NoError(err)
	s.False(removed)

	_, err = s.store.Put(ctx, 5, 1, 4.6, -74.1)
	s.Require().NoError(err)

	removed, err = s.store.Delete(ctx, 5)
	s.Require().NoError(err)
	s.True(removed)
}

func (s *RedisStoreSuite) TestListAllSkipsCorruptPayloads() {
	ctx := context.Background()

	_, err := s.store.Put(ctx, 1, 1, 4.65, -74.06)
	s.Require().NoError(err)
	_, err = s.store.Put(ctx, 2, 1, 4.66, -74.05)
	s.Require().NoError(err)

	// Simulate a partial write from an unrelated client.
	s.Require().NoError(s.redis.Client.Set(ctx, "live:subject:3", "{truncated", 10*time.Minute).Err())

	entries, failures, err := s.store.ListAll(ctx)
	s.Require().NoError(err)
	s.Len(entries, 2)
	s.Require().Len(failures, 1)
	s.Equal("live:subject:3", failures[0].Key)
}
