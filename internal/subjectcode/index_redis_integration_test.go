//go:build integration

package subjectcode_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"cohort/internal/subjectcode"
	"cohort/pkg/testutil/containers"
)

type RedisIndexSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	ctx   context.Context
}

func TestRedisIndexSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisIndexSuite))
}

func (s *RedisIndexSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.ctx = context.Background()
}

func (s *RedisIndexSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func (s *RedisIndexSuite) newIndex(fallback subjectcode.ExistsFunc) *subjectcode.RedisIndex {
	return subjectcode.NewRedisIndex(s.redis.Client, fallback, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (s *RedisIndexSuite) TestFastPositive() {
	fallbackCalls := 0
	index := s.newIndex(func(context.Context, string) (bool, error) {
		fallbackCalls++
		return false, nil
	})

	index.Observe(s.ctx, "SANKA")

	taken, err := index.Exists(s.ctx, "SANKA")
	s.Require().NoError(err)
	s.True(taken)
	s.Equal(0, fallbackCalls, "an indexed code must not hit the store")
}

func (s *RedisIndexSuite) TestMissFallsThrough() {
	index := s.newIndex(func(_ context.Context, code string) (bool, error) {
		return code == "GUPSA", nil
	})

	// Not indexed but present in the store.
	taken, err := index.Exists(s.ctx, "GUPSA")
	s.Require().NoError(err)
	s.True(taken)

	// Not indexed, not in the store.
	taken, err = index.Exists(s.ctx, "SANK1")
	s.Require().NoError(err)
	s.False(taken)
}

// TestAllocationThroughIndex wires the index under the probing service and
// verifies observed codes steer allocation forward.
func (s *RedisIndexSuite) TestAllocationThroughIndex() {
	index := s.newIndex(func(context.Context, string) (bool, error) {
		return false, nil
	})
	svc := subjectcode.NewService(index.Exists)

	index.Observe(s.ctx, "SANKA")
	index.Observe(s.ctx, "SANK1")

	code, err := svc.Allocate(s.ctx, "Kajal", "Sankla")
	s.Require().NoError(err)
	s.Equal("SANK2", code)
}
