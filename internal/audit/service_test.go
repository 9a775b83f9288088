package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "cohort/pkg/domain-errors"
	"cohort/pkg/requestcontext"
)

type TrailSuite struct {
	suite.Suite
	store *InMemoryStore
	trail *Trail
	ctx   context.Context
}

func TestTrailSuite(t *testing.T) {
	suite.Run(t, new(TrailSuite))
}

func (s *TrailSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.trail = NewTrail(s.store)
	s.ctx = context.Background()
}

func (s *TrailSuite) TestRecord() {
	s.Run("appends one record with the context clock", func() {
		now := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
		ctx := requestcontext.WithTime(s.ctx, now)

		recordID, err := s.trail.Record(ctx, ActionCreate, "volunteer_master", "vol-1", "alice",
			map[string]FieldChange{"stage": {Old: nil, New: "field_visit"}}, nil)
		s.Require().NoError(err)
		s.False(recordID.IsNil())

		records, err := s.trail.History(ctx, "volunteer_master", "vol-1", 10)
		s.Require().NoError(err)
		s.Require().Len(records, 1)
		s.Equal(now, records[0].Timestamp)
		s.Equal(ActionCreate, records[0].Action)
		s.Equal("alice", records[0].ActorID)
	})

	s.Run("wraps a failed append as an audit write failure", func() {
		trail := NewTrail(failingStore{})
		_, err := trail.Record(s.ctx, ActionUpdate, "volunteer_master", "vol-1", "alice", nil, nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeAuditWrite))
	})
}

func (s *TrailSuite) TestQueryLimits() {
	for i := 0; i < 150; i++ {
		_, err := s.trail.Record(s.ctx, ActionUpdate, "volunteer_master", "vol-1", "alice", nil, nil)
		s.Require().NoError(err)
	}

	s.Run("defaults a zero limit", func() {
		records, err := s.trail.History(s.ctx, "volunteer_master", "vol-1", 0)
		s.Require().NoError(err)
		s.Len(records, defaultHistoryLimit)
	})

	s.Run("defaults an oversized limit", func() {
		records, err := s.trail.Recent(s.ctx, 100000)
		s.Require().NoError(err)
		s.Len(records, defaultHistoryLimit)
	})

	s.Run("honors an explicit limit", func() {
		records, err := s.trail.ActorActions(s.ctx, "alice", 5)
		s.Require().NoError(err)
		s.Len(records, 5)
	})
}

type failingStore struct{}

func (failingStore) Append(context.Context, Record) error { return errors.New("disk full") }
func (failingStore) ListByEntity(context.Context, string, string, int) ([]Record, error) {
	return nil, nil
}
func (failingStore) ListByActor(context.Context, string, int) ([]Record, error) { return nil, nil }
func (failingStore) ListRecent(context.Context, int) ([]Record, error)          { return nil, nil }
