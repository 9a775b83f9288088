//go:build integration

package audit_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"cohort/internal/audit"
	id "cohort/pkg/domain"
	"cohort/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *audit.PostgresStore
	ctx      context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T(), filepath.Join("..", "..", "migrations", "001_init.sql"))
	s.store = audit.NewPostgresStore(s.postgres.DB)
	s.ctx = context.Background()
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "audit_records"))
}

func (s *PostgresStoreSuite) newRecord(entityID, actorID string, at time.Time) audit.Record {
	return audit.Record{
		ID:         id.NewRecordID(),
		EntityType: "volunteer_master",
		EntityID:   entityID,
		Action:     audit.ActionStateTransition,
		ActorID:    actorID,
		Timestamp:  at,
		Changes: map[string]audit.FieldChange{
			"status": {Old: "draft", New: "submitted"},
		},
		Metadata: map[string]string{"reason": "visit complete"},
	}
}

func (s *PostgresStoreSuite) TestAppendAndQuery() {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.store.Append(s.ctx, s.newRecord("vol-1", "alice", base.Add(time.Duration(i)*time.Minute))))
	}
	s.Require().NoError(s.store.Append(s.ctx, s.newRecord("vol-2", "bob", base)))

	s.Run("by entity newest first with JSON intact", func() {
		records, err := s.store.ListByEntity(s.ctx, "volunteer_master", "vol-1", 10)
		s.Require().NoError(err)
		s.Require().Len(records, 3)
		s.True(records[0].Timestamp.After(records[1].Timestamp))
		s.Equal("draft", records[0].Changes["status"].Old)
		s.Equal("visit complete", records[0].Metadata["reason"])
	})

	s.Run("by actor", func() {
		records, err := s.store.ListByActor(s.ctx, "bob", 10)
		s.Require().NoError(err)
		s.Require().Len(records, 1)
		s.Equal("vol-2", records[0].EntityID)
	})

	s.Run("recent respects the limit", func() {
		records, err := s.store.ListRecent(s.ctx, 2)
		s.Require().NoError(err)
		s.Len(records, 2)
	})
}

// TestEqualTimestampOrdering appends records sharing one timestamp, the way
// every record of a single request shares the request clock, and verifies
// append order still decides newest-first.
func (s *PostgresStoreSuite) TestEqualTimestampOrdering() {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := s.newRecord("vol-1", "alice", at)
	second := s.newRecord("vol-1", "alice", at)
	third := s.newRecord("vol-1", "alice", at)
	s.Require().NoError(s.store.Append(s.ctx, first))
	s.Require().NoError(s.store.Append(s.ctx, second))
	s.Require().NoError(s.store.Append(s.ctx, third))

	records, err := s.store.ListByEntity(s.ctx, "volunteer_master", "vol-1", 10)
	s.Require().NoError(err)
	s.Require().Len(records, 3)
	s.Equal(third.ID, records[0].ID)
	s.Equal(second.ID, records[1].ID)
	s.Equal(first.ID, records[2].ID)
}
