//go:build integration

package volunteer_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"cohort/internal/lifecycle"
	"cohort/internal/volunteer"
	id "cohort/pkg/domain"
	"cohort/pkg/platform/sentinel"
	"cohort/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *volunteer.PostgresStore
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
	s.store = volunteer.NewPostgresStore(s.postgres.DB)
	s.ctx = context.Background()
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "volunteers", "audit_records"))
}

func newTestIdentity(first, surname string) *volunteer.Identity {
	return &volunteer.Identity{
		ID:         id.NewVolunteerID(),
		FirstName:  first,
		Surname:    surname,
		Contact:    "9876500000",
		Attributes: map[string]string{"location": "Pune"},
		Stage:      lifecycle.StageFieldVisit,
		Status:     lifecycle.StatusDraft,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
		CreatedBy:  "alice",
	}
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	identity := newTestIdentity("Kajal", "Sankla")
	s.Require().NoError(s.store.Create(s.ctx, identity))

	found, err := s.store.FindByID(s.ctx, identity.ID)
	s.Require().NoError(err)
	s.Equal(identity.ID, found.ID)
	s.Equal("Sankla", found.Surname)
	s.Equal("Pune", found.Attributes["location"])
	s.Empty(found.SubjectCode)
	s.Nil(found.UpdatedAt)
	s.Equal(int64(0), found.Version)
}

func (s *PostgresStoreSuite) TestSubjectCodeConstraint() {
	s.Run("null codes do not collide", func() {
		s.Require().NoError(s.store.Create(s.ctx, newTestIdentity("Kajal", "Sankla")))
		s.Require().NoError(s.store.Create(s.ctx, newTestIdentity("Sahil", "Gupta")))
	})

	s.Run("claimed code is unique", func() {
		first := newTestIdentity("Kavita", "Sandhu")
		second := newTestIdentity("Karan", "Sansare")
		s.Require().NoError(s.store.Create(s.ctx, first))
		s.Require().NoError(s.store.Create(s.ctx, second))

		first.SubjectCode = "SANKA"
		s.Require().NoError(s.store.Update(s.ctx, first))

		second.SubjectCode = "SANKA"
		s.Require().ErrorIs(s.store.Update(s.ctx, second), sentinel.ErrDuplicateCode)

		taken, err := s.store.SubjectCodeExists(s.ctx, "SANKA")
		s.Require().NoError(err)
		s.True(taken)

		found, err := s.store.FindBySubjectCode(s.ctx, "SANKA")
		s.Require().NoError(err)
		s.Equal(first.ID, found.ID)
	})
}

func (s *PostgresStoreSuite) TestVersionCAS() {
	identity := newTestIdentity("Kajal", "Sankla")
	s.Require().NoError(s.store.Create(s.ctx, identity))

	stale := *identity

	identity.Contact = "111"
	s.Require().NoError(s.store.Update(s.ctx, identity))
	s.Equal(int64(1), identity.Version)

	stale.Contact = "222"
	s.Require().ErrorIs(s.store.Update(s.ctx, &stale), sentinel.ErrConflict)

	ghost := newTestIdentity("No", "One")
	s.Require().ErrorIs(s.store.Update(s.ctx, ghost), sentinel.ErrNotFound)
}

// TestConcurrentCodeClaim races many writers onto one code; the unique index
// must let exactly one through.
func (s *PostgresStoreSuite) TestConcurrentCodeClaim() {
	const goroutines = 20
	ids := make([]*volunteer.Identity, goroutines)
	for i := range ids {
		ids[i] = newTestIdentity("Kajal", "Sankla")
		s.Require().NoError(s.store.Create(s.ctx, ids[i]))
	}

	var wg sync.WaitGroup
	var successCount, duplicateCount atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			identity := ids[i]
			identity.SubjectCode = "SANKA"
			err := s.store.Update(s.ctx, identity)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, sentinel.ErrDuplicateCode):
				duplicateCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one claim should succeed")
	s.Equal(int32(goroutines-1), duplicateCount.Load())
}

func (s *PostgresStoreSuite) TestListByState() {
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.store.Create(s.ctx, newTestIdentity("Kajal", "Sankla")))
	}
	submitted := newTestIdentity("Sahil", "Gupta")
	submitted.Status = lifecycle.StatusSubmitted
	s.Require().NoError(s.store.Create(s.ctx, submitted))

	drafts, err := s.store.ListByState(s.ctx, lifecycle.Initial, 10)
	s.Require().NoError(err)
	s.Len(drafts, 3)

	listed, err := s.store.ListByState(s.ctx, lifecycle.State{Stage: lifecycle.StageFieldVisit, Status: lifecycle.StatusSubmitted}, 10)
	s.Require().NoError(err)
	s.Len(listed, 1)
	s.Equal(submitted.ID, listed[0].ID)
}
