package subjectcode

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "cohort/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite
	ctx context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
}

// existsSet is an ExistsFunc over a fixed set of taken codes.
func existsSet(taken ...string) ExistsFunc {
	set := make(map[string]bool, len(taken))
	for _, code := range taken {
		set[code] = true
	}
	return func(_ context.Context, code string) (bool, error) {
		return set[code], nil
	}
}

func (s *ServiceSuite) TestAllocate() {
	s.Run("returns the unadorned base when free", func() {
		svc := NewService(existsSet())
		code, err := svc.Allocate(s.ctx, "Kajal", "Sankla")
		s.Require().NoError(err)
		s.Equal("SANKA", code)
	})

	s.Run("skips taken codes sequentially", func() {
		svc := NewService(existsSet("SANKA", "SANK1", "SANK2"))
		code, err := svc.Allocate(s.ctx, "Kajal", "Sankla")
		s.Require().NoError(err)
		s.Equal("SANK3", code)
	})

	s.Run("crosses the digit-count boundary", func() {
		taken := []string{"SANKA"}
		for c := uint32(1); c <= 9; c++ {
			taken = append(taken, Format("SANKA", c))
		}
		svc := NewService(existsSet(taken...))
		code, err := svc.Allocate(s.ctx, "Kajal", "Sankla")
		s.Require().NoError(err)
		s.Equal("SAN10", code)
	})

	s.Run("never returns a code reported as taken", func() {
		taken := map[string]bool{}
		for c := uint32(0); c < 500; c++ {
			if c%3 != 0 {
				taken[Format("SANKA", c)] = true
			}
		}
		svc := NewService(func(_ context.Context, code string) (bool, error) {
			return taken[code], nil
		})
		code, err := svc.Allocate(s.ctx, "Kajal", "Sankla")
		s.Require().NoError(err)
		s.False(taken[code])
		s.Equal("SANKA", code)
	})
}

func (s *ServiceSuite) TestAllocateFrom() {
	s.Run("resumes past a lost candidate", func() {
		svc := NewService(existsSet("SANK4"))
		code, probes, err := svc.AllocateFrom(s.ctx, "Kajal", "Sankla", 4)
		s.Require().NoError(err)
		s.Equal("SANK5", code)
		s.Equal(2, probes)
	})

	s.Run("counts probes", func() {
		svc := NewService(existsSet("SANKA", "SANK1"))
		code, probes, err := svc.AllocateFrom(s.ctx, "Kajal", "Sankla", 0)
		s.Require().NoError(err)
		s.Equal("SANK2", code)
		s.Equal(3, probes)
	})
}

func (s *ServiceSuite) TestFailureModes() {
	s.Run("propagates existence check errors", func() {
		svc := NewService(func(context.Context, string) (bool, error) {
			return false, context.DeadlineExceeded
		})
		_, err := svc.Allocate(s.ctx, "Kajal", "Sankla")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("stops when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(s.ctx)
		cancel()
		svc := NewService(existsSet())
		_, err := svc.Allocate(ctx, "Kajal", "Sankla")
		s.Require().ErrorIs(err, context.Canceled)
	})

	s.Run("reports exhaustion when everything is taken", func() {
		svc := NewService(func(context.Context, string) (bool, error) {
			return true, nil
		})
		_, probes, err := svc.AllocateFrom(s.ctx, "Kajal", "Sankla", 0)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeCodeExhausted))
		s.Equal(maxProbes, probes)
	})
}
