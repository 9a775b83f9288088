package subjectcode

import (
	"context"

	dErrors "cohort/pkg/domain-errors"
)

// ExistsFunc is the injected persistence lookup: it reports whether a
// candidate code is already taken. The service performs no I/O of its own.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// maxProbes bounds the sequential search. The scheme is unbounded once fully
// numeric, so hitting this ceiling means the existence collaborator is
// misbehaving or the deployment has outgrown the code space by orders of
// magnitude; either way it is a configuration fault, not a business outcome.
const maxProbes = 1 << 20

// Service finds the first unused code for a name pair by sequential probing.
//
// The result is a candidate, not a reservation: two concurrent calls for the
// same base may observe the same free candidate. At-most-one-winner semantics
// come from the persistence layer's uniqueness constraint at commit time, and
// the caller retries from the next counter on a lost race.
type Service struct {
	exists ExistsFunc
}

func NewService(exists ExistsFunc) *Service {
	return &Service{exists: exists}
}

// Allocate probes Format(base, 0), Format(base, 1), ... and returns the first
// candidate the existence collaborator reports as free.
func (s *Service) Allocate(ctx context.Context, firstName, surname string) (string, error) {
	code, _, err := s.AllocateFrom(ctx, firstName, surname, 0)
	return code, err
}

// AllocateFrom starts probing at the given counter. The workflow uses it to
// resume past a candidate that lost a commit race. Returns the free candidate
// and the number of probes spent.
func (s *Service) AllocateFrom(ctx context.Context, firstName, surname string, start uint32) (string, int, error) {
	base := BaseCode(firstName, surname)
	probes := 0
	for counter := start; counter < start+maxProbes; counter++ {
		if err := ctx.Err(); err != nil {
			return "", probes, err
		}
		candidate := Format(base, counter)
		taken, err := s.exists(ctx, candidate)
		probes++
		if err != nil {
			return "", probes, dErrors.Wrap(err, dErrors.CodeInternal, "subject code existence check failed")
		}
		if !taken {
			return candidate, probes, nil
		}
	}
	return "", probes, dErrors.Newf(dErrors.CodeCodeExhausted, "no free subject code for base %s after %d probes", base, maxProbes)
}

// CounterOf reports the counter a code was formatted with relative to its
// base, so a retry can resume past it. Returns 0 for the unadorned base.
func CounterOf(code string) uint32 {
	i := 0
	for i < len(code) && code[i] >= 'A' && code[i] <= 'Z' {
		i++
	}
	if i == len(code) {
		return 0
	}
	var n uint32
	for ; i < len(code); i++ {
		n = n*10 + uint32(code[i]-'0')
	}
	return n
}
