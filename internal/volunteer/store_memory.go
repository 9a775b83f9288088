package volunteer

import (
	"context"
	"sync"

	"cohort/internal/lifecycle"
	id "cohort/pkg/domain"
	"cohort/pkg/platform/sentinel"
)

// InMemoryStore keeps identities in maps guarded by a mutex. The codes map
// doubles as the uniqueness constraint a database would enforce with a unique
// index, so the allocation race behaves the same under test as in production.
type InMemoryStore struct {
	mu         sync.RWMutex
	volunteers map[id.VolunteerID]*Identity
	codes      map[string]id.VolunteerID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		volunteers: make(map[id.VolunteerID]*Identity),
		codes:      make(map[string]id.VolunteerID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, identity *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.volunteers[identity.ID]; ok {
		return sentinel.ErrConflict
	}
	if identity.SubjectCode != "" {
		if _, taken := s.codes[identity.SubjectCode]; taken {
			return sentinel.ErrDuplicateCode
		}
		s.codes[identity.SubjectCode] = identity.ID
	}
	s.volunteers[identity.ID] = identity.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, volunteerID id.VolunteerID) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.volunteers[volunteerID]; ok {
		return v.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindBySubjectCode(_ context.Context, code string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if volunteerID, ok := s.codes[code]; ok {
		if v, found := s.volunteers[volunteerID]; found {
			return v.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindByContact(_ context.Context, contact string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.volunteers {
		if v.Contact == contact {
			return v.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListByState(_ context.Context, state lifecycle.State, limit int) ([]*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Identity, 0, limit)
	for _, v := range s.volunteers {
		if len(out) >= limit {
			break
		}
		if v.Stage == state.Stage && v.Status == state.Status {
			out = append(out, v.Clone())
		}
	}
	return out, nil
}

func (s *InMemoryStore) SubjectCodeExists(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, taken := s.codes[code]
	return taken, nil
}

func (s *InMemoryStore) Update(_ context.Context, identity *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.volunteers[identity.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Version != identity.Version {
		return sentinel.ErrConflict
	}
	if identity.SubjectCode != current.SubjectCode {
		if current.SubjectCode != "" {
			return sentinel.ErrCodeAssigned
		}
		if owner, taken := s.codes[identity.SubjectCode]; taken && owner != identity.ID {
			return sentinel.ErrDuplicateCode
		}
		s.codes[identity.SubjectCode] = identity.ID
	}
	identity.Version++
	s.volunteers[identity.ID] = identity.Clone()
	return nil
}
