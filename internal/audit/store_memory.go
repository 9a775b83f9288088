package audit

import (
	"context"
	"sync"
)

// InMemoryStore keeps the trail in a slice guarded by a mutex. It favors
// clarity over performance and backs the unit test suites.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, cloneRecord(record))
	return nil
}

func (s *InMemoryStore) ListByEntity(_ context.Context, entityType, entityID string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(limit, func(r Record) bool {
		return r.EntityType == entityType && r.EntityID == entityID
	}), nil
}

func (s *InMemoryStore) ListByActor(_ context.Context, actorID string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(limit, func(r Record) bool {
		return r.ActorID == actorID
	}), nil
}

func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(limit, func(Record) bool { return true }), nil
}

// collect walks the trail backwards so results come out newest first.
func (s *InMemoryStore) collect(limit int, match func(Record) bool) []Record {
	out := make([]Record, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		if match(s.records[i]) {
			out = append(out, cloneRecord(s.records[i]))
		}
	}
	return out
}

// cloneRecord copies the maps so callers can never mutate stored history.
func cloneRecord(r Record) Record {
	if r.Changes != nil {
		changes := make(map[string]FieldChange, len(r.Changes))
		for k, v := range r.Changes {
			changes[k] = v
		}
		r.Changes = changes
	}
	if r.Metadata != nil {
		metadata := make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			metadata[k] = v
		}
		r.Metadata = metadata
	}
	return r
}
