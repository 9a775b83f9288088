package audit

import "context"

// Store persists audit records. Interface-driven so the in-memory and
// Postgres implementations swap without rewiring business code. Append is a
// single atomic write; there is deliberately no update or delete.
type Store interface {
	Append(ctx context.Context, record Record) error
	// ListByEntity returns records for one entity, newest first.
	ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]Record, error)
	// ListByActor returns records of actions performed by one actor, newest first.
	ListByActor(ctx context.Context, actorID string, limit int) ([]Record, error)
	// ListRecent returns the most recent records across all entities.
	ListRecent(ctx context.Context, limit int) ([]Record, error)
}
