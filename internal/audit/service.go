package audit

import (
	"context"

	"cohort/internal/platform/metrics"
	id "cohort/pkg/domain"
	dErrors "cohort/pkg/domain-errors"
	"cohort/pkg/requestcontext"
)

// Trail records accepted mutations and answers history queries. It is
// append-only: a failed append fails loudly so the enclosing operation rolls
// back rather than committing a mutation without its record.
type Trail struct {
	store   Store
	stream  *Stream
	metrics *metrics.Metrics
}

// Option configures the Trail.
type Option func(*Trail)

// WithStream mirrors accepted records to the streaming fan-out, best effort.
func WithStream(stream *Stream) Option {
	return func(t *Trail) { t.stream = stream }
}

// WithMetrics counts appended records.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Trail) { t.metrics = m }
}

func NewTrail(store Store, opts ...Option) *Trail {
	t := &Trail{store: store}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Record appends one immutable record and returns its identity. The
// timestamp comes from the request context clock, never from inside the
// engine, so history stays deterministic under test.
func (t *Trail) Record(ctx context.Context, action Action, entityType, entityID, actorID string, changes map[string]FieldChange, metadata map[string]string) (id.RecordID, error) {
	record := Record{
		ID:         id.NewRecordID(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		ActorID:    actorID,
		Timestamp:  requestcontext.Now(ctx),
		Changes:    changes,
		Metadata:   metadata,
	}
	if err := t.store.Append(ctx, record); err != nil {
		return id.RecordID{}, dErrors.Wrap(err, dErrors.CodeAuditWrite, "audit append failed")
	}
	if t.metrics != nil {
		t.metrics.AuditRecordsAppended.Inc()
	}
	if t.stream != nil {
		t.stream.Enqueue(record)
	}
	return record.ID, nil
}

// History returns the trail for one entity, newest first. This is the only
// sanctioned way to reconstruct past state.
func (t *Trail) History(ctx context.Context, entityType, entityID string, limit int) ([]Record, error) {
	return t.store.ListByEntity(ctx, entityType, entityID, clampLimit(limit))
}

// ActorActions returns records of actions performed by one actor.
func (t *Trail) ActorActions(ctx context.Context, actorID string, limit int) ([]Record, error) {
	return t.store.ListByActor(ctx, actorID, clampLimit(limit))
}

// Recent returns the latest records across all entities.
func (t *Trail) Recent(ctx context.Context, limit int) ([]Record, error) {
	return t.store.ListRecent(ctx, clampLimit(limit))
}

const defaultHistoryLimit = 100

func clampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return defaultHistoryLimit
	}
	return limit
}
