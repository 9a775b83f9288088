package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	id "cohort/pkg/domain"
	txcontext "cohort/pkg/platform/tx"
)

// PostgresStore persists the trail in the audit_records table. Appends pick
// up the transaction the workflow placed in context, so a record commits
// atomically with the business mutation it describes.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, record Record) error {
	changes, err := json.Marshal(record.Changes)
	if err != nil {
		return fmt.Errorf("marshal audit changes: %w", err)
	}
	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}

	query := `
		INSERT INTO audit_records (id, entity_type, entity_id, action, actor_id, timestamp, changes, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(record.ID),
		record.EntityType,
		record.EntityID,
		string(record.Action),
		record.ActorID,
		record.Timestamp,
		changes,
		metadata,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]Record, error) {
	query := `
		SELECT id, entity_type, entity_id, action, actor_id, timestamp, changes, metadata
		FROM audit_records
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY timestamp DESC, seq DESC
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, query, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *PostgresStore) ListByActor(ctx context.Context, actorID string, limit int) ([]Record, error) {
	query := `
		SELECT id, entity_type, entity_id, action, actor_id, timestamp, changes, metadata
		FROM audit_records
		WHERE actor_id = $1
		ORDER BY timestamp DESC, seq DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, actorID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	query := `
		SELECT id, entity_type, entity_id, action, actor_id, timestamp, changes, metadata
		FROM audit_records
		ORDER BY timestamp DESC, seq DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var (
			record   Record
			recordID uuid.UUID
			action   string
			changes  []byte
			metadata []byte
		)
		err := rows.Scan(
			&recordID,
			&record.EntityType,
			&record.EntityID,
			&action,
			&record.ActorID,
			&record.Timestamp,
			&changes,
			&metadata,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		record.ID = id.RecordID(recordID)
		record.Action = Action(action)
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &record.Changes); err != nil {
				return nil, fmt.Errorf("unmarshal audit changes: %w", err)
			}
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &record.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal audit metadata: %w", err)
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return records, nil
}
