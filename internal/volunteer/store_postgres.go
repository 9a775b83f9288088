package volunteer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"cohort/internal/lifecycle"
	id "cohort/pkg/domain"
	"cohort/pkg/platform/sentinel"
	txcontext "cohort/pkg/platform/tx"
)

// PostgresStore persists identities in the volunteers table. A unique index
// on subject_code turns allocation candidates into reservations; optimistic
// concurrency rides on the version column.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// uniqueViolation is the Postgres error code for a unique constraint breach.
const uniqueViolation = "23505"

type dbHandle interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) handle(ctx context.Context) dbHandle {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const identityColumns = `
	volunteer_id, subject_code, first_name, surname, contact, attributes,
	stage, status, created_at, created_by, updated_at, updated_by, version`

func (s *PostgresStore) Create(ctx context.Context, identity *Identity) error {
	attrs, err := json.Marshal(identity.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}
	query := `
		INSERT INTO volunteers (` + identityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = s.handle(ctx).ExecContext(ctx, query,
		uuid.UUID(identity.ID),
		nullableCode(identity.SubjectCode),
		identity.FirstName,
		identity.Surname,
		identity.Contact,
		attrs,
		string(identity.Stage),
		string(identity.Status),
		identity.CreatedAt,
		identity.CreatedBy,
		identity.UpdatedAt,
		identity.UpdatedBy,
		identity.Version,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			if pqErr.Constraint == "volunteers_subject_code_key" {
				return sentinel.ErrDuplicateCode
			}
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert volunteer: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, volunteerID id.VolunteerID) (*Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM volunteers WHERE volunteer_id = $1`
	return s.scanOne(s.handle(ctx).QueryRowContext(ctx, query, uuid.UUID(volunteerID)))
}

func (s *PostgresStore) FindBySubjectCode(ctx context.Context, code string) (*Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM volunteers WHERE subject_code = $1`
	return s.scanOne(s.handle(ctx).QueryRowContext(ctx, query, code))
}

func (s *PostgresStore) FindByContact(ctx context.Context, contact string) (*Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM volunteers WHERE contact = $1 LIMIT 1`
	return s.scanOne(s.handle(ctx).QueryRowContext(ctx, query, contact))
}

func (s *PostgresStore) ListByState(ctx context.Context, state lifecycle.State, limit int) ([]*Identity, error) {
	query := `
		SELECT ` + identityColumns + `
		FROM volunteers
		WHERE stage = $1 AND status = $2
		ORDER BY created_at
		LIMIT $3
	`
	rows, err := s.handle(ctx).QueryContext(ctx, query, string(state.Stage), string(state.Status), limit)
	if err != nil {
		return nil, fmt.Errorf("query volunteers: %w", err)
	}
	defer rows.Close()

	var out []*Identity
	for rows.Next() {
		identity, err := scanIdentity(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate volunteers: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SubjectCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM volunteers WHERE subject_code = $1)`
	if err := s.handle(ctx).QueryRowContext(ctx, query, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("check subject code: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Update(ctx context.Context, identity *Identity) error {
	attrs, err := json.Marshal(identity.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}
	query := `
		UPDATE volunteers
		SET subject_code = $1, first_name = $2, surname = $3, contact = $4,
		    attributes = $5, stage = $6, status = $7, updated_at = $8,
		    updated_by = $9, version = version + 1
		WHERE volunteer_id = $10 AND version = $11
	`
	res, err := s.handle(ctx).ExecContext(ctx, query,
		nullableCode(identity.SubjectCode),
		identity.FirstName,
		identity.Surname,
		identity.Contact,
		attrs,
		string(identity.Stage),
		string(identity.Status),
		identity.UpdatedAt,
		identity.UpdatedBy,
		uuid.UUID(identity.ID),
		identity.Version,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrDuplicateCode
		}
		return fmt.Errorf("update volunteer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update volunteer: %w", err)
	}
	if affected == 0 {
		// Distinguish a lost race from a missing record.
		if _, err := s.FindByID(ctx, identity.ID); err != nil {
			return err
		}
		return sentinel.ErrConflict
	}
	identity.Version++
	return nil
}

func (s *PostgresStore) scanOne(row *sql.Row) (*Identity, error) {
	identity, err := scanIdentity(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return identity, err
}

func scanIdentity(scan func(dest ...any) error) (*Identity, error) {
	var (
		identity    Identity
		volunteerID uuid.UUID
		subjectCode sql.NullString
		attrs       []byte
		stage       string
		status      string
		updatedAt   sql.NullTime
	)
	err := scan(
		&volunteerID,
		&subjectCode,
		&identity.FirstName,
		&identity.Surname,
		&identity.Contact,
		&attrs,
		&stage,
		&status,
		&identity.CreatedAt,
		&identity.CreatedBy,
		&updatedAt,
		&identity.UpdatedBy,
		&identity.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan volunteer: %w", err)
	}
	identity.ID = id.VolunteerID(volunteerID)
	if subjectCode.Valid {
		identity.SubjectCode = subjectCode.String
	}
	identity.Stage = lifecycle.Stage(stage)
	identity.Status = lifecycle.Status(status)
	if updatedAt.Valid {
		t := updatedAt.Time
		identity.UpdatedAt = &t
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &identity.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshal attributes: %w", err)
		}
	}
	return &identity, nil
}

// nullableCode stores the unallocated code as NULL so the unique index
// ignores identities that have no code yet.
func nullableCode(code string) any {
	if code == "" {
		return nil
	}
	return code
}
