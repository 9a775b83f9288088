// Package domain defines the typed identifiers shared across the engine.
//
// IDs are distinct named types over uuid.UUID so a VolunteerID can never be
// passed where a RecordID is expected. Parsing enforces the trust-boundary
// invariant that IDs are valid, non-nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "cohort/pkg/domain-errors"
)

// VolunteerID is the opaque internal primary key of a volunteer identity.
// Assigned once at creation and immutable forever.
type VolunteerID uuid.UUID

// RecordID identifies a single audit trail record.
type RecordID uuid.UUID

// NewVolunteerID allocates a fresh volunteer ID.
func NewVolunteerID() VolunteerID {
	return VolunteerID(uuid.New())
}

// NewRecordID allocates a fresh audit record ID.
func NewRecordID() RecordID {
	return RecordID(uuid.New())
}

func (id VolunteerID) String() string { return uuid.UUID(id).String() }
func (id VolunteerID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id RecordID) String() string { return uuid.UUID(id).String() }
func (id RecordID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// ParseVolunteerID parses and validates a volunteer ID from its string form.
// Rejects empty input, malformed UUIDs and the nil UUID.
func ParseVolunteerID(s string) (VolunteerID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return VolunteerID{}, err
	}
	return VolunteerID(u), nil
}

// ParseRecordID parses and validates an audit record ID from its string form.
func ParseRecordID(s string) (RecordID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return RecordID{}, err
	}
	return RecordID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed id")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "nil id is not allowed")
	}
	return u, nil
}
