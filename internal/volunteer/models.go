// Package volunteer holds the master identity record and its stores.
package volunteer

import (
	"time"

	"cohort/internal/lifecycle"
	id "cohort/pkg/domain"
)

// EntityType is the audit trail entity type for identity records.
const EntityType = "volunteer_master"

// Identity is the authoritative record of one volunteer.
//
// Invariants:
//   - ID, CreatedAt and CreatedBy never change after creation; attempts are
//     rejected, not silently ignored.
//   - SubjectCode is empty until allocated, then globally unique and frozen.
//   - (Stage, Status) is always a pair defined by the transition table.
//   - Version increments on every accepted mutation and is the CAS key for
//     optimistic-concurrency writes.
type Identity struct {
	ID          id.VolunteerID
	SubjectCode string
	FirstName   string
	Surname     string
	Contact     string
	// Attributes carries the remaining mutable profile data (field area,
	// location, legacy id, ...) without widening the typed core.
	Attributes map[string]string
	Stage      lifecycle.Stage
	Status     lifecycle.Status
	CreatedAt  time.Time
	CreatedBy  string
	UpdatedAt  *time.Time
	UpdatedBy  string
	Version    int64
}

// State returns the current (stage, status) pair.
func (v *Identity) State() lifecycle.State {
	return lifecycle.State{Stage: v.Stage, Status: v.Status}
}

// HasSubjectCode reports whether the code was already allocated.
func (v *Identity) HasSubjectCode() bool { return v.SubjectCode != "" }

// Clone returns a deep copy so store internals never alias caller memory.
func (v *Identity) Clone() *Identity {
	out := *v
	if v.Attributes != nil {
		out.Attributes = make(map[string]string, len(v.Attributes))
		for k, val := range v.Attributes {
			out.Attributes[k] = val
		}
	}
	if v.UpdatedAt != nil {
		t := *v.UpdatedAt
		out.UpdatedAt = &t
	}
	return &out
}
