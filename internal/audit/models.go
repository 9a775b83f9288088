// Package audit is the append-only trail of accepted mutations. Records are
// created once and never updated or deleted; they are the sole legal evidence
// of history. No component may reconstruct past state except through this
// trail.
package audit

import (
	"time"

	id "cohort/pkg/domain"
)

// Action names the kind of mutation a record describes.
type Action string

const (
	ActionCreate          Action = "create"
	ActionUpdate          Action = "update"
	ActionDelete          Action = "delete"
	ActionStateTransition Action = "state_transition"
)

// FieldChange captures one field's old and new value.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Record is one immutable audit trail entry.
type Record struct {
	ID         id.RecordID
	EntityType string
	EntityID   string
	Action     Action
	ActorID    string
	Timestamp  time.Time
	Changes    map[string]FieldChange
	Metadata   map[string]string
}
