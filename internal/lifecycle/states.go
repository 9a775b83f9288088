// Package lifecycle defines the volunteer enrollment state machine: the
// closed Stage and Status enums, the directed transition table between
// (stage, status) pairs, and the immutable-field set. Everything here is pure
// data and predicates; the workflow consults this package before every
// mutation.
package lifecycle

import (
	dErrors "cohort/pkg/domain-errors"
)

// Stage is the coarse phase of the enrollment pipeline.
type Stage string

const (
	StageFieldVisit         Stage = "field_visit"
	StagePreScreening       Stage = "pre_screening"
	StageRegistration       Stage = "registration"
	StageClinicalAssignment Stage = "clinical_assignment"
	StageCompleted          Stage = "completed"
)

// Status is the fine-grained state within a stage.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	// StatusWithdrawn exists for legacy-imported records; the transition table
	// has no edges involving it.
	StatusWithdrawn Status = "withdrawn"
)

// State is one (stage, status) pair.
type State struct {
	Stage  Stage
	Status Status
}

func (s State) String() string {
	return string(s.Stage) + "/" + string(s.Status)
}

// Initial is the default state a new identity starts in.
var Initial = State{Stage: StageFieldVisit, Status: StatusDraft}

var stages = map[Stage]bool{
	StageFieldVisit:         true,
	StagePreScreening:       true,
	StageRegistration:       true,
	StageClinicalAssignment: true,
	StageCompleted:          true,
}

var statuses = map[Status]bool{
	StatusDraft:     true,
	StatusSubmitted: true,
	StatusApproved:  true,
	StatusRejected:  true,
	StatusWithdrawn: true,
}

// ParseStage validates a stage value from an untrusted source.
func ParseStage(s string) (Stage, error) {
	if stages[Stage(s)] {
		return Stage(s), nil
	}
	return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown stage %q", s)
}

// ParseStatus validates a status value from an untrusted source.
func ParseStatus(s string) (Status, error) {
	if statuses[Status(s)] {
		return Status(s), nil
	}
	return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown status %q", s)
}
