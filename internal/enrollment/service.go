// Package enrollment orchestrates the volunteer identity lifecycle: draft
// conversion into a master record, lazy subject code allocation, guarded
// state transitions and field updates. Every mutation goes through the
// lifecycle guards and every accepted mutation lands in the audit trail
// inside the same transactional boundary.
package enrollment

import (
	"context"
	"errors"
	"log/slog"

	"cohort/internal/audit"
	"cohort/internal/lifecycle"
	"cohort/internal/platform/metrics"
	"cohort/internal/subjectcode"
	"cohort/internal/volunteer"
	id "cohort/pkg/domain"
	dErrors "cohort/pkg/domain-errors"
	"cohort/pkg/platform/sentinel"
	"cohort/pkg/platform/tx"
	"cohort/pkg/requestcontext"
)

// maxClaimRetries bounds how often EnsureSubjectCode retries after losing a
// uniqueness race on commit. Contention on one base code is human-name
// shaped; a handful of retries clears any realistic burst.
const maxClaimRetries = 8

// Workflow owns the decision to mutate an identity. It is safe for
// concurrent use; all state lives in the injected collaborators.
type Workflow struct {
	volunteers volunteer.Store
	trail      *audit.Trail
	engine     lifecycle.Engine
	codes      *subjectcode.Service
	runner     tx.Runner
	logger     *slog.Logger
	metrics    *metrics.Metrics

	// observeCode feeds a successfully claimed code to the optional fast
	// existence index.
	observeCode func(ctx context.Context, code string)

	allocateOnCreate bool
}

// Option configures the Workflow.
type Option func(*Workflow)

// WithCodeIndex swaps the allocation existence check for an accelerated
// index and registers claimed codes with it.
func WithCodeIndex(index *subjectcode.RedisIndex) Option {
	return func(w *Workflow) {
		w.codes = subjectcode.NewService(index.Exists)
		w.observeCode = func(ctx context.Context, code string) { index.Observe(ctx, code) }
	}
}

// WithAllocateOnCreate makes CreateIdentity assign a subject code
// immediately instead of leaving it to the first EnsureSubjectCode call.
func WithAllocateOnCreate() Option {
	return func(w *Workflow) { w.allocateOnCreate = true }
}

func NewWorkflow(volunteers volunteer.Store, trail *audit.Trail, runner tx.Runner, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Workflow {
	w := &Workflow{
		volunteers:  volunteers,
		trail:       trail,
		engine:      lifecycle.NewEngine(),
		runner:      runner,
		logger:      logger,
		metrics:     m,
		observeCode: func(context.Context, string) {},
	}
	w.codes = subjectcode.NewService(volunteers.SubjectCodeExists)
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// CreateParams carries the draft data converted into a master record.
type CreateParams struct {
	FirstName  string
	Surname    string
	Contact    string
	Attributes map[string]string
	// Stage/Status override the default initial state. Must be a legal
	// starting state of the transition table.
	Stage    lifecycle.Stage
	Status   lifecycle.Status
	Metadata map[string]string
}

// CreateIdentity converts a draft into a master identity record: allocates
// the internal id, validates the initial state, persists the record and
// writes the create audit record atomically. The subject code stays absent
// unless the workflow was configured to allocate on create.
func (w *Workflow) CreateIdentity(ctx context.Context, params CreateParams) (*volunteer.Identity, error) {
	actor := requestcontext.ActorID(ctx)
	if actor == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "actor is required")
	}

	initial := lifecycle.Initial
	if params.Stage != "" || params.Status != "" {
		initial = lifecycle.State{Stage: params.Stage, Status: params.Status}
		if !lifecycle.IsSourceState(initial) {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a legal starting state", initial)
		}
	}
	for key := range params.Attributes {
		if err := guardAttributeKey(key); err != nil {
			return nil, err
		}
	}

	identity := &volunteer.Identity{
		ID:         id.NewVolunteerID(),
		FirstName:  params.FirstName,
		Surname:    params.Surname,
		Contact:    params.Contact,
		Attributes: params.Attributes,
		Stage:      initial.Stage,
		Status:     initial.Status,
		CreatedAt:  requestcontext.Now(ctx),
		CreatedBy:  actor,
	}

	err := w.runInTx(ctx, identity.ID, func(ctx context.Context) error {
		if err := w.volunteers.Create(ctx, identity); err != nil {
			return translate(err)
		}
		changes := createChanges(identity)
		_, err := w.trail.Record(ctx, audit.ActionCreate, volunteer.EntityType, identity.ID.String(), actor, changes, params.Metadata)
		return err
	})
	if err != nil {
		return nil, err
	}

	if w.allocateOnCreate {
		code, err := w.allocateCode(ctx, identity.ID, actor)
		if err != nil {
			return nil, err
		}
		identity.SubjectCode = code
	}

	w.metrics.VolunteersCreated.Inc()
	w.logger.InfoContext(ctx, "volunteer identity created",
		"volunteer_id", identity.ID.String(),
		"stage", string(identity.Stage),
		"status", string(identity.Status),
	)
	return identity, nil
}

// EnsureSubjectCode returns the identity's subject code, allocating it on
// first use. Idempotent keyed on "already has a code": retried calls return
// the same code and the allocation produces exactly one audit record. Losing
// a uniqueness race on commit resumes probing from the next counter instead
// of surfacing the conflict.
func (w *Workflow) EnsureSubjectCode(ctx context.Context, volunteerID id.VolunteerID) (string, error) {
	actor := requestcontext.ActorID(ctx)
	if actor == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "actor is required")
	}

	return w.allocateCode(ctx, volunteerID, actor)
}

// allocateCode runs the probe-claim loop. Each attempt is its own
// transaction: a lost uniqueness race aborts that transaction (a failed
// statement poisons a Postgres tx), and the next attempt resumes probing
// from the counter past the lost candidate. The store's uniqueness
// constraint is what turns the winning candidate into a reservation.
func (w *Workflow) allocateCode(ctx context.Context, volunteerID id.VolunteerID, actor string) (string, error) {
	var start uint32
	totalProbes := 0
	for attempt := 0; attempt < maxClaimRetries; attempt++ {
		var code, candidate string
		err := w.runInTx(ctx, volunteerID, func(ctx context.Context) error {
			identity, err := w.volunteers.FindByID(ctx, volunteerID)
			if err != nil {
				return translate(err)
			}
			if identity.HasSubjectCode() {
				code = identity.SubjectCode
				return nil
			}

			var probes int
			candidate, probes, err = w.codes.AllocateFrom(ctx, identity.FirstName, identity.Surname, start)
			totalProbes += probes
			if err != nil {
				return err
			}

			identity.SubjectCode = candidate
			now := requestcontext.Now(ctx)
			identity.UpdatedAt = &now
			identity.UpdatedBy = actor

			// Sentinel errors pass through raw so the retry loop can
			// classify them after the rollback.
			if err := w.volunteers.Update(ctx, identity); err != nil {
				return err
			}
			if _, err := w.trail.Record(ctx, audit.ActionUpdate, volunteer.EntityType, volunteerID.String(), actor,
				map[string]audit.FieldChange{"subject_code": {Old: nil, New: candidate}},
				map[string]string{"operation": "subject_code_allocation"},
			); err != nil {
				return err
			}
			code = candidate
			return nil
		})
		switch {
		case err == nil:
			if candidate != "" && code == candidate {
				w.metrics.CodesAllocated.Inc()
				w.metrics.CodeProbes.Observe(float64(totalProbes))
				w.observeCode(ctx, code)
			}
			return code, nil

		case errors.Is(err, sentinel.ErrDuplicateCode):
			// Another identity won this candidate between probe and commit;
			// resume from the next counter rather than surfacing the error.
			w.metrics.CodeClaimRetries.Inc()
			start = subjectcode.CounterOf(candidate) + 1

		case errors.Is(err, sentinel.ErrConflict):
			// Concurrent writer touched this identity; the next attempt
			// re-reads and returns its code if that writer allocated one.

		default:
			return "", translate(err)
		}
	}
	return "", dErrors.Newf(dErrors.CodeConflict, "could not claim a subject code for %s after %d attempts", volunteerID, maxClaimRetries)
}

// ApplyTransition moves an identity to the requested (stage, status) pair.
// The guard, the compare-and-swap write and the audit record form one
// read-check-write unit: a rejected transition mutates nothing and writes no
// audit record, and a lost race surfaces as a conflict instead of a silent
// overwrite.
func (w *Workflow) ApplyTransition(ctx context.Context, volunteerID id.VolunteerID, to lifecycle.State, reason string) error {
	actor := requestcontext.ActorID(ctx)
	if actor == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "actor is required")
	}

	err := w.runInTx(ctx, volunteerID, func(ctx context.Context) error {
		identity, err := w.volunteers.FindByID(ctx, volunteerID)
		if err != nil {
			return translate(err)
		}
		from := identity.State()
		if err := w.engine.Transition(from, to); err != nil {
			w.metrics.TransitionsRejected.Inc()
			return err
		}

		identity.Stage = to.Stage
		identity.Status = to.Status
		now := requestcontext.Now(ctx)
		identity.UpdatedAt = &now
		identity.UpdatedBy = actor

		if err := w.volunteers.Update(ctx, identity); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				w.metrics.TransitionConflicts.Inc()
			}
			return translate(err)
		}

		changes := map[string]audit.FieldChange{
			"stage":  {Old: string(from.Stage), New: string(to.Stage)},
			"status": {Old: string(from.Status), New: string(to.Status)},
		}
		var metadata map[string]string
		if reason != "" {
			metadata = map[string]string{"reason": reason}
		}
		_, err = w.trail.Record(ctx, audit.ActionStateTransition, volunteer.EntityType, volunteerID.String(), actor, changes, metadata)
		return err
	})
	if err != nil {
		return err
	}

	w.metrics.TransitionsAccepted.Inc()
	w.logger.InfoContext(ctx, "volunteer transitioned",
		"volunteer_id", volunteerID.String(),
		"to_stage", string(to.Stage),
		"to_status", string(to.Status),
	)
	return nil
}

// ApplyUpdate applies a set of field updates all-or-nothing. Any immutable
// field in the set rejects the whole update before anything is touched, and
// one audit record lists every changed field with its old and new value.
func (w *Workflow) ApplyUpdate(ctx context.Context, volunteerID id.VolunteerID, updates map[string]string) error {
	actor := requestcontext.ActorID(ctx)
	if actor == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "actor is required")
	}
	if len(updates) == 0 {
		return nil
	}

	fields := make([]string, 0, len(updates))
	for f := range updates {
		fields = append(fields, f)
	}
	if err := w.engine.GuardUpdate(fields); err != nil {
		w.metrics.UpdatesRejected.Inc()
		return err
	}
	for _, f := range fields {
		if err := guardManagedField(f); err != nil {
			w.metrics.UpdatesRejected.Inc()
			return err
		}
	}

	return w.runInTx(ctx, volunteerID, func(ctx context.Context) error {
		identity, err := w.volunteers.FindByID(ctx, volunteerID)
		if err != nil {
			return translate(err)
		}

		changes := make(map[string]audit.FieldChange, len(updates))
		for field, value := range updates {
			old, changed := applyField(identity, field, value)
			if changed {
				changes[field] = audit.FieldChange{Old: old, New: value}
			}
		}
		if len(changes) == 0 {
			return nil
		}

		now := requestcontext.Now(ctx)
		identity.UpdatedAt = &now
		identity.UpdatedBy = actor

		if err := w.volunteers.Update(ctx, identity); err != nil {
			return translate(err)
		}
		_, err = w.trail.Record(ctx, audit.ActionUpdate, volunteer.EntityType, volunteerID.String(), actor, changes, nil)
		return err
	})
}

// History returns the audit trail for one identity, newest first.
func (w *Workflow) History(ctx context.Context, volunteerID id.VolunteerID, limit int) ([]audit.Record, error) {
	return w.trail.History(ctx, volunteer.EntityType, volunteerID.String(), limit)
}

// Get fetches one identity.
func (w *Workflow) Get(ctx context.Context, volunteerID id.VolunteerID) (*volunteer.Identity, error) {
	identity, err := w.volunteers.FindByID(ctx, volunteerID)
	if err != nil {
		return nil, translate(err)
	}
	return identity, nil
}

// FindBySubjectCode resolves an identity by its human-readable code.
func (w *Workflow) FindBySubjectCode(ctx context.Context, code string) (*volunteer.Identity, error) {
	identity, err := w.volunteers.FindBySubjectCode(ctx, code)
	if err != nil {
		return nil, translate(err)
	}
	return identity, nil
}

// FindByContact resolves an identity by contact number, used by the route
// layer for dedupe checks before creating a draft.
func (w *Workflow) FindByContact(ctx context.Context, contact string) (*volunteer.Identity, error) {
	identity, err := w.volunteers.FindByContact(ctx, contact)
	if err != nil {
		return nil, translate(err)
	}
	return identity, nil
}

// ListByState returns the worklist for one (stage, status) pair.
func (w *Workflow) ListByState(ctx context.Context, state lifecycle.State, limit int) ([]*volunteer.Identity, error) {
	if !lifecycle.IsDefinedState(state) {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a defined state", state)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return w.volunteers.ListByState(ctx, state, limit)
}

func (w *Workflow) runInTx(ctx context.Context, volunteerID id.VolunteerID, fn func(ctx context.Context) error) error {
	return w.runner.RunInTx(tx.WithEntityKey(ctx, volunteerID.String()), fn)
}

// createChanges snapshots every populated field of a fresh identity for the
// create audit record.
func createChanges(identity *volunteer.Identity) map[string]audit.FieldChange {
	changes := map[string]audit.FieldChange{
		"stage":      {Old: nil, New: string(identity.Stage)},
		"status":     {Old: nil, New: string(identity.Status)},
		"first_name": {Old: nil, New: identity.FirstName},
		"surname":    {Old: nil, New: identity.Surname},
	}
	if identity.Contact != "" {
		changes["contact"] = audit.FieldChange{Old: nil, New: identity.Contact}
	}
	for k, v := range identity.Attributes {
		changes[k] = audit.FieldChange{Old: nil, New: v}
	}
	return changes
}

// guardAttributeKey rejects attribute names that shadow typed or managed
// record fields. The create audit record lists attributes next to the core
// fields, so a colliding name would overwrite the real field's entry and then
// freeze under the wrong mutation rules.
func guardAttributeKey(key string) error {
	switch key {
	case "first_name", "surname", "contact":
		return dErrors.Newf(dErrors.CodeInvalidInput, "%s is a core field, not an attribute", key)
	}
	if lifecycle.IsImmutable(key) {
		return dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be an attribute name", key)
	}
	return guardManagedField(key)
}

// guardManagedField rejects fields the workflow manages through dedicated
// operations: the subject code is assigned only by allocation and frozen
// after, state moves only through transitions, and the bookkeeping columns
// are never written directly.
func guardManagedField(field string) error {
	switch field {
	case "subject_code":
		return dErrors.New(dErrors.CodeImmutableField, "subject_code is assigned by allocation and cannot be modified")
	case "stage", "status":
		return dErrors.Newf(dErrors.CodeInvalidInput, "%s changes only through transitions", field)
	case "updated_at", "updated_by", "version":
		return dErrors.Newf(dErrors.CodeInvalidInput, "%s is maintained by the engine", field)
	}
	return nil
}

// applyField writes one field onto the identity and reports the old value
// and whether anything actually changed.
func applyField(identity *volunteer.Identity, field, value string) (any, bool) {
	switch field {
	case "first_name":
		old := identity.FirstName
		identity.FirstName = value
		return old, old != value
	case "surname":
		old := identity.Surname
		identity.Surname = value
		return old, old != value
	case "contact":
		old := identity.Contact
		identity.Contact = value
		return old, old != value
	default:
		old, had := identity.Attributes[field]
		if identity.Attributes == nil {
			identity.Attributes = make(map[string]string)
		}
		identity.Attributes[field] = value
		if !had {
			return nil, true
		}
		return old, old != value
	}
}

// translate maps store sentinels onto coded domain errors.
func translate(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "volunteer not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "concurrent modification, re-read and retry")
	case errors.Is(err, sentinel.ErrDuplicateCode):
		return dErrors.Wrap(err, dErrors.CodeConflict, "subject code already taken")
	case errors.Is(err, sentinel.ErrCodeAssigned):
		return dErrors.Wrap(err, dErrors.CodeImmutableField, "subject code already assigned")
	default:
		return err
	}
}
