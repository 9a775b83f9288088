package volunteer

import (
	"context"

	"cohort/internal/lifecycle"
	id "cohort/pkg/domain"
)

// Store persists identity records. Interface-driven so the in-memory and
// Postgres implementations swap without rewiring business code.
//
// Update is an optimistic-concurrency write: it commits only when the stored
// version still equals identity.Version, then bumps the version (in the store
// and on the passed identity). A lost race returns sentinel.ErrConflict. A
// subject code colliding with another record returns sentinel.ErrDuplicateCode;
// the unique constraint behind it is what turns allocation candidates into
// reservations.
type Store interface {
	Create(ctx context.Context, identity *Identity) error
	FindByID(ctx context.Context, volunteerID id.VolunteerID) (*Identity, error)
	FindBySubjectCode(ctx context.Context, code string) (*Identity, error)
	FindByContact(ctx context.Context, contact string) (*Identity, error)
	ListByState(ctx context.Context, state lifecycle.State, limit int) ([]*Identity, error)
	SubjectCodeExists(ctx context.Context, code string) (bool, error)
	Update(ctx context.Context, identity *Identity) error
}
