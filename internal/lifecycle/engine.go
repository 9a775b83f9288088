package lifecycle

import (
	"sort"
	"strings"

	dErrors "cohort/pkg/domain-errors"
)

// Engine validates proposed mutations against the invariants. Both methods
// are pure guards with no side effects; the enrollment workflow calls them
// before committing anything and aborts the whole operation, including the
// audit write, when a guard fails.
type Engine struct{}

func NewEngine() Engine { return Engine{} }

// Transition returns nil when from -> to is legal, otherwise a coded
// invalid-transition error naming the exact pair so callers can produce
// actionable diagnostics.
func (Engine) Transition(from, to State) error {
	if IsValidTransition(from, to) {
		return nil
	}
	return dErrors.Newf(dErrors.CodeInvalidTransition, "cannot transition from %s to %s", from, to)
}

// GuardUpdate rejects a proposed field set that touches any immutable field,
// naming every offending field. Field names are sorted so the message is
// deterministic.
func (Engine) GuardUpdate(fields []string) error {
	var violations []string
	for _, f := range fields {
		if IsImmutable(f) {
			violations = append(violations, f)
		}
	}
	if len(violations) == 0 {
		return nil
	}
	sort.Strings(violations)
	return dErrors.Newf(dErrors.CodeImmutableField, "immutable field(s) cannot be modified: %s", strings.Join(violations, ", "))
}
