package lifecycle

// allowedTransitions is the directed graph of legal moves. Three kinds of
// edges exist: Draft -> Submitted within a stage, Submitted -> next stage's
// Draft on approval (the final stage approves straight into
// completed/approved), and Submitted -> Rejected terminating the stage.
// (completed, approved) has no outgoing edges and is terminal.
var allowedTransitions = map[State][]State{
	{StageFieldVisit, StatusDraft}: {
		{StageFieldVisit, StatusSubmitted},
	},
	{StageFieldVisit, StatusSubmitted}: {
		{StagePreScreening, StatusDraft},
		{StageFieldVisit, StatusRejected},
	},
	{StagePreScreening, StatusDraft}: {
		{StagePreScreening, StatusSubmitted},
	},
	{StagePreScreening, StatusSubmitted}: {
		{StageRegistration, StatusDraft},
		{StagePreScreening, StatusRejected},
	},
	{StageRegistration, StatusDraft}: {
		{StageRegistration, StatusSubmitted},
	},
	{StageRegistration, StatusSubmitted}: {
		{StageClinicalAssignment, StatusDraft},
		{StageRegistration, StatusRejected},
	},
	{StageClinicalAssignment, StatusDraft}: {
		{StageClinicalAssignment, StatusSubmitted},
	},
	{StageClinicalAssignment, StatusSubmitted}: {
		{StageCompleted, StatusApproved},
		{StageClinicalAssignment, StatusRejected},
	},
}

// immutableFields may never change after creation. A fixed constant, not
// configurable per call.
var immutableFields = map[string]bool{
	"volunteer_id": true,
	"created_at":   true,
	"created_by":   true,
}

// IsValidTransition reports whether from -> to is an edge of the graph.
// Pairs that are not keys are never valid sources.
func IsValidTransition(from, to State) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsImmutable reports whether a field may never be modified post-creation.
func IsImmutable(field string) bool {
	return immutableFields[field]
}

// ImmutableFields returns the protected field names, for diagnostics.
func ImmutableFields() []string {
	out := make([]string, 0, len(immutableFields))
	for f := range immutableFields {
		out = append(out, f)
	}
	return out
}

// IsSourceState reports whether a pair is a key of the transition table, i.e.
// a state with at least one legal move out. These are the legal starting
// states for a new identity: terminal and rejected states cannot be created
// directly.
func IsSourceState(s State) bool {
	_, ok := allowedTransitions[s]
	return ok
}

// IsDefinedState reports whether a pair appears anywhere in the transition
// table, as a source or a target. No volunteer may exist outside this set.
func IsDefinedState(s State) bool {
	if _, ok := allowedTransitions[s]; ok {
		return true
	}
	for _, targets := range allowedTransitions {
		for _, t := range targets {
			if t == s {
				return true
			}
		}
	}
	return false
}

// Terminal is the single end state of the pipeline.
var Terminal = State{Stage: StageCompleted, Status: StatusApproved}
