package plan

import "context"

// SelectionQuery describes one candidate retrieval request.
type SelectionQuery struct {
	Focus     string
	Equipment []string
	Level     string
	Goals     []string
	Count     int
	// Avoid is a hard exclusion filter: the selector must never return an
	// exercise whose name appears here.
	Avoid []string
}

// ExerciseSelector retrieves ranked candidate exercises for a focus. It may
// return fewer than Count items; returning zero makes the unit fail with
// ErrNoCandidates.
type ExerciseSelector interface {
	Select(ctx context.Context, q SelectionQuery) ([]CandidateExercise, error)
}

// Namer asks a generative-text collaborator for a display name and short
// coaching notes for the already-chosen exercises. avoidWords carries
// recently used name fragments so consecutive days don't read alike.
//
// Namer is best effort: any error or empty name falls back to a
// deterministic name, the unit itself never fails on naming.
type Namer interface {
	NameAndNotes(ctx context.Context, entries []ExerciseEntry, avoidWords []string) (name string, notes string, err error)
}

// SelectorFunc adapts a function to the ExerciseSelector interface.
type SelectorFunc func(ctx context.Context, q SelectionQuery) ([]CandidateExercise, error)

func (f SelectorFunc) Select(ctx context.Context, q SelectionQuery) ([]CandidateExercise, error) {
	return f(ctx, q)
}
