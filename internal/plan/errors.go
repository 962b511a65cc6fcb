package plan

import "errors"

var (
	// ErrNotFound is returned when a plan unit, lineage, or job does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoCandidates is returned when the retrieval collaborator has no
	// exercises for the requested focus, equipment, and level combination.
	// This is a hard failure for the affected unit: an empty result is safer
	// than substituting an unrelated exercise.
	ErrNoCandidates = errors.New("no candidate exercises")

	// ErrDuplicateJob signals that a non-terminal generation job for the same
	// user was created within the cooldown window. It means "already running",
	// not that something is broken.
	ErrDuplicateJob = errors.New("generation job already running")

	// ErrVersionNotFound is returned by revert when the target version does
	// not exist for the lineage.
	ErrVersionNotFound = errors.New("version not found")

	// ErrConcurrentModification is returned when a supersede lost the race on
	// the current version. It is transient: retry the operation with a fresh
	// read of the current state.
	ErrConcurrentModification = errors.New("concurrent modification of plan version")
)
