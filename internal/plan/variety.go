package plan

import (
	"context"
	"fmt"
)

// Variety defaults. The stagger constants shape the per-task exclusion sets
// inside one batch: task i receives the most recent base + i*step names.
const (
	DefaultVarietyWindowDays = 14
	staggerBase              = 12
	staggerStep              = 4
)

// varietyTracker maintains the rolling set of exercise names recently
// assigned to a user. It is created per generation run and mutated by a
// single writer (the orchestrator, between batches), so it needs no locking.
type varietyTracker struct {
	repo       *repository
	windowDays int
	// recorded accumulates names used during this run, oldest first. Persisted
	// units also surface through the repository read, but recording keeps the
	// avoid list complete even before the next read.
	recorded []string
}

func newVarietyTracker(repo *repository, windowDays int) *varietyTracker {
	if windowDays <= 0 {
		windowDays = DefaultVarietyWindowDays
	}
	return &varietyTracker{
		repo:       repo,
		windowDays: windowDays,
		recorded:   nil,
	}
}

// NextAvoidList returns the deduplicated exercise names the user has been
// assigned within the variety window, oldest first. It reads fresh from the
// store so staleness is bounded to one batch.
func (t *varietyTracker) NextAvoidList(ctx context.Context, userID string) ([]string, error) {
	stored, err := t.repo.recentExerciseNames(ctx, userID, t.windowDays)
	if err != nil {
		return nil, fmt.Errorf("read recent exercise names: %w", err)
	}

	return dedupeKeepLatest(append(stored, t.recorded...)), nil
}

// RecordUsage appends the names a completed batch actually used. Called once
// per batch, never from inside one, so sibling tasks keep an identical view.
func (t *varietyTracker) RecordUsage(names []string) {
	t.recorded = append(t.recorded, names...)
}

// staggeredAvoid truncates an oldest-first avoid list for the task at the
// given index within a batch: each concurrent task gets a distinct,
// overlapping-but-not-identical exclusion set so that information-isolated
// selections are unlikely to collide.
func staggeredAvoid(avoid []string, taskIndex int) []string {
	keep := staggerBase + taskIndex*staggerStep
	if keep >= len(avoid) {
		return avoid
	}
	// Most recent names win; the oldest are truncated away.
	return avoid[len(avoid)-keep:]
}

// dedupeKeepLatest removes duplicates keeping the last occurrence, so a
// re-used name counts as recent when the stagger truncates the oldest names.
func dedupeKeepLatest(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for i := len(names) - 1; i >= 0; i-- {
		if _, ok := seen[names[i]]; ok {
			continue
		}
		seen[names[i]] = struct{}{}
		out = append(out, names[i])
	}
	// Restore oldest-first order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
