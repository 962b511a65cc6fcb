package plan

// ScaleExercise turns a candidate exercise into a concrete prescription for
// the given difficulty preset.
//
// Compound movements take the high end of the sets range and the low end of
// the reps range (heavier, fewer reps); isolation movements the opposite.
// The function is total: an unrecognized preset name is a no-op and the
// candidate is echoed back without a prescription, never a hard error.
func ScaleExercise(c CandidateExercise, presetName string) ExerciseEntry {
	entry := ExerciseEntry{
		Name:        c.Name,
		MuscleGroup: c.PrimaryMuscleGroup,
		Equipment:   c.Equipment,
	}

	preset, ok := lookupPreset(presetName)
	if !ok {
		return entry
	}

	groups := make([]string, 0, len(c.MuscleGroups)+1)
	groups = append(groups, c.PrimaryMuscleGroup)
	groups = append(groups, c.MuscleGroups...)
	compound := isCompound(groups)

	var (
		ranges      movementRanges
		sets, reps  int
		restSeconds int
		rpe         float64
	)
	if compound {
		ranges = preset.compound
		sets = ranges.sets.high
		reps = ranges.reps.low
		restSeconds = ranges.restSeconds.high
		rpe = ranges.rpe.high
	} else {
		ranges = preset.isolation
		sets = ranges.sets.low
		reps = ranges.reps.high
		restSeconds = ranges.restSeconds.low
		rpe = ranges.rpe.low
	}

	// Weight is unknown at generation time; the targets carry nil weights
	// until the user or an edit fills them in. Drop sets apply to isolation
	// movements only.
	targets := BuildSetTargets(sets, reps, nil, rpe, preset.includeFailureSet, preset.includeDropSet && !compound)

	entry.Sets = len(targets)
	entry.Reps = reps
	entry.RestSeconds = restSeconds
	entry.RPE = rpe
	entry.Targets = targets
	return entry
}

const (
	warmupExtraReps = 4
	warmupWeightPct = 0.5
	warmupRPE       = 5
	dropWeightPct   = 0.6
	dropExtraReps   = 4
	dropRPE         = 9
	failureRPE      = 10
)

// BuildSetTargets expands a summary prescription into an ordered sequence of
// per-set targets: one warmup set first, then working sets, then a failure
// set when includeFailure is set and a drop set when includeDrop is set.
//
// The returned slice length is authoritative: callers must set the summary
// set count from len() of the result so the two can never diverge.
func BuildSetTargets(
	numSets int,
	reps int,
	weightKg *float64,
	rpe float64,
	includeFailure bool,
	includeDrop bool,
) []SetTarget {
	targets := make([]SetTarget, 0, numSets)

	targets = append(targets, SetTarget{
		Type:           SetTypeWarmup,
		TargetReps:     reps + warmupExtraReps,
		TargetWeightKg: scaleWeight(weightKg, warmupWeightPct),
		TargetRPE:      warmupRPE,
		TargetRIR:      repsInReserve(warmupRPE),
	})

	// Reserve room for the intensity-technique sets so the total still lands
	// on numSets.
	workingCount := numSets - 1
	if includeFailure {
		workingCount--
	}
	if includeDrop {
		workingCount--
	}

	for range max(workingCount, 0) {
		targets = append(targets, SetTarget{
			Type:           SetTypeWorking,
			TargetReps:     reps,
			TargetWeightKg: copyWeight(weightKg),
			TargetRPE:      rpe,
			TargetRIR:      repsInReserve(rpe),
		})
	}

	if includeFailure {
		targets = append(targets, SetTarget{
			Type:           SetTypeFailure,
			TargetReps:     reps,
			TargetWeightKg: copyWeight(weightKg),
			TargetRPE:      failureRPE,
			TargetRIR:      repsInReserve(failureRPE),
		})
	}
	if includeDrop {
		targets = append(targets, SetTarget{
			Type:           SetTypeDrop,
			TargetReps:     reps + dropExtraReps,
			TargetWeightKg: scaleWeight(weightKg, dropWeightPct),
			TargetRPE:      dropRPE,
			TargetRIR:      repsInReserve(dropRPE),
		})
	}

	for i := range targets {
		targets[i].SetNumber = i + 1
	}
	return targets
}

// repsInReserve derives RIR from RPE, clamped at zero.
func repsInReserve(rpe float64) float64 {
	return max(10-rpe, 0)
}

func scaleWeight(weightKg *float64, pct float64) *float64 {
	if weightKg == nil {
		return nil
	}
	scaled := *weightKg * pct
	return &scaled
}

func copyWeight(weightKg *float64) *float64 {
	if weightKg == nil {
		return nil
	}
	w := *weightKg
	return &w
}

// estimateDurationMinutes approximates how long the unit takes: a nominal
// four seconds per rep plus the prescribed rest after every set.
func estimateDurationMinutes(entries []ExerciseEntry) int {
	const secondsPerRep = 4
	totalSeconds := 0
	for _, entry := range entries {
		for _, target := range entry.Targets {
			totalSeconds += target.TargetReps*secondsPerRep + entry.RestSeconds
		}
	}
	return (totalSeconds + 59) / 60
}
