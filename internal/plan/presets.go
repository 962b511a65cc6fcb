package plan

import "strings"

// DefaultPreset is used when a request does not name a difficulty preset.
const DefaultPreset = "intermediate"

// intRange is a closed integer interval.
type intRange struct {
	low, high int
}

// floatRange is a closed float interval.
type floatRange struct {
	low, high float64
}

// movementRanges holds the prescription ranges for one movement classification.
type movementRanges struct {
	sets        intRange
	reps        intRange
	restSeconds intRange
	rpe         floatRange
}

// difficultyPreset maps a qualitative difficulty level to quantitative
// programming ranges. Only the most intense preset carries the intensity
// technique flags.
type difficultyPreset struct {
	name              string
	compound          movementRanges
	isolation         movementRanges
	includeFailureSet bool
	includeDropSet    bool
}

//nolint:gochecknoglobals // static preset table.
var presets = map[string]difficultyPreset{
	"beginner": {
		name:      "beginner",
		compound:  movementRanges{sets: intRange{2, 3}, reps: intRange{8, 12}, restSeconds: intRange{90, 150}, rpe: floatRange{6, 7}},
		isolation: movementRanges{sets: intRange{2, 3}, reps: intRange{10, 15}, restSeconds: intRange{60, 90}, rpe: floatRange{6, 7}},
	},
	"intermediate": {
		name:      "intermediate",
		compound:  movementRanges{sets: intRange{3, 4}, reps: intRange{6, 10}, restSeconds: intRange{120, 180}, rpe: floatRange{7, 8}},
		isolation: movementRanges{sets: intRange{3, 4}, reps: intRange{10, 15}, restSeconds: intRange{60, 90}, rpe: floatRange{7, 8}},
	},
	"advanced": {
		name:      "advanced",
		compound:  movementRanges{sets: intRange{4, 5}, reps: intRange{5, 8}, restSeconds: intRange{150, 240}, rpe: floatRange{8, 9}},
		isolation: movementRanges{sets: intRange{3, 4}, reps: intRange{8, 12}, restSeconds: intRange{60, 90}, rpe: floatRange{8, 9}},
	},
	"elite": {
		name:              "elite",
		compound:          movementRanges{sets: intRange{4, 6}, reps: intRange{4, 8}, restSeconds: intRange{180, 300}, rpe: floatRange{8.5, 9.5}},
		isolation:         movementRanges{sets: intRange{4, 5}, reps: intRange{8, 12}, restSeconds: intRange{60, 120}, rpe: floatRange{8.5, 9.5}},
		includeFailureSet: true,
		includeDropSet:    true,
	},
}

// compoundMuscleGroups is the closed set of multi-joint muscle groups. An
// exercise touching any of these counts as a compound movement.
//
//nolint:gochecknoglobals // static classification table.
var compoundMuscleGroups = map[string]struct{}{
	"chest":      {},
	"back":       {},
	"quadriceps": {},
	"glutes":     {},
	"hamstrings": {},
	"shoulders":  {},
	"full body":  {},
	"legs":       {},
	"upper body": {},
	"lower body": {},
}

// lookupPreset returns the preset for a name, case-insensitively.
func lookupPreset(name string) (difficultyPreset, bool) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// isCompound reports whether any of the muscle groups names a multi-joint
// movement pattern.
func isCompound(muscleGroups []string) bool {
	for _, group := range muscleGroups {
		if _, ok := compoundMuscleGroups[strings.ToLower(strings.TrimSpace(group))]; ok {
			return true
		}
	}
	return false
}
