package plan

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// candidateCount is how many exercises one unit asks the retrieval
// collaborator for.
const candidateCount = 6

// unitRequest carries everything one day's generation needs.
type unitRequest struct {
	userID string
	date   time.Time
	focus  string
	params GenerationParams
	// avoid is this task's staggered exclusion list.
	avoid []string
}

// unitGenerator composes one day's plan: candidate retrieval, difficulty
// scaling, and naming.
type unitGenerator struct {
	selector ExerciseSelector
	namer    Namer
	logger   *slog.Logger
}

// Generate builds a PlanUnit for the request and returns the exercise names
// it used so the caller can feed the variety tracker.
//
// Candidate retrieval failure is fatal for the unit; naming failure is not,
// it degrades to a deterministic fallback name.
func (g *unitGenerator) Generate(ctx context.Context, req unitRequest) (PlanUnit, []string, error) {
	preset := req.params.Preset
	if preset == "" {
		preset = DefaultPreset
	}

	candidates, err := g.selector.Select(ctx, SelectionQuery{
		Focus:     req.focus,
		Equipment: req.params.Equipment,
		Level:     req.params.Level,
		Goals:     req.params.Goals,
		Count:     candidateCount,
		Avoid:     req.avoid,
	})
	if err != nil {
		return PlanUnit{}, nil, fmt.Errorf("select candidates for focus %q: %w", req.focus, err)
	}
	if len(candidates) == 0 {
		return PlanUnit{}, nil, fmt.Errorf("focus %q: %w", req.focus, ErrNoCandidates)
	}

	entries := make([]ExerciseEntry, 0, len(candidates))
	usedNames := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		entries = append(entries, ScaleExercise(candidate, preset))
		usedNames = append(usedNames, candidate.Name)
	}

	name, notes, namedByAI := g.nameUnit(ctx, req, entries)

	unit := PlanUnit{
		ID:              uuid.New(),
		UserID:          req.userID,
		ScheduledDate:   req.date,
		Focus:           req.focus,
		Name:            name,
		Notes:           notes,
		DurationMinutes: estimateDurationMinutes(entries),
		Entries:         entries,
		IsCompleted:     false,
		Method:          MethodAIFromPool,
		Metadata: map[string]string{
			"preset":      preset,
			"avoid_count": strconv.Itoa(len(req.avoid)),
			"named_by_ai": strconv.FormatBool(namedByAI),
		},
	}
	return unit, usedNames, nil
}

// nameUnit asks the text-generation collaborator for a name and notes,
// falling back to a deterministic name on any failure.
func (g *unitGenerator) nameUnit(ctx context.Context, req unitRequest, entries []ExerciseEntry) (string, string, bool) {
	if g.namer == nil {
		return fallbackName(req.focus, req.date), "", false
	}

	// Recently used names double as fragments to avoid, for naming variety
	// independent of exercise variety.
	name, notes, err := g.namer.NameAndNotes(ctx, entries, req.avoid)
	if err != nil || name == "" {
		g.logger.LogAttrs(ctx, slog.LevelWarn, "name generation failed, using fallback",
			slog.String("focus", req.focus),
			slog.Any("error", err))
		return fallbackName(req.focus, req.date), "", false
	}
	return name, notes, true
}

// fallbackName builds a deterministic display name from the focus and date.
func fallbackName(focus string, date time.Time) string {
	return fmt.Sprintf("%s session, %s", titleCase(focus), date.Format("Jan 2"))
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	if runes[0] >= 'a' && runes[0] <= 'z' {
		runes[0] -= 'a' - 'A'
	}
	return string(runes)
}
