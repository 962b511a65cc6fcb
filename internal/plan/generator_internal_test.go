package plan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mlahtinen/trainplan/internal/testhelpers"
)

type stubNamer struct {
	name  string
	notes string
	err   error
}

func (n stubNamer) NameAndNotes(_ context.Context, _ []ExerciseEntry, _ []string) (string, string, error) {
	return n.name, n.notes, n.err
}

func fixedCandidates() []CandidateExercise {
	return []CandidateExercise{
		{Name: "Barbell Bench Press", PrimaryMuscleGroup: "chest", MuscleGroups: []string{"chest", "triceps"}, Equipment: "barbell", Level: "intermediate"},
		{Name: "Cable Fly", PrimaryMuscleGroup: "chest", MuscleGroups: []string{"chest"}, Equipment: "cable", Level: "beginner"},
		{Name: "Triceps Pushdown", PrimaryMuscleGroup: "triceps", MuscleGroups: []string{"triceps"}, Equipment: "cable", Level: "beginner"},
	}
}

func TestUnitGenerator_Generate(t *testing.T) {
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	date := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

	generator := &unitGenerator{
		selector: SelectorFunc(func(_ context.Context, q SelectionQuery) ([]CandidateExercise, error) {
			if q.Count != candidateCount {
				t.Errorf("selector asked for %d candidates, want %d", q.Count, candidateCount)
			}
			return fixedCandidates(), nil
		}),
		namer:  stubNamer{name: "Iron Monday", notes: "Push hard."},
		logger: logger,
	}

	unit, used, err := generator.Generate(context.Background(), unitRequest{
		userID: "user-1",
		date:   date,
		focus:  "push",
		params: GenerationParams{Preset: "intermediate"},
		avoid:  []string{"Dumbbell Fly"},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if unit.Name != "Iron Monday" || unit.Notes != "Push hard." {
		t.Errorf("Generate() name/notes = %q/%q, want AI name", unit.Name, unit.Notes)
	}
	if unit.Method != MethodAIFromPool {
		t.Errorf("Generate() method = %s, want %s", unit.Method, MethodAIFromPool)
	}
	if len(unit.Entries) != len(fixedCandidates()) {
		t.Fatalf("Generate() entries = %d, want %d", len(unit.Entries), len(fixedCandidates()))
	}
	for _, entry := range unit.Entries {
		if entry.Sets != len(entry.Targets) {
			t.Errorf("entry %s: Sets = %d, len(Targets) = %d", entry.Name, entry.Sets, len(entry.Targets))
		}
	}
	wantUsed := []string{"Barbell Bench Press", "Cable Fly", "Triceps Pushdown"}
	if diff := cmp.Diff(wantUsed, used); diff != "" {
		t.Errorf("Generate() used names mismatch (-want +got):\n%s", diff)
	}
	if unit.Metadata["named_by_ai"] != "true" {
		t.Errorf("Generate() metadata named_by_ai = %s, want true", unit.Metadata["named_by_ai"])
	}
	if unit.DurationMinutes <= 0 {
		t.Errorf("Generate() duration = %d, want positive", unit.DurationMinutes)
	}
}

func TestUnitGenerator_NoCandidatesIsFatal(t *testing.T) {
	generator := &unitGenerator{
		selector: SelectorFunc(func(_ context.Context, _ SelectionQuery) ([]CandidateExercise, error) {
			return nil, nil
		}),
		namer:  nil,
		logger: testhelpers.NewLogger(testhelpers.NewWriter(t)),
	}

	_, _, err := generator.Generate(context.Background(), unitRequest{
		userID: "user-1",
		date:   time.Now(),
		focus:  "push",
		params: GenerationParams{},
	})
	if !errors.Is(err, ErrNoCandidates) {
		t.Errorf("Generate() error = %v, want ErrNoCandidates", err)
	}
}

func TestUnitGenerator_SelectorErrorPropagates(t *testing.T) {
	selectorErr := errors.New("retrieval down")
	generator := &unitGenerator{
		selector: SelectorFunc(func(_ context.Context, _ SelectionQuery) ([]CandidateExercise, error) {
			return nil, selectorErr
		}),
		namer:  nil,
		logger: testhelpers.NewLogger(testhelpers.NewWriter(t)),
	}

	_, _, err := generator.Generate(context.Background(), unitRequest{focus: "pull"})
	if !errors.Is(err, selectorErr) {
		t.Errorf("Generate() error = %v, want wrapped selector error", err)
	}
}

func TestUnitGenerator_NamingFailureFallsBack(t *testing.T) {
	date := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		namer Namer
	}{
		{name: "nil namer", namer: nil},
		{name: "namer error", namer: stubNamer{err: errors.New("model unavailable")}},
		{name: "empty name", namer: stubNamer{name: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generator := &unitGenerator{
				selector: SelectorFunc(func(_ context.Context, _ SelectionQuery) ([]CandidateExercise, error) {
					return fixedCandidates(), nil
				}),
				namer:  tt.namer,
				logger: testhelpers.NewLogger(testhelpers.NewWriter(t)),
			}

			unit, _, err := generator.Generate(context.Background(), unitRequest{
				userID: "user-1",
				date:   date,
				focus:  "push",
			})
			if err != nil {
				t.Fatalf("Generate() error = %v, naming failure must be recoverable", err)
			}
			if want := "Push session, Sep 7"; unit.Name != want {
				t.Errorf("Generate() name = %q, want fallback %q", unit.Name, want)
			}
			if unit.Metadata["named_by_ai"] != "false" {
				t.Errorf("Generate() metadata named_by_ai = %s, want false", unit.Metadata["named_by_ai"])
			}
		})
	}
}
