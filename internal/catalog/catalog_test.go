package catalog_test

import (
	"context"
	"testing"

	"github.com/mlahtinen/trainplan/internal/catalog"
	"github.com/mlahtinen/trainplan/internal/plan"
	"github.com/mlahtinen/trainplan/internal/sqlite"
	"github.com/mlahtinen/trainplan/internal/testhelpers"
)

func newCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	db, err := sqlite.NewDatabase(context.Background(), ":memory:", logger)
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	t.Cleanup(func() {
		if closeErr := db.Close(); closeErr != nil {
			t.Errorf("close database: %v", closeErr)
		}
	})
	return catalog.New(db, logger)
}

func TestCatalog_Select(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()

	candidates, err := c.Select(ctx, plan.SelectionQuery{Focus: "push", Count: 6})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(candidates) != 6 {
		t.Fatalf("Select() returned %d candidates, want 6", len(candidates))
	}
	for _, candidate := range candidates {
		if candidate.Name == "" || candidate.PrimaryMuscleGroup == "" {
			t.Errorf("candidate missing identity: %+v", candidate)
		}
		if len(candidate.MuscleGroups) == 0 {
			t.Errorf("candidate %s has no muscle groups", candidate.Name)
		}
	}
}

func TestCatalog_SelectFocusAsMuscleGroup(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()

	candidates, err := c.Select(ctx, plan.SelectionQuery{Focus: "biceps", Count: 10})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(candidates) == 0 {
		t.Fatal("Select() returned no candidates for a direct muscle group focus")
	}
	for _, candidate := range candidates {
		found := false
		for _, group := range candidate.MuscleGroups {
			if group == "Biceps" {
				found = true
			}
		}
		if !found {
			t.Errorf("candidate %s does not touch biceps: %v", candidate.Name, candidate.MuscleGroups)
		}
	}
}

func TestCatalog_SelectHonorsAvoid(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()

	// Every chest exercise in the catalog, so the focus has nothing left.
	avoid := []string{"Barbell Bench Press", "Incline Dumbbell Press", "Push-Up", "Cable Fly"}

	candidates, err := c.Select(ctx, plan.SelectionQuery{Focus: "chest", Count: 6, Avoid: avoid})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("Select() returned %d candidates, avoid must be a hard filter even when it empties the result", len(candidates))
	}

	partial, err := c.Select(ctx, plan.SelectionQuery{Focus: "chest", Count: 6, Avoid: avoid[:2]})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(partial) == 0 {
		t.Fatal("Select() returned no candidates with a partial avoid list")
	}
	for _, candidate := range partial {
		for _, avoided := range avoid[:2] {
			if candidate.Name == avoided {
				t.Errorf("Select() returned avoided exercise %s", candidate.Name)
			}
		}
	}
}

func TestCatalog_SelectFiltersLevelAndEquipment(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()

	beginner, err := c.Select(ctx, plan.SelectionQuery{Focus: "legs", Level: "beginner", Count: 20})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(beginner) == 0 {
		t.Fatal("Select() returned no beginner leg exercises")
	}
	for _, candidate := range beginner {
		if candidate.Level != "beginner" {
			t.Errorf("beginner query returned %s level exercise %s", candidate.Level, candidate.Name)
		}
	}

	machines, err := c.Select(ctx, plan.SelectionQuery{Focus: "legs", Equipment: []string{"machine"}, Count: 20})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(machines) == 0 {
		t.Fatal("Select() returned no machine leg exercises")
	}
	for _, candidate := range machines {
		if candidate.Equipment != "machine" {
			t.Errorf("machine query returned %s exercise %s", candidate.Equipment, candidate.Name)
		}
	}
}

func TestCatalog_SelectUnknownFocus(t *testing.T) {
	c := newCatalog(t)

	candidates, err := c.Select(context.Background(), plan.SelectionQuery{Focus: "telekinesis", Count: 6})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("Select() returned %d candidates for unknown focus, want 0", len(candidates))
	}
}
