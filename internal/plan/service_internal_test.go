package plan

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mlahtinen/trainplan/internal/sqlite"
	"github.com/mlahtinen/trainplan/internal/testhelpers"
)

type countingSelector struct {
	calls atomic.Int64
}

func (s *countingSelector) Select(_ context.Context, _ SelectionQuery) ([]CandidateExercise, error) {
	s.calls.Add(1)
	return nil, nil
}

// A run whose job cannot move to in_progress must close the job out and stop
// before any generation work starts.
func TestRunGenerationAbortsWhenJobCannotStart(t *testing.T) {
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

	selector := &countingSelector{}
	service := NewService(db, logger, selector, nil)

	job, err := service.repo.jobs.create(context.Background(), "user-1", 1)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	// Take the writer down so the in_progress transition cannot land.
	if err = db.ReadWrite.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	service.runGeneration(context.Background(), job, "user-1",
		[]time.Time{time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)}, GenerationParams{})

	if got := selector.calls.Load(); got != 0 {
		t.Errorf("selector called %d times, want no generation after a failed job start", got)
	}
}
