package plan

import (
	"time"

	"github.com/google/uuid"
)

// GenerationMethod records how a plan unit came to exist.
type GenerationMethod string

const (
	MethodManual      GenerationMethod = "manual"
	MethodAIFromPool  GenerationMethod = "ai-from-pool"
	MethodAIFreeform  GenerationMethod = "ai-freeform"
	MethodRegenerated GenerationMethod = "regenerated"
)

// SetType classifies a single set within an exercise.
type SetType string

const (
	SetTypeWarmup  SetType = "warmup"
	SetTypeWorking SetType = "working"
	SetTypeFailure SetType = "failure"
	SetTypeDrop    SetType = "drop"
)

// SetTarget is one prescribed set. Weight is nullable because a freshly
// generated plan has no load history to anchor it to.
type SetTarget struct {
	SetNumber      int
	Type           SetType
	TargetReps     int
	TargetWeightKg *float64
	TargetRPE      float64
	TargetRIR      float64
}

// ExerciseEntry is one exercise within a plan unit. Sets always equals
// len(Targets); the scaler maintains that equality.
type ExerciseEntry struct {
	Name        string
	MuscleGroup string
	Equipment   string
	Sets        int
	Reps        int
	RestSeconds int
	RPE         float64
	Targets     []SetTarget
}

// PlanUnit is one day's plan content.
type PlanUnit struct {
	ID              uuid.UUID
	UserID          string
	ScheduledDate   time.Time
	Focus           string
	Name            string
	Notes           string
	DurationMinutes int
	Entries         []ExerciseEntry
	IsCompleted     bool
	Method          GenerationMethod
	Metadata        map[string]string
}

// VersionedPlanUnit wraps a PlanUnit with its SCD2 bookkeeping. LineageID is
// constant across all versions descending from one originally created unit.
type VersionedPlanUnit struct {
	PlanUnit

	LineageID     uuid.UUID
	VersionNumber int
	IsCurrent     bool
	ValidFrom     time.Time
	ValidTo       *time.Time
	SupersededBy  *uuid.UUID
}

// VersionInfo is a history listing row.
type VersionInfo struct {
	UnitID        uuid.UUID
	VersionNumber int
	IsCurrent     bool
	ValidFrom     time.Time
	ValidTo       *time.Time
	Method        GenerationMethod
	Name          string
}

// JobStatus is the lifecycle state of an asynchronous generation job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// GenerationJob tracks one multi-day generation request.
type GenerationJob struct {
	ID             uuid.UUID
	UserID         string
	Status         JobStatus
	TotalExpected  int
	TotalGenerated int
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CandidateExercise is what the retrieval collaborator returns for a focus.
type CandidateExercise struct {
	Name               string
	PrimaryMuscleGroup string
	MuscleGroups       []string
	Equipment          string
	Level              string
}

// GenerationParams tunes a range generation request.
type GenerationParams struct {
	// Preset names the difficulty preset; empty means DefaultPreset.
	Preset string
	// Equipment limits candidate retrieval; empty means any equipment.
	Equipment []string
	// Level is the user's training level used for candidate filtering.
	Level string
	// Goals are free-form goal tags forwarded to the retrieval collaborator.
	Goals []string
	// Focuses, when set, pins the focus rotation instead of the default cycle.
	Focuses []string
	// BatchSize bounds the number of concurrently generated days. Zero means
	// DefaultBatchSize.
	BatchSize int
	// VarietyWindowDays bounds how far back the avoid list reaches. Zero means
	// DefaultVarietyWindowDays.
	VarietyWindowDays int
}
