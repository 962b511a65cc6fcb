package plan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mlahtinen/trainplan/internal/sqlite"
)

// supersedeRetries bounds the retry loop around versioned mutations. A
// concurrent modification is transient: retrying with a fresh read resolves
// it.
const supersedeRetries = 3

// Service is the in-process API of the plan engine. It owns the repository,
// the single-unit generator, and the batch orchestrator, and tracks running
// generation jobs so they can be cancelled.
type Service struct {
	repo         *repository
	generator    *unitGenerator
	orchestrator *orchestrator
	logger       *slog.Logger

	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithTraceCapturer makes the orchestrator capture an execution trace after
// chunks that run slow.
func WithTraceCapturer(recorder TraceCapturer) Option {
	return func(s *Service) {
		s.orchestrator.recorder = recorder
	}
}

// WithDuplicateJobCooldown overrides how long a non-terminal job suppresses
// new generation requests for the same user. Defaults to one minute.
func WithDuplicateJobCooldown(cooldown time.Duration) Option {
	return func(s *Service) {
		s.repo.jobs.cooldown = cooldown
	}
}

// NewService wires the plan engine. selector is required; namer may be nil,
// in which case every unit gets a deterministic fallback name.
func NewService(
	db *sqlite.Database,
	logger *slog.Logger,
	selector ExerciseSelector,
	namer Namer,
	opts ...Option,
) *Service {
	repo := newRepository(db, logger)
	generator := &unitGenerator{
		selector: selector,
		namer:    namer,
		logger:   logger,
	}
	service := &Service{
		repo:      repo,
		generator: generator,
		orchestrator: &orchestrator{
			repo:      repo,
			generator: generator,
			logger:    logger,
			recorder:  nil,
		},
		logger:  logger,
		cancels: make(map[uuid.UUID]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// GenerateRange starts an asynchronous generation run over the inclusive date
// range and returns the job id to poll. A second request for the same user
// inside the duplicate cooldown fails with ErrDuplicateJob.
func (s *Service) GenerateRange(
	ctx context.Context,
	userID string,
	from, to time.Time,
	params GenerationParams,
) (uuid.UUID, error) {
	dates := datesBetween(from, to)
	if len(dates) == 0 {
		return uuid.Nil, fmt.Errorf("empty date range %s to %s", formatDate(from), formatDate(to))
	}

	job, err := s.repo.jobs.create(ctx, userID, len(dates))
	if err != nil {
		return uuid.Nil, fmt.Errorf("create generation job: %w", err)
	}

	// The run outlives the request: detach from the caller's cancellation and
	// install a per-job cancel instead.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	s.cancels[job.ID] = cancel
	s.mu.Unlock()

	go s.runGeneration(runCtx, job, userID, dates, params)
	return job.ID, nil
}

func (s *Service) runGeneration(
	ctx context.Context,
	job GenerationJob,
	userID string,
	dates []time.Time,
	params GenerationParams,
) {
	defer func() {
		s.mu.Lock()
		delete(s.cancels, job.ID)
		s.mu.Unlock()
	}()
	// Status writes must land even after the run context is cancelled.
	statusCtx := context.WithoutCancel(ctx)

	if err := s.repo.jobs.transition(statusCtx, job.ID, JobInProgress, 0, ""); err != nil {
		s.logger.LogAttrs(statusCtx, slog.LevelError, "job transition failed",
			slog.String("job_id", job.ID.String()),
			slog.Any("error", err))
		// A job stuck in pending would block the user's cooldown forever, so
		// close it out before giving up.
		if failErr := s.repo.jobs.transition(statusCtx, job.ID, JobFailed, 0, "generation run failed to start"); failErr != nil {
			s.logger.LogAttrs(statusCtx, slog.LevelError, "job transition failed",
				slog.String("job_id", job.ID.String()),
				slog.Any("error", failErr))
		}
		return
	}

	result := s.orchestrator.generateRange(ctx, userID, dates, params)

	status := JobCompleted
	message := failureSummary(result.failures)
	switch {
	case ctx.Err() != nil:
		status = JobFailed
		if message == "" {
			message = "cancelled"
		} else {
			message = "cancelled: " + message
		}
	case len(result.generated) == 0 && len(result.failures) > 0:
		status = JobFailed
	}

	if err := s.repo.jobs.transition(statusCtx, job.ID, status, len(result.generated), message); err != nil {
		s.logger.LogAttrs(statusCtx, slog.LevelError, "job transition failed",
			slog.String("job_id", job.ID.String()),
			slog.Any("error", err))
	}
	s.logger.LogAttrs(statusCtx, slog.LevelInfo, "generation run finished",
		slog.String("job_id", job.ID.String()),
		slog.String("user_id", userID),
		slog.String("status", string(status)),
		slog.Int("generated", len(result.generated)),
		slog.Int("failed", len(result.failures)))
}

// CancelJob stops a running generation after its in-flight chunk finishes.
func (s *Service) CancelJob(jobID uuid.UUID) error {
	s.mu.Lock()
	cancel, ok := s.cancels[jobID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("running job %s: %w", jobID, ErrNotFound)
	}
	cancel()
	return nil
}

// RegenerateUnit replaces the current version of a unit's lineage with a
// freshly generated plan for the same date and focus. The old version stays
// in history.
func (s *Service) RegenerateUnit(
	ctx context.Context,
	unitID uuid.UUID,
	params GenerationParams,
) (VersionedPlanUnit, error) {
	existing, err := s.repo.versions.byID(ctx, unitID)
	if err != nil {
		return VersionedPlanUnit{}, fmt.Errorf("load unit %s: %w", unitID, err)
	}

	variety := newVarietyTracker(s.repo, params.VarietyWindowDays)
	avoid, err := variety.NextAvoidList(ctx, existing.UserID)
	if err != nil {
		return VersionedPlanUnit{}, fmt.Errorf("build avoid list: %w", err)
	}

	unit, _, err := s.generator.Generate(ctx, unitRequest{
		userID: existing.UserID,
		date:   existing.ScheduledDate,
		focus:  existing.Focus,
		params: params,
		avoid:  staggeredAvoid(avoid, 0),
	})
	if err != nil {
		return VersionedPlanUnit{}, fmt.Errorf("generate replacement: %w", err)
	}

	var superseded VersionedPlanUnit
	err = retryConcurrent(func() error {
		var supersedeErr error
		superseded, supersedeErr = s.repo.versions.supersede(ctx, existing.LineageID, unit, MethodRegenerated)
		return supersedeErr
	})
	if err != nil {
		return VersionedPlanUnit{}, fmt.Errorf("supersede unit: %w", err)
	}
	return superseded, nil
}

// RevertUnit restores an older version's content as a new forward version.
func (s *Service) RevertUnit(ctx context.Context, lineageID uuid.UUID, targetVersion int) (VersionedPlanUnit, error) {
	var restored VersionedPlanUnit
	err := retryConcurrent(func() error {
		var revertErr error
		restored, revertErr = s.repo.versions.revert(ctx, lineageID, targetVersion)
		return revertErr
	})
	if err != nil {
		return VersionedPlanUnit{}, err
	}
	return restored, nil
}

// CreateUnit persists a manually authored plan unit as version 1 of a new
// lineage.
func (s *Service) CreateUnit(ctx context.Context, unit PlanUnit) (VersionedPlanUnit, error) {
	if unit.UserID == "" {
		return VersionedPlanUnit{}, errors.New("user id is required")
	}
	unit.Method = MethodManual
	created, err := s.repo.versions.create(ctx, unit)
	if err != nil {
		return VersionedPlanUnit{}, fmt.Errorf("create unit: %w", err)
	}
	return created, nil
}

// MarkCompleted toggles completion on the current version of a unit without
// opening a new version.
func (s *Service) MarkCompleted(ctx context.Context, unitID uuid.UUID, completed bool) error {
	return s.repo.versions.setCompleted(ctx, unitID, completed)
}

// GetHistory lists all versions of a lineage, newest first.
func (s *Service) GetHistory(ctx context.Context, lineageID uuid.UUID) ([]VersionInfo, error) {
	return s.repo.versions.history(ctx, lineageID)
}

// GetJobStatus fetches the lifecycle state of a generation job.
func (s *Service) GetJobStatus(ctx context.Context, jobID uuid.UUID) (GenerationJob, error) {
	return s.repo.jobs.get(ctx, jobID)
}

// GetUnit fetches one version by its id.
func (s *Service) GetUnit(ctx context.Context, unitID uuid.UUID) (VersionedPlanUnit, error) {
	return s.repo.versions.byID(ctx, unitID)
}

// GetCurrentForDate fetches the user's current plan unit for a date.
func (s *Service) GetCurrentForDate(ctx context.Context, userID string, date time.Time) (VersionedPlanUnit, error) {
	return s.repo.versions.currentForDate(ctx, userID, date)
}

func retryConcurrent(op func() error) error {
	var err error
	for attempt := 0; attempt < supersedeRetries; attempt++ {
		if err = op(); !errors.Is(err, ErrConcurrentModification) {
			return err
		}
	}
	return err
}

// datesBetween expands an inclusive range into day steps.
func datesBetween(from, to time.Time) []time.Time {
	from = from.Truncate(24 * time.Hour)
	to = to.Truncate(24 * time.Hour)
	var dates []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// failureSummary flattens a per-date failure map into one message, dates
// ascending.
func failureSummary(failures map[string]error) string {
	if len(failures) == 0 {
		return ""
	}
	dates := make([]string, 0, len(failures))
	for date := range failures {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	parts := make([]string, 0, len(dates))
	for _, date := range dates {
		parts = append(parts, fmt.Sprintf("%s: %v", date, failures[date]))
	}
	return strings.Join(parts, "; ")
}
