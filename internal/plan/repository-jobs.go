package plan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mlahtinen/trainplan/internal/sqlite"
)

// defaultDuplicateJobCooldown is how long after starting a job a user must
// wait before starting another, unless the first one already reached a
// terminal state.
const defaultDuplicateJobCooldown = 60 * time.Second

// jobStore persists generation job lifecycle rows.
type jobStore struct {
	db       *sqlite.Database
	logger   *slog.Logger
	cooldown time.Duration
}

// create inserts a pending job. A non-terminal job for the same user created
// within the cooldown suppresses the new one with ErrDuplicateJob. The check
// and insert share the single writer connection, so two racing requests
// serialise and the second observes the first.
func (s *jobStore) create(ctx context.Context, userID string, totalExpected int) (_ GenerationJob, err error) {
	now := time.Now()

	tx, err := s.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return GenerationJob{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback transaction: %w", rollbackErr))
		}
	}()

	cutoff := now.Add(-s.cooldown)
	var existingID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM generation_jobs
		WHERE user_id = ? AND status IN ('pending', 'in_progress') AND created_at > ?
		LIMIT 1`,
		userID, formatTimestamp(cutoff)).Scan(&existingID)
	if err == nil {
		return GenerationJob{}, fmt.Errorf("active job %s for user %s: %w", existingID, userID, ErrDuplicateJob)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return GenerationJob{}, fmt.Errorf("query active jobs: %w", err)
	}

	job := GenerationJob{
		ID:             uuid.New(),
		UserID:         userID,
		Status:         JobPending,
		TotalExpected:  totalExpected,
		TotalGenerated: 0,
		ErrorMessage:   "",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO generation_jobs (
			id, user_id, status, total_expected, total_generated, error_message, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID.String(), job.UserID, string(job.Status), job.TotalExpected,
		job.TotalGenerated, job.ErrorMessage, formatTimestamp(job.CreatedAt), formatTimestamp(job.UpdatedAt))
	if err != nil {
		return GenerationJob{}, fmt.Errorf("insert generation job: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return GenerationJob{}, fmt.Errorf("commit transaction: %w", err)
	}
	return job, nil
}

// get fetches one job by id.
func (s *jobStore) get(ctx context.Context, jobID uuid.UUID) (GenerationJob, error) {
	var (
		job          GenerationJob
		idStr        string
		status       string
		createdAtStr string
		updatedAtStr string
	)
	err := s.db.ReadOnly.QueryRowContext(ctx, `
		SELECT id, user_id, status, total_expected, total_generated, error_message, created_at, updated_at
		FROM generation_jobs WHERE id = ?`,
		jobID.String()).Scan(&idStr, &job.UserID, &status, &job.TotalExpected,
		&job.TotalGenerated, &job.ErrorMessage, &createdAtStr, &updatedAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return GenerationJob{}, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return GenerationJob{}, fmt.Errorf("query generation job: %w", err)
	}

	if job.ID, err = uuid.Parse(idStr); err != nil {
		return GenerationJob{}, fmt.Errorf("parse job id: %w", err)
	}
	job.Status = JobStatus(status)
	if job.CreatedAt, err = parseTimestamp(createdAtStr); err != nil {
		return GenerationJob{}, fmt.Errorf("parse created_at: %w", err)
	}
	if job.UpdatedAt, err = parseTimestamp(updatedAtStr); err != nil {
		return GenerationJob{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return job, nil
}

// transition moves a job to the given status and updates its progress
// counters. Terminal states are sticky: a transition attempt on an already
// terminal job is an idempotent no-op, which makes late progress updates from
// a cancelled run harmless.
func (s *jobStore) transition(
	ctx context.Context,
	jobID uuid.UUID,
	status JobStatus,
	totalGenerated int,
	errorMessage string,
) error {
	result, err := s.db.ReadWrite.ExecContext(ctx, `
		UPDATE generation_jobs
		SET status = ?, total_generated = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND status IN ('pending', 'in_progress')`,
		string(status), totalGenerated, errorMessage, formatTimestamp(time.Now()), jobID.String())
	if err != nil {
		return fmt.Errorf("update generation job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		existing, getErr := s.get(ctx, jobID)
		if getErr != nil {
			return fmt.Errorf("job %s: %w", jobID, ErrNotFound)
		}
		s.logger.LogAttrs(ctx, slog.LevelDebug, "skipped transition on terminal job",
			slog.String("job_id", jobID.String()),
			slog.String("status", string(existing.Status)),
			slog.String("requested", string(status)))
	}
	return nil
}
