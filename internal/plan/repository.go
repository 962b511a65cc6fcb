package plan

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/mlahtinen/trainplan/internal/sqlite"
)

const (
	dateFormat      = time.DateOnly
	timestampFormat = "2006-01-02T15:04:05.000Z"
)

// repository bundles the SQLite-backed stores for the plan engine.
type repository struct {
	versions *versionStore
	jobs     *jobStore

	db     *sqlite.Database
	logger *slog.Logger
}

func newRepository(db *sqlite.Database, logger *slog.Logger) *repository {
	repo := &repository{
		versions: nil,
		jobs:     nil,
		db:       db,
		logger:   logger,
	}
	repo.versions = &versionStore{db: db, logger: logger}
	repo.jobs = &jobStore{db: db, logger: logger, cooldown: defaultDuplicateJobCooldown}
	return repo
}

// recentExerciseNames is the variety tracker's read path.
func (r *repository) recentExerciseNames(ctx context.Context, userID string, windowDays int) ([]string, error) {
	return r.versions.recentExerciseNames(ctx, userID, windowDays)
}

func formatDate(t time.Time) string {
	return t.Format(dateFormat)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(timestampFormat, s)
}

func parseNullableTimestamp(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTimestamp(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
