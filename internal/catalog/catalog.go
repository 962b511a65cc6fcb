// Package catalog serves candidate exercises for a training focus from the
// sqlite exercise catalog. It is the default retrieval collaborator of the
// plan engine.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/mlahtinen/trainplan/internal/plan"
	"github.com/mlahtinen/trainplan/internal/sqlite"
)

// focusMuscleGroups resolves a training focus to the muscle groups it
// emphasizes. A focus not listed here is treated as a muscle group name
// itself, so "chest" works as a focus directly.
var focusMuscleGroups = map[string][]string{
	"push":       {"chest", "shoulders", "triceps"},
	"pull":       {"back", "biceps", "forearms"},
	"legs":       {"quadriceps", "hamstrings", "glutes", "calves"},
	"upper body": {"chest", "back", "shoulders", "biceps", "triceps"},
	"lower body": {"quadriceps", "hamstrings", "glutes", "calves"},
	"full body":  {"chest", "back", "shoulders", "quadriceps", "hamstrings", "glutes", "core"},
}

// levelRank orders training levels so a user sees exercises at or below
// their level.
var levelRank = map[string]int{
	"beginner":     1,
	"intermediate": 2,
	"advanced":     3,
}

// Catalog implements plan.ExerciseSelector over the exercise tables.
type Catalog struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func New(db *sqlite.Database, logger *slog.Logger) *Catalog {
	return &Catalog{db: db, logger: logger}
}

// Select returns up to q.Count candidates for the focus. Names in q.Avoid are
// a hard exclusion: an avoided exercise is never returned, even when that
// leaves the result short or empty. Matching candidates are shuffled before
// truncation so repeated queries with the same inputs vary.
func (c *Catalog) Select(ctx context.Context, q plan.SelectionQuery) (_ []plan.CandidateExercise, err error) {
	groups := focusMuscleGroups[strings.ToLower(q.Focus)]
	if len(groups) == 0 {
		groups = []string{strings.ToLower(q.Focus)}
	}

	query, args := buildSelectQuery(groups, q)
	rows, err := c.db.ReadOnly.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query exercises: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	type row struct {
		id        int64
		candidate plan.CandidateExercise
	}
	var matched []row
	for rows.Next() {
		var r row
		if err = rows.Scan(&r.id, &r.candidate.Name, &r.candidate.Equipment, &r.candidate.Level); err != nil {
			return nil, fmt.Errorf("scan exercise: %w", err)
		}
		matched = append(matched, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	maxRank, limitLevel := levelRank[strings.ToLower(q.Level)]
	candidates := make([]plan.CandidateExercise, 0, len(matched))
	for _, r := range matched {
		if limitLevel && levelRank[r.candidate.Level] > maxRank {
			continue
		}
		if r.candidate.MuscleGroups, r.candidate.PrimaryMuscleGroup, err = c.muscleGroups(ctx, r.id); err != nil {
			return nil, err
		}
		candidates = append(candidates, r.candidate)
	}

	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if q.Count > 0 && len(candidates) > q.Count {
		candidates = candidates[:q.Count]
	}

	c.logger.LogAttrs(ctx, slog.LevelDebug, "selected candidates",
		slog.String("focus", q.Focus),
		slog.Int("matched", len(matched)),
		slog.Int("returned", len(candidates)))
	return candidates, nil
}

// buildSelectQuery assembles the filtered candidate query. Avoid and
// equipment filters are pushed into SQL; the level cutoff needs the rank
// table and stays in Go.
func buildSelectQuery(groups []string, q plan.SelectionQuery) (string, []any) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`
		SELECT DISTINCT e.id, e.name, e.equipment, e.level
		FROM exercises e
		JOIN exercise_muscle_groups emg ON emg.exercise_id = e.id
		WHERE emg.muscle_group_name IN (`)
	sb.WriteString(placeholders(len(groups)))
	sb.WriteString(")")
	for _, group := range groups {
		args = append(args, group)
	}

	if len(q.Avoid) > 0 {
		sb.WriteString(" AND e.name NOT IN (")
		sb.WriteString(placeholders(len(q.Avoid)))
		sb.WriteString(")")
		for _, name := range q.Avoid {
			args = append(args, name)
		}
	}
	if len(q.Equipment) > 0 {
		sb.WriteString(" AND e.equipment IN (")
		sb.WriteString(placeholders(len(q.Equipment)))
		sb.WriteString(")")
		for _, equipment := range q.Equipment {
			args = append(args, equipment)
		}
	}
	return sb.String(), args
}

// muscleGroups loads every muscle group of an exercise and identifies the
// primary one.
func (c *Catalog) muscleGroups(ctx context.Context, exerciseID int64) (_ []string, _ string, err error) {
	rows, err := c.db.ReadOnly.QueryContext(ctx, `
		SELECT muscle_group_name, is_primary
		FROM exercise_muscle_groups
		WHERE exercise_id = ?
		ORDER BY is_primary DESC, muscle_group_name`,
		exerciseID)
	if err != nil {
		return nil, "", fmt.Errorf("query muscle groups: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var (
		groups  []string
		primary string
	)
	for rows.Next() {
		var (
			name      string
			isPrimary bool
		)
		if err = rows.Scan(&name, &isPrimary); err != nil {
			return nil, "", fmt.Errorf("scan muscle group: %w", err)
		}
		if isPrimary && primary == "" {
			primary = name
		}
		groups = append(groups, name)
	}
	if err = rows.Err(); err != nil {
		return nil, "", fmt.Errorf("rows error: %w", err)
	}
	if primary == "" && len(groups) > 0 {
		primary = groups[0]
	}
	return groups, primary, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
