package plan

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mlahtinen/trainplan/internal/sqlite"
)

// versionStore persists plan units as SCD2 rows: every edit inserts a new
// version and closes the old one, nothing is ever updated in place. The
// "exactly one current version per lineage" invariant is re-checked inside
// the transaction of every mutation and a violation aborts the commit.
type versionStore struct {
	db     *sqlite.Database
	logger *slog.Logger
}

const unitColumns = `id, lineage_id, user_id, scheduled_date, focus, name, notes,
	duration_minutes, is_completed, generation_method, generation_metadata,
	version_number, is_current, valid_from, valid_to, superseded_by`

// create inserts the first version of a new lineage.
func (s *versionStore) create(ctx context.Context, unit PlanUnit) (_ VersionedPlanUnit, err error) {
	if unit.ID == uuid.Nil {
		unit.ID = uuid.New()
	}
	now := time.Now()

	tx, err := s.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return VersionedPlanUnit{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback transaction: %w", rollbackErr))
		}
	}()

	versioned := VersionedPlanUnit{
		PlanUnit:      unit,
		LineageID:     unit.ID,
		VersionNumber: 1,
		IsCurrent:     true,
		ValidFrom:     now,
		ValidTo:       nil,
		SupersededBy:  nil,
	}
	if err = insertVersionRow(ctx, tx, versioned); err != nil {
		return VersionedPlanUnit{}, err
	}
	if err = verifySingleCurrent(ctx, tx, versioned.LineageID); err != nil {
		return VersionedPlanUnit{}, err
	}
	if err = tx.Commit(); err != nil {
		return VersionedPlanUnit{}, fmt.Errorf("commit transaction: %w", err)
	}
	return versioned, nil
}

// supersede atomically closes the current version of the lineage and inserts
// the given content as the next version. The conditional update on is_current
// acts as a compare-and-set: losing the race surfaces as
// ErrConcurrentModification and the caller retries with a fresh read.
func (s *versionStore) supersede(
	ctx context.Context,
	lineageID uuid.UUID,
	content PlanUnit,
	method GenerationMethod,
) (_ VersionedPlanUnit, err error) {
	now := time.Now()

	tx, err := s.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return VersionedPlanUnit{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback transaction: %w", rollbackErr))
		}
	}()

	var (
		currentID      string
		currentVersion int
	)
	err = tx.QueryRowContext(ctx, `
		SELECT id, version_number FROM plan_units
		WHERE lineage_id = ? AND is_current = 1`,
		lineageID.String()).Scan(&currentID, &currentVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return VersionedPlanUnit{}, fmt.Errorf("lineage %s: %w", lineageID, ErrNotFound)
	}
	if err != nil {
		return VersionedPlanUnit{}, fmt.Errorf("query current version: %w", err)
	}

	newID := uuid.New()
	result, err := tx.ExecContext(ctx, `
		UPDATE plan_units
		SET is_current = 0, valid_to = ?, superseded_by = ?
		WHERE id = ? AND is_current = 1`,
		formatTimestamp(now), newID.String(), currentID)
	if err != nil {
		return VersionedPlanUnit{}, fmt.Errorf("close current version: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return VersionedPlanUnit{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected != 1 {
		return VersionedPlanUnit{}, fmt.Errorf("lineage %s: %w", lineageID, ErrConcurrentModification)
	}

	content.ID = newID
	content.Method = method
	versioned := VersionedPlanUnit{
		PlanUnit:      content,
		LineageID:     lineageID,
		VersionNumber: currentVersion + 1,
		IsCurrent:     true,
		ValidFrom:     now,
		ValidTo:       nil,
		SupersededBy:  nil,
	}
	if err = insertVersionRow(ctx, tx, versioned); err != nil {
		return VersionedPlanUnit{}, err
	}
	if err = verifySingleCurrent(ctx, tx, lineageID); err != nil {
		return VersionedPlanUnit{}, err
	}
	if err = tx.Commit(); err != nil {
		return VersionedPlanUnit{}, fmt.Errorf("commit transaction: %w", err)
	}
	return versioned, nil
}

// revert creates a new forward version carrying an older version's content.
// History is never edited in place: the reverted-to version stays in the
// chain untouched and the new tail is a faithful copy of it.
func (s *versionStore) revert(ctx context.Context, lineageID uuid.UUID, targetVersion int) (VersionedPlanUnit, error) {
	target, err := s.byLineageVersion(ctx, lineageID, targetVersion)
	if errors.Is(err, ErrNotFound) {
		return VersionedPlanUnit{}, fmt.Errorf("lineage %s version %d: %w", lineageID, targetVersion, ErrVersionNotFound)
	}
	if err != nil {
		return VersionedPlanUnit{}, fmt.Errorf("load target version: %w", err)
	}

	restored, err := s.supersede(ctx, lineageID, target.PlanUnit, target.Method)
	if err != nil {
		return VersionedPlanUnit{}, fmt.Errorf("supersede with version %d content: %w", targetVersion, err)
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "reverted plan unit",
		slog.String("lineage_id", lineageID.String()),
		slog.Int("target_version", targetVersion),
		slog.Int("new_version", restored.VersionNumber))
	return restored, nil
}

// history returns all versions of a lineage, newest first.
func (s *versionStore) history(ctx context.Context, lineageID uuid.UUID) (_ []VersionInfo, err error) {
	rows, err := s.db.ReadOnly.QueryContext(ctx, `
		SELECT id, version_number, is_current, valid_from, valid_to, generation_method, name
		FROM plan_units
		WHERE lineage_id = ?
		ORDER BY version_number DESC`,
		lineageID.String())
	if err != nil {
		return nil, fmt.Errorf("query version history: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var infos []VersionInfo
	for rows.Next() {
		var (
			idStr        string
			info         VersionInfo
			validFromStr string
			validToStr   sql.NullString
		)
		if err = rows.Scan(&idStr, &info.VersionNumber, &info.IsCurrent,
			&validFromStr, &validToStr, &info.Method, &info.Name); err != nil {
			return nil, fmt.Errorf("scan version info: %w", err)
		}
		if info.UnitID, err = uuid.Parse(idStr); err != nil {
			return nil, fmt.Errorf("parse unit id: %w", err)
		}
		if info.ValidFrom, err = parseTimestamp(validFromStr); err != nil {
			return nil, fmt.Errorf("parse valid_from: %w", err)
		}
		if info.ValidTo, err = parseNullableTimestamp(validToStr); err != nil {
			return nil, fmt.Errorf("parse valid_to: %w", err)
		}
		infos = append(infos, info)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("lineage %s: %w", lineageID, ErrNotFound)
	}
	return infos, nil
}

// byID fetches one version by its row id.
func (s *versionStore) byID(ctx context.Context, unitID uuid.UUID) (VersionedPlanUnit, error) {
	return s.getUnitWhere(ctx, "id = ?", unitID.String())
}

// currentByLineage fetches the current tail of a lineage.
func (s *versionStore) currentByLineage(ctx context.Context, lineageID uuid.UUID) (VersionedPlanUnit, error) {
	return s.getUnitWhere(ctx, "lineage_id = ? AND is_current = 1", lineageID.String())
}

// byLineageVersion fetches a specific version of a lineage.
func (s *versionStore) byLineageVersion(ctx context.Context, lineageID uuid.UUID, version int) (VersionedPlanUnit, error) {
	return s.getUnitWhere(ctx, "lineage_id = ? AND version_number = ?", lineageID.String(), version)
}

// currentForDate fetches the user's current plan unit for a date.
func (s *versionStore) currentForDate(ctx context.Context, userID string, date time.Time) (VersionedPlanUnit, error) {
	return s.getUnitWhere(ctx, "user_id = ? AND scheduled_date = ? AND is_current = 1", userID, formatDate(date))
}

// setCompleted toggles completion on the current version. Completion is unit
// state, not plan content, so it does not open a new version.
func (s *versionStore) setCompleted(ctx context.Context, unitID uuid.UUID, completed bool) error {
	result, err := s.db.ReadWrite.ExecContext(ctx, `
		UPDATE plan_units SET is_completed = ? WHERE id = ? AND is_current = 1`,
		completed, unitID.String())
	if err != nil {
		return fmt.Errorf("update completion: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("current unit %s: %w", unitID, ErrNotFound)
	}
	return nil
}

// recentExerciseNames returns the exercise names assigned to the user within
// the window, oldest first, from current versions only.
func (s *versionStore) recentExerciseNames(ctx context.Context, userID string, windowDays int) (_ []string, err error) {
	cutoff := time.Now().AddDate(0, 0, -windowDays)
	rows, err := s.db.ReadOnly.QueryContext(ctx, `
		SELECT ee.name
		FROM exercise_entries ee
		JOIN plan_units pu ON pu.id = ee.unit_id
		WHERE pu.user_id = ? AND pu.is_current = 1 AND pu.scheduled_date >= ?
		ORDER BY pu.scheduled_date ASC, ee.position ASC`,
		userID, formatDate(cutoff))
	if err != nil {
		return nil, fmt.Errorf("query recent exercise names: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var names []string
	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan exercise name: %w", err)
		}
		names = append(names, name)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return names, nil
}

// getUnitWhere loads a single versioned unit and its exercise entries.
func (s *versionStore) getUnitWhere(ctx context.Context, where string, args ...any) (VersionedPlanUnit, error) {
	//nolint:gosec // where is always a compile-time constant condition.
	query := "SELECT " + unitColumns + " FROM plan_units WHERE " + where
	row := s.db.ReadOnly.QueryRowContext(ctx, query, args...)

	unit, err := scanVersionRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return VersionedPlanUnit{}, ErrNotFound
	}
	if err != nil {
		return VersionedPlanUnit{}, err
	}

	if unit.Entries, err = s.loadEntries(ctx, unit.ID); err != nil {
		return VersionedPlanUnit{}, err
	}
	return unit, nil
}

// loadEntries fetches the exercise entries and their set targets for a unit.
func (s *versionStore) loadEntries(ctx context.Context, unitID uuid.UUID) (_ []ExerciseEntry, err error) {
	rows, err := s.db.ReadOnly.QueryContext(ctx, `
		SELECT position, name, muscle_group, equipment, sets, reps, rest_seconds, rpe
		FROM exercise_entries
		WHERE unit_id = ?
		ORDER BY position`,
		unitID.String())
	if err != nil {
		return nil, fmt.Errorf("query exercise entries: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var (
		entries   []ExerciseEntry
		positions []int
	)
	for rows.Next() {
		var (
			position int
			entry    ExerciseEntry
		)
		if err = rows.Scan(&position, &entry.Name, &entry.MuscleGroup, &entry.Equipment,
			&entry.Sets, &entry.Reps, &entry.RestSeconds, &entry.RPE); err != nil {
			return nil, fmt.Errorf("scan exercise entry: %w", err)
		}
		entries = append(entries, entry)
		positions = append(positions, position)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	for i, position := range positions {
		if entries[i].Targets, err = s.loadTargets(ctx, unitID, position); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (s *versionStore) loadTargets(ctx context.Context, unitID uuid.UUID, position int) (_ []SetTarget, err error) {
	rows, err := s.db.ReadOnly.QueryContext(ctx, `
		SELECT set_number, set_type, target_reps, target_weight_kg, target_rpe, target_rir
		FROM set_targets
		WHERE unit_id = ? AND entry_position = ?
		ORDER BY set_number`,
		unitID.String(), position)
	if err != nil {
		return nil, fmt.Errorf("query set targets: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var targets []SetTarget
	for rows.Next() {
		var (
			target SetTarget
			weight sql.NullFloat64
		)
		if err = rows.Scan(&target.SetNumber, &target.Type, &target.TargetReps,
			&weight, &target.TargetRPE, &target.TargetRIR); err != nil {
			return nil, fmt.Errorf("scan set target: %w", err)
		}
		if weight.Valid {
			w := weight.Float64
			target.TargetWeightKg = &w
		}
		targets = append(targets, target)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return targets, nil
}

// insertVersionRow writes one version row plus its entries and set targets.
func insertVersionRow(ctx context.Context, tx *sql.Tx, unit VersionedPlanUnit) error {
	metadata := unit.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal generation metadata: %w", err)
	}

	var validTo any
	if unit.ValidTo != nil {
		validTo = formatTimestamp(*unit.ValidTo)
	}
	var supersededBy any
	if unit.SupersededBy != nil {
		supersededBy = unit.SupersededBy.String()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO plan_units (
			id, lineage_id, user_id, scheduled_date, focus, name, notes,
			duration_minutes, is_completed, generation_method, generation_metadata,
			version_number, is_current, valid_from, valid_to, superseded_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		unit.ID.String(), unit.LineageID.String(), unit.UserID, formatDate(unit.ScheduledDate),
		unit.Focus, unit.Name, unit.Notes,
		unit.DurationMinutes, unit.IsCompleted, string(unit.Method), string(metadataJSON),
		unit.VersionNumber, unit.IsCurrent, formatTimestamp(unit.ValidFrom), validTo, supersededBy)
	if err != nil {
		return fmt.Errorf("insert plan unit version: %w", err)
	}

	for position, entry := range unit.Entries {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO exercise_entries (
				unit_id, position, name, muscle_group, equipment, sets, reps, rest_seconds, rpe
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			unit.ID.String(), position, entry.Name, entry.MuscleGroup, entry.Equipment,
			entry.Sets, entry.Reps, entry.RestSeconds, entry.RPE)
		if err != nil {
			return fmt.Errorf("insert exercise entry: %w", err)
		}
		for _, target := range entry.Targets {
			var weight any
			if target.TargetWeightKg != nil {
				weight = *target.TargetWeightKg
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO set_targets (
					unit_id, entry_position, set_number, set_type,
					target_reps, target_weight_kg, target_rpe, target_rir
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				unit.ID.String(), position, target.SetNumber, string(target.Type),
				target.TargetReps, weight, target.TargetRPE, target.TargetRIR)
			if err != nil {
				return fmt.Errorf("insert set target: %w", err)
			}
		}
	}
	return nil
}

// verifySingleCurrent asserts the SCD2 invariant inside the mutating
// transaction. A violation is fatal and must abort the commit: a lineage with
// zero or two current tails corrupts every future history read.
func verifySingleCurrent(ctx context.Context, tx *sql.Tx, lineageID uuid.UUID) error {
	var count int
	err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM plan_units WHERE lineage_id = ? AND is_current = 1`,
		lineageID.String()).Scan(&count)
	if err != nil {
		return fmt.Errorf("count current versions: %w", err)
	}
	if count != 1 {
		return fmt.Errorf("lineage %s has %d current versions, want exactly 1", lineageID, count)
	}
	return nil
}

// scanVersionRow scans one plan_units row from a QueryRow result.
func scanVersionRow(row *sql.Row) (VersionedPlanUnit, error) {
	var (
		unit            VersionedPlanUnit
		idStr           string
		lineageStr      string
		dateStr         string
		method          string
		metadataJSON    string
		validFromStr    string
		validToStr      sql.NullString
		supersededByStr sql.NullString
	)
	err := row.Scan(&idStr, &lineageStr, &unit.UserID, &dateStr, &unit.Focus, &unit.Name, &unit.Notes,
		&unit.DurationMinutes, &unit.IsCompleted, &method, &metadataJSON,
		&unit.VersionNumber, &unit.IsCurrent, &validFromStr, &validToStr, &supersededByStr)
	if err != nil {
		return VersionedPlanUnit{}, err
	}

	if unit.ID, err = uuid.Parse(idStr); err != nil {
		return VersionedPlanUnit{}, fmt.Errorf("parse unit id: %w", err)
	}
	if unit.LineageID, err = uuid.Parse(lineageStr); err != nil {
		return VersionedPlanUnit{}, fmt.Errorf("parse lineage id: %w", err)
	}
	if unit.ScheduledDate, err = time.Parse(dateFormat, dateStr); err != nil {
		return VersionedPlanUnit{}, fmt.Errorf("parse scheduled date: %w", err)
	}
	unit.Method = GenerationMethod(method)
	if err = json.Unmarshal([]byte(metadataJSON), &unit.Metadata); err != nil {
		return VersionedPlanUnit{}, fmt.Errorf("unmarshal generation metadata: %w", err)
	}
	if unit.ValidFrom, err = parseTimestamp(validFromStr); err != nil {
		return VersionedPlanUnit{}, fmt.Errorf("parse valid_from: %w", err)
	}
	if unit.ValidTo, err = parseNullableTimestamp(validToStr); err != nil {
		return VersionedPlanUnit{}, fmt.Errorf("parse valid_to: %w", err)
	}
	if supersededByStr.Valid {
		id, parseErr := uuid.Parse(supersededByStr.String)
		if parseErr != nil {
			return VersionedPlanUnit{}, fmt.Errorf("parse superseded_by: %w", parseErr)
		}
		unit.SupersededBy = &id
	}
	return unit, nil
}
