package main

import (
	"net/http"
	"time"

	"github.com/mlahtinen/trainplan/internal/plan"
)

// JSON shapes of the API. The domain structs stay transport-agnostic; the
// handlers own the mapping.

type setTargetJSON struct {
	SetNumber      int      `json:"set_number"`
	SetType        string   `json:"set_type"`
	TargetReps     int      `json:"target_reps"`
	TargetWeightKg *float64 `json:"target_weight_kg,omitempty"`
	TargetRPE      float64  `json:"target_rpe"`
	TargetRIR      float64  `json:"target_rir"`
}

type exerciseEntryJSON struct {
	Name        string          `json:"name"`
	MuscleGroup string          `json:"muscle_group"`
	Equipment   string          `json:"equipment"`
	Sets        int             `json:"sets"`
	Reps        int             `json:"reps"`
	RestSeconds int             `json:"rest_seconds"`
	RPE         float64         `json:"rpe"`
	Targets     []setTargetJSON `json:"targets"`
}

type unitJSON struct {
	ID              string              `json:"id"`
	LineageID       string              `json:"lineage_id"`
	UserID          string              `json:"user_id"`
	ScheduledDate   string              `json:"scheduled_date"`
	Focus           string              `json:"focus"`
	Name            string              `json:"name"`
	Notes           string              `json:"notes"`
	DurationMinutes int                 `json:"duration_minutes"`
	Entries         []exerciseEntryJSON `json:"entries"`
	IsCompleted     bool                `json:"is_completed"`
	Method          string              `json:"generation_method"`
	Metadata        map[string]string   `json:"generation_metadata"`
	VersionNumber   int                 `json:"version_number"`
	IsCurrent       bool                `json:"is_current"`
	ValidFrom       time.Time           `json:"valid_from"`
	ValidTo         *time.Time          `json:"valid_to,omitempty"`
	SupersededBy    *string             `json:"superseded_by,omitempty"`
}

type jobJSON struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Status         string    `json:"status"`
	TotalExpected  int       `json:"total_expected"`
	TotalGenerated int       `json:"total_generated"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type versionInfoJSON struct {
	UnitID        string     `json:"unit_id"`
	VersionNumber int        `json:"version_number"`
	IsCurrent     bool       `json:"is_current"`
	ValidFrom     time.Time  `json:"valid_from"`
	ValidTo       *time.Time `json:"valid_to,omitempty"`
	Method        string     `json:"generation_method"`
	Name          string     `json:"name"`
}

func toUnitJSON(unit plan.VersionedPlanUnit) unitJSON {
	entries := make([]exerciseEntryJSON, 0, len(unit.Entries))
	for _, entry := range unit.Entries {
		targets := make([]setTargetJSON, 0, len(entry.Targets))
		for _, target := range entry.Targets {
			targets = append(targets, setTargetJSON{
				SetNumber:      target.SetNumber,
				SetType:        string(target.Type),
				TargetReps:     target.TargetReps,
				TargetWeightKg: target.TargetWeightKg,
				TargetRPE:      target.TargetRPE,
				TargetRIR:      target.TargetRIR,
			})
		}
		entries = append(entries, exerciseEntryJSON{
			Name:        entry.Name,
			MuscleGroup: entry.MuscleGroup,
			Equipment:   entry.Equipment,
			Sets:        entry.Sets,
			Reps:        entry.Reps,
			RestSeconds: entry.RestSeconds,
			RPE:         entry.RPE,
			Targets:     targets,
		})
	}

	var supersededBy *string
	if unit.SupersededBy != nil {
		s := unit.SupersededBy.String()
		supersededBy = &s
	}
	return unitJSON{
		ID:              unit.ID.String(),
		LineageID:       unit.LineageID.String(),
		UserID:          unit.UserID,
		ScheduledDate:   unit.ScheduledDate.Format(time.DateOnly),
		Focus:           unit.Focus,
		Name:            unit.Name,
		Notes:           unit.Notes,
		DurationMinutes: unit.DurationMinutes,
		Entries:         entries,
		IsCompleted:     unit.IsCompleted,
		Method:          string(unit.Method),
		Metadata:        unit.Metadata,
		VersionNumber:   unit.VersionNumber,
		IsCurrent:       unit.IsCurrent,
		ValidFrom:       unit.ValidFrom,
		ValidTo:         unit.ValidTo,
		SupersededBy:    supersededBy,
	}
}

func toJobJSON(job plan.GenerationJob) jobJSON {
	return jobJSON{
		ID:             job.ID.String(),
		UserID:         job.UserID,
		Status:         string(job.Status),
		TotalExpected:  job.TotalExpected,
		TotalGenerated: job.TotalGenerated,
		ErrorMessage:   job.ErrorMessage,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
	}
}

type generateRangeRequest struct {
	From              string   `json:"from"`
	To                string   `json:"to"`
	Preset            string   `json:"preset"`
	Equipment         []string `json:"equipment"`
	Level             string   `json:"level"`
	Goals             []string `json:"goals"`
	Focuses           []string `json:"focuses"`
	BatchSize         int      `json:"batch_size"`
	VarietyWindowDays int      `json:"variety_window_days"`
}

func (app *application) generateRangePOST(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	var req generateRangeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		app.clientError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	from, err := time.Parse(time.DateOnly, req.From)
	if err != nil {
		app.clientError(w, r, http.StatusBadRequest, "invalid from date")
		return
	}
	to, err := time.Parse(time.DateOnly, req.To)
	if err != nil {
		app.clientError(w, r, http.StatusBadRequest, "invalid to date")
		return
	}

	jobID, err := app.planService.GenerateRange(r.Context(), userID, from, to, plan.GenerationParams{
		Preset:            req.Preset,
		Equipment:         req.Equipment,
		Level:             req.Level,
		Goals:             req.Goals,
		Focuses:           req.Focuses,
		BatchSize:         req.BatchSize,
		VarietyWindowDays: req.VarietyWindowDays,
	})
	if err != nil {
		if app.mapDomainError(w, r, err, nil, plan.ErrDuplicateJob) {
			return
		}
		app.serverError(w, r, err)
		return
	}

	app.writeJSON(w, r, http.StatusAccepted, struct {
		JobID string `json:"job_id"`
	}{JobID: jobID.String()})
}

func (app *application) jobStatusGET(w http.ResponseWriter, r *http.Request) {
	jobID, ok := app.parseUUIDParam(w, r, "jobID")
	if !ok {
		return
	}

	job, err := app.planService.GetJobStatus(r.Context(), jobID)
	if err != nil {
		if app.mapDomainError(w, r, err, plan.ErrNotFound, nil) {
			return
		}
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, toJobJSON(job))
}

func (app *application) jobCancelPOST(w http.ResponseWriter, r *http.Request) {
	jobID, ok := app.parseUUIDParam(w, r, "jobID")
	if !ok {
		return
	}

	if err := app.planService.CancelJob(jobID); err != nil {
		if app.mapDomainError(w, r, err, plan.ErrNotFound, nil) {
			return
		}
		app.serverError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (app *application) unitGET(w http.ResponseWriter, r *http.Request) {
	unitID, ok := app.parseUUIDParam(w, r, "unitID")
	if !ok {
		return
	}

	unit, err := app.planService.GetUnit(r.Context(), unitID)
	if err != nil {
		if app.mapDomainError(w, r, err, plan.ErrNotFound, nil) {
			return
		}
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, toUnitJSON(unit))
}

type regenerateRequest struct {
	Preset            string   `json:"preset"`
	Equipment         []string `json:"equipment"`
	Level             string   `json:"level"`
	Goals             []string `json:"goals"`
	VarietyWindowDays int      `json:"variety_window_days"`
}

func (app *application) unitRegeneratePOST(w http.ResponseWriter, r *http.Request) {
	unitID, ok := app.parseUUIDParam(w, r, "unitID")
	if !ok {
		return
	}

	var req regenerateRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			app.clientError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}

	unit, err := app.planService.RegenerateUnit(r.Context(), unitID, plan.GenerationParams{
		Preset:            req.Preset,
		Equipment:         req.Equipment,
		Level:             req.Level,
		Goals:             req.Goals,
		VarietyWindowDays: req.VarietyWindowDays,
	})
	if err != nil {
		switch {
		case app.mapDomainError(w, r, err, plan.ErrNotFound, plan.ErrConcurrentModification):
		case app.mapDomainError(w, r, err, nil, plan.ErrNoCandidates):
		default:
			app.serverError(w, r, err)
		}
		return
	}
	app.writeJSON(w, r, http.StatusOK, toUnitJSON(unit))
}

func (app *application) unitCompletePOST(w http.ResponseWriter, r *http.Request) {
	unitID, ok := app.parseUUIDParam(w, r, "unitID")
	if !ok {
		return
	}

	var req struct {
		Completed bool `json:"completed"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		app.clientError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := app.planService.MarkCompleted(r.Context(), unitID, req.Completed); err != nil {
		if app.mapDomainError(w, r, err, plan.ErrNotFound, nil) {
			return
		}
		app.serverError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createUnitRequest struct {
	ScheduledDate string              `json:"scheduled_date"`
	Focus         string              `json:"focus"`
	Name          string              `json:"name"`
	Notes         string              `json:"notes"`
	Entries       []exerciseEntryJSON `json:"entries"`
}

func (app *application) unitCreatePOST(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	var req createUnitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		app.clientError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	date, err := time.Parse(time.DateOnly, req.ScheduledDate)
	if err != nil {
		app.clientError(w, r, http.StatusBadRequest, "invalid scheduled_date")
		return
	}

	entries := make([]plan.ExerciseEntry, 0, len(req.Entries))
	for _, entry := range req.Entries {
		targets := make([]plan.SetTarget, 0, len(entry.Targets))
		for _, target := range entry.Targets {
			targets = append(targets, plan.SetTarget{
				SetNumber:      target.SetNumber,
				Type:           plan.SetType(target.SetType),
				TargetReps:     target.TargetReps,
				TargetWeightKg: target.TargetWeightKg,
				TargetRPE:      target.TargetRPE,
				TargetRIR:      target.TargetRIR,
			})
		}
		entries = append(entries, plan.ExerciseEntry{
			Name:        entry.Name,
			MuscleGroup: entry.MuscleGroup,
			Equipment:   entry.Equipment,
			Sets:        entry.Sets,
			Reps:        entry.Reps,
			RestSeconds: entry.RestSeconds,
			RPE:         entry.RPE,
			Targets:     targets,
		})
	}

	unit, err := app.planService.CreateUnit(r.Context(), plan.PlanUnit{
		UserID:        userID,
		ScheduledDate: date,
		Focus:         req.Focus,
		Name:          req.Name,
		Notes:         req.Notes,
		Entries:       entries,
	})
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated, toUnitJSON(unit))
}

func (app *application) currentForDateGET(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	date, ok := app.parseDateParam(w, r, "date")
	if !ok {
		return
	}

	unit, err := app.planService.GetCurrentForDate(r.Context(), userID, date)
	if err != nil {
		if app.mapDomainError(w, r, err, plan.ErrNotFound, nil) {
			return
		}
		app.serverError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, toUnitJSON(unit))
}

func (app *application) historyGET(w http.ResponseWriter, r *http.Request) {
	lineageID, ok := app.parseUUIDParam(w, r, "lineageID")
	if !ok {
		return
	}

	history, err := app.planService.GetHistory(r.Context(), lineageID)
	if err != nil {
		if app.mapDomainError(w, r, err, plan.ErrNotFound, nil) {
			return
		}
		app.serverError(w, r, err)
		return
	}

	infos := make([]versionInfoJSON, 0, len(history))
	for _, info := range history {
		infos = append(infos, versionInfoJSON{
			UnitID:        info.UnitID.String(),
			VersionNumber: info.VersionNumber,
			IsCurrent:     info.IsCurrent,
			ValidFrom:     info.ValidFrom,
			ValidTo:       info.ValidTo,
			Method:        string(info.Method),
			Name:          info.Name,
		})
	}
	app.writeJSON(w, r, http.StatusOK, infos)
}

func (app *application) revertPOST(w http.ResponseWriter, r *http.Request) {
	lineageID, ok := app.parseUUIDParam(w, r, "lineageID")
	if !ok {
		return
	}

	var req struct {
		TargetVersion int `json:"target_version"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		app.clientError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	unit, err := app.planService.RevertUnit(r.Context(), lineageID, req.TargetVersion)
	if err != nil {
		switch {
		case app.mapDomainError(w, r, err, plan.ErrVersionNotFound, plan.ErrConcurrentModification):
		case app.mapDomainError(w, r, err, plan.ErrNotFound, nil):
		default:
			app.serverError(w, r, err)
		}
		return
	}
	app.writeJSON(w, r, http.StatusOK, toUnitJSON(unit))
}

func (app *application) healthy(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, r, http.StatusOK, struct {
		Status string `json:"status"`
	}{Status: "ok"})
}
