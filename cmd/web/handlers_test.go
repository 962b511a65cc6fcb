package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mlahtinen/trainplan/internal/catalog"
	"github.com/mlahtinen/trainplan/internal/plan"
	"github.com/mlahtinen/trainplan/internal/sqlite"
	"github.com/mlahtinen/trainplan/internal/testhelpers"
)

func newTestApplication(t *testing.T) *application {
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

	return &application{
		logger:      logger,
		planService: plan.NewService(db, logger, catalog.New(db, logger), nil),
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func TestHealthy(t *testing.T) {
	app := newTestApplication(t)

	resp := doJSON(t, app.routes(), http.MethodGet, "/api/healthy", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("GET /api/healthy = %d, want 200", resp.Code)
	}
}

func TestUnitLifecycle(t *testing.T) {
	app := newTestApplication(t)
	routes := app.routes()

	createBody := `{
		"scheduled_date": "2026-09-07",
		"focus": "push",
		"name": "Handwritten push day",
		"entries": [
			{
				"name": "Push-Up",
				"muscle_group": "chest",
				"equipment": "bodyweight",
				"sets": 2,
				"reps": 15,
				"rest_seconds": 60,
				"rpe": 7,
				"targets": [
					{"set_number": 1, "set_type": "warmup", "target_reps": 19, "target_rpe": 5, "target_rir": 5},
					{"set_number": 2, "set_type": "working", "target_reps": 15, "target_rpe": 7, "target_rir": 3}
				]
			}
		]
	}`
	resp := doJSON(t, routes, http.MethodPost, "/api/users/user-1/units", createBody)
	if resp.Code != http.StatusCreated {
		t.Fatalf("create unit = %d: %s", resp.Code, resp.Body.String())
	}

	var created unitJSON
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created unit: %v", err)
	}
	if created.VersionNumber != 1 || !created.IsCurrent || created.Method != "manual" {
		t.Errorf("created unit = v%d current=%v method=%s, want manual v1 current",
			created.VersionNumber, created.IsCurrent, created.Method)
	}

	resp = doJSON(t, routes, http.MethodGet, "/api/units/"+created.ID, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("get unit = %d", resp.Code)
	}

	resp = doJSON(t, routes, http.MethodGet, "/api/users/user-1/plans/2026-09-07", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("get current plan = %d", resp.Code)
	}

	resp = doJSON(t, routes, http.MethodPost, "/api/units/"+created.ID+"/complete", `{"completed": true}`)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("complete unit = %d", resp.Code)
	}

	resp = doJSON(t, routes, http.MethodGet, "/api/lineages/"+created.LineageID+"/history", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("get history = %d", resp.Code)
	}
	var history []versionInfoJSON
	if err := json.Unmarshal(resp.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("history has %d versions, want 1", len(history))
	}

	resp = doJSON(t, routes, http.MethodPost, "/api/lineages/"+created.LineageID+"/revert", `{"target_version": 42}`)
	if resp.Code != http.StatusNotFound {
		t.Errorf("revert to missing version = %d, want 404", resp.Code)
	}
}

func TestGenerateRangeValidation(t *testing.T) {
	app := newTestApplication(t)
	routes := app.routes()

	resp := doJSON(t, routes, http.MethodPost, "/api/users/user-1/plan-generations",
		`{"from": "not-a-date", "to": "2026-09-10"}`)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("bad from date = %d, want 400", resp.Code)
	}

	resp = doJSON(t, routes, http.MethodPost, "/api/users/user-1/plan-generations",
		`{"from": "2026-09-10", "to": "2026-09-07"}`)
	if resp.Code != http.StatusInternalServerError && resp.Code != http.StatusBadRequest {
		t.Errorf("empty range = %d, want error status", resp.Code)
	}
}

func TestGenerateRangeEndToEnd(t *testing.T) {
	app := newTestApplication(t)
	routes := app.routes()

	resp := doJSON(t, routes, http.MethodPost, "/api/users/user-1/plan-generations",
		`{"from": "2026-09-07", "to": "2026-09-09"}`)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("start generation = %d: %s", resp.Code, resp.Body.String())
	}
	var started struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &started); err != nil {
		t.Fatalf("decode job id: %v", err)
	}

	var job jobJSON
	deadline := time.Now().Add(30 * time.Second)
	for {
		resp = doJSON(t, routes, http.MethodGet, "/api/generation-jobs/"+started.JobID, "")
		if resp.Code != http.StatusOK {
			t.Fatalf("poll job = %d", resp.Code)
		}
		if err := json.Unmarshal(resp.Body.Bytes(), &job); err != nil {
			t.Fatalf("decode job: %v", err)
		}
		if job.Status == "completed" || job.Status == "failed" {
			time.Sleep(100 * time.Millisecond)
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job not terminal in time, status %s", job.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if job.Status != "completed" || job.TotalGenerated != 3 {
		t.Fatalf("job = %s %d/%d (%s), want completed 3/3",
			job.Status, job.TotalGenerated, job.TotalExpected, job.ErrorMessage)
	}

	resp = doJSON(t, routes, http.MethodGet, "/api/users/user-1/plans/2026-09-07", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("get generated plan = %d", resp.Code)
	}
	var unit unitJSON
	if err := json.Unmarshal(resp.Body.Bytes(), &unit); err != nil {
		t.Fatalf("decode unit: %v", err)
	}
	if len(unit.Entries) == 0 {
		t.Error("generated plan has no exercises")
	}

	// Regenerating supersedes the current version.
	resp = doJSON(t, routes, http.MethodPost, "/api/units/"+unit.ID+"/regenerate", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("regenerate = %d: %s", resp.Code, resp.Body.String())
	}
	var regenerated unitJSON
	if err := json.Unmarshal(resp.Body.Bytes(), &regenerated); err != nil {
		t.Fatalf("decode regenerated unit: %v", err)
	}
	if regenerated.VersionNumber != 2 || regenerated.Method != "regenerated" {
		t.Errorf("regenerated unit = v%d method=%s, want regenerated v2",
			regenerated.VersionNumber, regenerated.Method)
	}
}

func TestUnknownIDsReturnNotFound(t *testing.T) {
	app := newTestApplication(t)
	routes := app.routes()

	paths := []string{
		"/api/generation-jobs/" + uuid.NewString(),
		"/api/units/" + uuid.NewString(),
		"/api/lineages/" + uuid.NewString() + "/history",
		"/api/users/user-1/plans/2026-09-07",
	}
	for _, path := range paths {
		if resp := doJSON(t, routes, http.MethodGet, path, ""); resp.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, resp.Code)
		}
	}

	if resp := doJSON(t, routes, http.MethodGet, "/api/units/not-a-uuid", ""); resp.Code != http.StatusNotFound {
		t.Errorf("invalid uuid = %d, want 404", resp.Code)
	}
}
