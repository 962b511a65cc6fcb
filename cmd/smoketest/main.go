// Command smoketest exercises a running server end to end: it starts a
// generation job, polls it to completion, and reads back the generated plan.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mlahtinen/trainplan/internal/logging"
	"github.com/mlahtinen/trainplan/internal/testhelpers"
)

const (
	readyTimeout = 30 * time.Second
	jobTimeout   = 2 * time.Minute
)

type client struct {
	baseURL string
	http    *http.Client
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, string(payload))
	}
	if out != nil {
		if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}

func (c *client) waitForReady(ctx context.Context) error {
	deadline := time.Now().Add(readyTimeout)
	for time.Now().Before(deadline) {
		if err := c.do(ctx, http.MethodGet, "/api/healthy", nil, nil); err == nil {
			return nil
		}
		time.Sleep(time.Second)
	}
	return fmt.Errorf("server not ready within %s", readyTimeout)
}

func testGeneration(ctx context.Context, c *client, logger *slog.Logger) error {
	userID := fmt.Sprintf("smoketest-%d", time.Now().UnixNano())
	from := time.Now().AddDate(0, 0, 1)
	to := from.AddDate(0, 0, 4)

	var started struct {
		JobID string `json:"job_id"`
	}
	err := c.do(ctx, http.MethodPost, "/api/users/"+userID+"/plan-generations", map[string]string{
		"from": from.Format(time.DateOnly),
		"to":   to.Format(time.DateOnly),
	}, &started)
	if err != nil {
		return fmt.Errorf("start generation: %w", err)
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "generation started", slog.String("job_id", started.JobID))

	var job struct {
		Status         string `json:"status"`
		TotalExpected  int    `json:"total_expected"`
		TotalGenerated int    `json:"total_generated"`
		ErrorMessage   string `json:"error_message"`
	}
	deadline := time.Now().Add(jobTimeout)
	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("job %s not terminal within %s", started.JobID, jobTimeout)
		}
		if err = c.do(ctx, http.MethodGet, "/api/generation-jobs/"+started.JobID, nil, &job); err != nil {
			return fmt.Errorf("poll job: %w", err)
		}
		if job.Status == "completed" || job.Status == "failed" {
			break
		}
		time.Sleep(time.Second)
	}
	if job.Status != "completed" {
		return fmt.Errorf("job finished as %s: %s", job.Status, job.ErrorMessage)
	}
	if job.TotalGenerated != job.TotalExpected {
		return fmt.Errorf("generated %d of %d units: %s", job.TotalGenerated, job.TotalExpected, job.ErrorMessage)
	}

	var unit struct {
		LineageID string `json:"lineage_id"`
		Entries   []struct {
			Name string `json:"name"`
		} `json:"entries"`
	}
	path := fmt.Sprintf("/api/users/%s/plans/%s", userID, from.Format(time.DateOnly))
	if err = c.do(ctx, http.MethodGet, path, nil, &unit); err != nil {
		return fmt.Errorf("read generated plan: %w", err)
	}
	if len(unit.Entries) == 0 {
		return fmt.Errorf("generated plan has no exercises")
	}

	var history []struct {
		VersionNumber int `json:"version_number"`
	}
	if err = c.do(ctx, http.MethodGet, "/api/lineages/"+unit.LineageID+"/history", nil, &history); err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	if len(history) != 1 || history[0].VersionNumber != 1 {
		return fmt.Errorf("fresh lineage should have exactly version 1, got %d entries", len(history))
	}
	return nil
}

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	ctx := context.Background()

	if len(os.Args) != 2 {
		logger.LogAttrs(ctx, slog.LevelError, "usage: smoketest <hostname>")
		os.Exit(1)
	}

	hostname := os.Args[1]
	ctx = logging.WithAttrs(ctx, slog.String("hostname", hostname))
	url := "https://" + hostname
	if strings.Contains(hostname, "localhost") {
		url = "http://" + hostname
	}

	c := &client{
		baseURL: url,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	start := time.Now()

	if err := c.waitForReady(ctx); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "server not ready in time", slog.Any("error", err))
		os.Exit(1)
	}
	if err := testGeneration(ctx, c, logger); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error testing generation", slog.Any("error", err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test successful 🙌", slog.Duration("duration", time.Since(start)))
}
