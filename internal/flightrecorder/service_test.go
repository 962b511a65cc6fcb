package flightrecorder_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/mlahtinen/trainplan/internal/flightrecorder"
	"github.com/mlahtinen/trainplan/internal/testhelpers"
)

func newService(t *testing.T) (*flightrecorder.Service, string) {
	t.Helper()
	traceDir := t.TempDir()

	service, err := flightrecorder.New(flightrecorder.Config{
		Logger:          testhelpers.NewLogger(testhelpers.NewWriter(t)),
		MinAge:          0,
		MaxBytes:        0,
		TracesDirectory: traceDir,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return service, traceDir
}

func TestService_StartStop(t *testing.T) {
	service, _ := newService(t)
	ctx := context.Background()

	if err := service.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	service.Stop(ctx)
}

func TestService_Capture(t *testing.T) {
	service, traceDir := newService(t)
	ctx := context.Background()

	if err := service.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer service.Stop(ctx)

	if err := service.Capture(ctx); err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	entries, err := os.ReadDir(traceDir)
	if err != nil {
		t.Fatalf("failed to read trace directory: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected at least one trace file to be created")
	}

	filename := entries[0].Name()
	if !strings.HasPrefix(filename, "slow-generation-") {
		t.Errorf("expected filename to start with 'slow-generation-', got %s", filename)
	}
	if !strings.HasSuffix(filename, ".trace") {
		t.Errorf("expected filename to end with '.trace', got %s", filename)
	}
}

func TestService_CooldownPreventsCapture(t *testing.T) {
	service, traceDir := newService(t)
	ctx := context.Background()

	if err := service.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer service.Stop(ctx)

	if err := service.Capture(ctx); err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	// The second capture lands inside the cooldown and must be a no-op.
	if err := service.Capture(ctx); err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	entries, err := os.ReadDir(traceDir)
	if err != nil {
		t.Fatalf("failed to read trace directory: %v", err)
	}
	if len(entries) > 1 {
		t.Error("expected cooldown to prevent rapid successive captures")
	}
}
