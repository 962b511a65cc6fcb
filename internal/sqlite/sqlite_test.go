package sqlite_test

import (
	"context"
	"testing"

	"github.com/mlahtinen/trainplan/internal/sqlite"
	"github.com/mlahtinen/trainplan/internal/testhelpers"
)

func newDatabase(t *testing.T) *sqlite.Database {
	t.Helper()

	db, err := sqlite.NewDatabase(context.Background(), ":memory:", testhelpers.NewLogger(testhelpers.NewWriter(t)))
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	t.Cleanup(func() {
		if closeErr := db.Close(); closeErr != nil {
			t.Errorf("close database: %v", closeErr)
		}
	})
	return db
}

func TestNewDatabase_AppliesSchemaAndFixtures(t *testing.T) {
	db := newDatabase(t)
	ctx := context.Background()

	var exercises int
	if err := db.ReadOnly.QueryRowContext(ctx, "SELECT COUNT(*) FROM exercises").Scan(&exercises); err != nil {
		t.Fatalf("count exercises: %v", err)
	}
	if exercises == 0 {
		t.Error("exercise catalog not seeded")
	}

	var units int
	if err := db.ReadOnly.QueryRowContext(ctx, "SELECT COUNT(*) FROM plan_units").Scan(&units); err != nil {
		t.Fatalf("count plan units: %v", err)
	}
	if units != 0 {
		t.Errorf("plan_units has %d rows on a fresh database, want 0", units)
	}
}

func TestSingleCurrentIndexGuardsLineage(t *testing.T) {
	db := newDatabase(t)
	ctx := context.Background()

	insert := `
		INSERT INTO plan_units (
			id, lineage_id, user_id, scheduled_date, focus, generation_method,
			version_number, is_current, valid_from
		) VALUES (?, ?, 'user-1', '2026-09-07', 'push', 'manual', ?, 1, '2026-09-01T00:00:00.000Z')`

	if _, err := db.ReadWrite.ExecContext(ctx, insert, "unit-1", "lineage-1", 1); err != nil {
		t.Fatalf("insert first current version: %v", err)
	}
	// A second current row for the same lineage must be rejected by the
	// partial unique index.
	if _, err := db.ReadWrite.ExecContext(ctx, insert, "unit-2", "lineage-1", 2); err == nil {
		t.Error("second current version for one lineage accepted, want unique index violation")
	}
}
