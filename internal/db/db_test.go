package db

import (
	"io/fs"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/scribeai/scribe/internal/config"
)

func TestParseUUIDRoundTrip(t *testing.T) {
	t.Parallel()

	id := "6f1c2d3e-4a5b-4c6d-8e9f-0a1b2c3d4e5f"
	pgID, err := ParseUUID(" " + id + " ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := UUIDToString(pgID); got != id {
		t.Fatalf("UUIDToString = %q, want %q", got, id)
	}
	if _, err := ParseUUID("not-a-uuid"); err == nil {
		t.Fatalf("expected error for invalid uuid")
	}
	if UUIDToString(pgtype.UUID{}) != "" {
		t.Fatalf("expected empty string for NULL uuid")
	}
}

func TestParseUUIDsStopsOnInvalid(t *testing.T) {
	t.Parallel()

	if _, err := ParseUUIDs([]string{"6f1c2d3e-4a5b-4c6d-8e9f-0a1b2c3d4e5f", "bad"}); err == nil {
		t.Fatalf("expected error")
	}
	ids, err := ParseUUIDs(nil)
	if err != nil || len(ids) != 0 {
		t.Fatalf("expected empty result, got %v, %v", ids, err)
	}
}

func TestInt4Pointers(t *testing.T) {
	t.Parallel()

	if Int4ToPtr(pgtype.Int4{}) != nil {
		t.Fatalf("NULL should map to nil")
	}
	n := 7
	v := PtrToInt4(&n)
	if !v.Valid || v.Int32 != 7 {
		t.Fatalf("unexpected int4: %+v", v)
	}
	if got := Int4ToPtr(v); got == nil || *got != 7 {
		t.Fatalf("unexpected pointer: %v", got)
	}
	if PtrToInt4(nil).Valid {
		t.Fatalf("nil should map to NULL")
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	t.Parallel()

	ups, err := fs.Glob(migrationFS, "migrations/*.up.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	downs, _ := fs.Glob(migrationFS, "migrations/*.down.sql")
	if len(ups) == 0 || len(ups) != len(downs) {
		t.Fatalf("expected paired migrations, got up=%v down=%v", ups, downs)
	}
}

func TestMigrateURL(t *testing.T) {
	t.Parallel()

	cfg := config.PostgresConfig{Host: "h", Port: 5432, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	if got := migrateURL(cfg); got != "pgx5://u:p@h:5432/d?sslmode=disable" {
		t.Fatalf("unexpected url: %s", got)
	}
}
