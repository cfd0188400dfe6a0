package db

import (
	"testing"
)

func TestEnsureSchemaIdempotent(t *testing.T) {
	database, path := NewFileTestDB(t)

	_, err := database.Exec(
		`INSERT INTO settings (key, value) VALUES ('backgroundTheme', 'bg-pattern-1')`)
	if err != nil {
		t.Fatalf("inserting setting: %v", err)
	}
	database.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer reopened.Close()

	if err := EnsureSchema(reopened); err != nil {
		t.Fatalf("second EnsureSchema: %v", err)
	}

	var value string
	if err := reopened.QueryRow(`SELECT value FROM settings WHERE key = 'backgroundTheme'`).Scan(&value); err != nil {
		t.Fatalf("reading setting: %v", err)
	}
	if value != "bg-pattern-1" {
		t.Errorf("value = %q, want data to survive schema re-application", value)
	}
}

func TestOpenPragmas(t *testing.T) {
	database, _ := NewFileTestDB(t)

	var mode string
	if err := database.QueryRow(`PRAGMA journal_mode`).Scan(&mode); err != nil {
		t.Fatalf("reading journal mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	var fk int
	if err := database.QueryRow(`PRAGMA foreign_keys`).Scan(&fk); err != nil {
		t.Fatalf("reading foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Error("foreign keys should be enabled")
	}
}
