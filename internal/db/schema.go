package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS items (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL CHECK (length(name) > 0),
    kind         TEXT NOT NULL CHECK (kind IN ('signature', 'memory')),
    category     TEXT CHECK (category IS NULL OR category IN ('student', 'teacher')),
    description  TEXT,
    status       TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved')),
    pos_x        REAL NOT NULL DEFAULT 0,
    pos_y        REAL NOT NULL DEFAULT 0,
    scale        REAL NOT NULL DEFAULT 1 CHECK (scale >= 0.3 AND scale <= 5.0),
    created_at   DATETIME NOT NULL,
    approved_at  DATETIME,
    updated_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_items_status_created
    ON items(status, created_at);

CREATE TABLE IF NOT EXISTS images (
    item_id  TEXT PRIMARY KEY REFERENCES items(id) ON DELETE CASCADE,
    data     BLOB NOT NULL,
    mime     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tombstones (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    kind         TEXT NOT NULL,
    category     TEXT,
    description  TEXT,
    status       TEXT NOT NULL CHECK (status IN ('rejected', 'deleted')),
    created_at   DATETIME NOT NULL,
    removed_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: history queries sort tombstones by removal time.
	`CREATE INDEX IF NOT EXISTS idx_tombstones_removed
	     ON tombstones(removed_at)`,
}

// EnsureSchema creates all tables and indexes if they don't already exist,
// then applies pending migrations.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}
	return nil
}
