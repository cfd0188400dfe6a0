package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/erazemk/yearbook/internal/model"
)

// Settings keys.
const (
	settingTheme    = "background_theme"
	settingGridRows = "grid_rows"
	settingGridCols = "grid_cols"
)

// GetSettings returns the board settings, falling back to defaults for
// anything not stored.
func GetSettings(ctx context.Context, db *sql.DB) (model.Settings, error) {
	settings := model.DefaultSettings()

	rows, err := db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return settings, fmt.Errorf("querying settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return settings, fmt.Errorf("scanning setting: %w", err)
		}
		switch key {
		case settingTheme:
			settings.BackgroundTheme = value
		case settingGridRows:
			if n, err := strconv.Atoi(value); err == nil {
				settings.GridSize.Rows = n
			}
		case settingGridCols:
			if n, err := strconv.Atoi(value); err == nil {
				settings.GridSize.Cols = n
			}
		}
	}
	return settings, rows.Err()
}

// SaveSettings stores the board settings.
func SaveSettings(ctx context.Context, db *sql.DB, settings model.Settings) error {
	if !model.ValidTheme(settings.BackgroundTheme) {
		return fmt.Errorf("unknown background theme %q", settings.BackgroundTheme)
	}
	if settings.GridSize.Rows <= 0 || settings.GridSize.Cols <= 0 {
		return fmt.Errorf("grid size must be positive")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	values := map[string]string{
		settingTheme:    settings.BackgroundTheme,
		settingGridRows: strconv.Itoa(settings.GridSize.Rows),
		settingGridCols: strconv.Itoa(settings.GridSize.Cols),
	}
	for key, value := range values {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?)
			 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
			key, value,
		)
		if err != nil {
			return fmt.Errorf("storing setting %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing settings: %w", err)
	}
	return nil
}
