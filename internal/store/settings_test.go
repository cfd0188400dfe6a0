package store

import (
	"context"
	"testing"

	"github.com/erazemk/yearbook/internal/db"
	"github.com/erazemk/yearbook/internal/model"
)

func TestGetSettingsDefaults(t *testing.T) {
	database := db.NewTestDB(t)

	settings, err := GetSettings(context.Background(), database)
	if err != nil {
		t.Fatal(err)
	}
	if settings != model.DefaultSettings() {
		t.Errorf("expected defaults, got %+v", settings)
	}
}

func TestSaveSettings(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	want := model.Settings{BackgroundTheme: "bg-pattern-2", GridSize: model.GridSize{Rows: 4, Cols: 10}}
	if err := SaveSettings(ctx, database, want); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	// Saving twice must update, not conflict.
	if err := SaveSettings(ctx, database, want); err != nil {
		t.Fatalf("SaveSettings again: %v", err)
	}

	got, err := GetSettings(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestSaveSettingsValidation(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if err := SaveSettings(ctx, database, model.Settings{BackgroundTheme: "neon", GridSize: model.GridSize{Rows: 1, Cols: 1}}); err == nil {
		t.Error("expected error for unknown theme")
	}
	if err := SaveSettings(ctx, database, model.Settings{BackgroundTheme: "bg-gradient-1"}); err == nil {
		t.Error("expected error for zero grid")
	}
}
