// Package legacy imports boards saved by the earlier single-file server: a
// signatures.json data file next to signatures/ and memories/ image
// directories.
package legacy

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/erazemk/yearbook/internal/imaging"
	"github.com/erazemk/yearbook/internal/model"
	"github.com/erazemk/yearbook/internal/store"
)

// File is the layout of signatures.json.
type File struct {
	Signatures        []Record        `json:"signatures"`
	PendingSignatures []Record        `json:"pendingSignatures"`
	PendingMemories   []Record        `json:"pendingMemories"`
	Settings          *model.Settings `json:"settings"`
}

// Record is one item as the old server stored it.
type Record struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	ContentType string          `json:"contentType"`
	Description string          `json:"description"`
	ImagePath   string          `json:"imagePath"`
	Timestamp   string          `json:"timestamp"`
	Position    *model.Position `json:"position"`
	Scale       float64         `json:"scale"`
}

// Result summarizes an import.
type Result struct {
	Imported      int
	Existing      int
	MissingImages int
	Invalid       int
	Settings      bool
}

// ReadFile parses a signatures.json file.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading data file: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &f, nil
}

// Import copies every record of the data file at dataPath into the
// database. Images are resolved against publicDir. Ids, names, positions,
// scales and timestamps are kept; records already in the database are
// skipped, so running an import twice is harmless.
func Import(ctx context.Context, db *sql.DB, dataPath, publicDir string, opts imaging.Options) (*Result, error) {
	f, err := ReadFile(dataPath)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	groups := []struct {
		records []Record
		status  string
		kind    string
	}{
		{f.Signatures, model.StatusApproved, ""},
		{f.PendingSignatures, model.StatusPending, model.KindSignature},
		{f.PendingMemories, model.StatusPending, model.KindMemory},
	}
	for _, g := range groups {
		for _, rec := range g.records {
			if err := importRecord(ctx, db, rec, g.status, g.kind, publicDir, opts, res); err != nil {
				return res, err
			}
		}
	}

	if f.Settings != nil {
		if err := store.SaveSettings(ctx, db, *f.Settings); err != nil {
			slog.Warn("legacy settings not imported", "error", err)
		} else {
			res.Settings = true
		}
	}

	slog.Info("legacy import finished", "file", dataPath, "imported", res.Imported,
		"existing", res.Existing, "missing_images", res.MissingImages, "invalid", res.Invalid)
	return res, nil
}

func importRecord(ctx context.Context, db *sql.DB, rec Record, status, kind, publicDir string, opts imaging.Options, res *Result) error {
	if kind == "" {
		kind = rec.ContentType
	}
	if kind == "" {
		kind = model.KindSignature
	}
	if rec.ID == "" || !model.ValidKind(kind) {
		slog.Warn("skipping malformed legacy record", "id", rec.ID, "kind", kind)
		res.Invalid++
		return nil
	}

	existing, err := store.GetItem(ctx, db, rec.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		res.Existing++
		return nil
	}

	imagePath := rec.ImagePath
	if imagePath == "" {
		imagePath = model.ImagePathFor(kind, rec.ID)
	}
	raw, err := os.ReadFile(filepath.Join(publicDir, filepath.FromSlash(imagePath)))
	if err != nil {
		slog.Warn("legacy image missing", "id", rec.ID, "path", imagePath, "error", err)
		res.MissingImages++
		return nil
	}
	processed, err := imaging.Process(bytes.NewReader(raw), kind, opts)
	if err != nil {
		slog.Warn("legacy image unusable", "id", rec.ID, "path", imagePath, "error", err)
		res.Invalid++
		return nil
	}

	in := store.NewItem{
		ID:          rec.ID,
		Kind:        kind,
		Name:        rec.Name,
		Description: strings.TrimSpace(rec.Description),
		Status:      status,
		Position:    rec.Position,
		Scale:       rec.Scale,
		Image:       processed.Data,
		ImageMIME:   processed.MIME,
	}
	if kind == model.KindSignature {
		in.Category = rec.Type
		if !model.ValidCategory(in.Category) {
			in.Category = model.CategoryStudent
		}
	}
	if in.Position != nil && !in.Position.Valid() {
		in.Position = nil
	}
	if t, err := time.Parse(time.RFC3339Nano, rec.Timestamp); err == nil {
		in.CreatedAt = t.UTC()
	}

	if _, err := store.CreateItem(ctx, db, in); err != nil {
		slog.Warn("legacy record rejected", "id", rec.ID, "error", err)
		res.Invalid++
		return nil
	}
	res.Imported++
	return nil
}
