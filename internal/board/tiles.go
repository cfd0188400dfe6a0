package board

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/erazemk/yearbook/internal/imaging"
	"github.com/erazemk/yearbook/internal/model"
)

// TouchLabelDuration is how long a tapped tile shows its name.
const TouchLabelDuration = 2 * time.Second

// Fit is how an image fills its tile frame.
type Fit int

const (
	// FitContain shows the whole image, letterboxed.
	FitContain Fit = iota
	// FitCover fills the frame, cropping the overflow.
	FitCover
)

// Glyph marks a tile's category.
type Glyph string

const (
	GlyphStudent Glyph = "🎓"
	GlyphTeacher Glyph = "👨‍🏫"
	GlyphMemory  Glyph = "📸"
)

// Tile is the render state of one approved item.
type Tile struct {
	Item   model.Item
	Fit    Fit
	Glyph  Glyph
	Width  float64
	Height float64

	ShowLabel  bool
	ShowBorder bool
	ShowHandle bool
}

// Tiles returns the render state of every item in board order.
func (b *Board) Tiles() []Tile {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	tiles := make([]Tile, len(b.items))
	for i, it := range b.items {
		scale := model.ClampScale(it.Scale)
		t := Tile{
			Item:       it,
			Fit:        FitContain,
			Glyph:      glyphFor(it),
			Width:      imaging.TileWidth * scale,
			Height:     imaging.TileHeight * scale,
			ShowBorder: !b.capturing,
			ShowHandle: b.admin && !b.capturing,
		}
		if it.Kind == model.KindMemory {
			t.Fit = FitCover
		}
		switch {
		case b.capturing:
			t.ShowLabel = true
		case b.hovered == it.ID:
			t.ShowLabel = true
		default:
			if until, ok := b.touched[it.ID]; ok && now.Before(until) {
				t.ShowLabel = true
			}
		}
		tiles[i] = t
	}
	return tiles
}

func glyphFor(it model.Item) Glyph {
	switch {
	case it.Kind == model.KindMemory:
		return GlyphMemory
	case it.Category == model.CategoryTeacher:
		return GlyphTeacher
	default:
		return GlyphStudent
	}
}

// Hover shows an item's name until Unhover.
func (b *Board) Hover(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hovered = id
}

// Unhover hides the hovered name.
func (b *Board) Unhover() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hovered = ""
}

// Touch shows an item's name for TouchLabelDuration.
func (b *Board) Touch(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	for k, until := range b.touched {
		if !now.Before(until) {
			delete(b.touched, k)
		}
	}
	b.touched[id] = now.Add(TouchLabelDuration)
}

// Export writes a snapshot of the board to path. While it runs every tile
// reports its label visible and its border hidden; the previous view state
// is restored afterwards whether or not the export succeeded.
func (b *Board) Export(ctx context.Context, path string) error {
	exporter, ok := b.api.(Exporter)
	if !ok {
		return ErrNoExporter
	}

	b.mu.Lock()
	b.capturing = true
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.capturing = false
		b.mu.Unlock()
	}()

	if err := exporter.Export(ctx, path); err != nil {
		slog.Error("board export failed", "path", path, "error", err)
		b.Notices.Error("Could not export the board")
		return fmt.Errorf("exporting board: %w", err)
	}
	b.Notices.Info("Board exported")
	return nil
}

// Capturing reports whether an export is in progress.
func (b *Board) Capturing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capturing
}
