package board

import (
	"context"
	"log/slog"
	"math"

	"github.com/erazemk/yearbook/internal/model"
)

// ResizeSensitivity converts pointer travel in pixels to relative scale
// change.
const ResizeSensitivity = 0.002

// GestureKind identifies the active gesture.
type GestureKind int

const (
	NoGesture GestureKind = iota
	Dragging
	Resizing
)

func (k GestureKind) String() string {
	switch k {
	case Dragging:
		return "drag"
	case Resizing:
		return "resize"
	default:
		return "none"
	}
}

type gesture struct {
	kind GestureKind
	id   string

	// Drag: pointer position relative to the tile origin, in board space.
	offset model.Position

	// Resize: starting pointer position on screen and the scale at that time.
	start        model.Position
	initialScale float64
}

// Gesture returns the active gesture kind and the item it targets.
func (b *Board) Gesture() (GestureKind, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gesture == nil {
		return NoGesture, ""
	}
	return b.gesture.kind, b.gesture.id
}

// PointerDown starts dragging a tile. It returns false, and changes
// nothing, when the board is not in admin mode, another gesture is active,
// or the item is unknown.
func (b *Board) PointerDown(id string, screen model.Position) bool {
	if !b.admin {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gesture != nil {
		return false
	}
	i := b.indexOf(id)
	if i < 0 {
		return false
	}

	pointer := screen.Div(b.zoom)
	b.gesture = &gesture{
		kind:   Dragging,
		id:     id,
		offset: pointer.Sub(b.items[i].Position),
	}
	return true
}

// HandleDown starts resizing a tile from its corner handle. The same rules
// as PointerDown apply; a handle press never starts a drag.
func (b *Board) HandleDown(id string, screen model.Position) bool {
	if !b.admin {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.gesture != nil {
		return false
	}
	i := b.indexOf(id)
	if i < 0 {
		return false
	}

	b.gesture = &gesture{
		kind:         Resizing,
		id:           id,
		start:        screen,
		initialScale: model.ClampScale(b.items[i].Scale),
	}
	return true
}

// PointerMove applies the active gesture to local state.
func (b *Board) PointerMove(screen model.Position) {
	b.mu.Lock()
	defer b.mu.Unlock()
	g := b.gesture
	if g == nil {
		return
	}
	i := b.indexOf(g.id)
	if i < 0 {
		return
	}

	switch g.kind {
	case Dragging:
		b.items[i].Position = screen.Div(b.zoom).Sub(g.offset)
	case Resizing:
		b.items[i].Scale = resizeScale(g.initialScale, screen.Sub(g.start))
	}
}

// resizeScale maps pointer travel since the handle press to a scale.
// Moving right or down grows the tile, left or up shrinks it.
func resizeScale(initial float64, d model.Position) float64 {
	delta := d.X + d.Y
	direction := 0.0
	switch {
	case delta > 0:
		direction = 1
	case delta < 0:
		direction = -1
	}
	distance := math.Hypot(d.X, d.Y)
	return model.ClampScale(initial * (1 + direction*distance*ResizeSensitivity))
}

// PointerUp ends the active gesture and persists its result in the
// background. The gesture is cleared whatever the outcome of the write.
func (b *Board) PointerUp(ctx context.Context) {
	b.mu.Lock()
	g := b.gesture
	b.gesture = nil
	var item model.Item
	found := false
	if g != nil {
		if i := b.indexOf(g.id); i >= 0 {
			item, found = b.items[i], true
		}
	}
	b.mu.Unlock()

	if !found {
		return
	}

	// Persists outlive the gesture that started them.
	ctx = context.WithoutCancel(ctx)
	b.persists.Add(1)
	switch g.kind {
	case Dragging:
		go b.persistPosition(ctx, item.ID, item.Position)
	case Resizing:
		go b.persistScale(ctx, item.ID, item.Scale)
	}
}

// PointerLeave behaves like PointerUp when the pointer leaves the board.
func (b *Board) PointerLeave(ctx context.Context) {
	b.PointerUp(ctx)
}

func (b *Board) persistPosition(ctx context.Context, id string, pos model.Position) {
	defer b.persists.Done()
	if err := b.api.UpdatePosition(ctx, id, pos); err != nil {
		slog.Warn("failed to save position", "id", id, "error", err)
		b.Notices.Error("Could not save the new position")
		return
	}
	b.Notices.Info("Position saved")
}

func (b *Board) persistScale(ctx context.Context, id string, scale float64) {
	defer b.persists.Done()
	if _, err := b.api.UpdateScale(ctx, id, scale); err != nil {
		slog.Warn("failed to save scale", "id", id, "scale", scale, "error", err)
		b.Notices.Error("Could not save the new size")
		return
	}
	b.Notices.Info("Size saved")
}
