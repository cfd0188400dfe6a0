// Package board is the freeform board: the approved items laid out in board
// space, a viewport zoom, and the admin gestures that move and resize
// tiles. Gestures update local state immediately and persist in the
// background; a failed write keeps the local value and posts a notice.
package board

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/erazemk/yearbook/internal/model"
	"github.com/erazemk/yearbook/internal/notice"
)

// Viewport zoom bounds and steps.
const (
	MinZoom       = 0.5
	MaxZoom       = 3.0
	ZoomStep      = 0.2
	WheelZoomStep = 0.1
)

// ErrNoExporter is returned by Export when the API cannot produce snapshots.
var ErrNoExporter = errors.New("board export is not supported")

// API is the part of the HTTP client the board needs.
type API interface {
	Data(ctx context.Context) (*model.BoardData, error)
	UpdatePosition(ctx context.Context, id string, pos model.Position) error
	UpdateScale(ctx context.Context, id string, scale float64) (float64, error)
}

// Exporter writes a rendered snapshot of the board to a file.
type Exporter interface {
	Export(ctx context.Context, path string) error
}

// Board holds the approved items and the view state. It is safe for
// concurrent use; gestures are serialized so at most one is active.
type Board struct {
	api     API
	admin   bool
	Notices *notice.Board

	mu        sync.Mutex
	now       func() time.Time
	items     []model.Item
	settings  model.Settings
	loading   bool
	zoom      float64
	gesture   *gesture
	hovered   string
	touched   map[string]time.Time
	capturing bool

	persists sync.WaitGroup
}

// New creates a board. Non-admin boards ignore every gesture.
func New(api API, admin bool) *Board {
	return &Board{
		api:     api,
		admin:   admin,
		Notices: notice.New(notice.DefaultTTL),
		now:     time.Now,
		loading: true,
		zoom:    1,
		touched: make(map[string]time.Time),
	}
}

// SetClock replaces the time source for touch labels and notices.
func (b *Board) SetClock(now func() time.Time) {
	b.mu.Lock()
	b.now = now
	b.mu.Unlock()
	b.Notices.SetClock(now)
}

// Admin reports whether gestures are enabled.
func (b *Board) Admin() bool { return b.admin }

// Load fetches the approved items. Until the first successful load the
// board reports Loading.
func (b *Board) Load(ctx context.Context) error {
	data, err := b.api.Data(ctx)
	if err != nil {
		b.Notices.Error("Could not load the board")
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = data.Signatures
	b.settings = data.Settings
	b.loading = false
	return nil
}

// Loading reports whether the first load is still outstanding.
func (b *Board) Loading() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loading
}

// Settings returns the board settings from the last load.
func (b *Board) Settings() model.Settings {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.settings
}

// Items returns a copy of the approved items with their local positions
// and scales.
func (b *Board) Items() []model.Item {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Item(nil), b.items...)
}

// Item returns one item by id.
func (b *Board) Item(id string) (model.Item, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.indexOf(id); i >= 0 {
		return b.items[i], true
	}
	return model.Item{}, false
}

func (b *Board) indexOf(id string) int {
	for i := range b.items {
		if b.items[i].ID == id {
			return i
		}
	}
	return -1
}

// Zoom returns the viewport zoom.
func (b *Board) Zoom() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.zoom
}

// ZoomIn enlarges the view by one step.
func (b *Board) ZoomIn() float64 { return b.addZoom(ZoomStep) }

// ZoomOut shrinks the view by one step.
func (b *Board) ZoomOut() float64 { return b.addZoom(-ZoomStep) }

// ResetZoom returns to 1x.
func (b *Board) ResetZoom() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.zoom = 1
}

// Wheel handles a scroll event. Only ctrl-scroll zooms; it reports whether
// the event was consumed.
func (b *Board) Wheel(deltaY float64, ctrl bool) bool {
	if !ctrl || deltaY == 0 {
		return false
	}
	if deltaY > 0 {
		b.addZoom(-WheelZoomStep)
	} else {
		b.addZoom(WheelZoomStep)
	}
	return true
}

func (b *Board) addZoom(delta float64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	// Round to avoid drift from repeated float steps.
	z := math.Round((b.zoom+delta)*1000) / 1000
	b.zoom = math.Max(MinZoom, math.Min(MaxZoom, z))
	return b.zoom
}

// ToBoard converts a point relative to the board container on screen into
// board space.
func (b *Board) ToBoard(screen model.Position) model.Position {
	return screen.Div(b.Zoom())
}

// Wait blocks until every background persist has finished.
func (b *Board) Wait() {
	b.persists.Wait()
}
