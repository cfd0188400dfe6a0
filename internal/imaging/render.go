package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/sync/errgroup"

	"github.com/erazemk/yearbook/internal/model"
)

// Tile geometry in board space at scale 1.
const (
	TileWidth   = 128
	TileHeight  = 80
	TilePadding = 8
	labelMargin = 32
)

// Snapshot densities. The first attempt oversamples for print; the retry
// trades resolution and interpolation quality for a better chance of success.
const (
	DefaultDensity = 3.0
	ReducedDensity = 1.5
)

// A snapshot never covers more of the board than this region: the default
// canvas plus room for tiles dragged past its edges. Tiles beyond it are
// clipped.
const (
	MaxViewportWidth  = 3200
	MaxViewportHeight = 2000
	viewportOverscan  = 400
)

// maxSnapshotPixels bounds the raster size of a single attempt.
var maxSnapshotPixels = 24_000_000

// Viewport is the board-space rectangle a snapshot covers.
type Viewport struct {
	X, Y, W, H float64
}

// IsZero reports whether no viewport was given.
func (v Viewport) IsZero() bool {
	return v == Viewport{}
}

// Validate checks a caller-supplied viewport.
func (v Viewport) Validate() error {
	if v.W <= 0 || v.H <= 0 {
		return fmt.Errorf("viewport must have a positive size")
	}
	if v.W > MaxViewportWidth || v.H > MaxViewportHeight {
		return fmt.Errorf("viewport larger than %dx%d", MaxViewportWidth, MaxViewportHeight)
	}
	if math.IsInf(v.X, 0) || math.IsNaN(v.X) || math.IsInf(v.Y, 0) || math.IsNaN(v.Y) {
		return fmt.Errorf("viewport origin must be finite")
	}
	return nil
}

// ErrEmptySnapshot is returned when rasterizing yields no pixels.
var ErrEmptySnapshot = errors.New("snapshot is empty")

var themeColors = map[string]color.RGBA{
	"bg-gradient-1": {0x8b, 0x5c, 0xf6, 0xff},
	"bg-gradient-2": {0x3b, 0x82, 0xf6, 0xff},
	"bg-gradient-3": {0x06, 0xb6, 0xd4, 0xff},
	"bg-gradient-4": {0x10, 0xb9, 0x81, 0xff},
	"bg-gradient-5": {0xec, 0x48, 0x99, 0xff},
	"bg-pattern-1":  {0x7c, 0x3a, 0xed, 0xff},
	"bg-pattern-2":  {0x63, 0x66, 0xf1, 0xff},
}

var (
	placeholderColor = color.RGBA{0xd1, 0xd5, 0xdb, 0xff}
	labelBackground  = color.RGBA{0x00, 0x00, 0x00, 0xcc}
	glyphColors      = map[string]color.RGBA{
		model.CategoryStudent: {0x60, 0xa5, 0xfa, 0xff},
		model.CategoryTeacher: {0xf8, 0x71, 0x71, 0xff},
		model.KindMemory:      {0xfb, 0xbf, 0x24, 0xff},
	}
)

// Tile is an item prepared for rasterizing. A nil Image renders as a
// placeholder.
type Tile struct {
	Item  model.Item
	Image image.Image
}

// RenderOptions control a single rasterizing attempt.
type RenderOptions struct {
	Density float64
	// Viewport selects the board region; zero means DefaultViewport.
	Viewport Viewport
	Interp   draw.Interpolator
	Theme    string
	// Labels forces every tile's name label visible.
	Labels bool
}

// FetchFunc returns the stored image bytes for an item id. A nil slice
// means the image is missing.
type FetchFunc func(ctx context.Context, id string) ([]byte, error)

// LoadTiles fetches and decodes every item's image before returning, so a
// snapshot never captures a half-loaded board. Missing or corrupt images
// become placeholders; only context cancellation is reported as an error.
func LoadTiles(ctx context.Context, items []model.Item, fetch FetchFunc) ([]Tile, error) {
	tiles := make([]Tile, len(items))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i, item := range items {
		tiles[i].Item = item
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := fetch(ctx, item.ID)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slog.Warn("snapshot tile image unavailable", "id", item.ID, "error", err)
				return nil
			}
			if data == nil {
				return nil
			}
			img, _, err := image.Decode(bytes.NewReader(data))
			if err != nil {
				slog.Warn("snapshot tile image corrupt", "id", item.ID, "error", err)
				return nil
			}
			tiles[i].Image = img
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tiles, nil
}

// Snapshot rasterizes the tiles inside vp to PNG. On failure it retries
// once at reduced fidelity, at a density low enough for the raster limit;
// if that fails as well the last error is returned and no data is produced.
func Snapshot(tiles []Tile, theme string, density float64, vp Viewport) ([]byte, error) {
	if density <= 0 {
		density = DefaultDensity
	}
	if vp.IsZero() {
		vp = DefaultViewport(tileItems(tiles))
	}
	attempts := []RenderOptions{
		{Density: density, Viewport: vp, Interp: draw.CatmullRom, Theme: theme, Labels: true},
		{Density: reducedDensity(density, vp), Viewport: vp, Interp: draw.ApproxBiLinear, Theme: theme, Labels: true},
	}

	var lastErr error
	for i, opts := range attempts {
		data, err := encodeSnapshot(tiles, opts)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if i < len(attempts)-1 {
			slog.Warn("snapshot failed, retrying at reduced quality", "density", opts.Density, "error", err)
		}
	}
	return nil, fmt.Errorf("rendering snapshot: %w", lastErr)
}

func encodeSnapshot(tiles []Tile, opts RenderOptions) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rasterizer panic: %v", r)
		}
	}()

	img, err := Render(tiles, opts)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if opts.Density < DefaultDensity {
		enc.CompressionLevel = png.BestSpeed
	}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	if buf.Len() == 0 {
		return nil, ErrEmptySnapshot
	}
	return buf.Bytes(), nil
}

// Bounds returns the board-space rectangle covering the default canvas,
// every tile at its scale, and the space above tiles used by labels.
func Bounds(items []model.Item) (minX, minY, maxX, maxY float64) {
	maxX, maxY = model.CanvasWidth, model.CanvasHeight
	for _, it := range items {
		s := model.ClampScale(it.Scale)
		minX = math.Min(minX, it.Position.X)
		minY = math.Min(minY, it.Position.Y-labelMargin)
		maxX = math.Max(maxX, it.Position.X+TileWidth*s)
		maxY = math.Max(maxY, it.Position.Y+TileHeight*s)
	}
	return minX, minY, maxX, maxY
}

// DefaultViewport covers every tile, clipped to the largest region a
// snapshot may show.
func DefaultViewport(items []model.Item) Viewport {
	minX, minY, maxX, maxY := Bounds(items)
	minX = math.Max(minX, -viewportOverscan)
	minY = math.Max(minY, -viewportOverscan)
	maxX = math.Min(maxX, minX+MaxViewportWidth)
	maxY = math.Min(maxY, minY+MaxViewportHeight)
	return Viewport{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// reducedDensity is the retry density: at most ReducedDensity and small
// enough that vp fits the raster limit.
func reducedDensity(density float64, vp Viewport) float64 {
	d := math.Min(density, ReducedDensity)
	if area := vp.W * vp.H; area > 0 {
		fit := math.Floor(math.Sqrt(float64(maxSnapshotPixels)/area)*100) / 100
		d = math.Min(d, fit)
	}
	return d
}

func tileItems(tiles []Tile) []model.Item {
	items := make([]model.Item, len(tiles))
	for i, t := range tiles {
		items[i] = t.Item
	}
	return items
}

// Render draws the board at the given density. Decorative tile borders are
// omitted; name labels are drawn when opts.Labels is set.
func Render(tiles []Tile, opts RenderOptions) (*image.RGBA, error) {
	if opts.Density <= 0 {
		return nil, fmt.Errorf("density must be positive")
	}
	if opts.Interp == nil {
		opts.Interp = draw.CatmullRom
	}

	vp := opts.Viewport
	if vp.IsZero() {
		vp = DefaultViewport(tileItems(tiles))
	}
	minX, minY := vp.X, vp.Y

	w := int(math.Ceil(vp.W * opts.Density))
	h := int(math.Ceil(vp.H * opts.Density))
	if w <= 0 || h <= 0 {
		return nil, ErrEmptySnapshot
	}
	if w*h > maxSnapshotPixels {
		return nil, fmt.Errorf("snapshot of %dx%d pixels exceeds the raster limit", w, h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	bg, ok := themeColors[opts.Theme]
	if !ok {
		bg = themeColors["bg-gradient-1"]
	}
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	toPx := func(v, origin float64) int {
		return int(math.Round((v - origin) * opts.Density))
	}

	for _, t := range tiles {
		s := model.ClampScale(t.Item.Scale)
		x0 := t.Item.Position.X
		y0 := t.Item.Position.Y
		frame := image.Rect(
			toPx(x0, minX), toPx(y0, minY),
			toPx(x0+TileWidth*s, minX), toPx(y0+TileHeight*s, minY),
		)
		inner := image.Rect(
			toPx(x0+TilePadding*s, minX), toPx(y0+TilePadding*s, minY),
			toPx(x0+(TileWidth-TilePadding)*s, minX), toPx(y0+(TileHeight-TilePadding)*s, minY),
		)
		if inner.Empty() {
			continue
		}
		// Tiles outside the viewport, label included, are clipped.
		reach := frame
		reach.Min.Y -= int(labelMargin * opts.Density)
		if !reach.Overlaps(dst.Bounds()) {
			continue
		}

		if t.Image == nil {
			draw.Draw(dst, inner, image.NewUniform(placeholderColor), image.Point{}, draw.Src)
		} else {
			draw.Draw(dst, inner, image.White, image.Point{}, draw.Src)
			drawFitted(dst, inner, t.Image, t.Item.Kind == model.KindMemory, opts.Interp)
		}

		drawGlyph(dst, frame, t.Item, opts.Density)
		if opts.Labels {
			drawLabel(dst, frame, t.Item.Name, opts.Density, opts.Interp)
		}
	}

	return dst, nil
}

// drawFitted scales src into frame. cover fills the frame and crops the
// overflow; otherwise the whole image is fitted inside (contain).
func drawFitted(dst *image.RGBA, frame image.Rectangle, src image.Image, cover bool, interp draw.Interpolator) {
	sb := src.Bounds()
	if sb.Empty() {
		return
	}
	fw, fh := float64(frame.Dx()), float64(frame.Dy())
	sw, sh := float64(sb.Dx()), float64(sb.Dy())

	if cover {
		ratio := math.Max(fw/sw, fh/sh)
		cw, ch := fw/ratio, fh/ratio
		cx := sb.Min.X + int((sw-cw)/2)
		cy := sb.Min.Y + int((sh-ch)/2)
		crop := image.Rect(cx, cy, cx+int(math.Max(1, cw)), cy+int(math.Max(1, ch)))
		interp.Scale(dst, frame, src, crop, draw.Over, nil)
		return
	}

	ratio := math.Min(fw/sw, fh/sh)
	dw, dh := int(sw*ratio), int(sh*ratio)
	if dw < 1 || dh < 1 {
		return
	}
	ox := frame.Min.X + (frame.Dx()-dw)/2
	oy := frame.Min.Y + (frame.Dy()-dh)/2
	interp.Scale(dst, image.Rect(ox, oy, ox+dw, oy+dh), src, sb, draw.Over, nil)
}

// drawGlyph marks the tile's category in its bottom-right corner.
func drawGlyph(dst *image.RGBA, frame image.Rectangle, item model.Item, density float64) {
	key := item.Category
	if item.Kind == model.KindMemory {
		key = model.KindMemory
	}
	c, ok := glyphColors[key]
	if !ok {
		return
	}
	r := int(math.Max(2, 8*density/2))
	cx := frame.Max.X - int(4*density) - r
	cy := frame.Max.Y - int(4*density) - r
	for y := -r; y <= r; y++ {
		for x := -r; x <= r; x++ {
			if x*x+y*y <= r*r {
				dst.SetRGBA(cx+x, cy+y, c)
			}
		}
	}
}

// drawLabel renders the name centered above the tile. Text is laid out at
// board resolution and scaled up to the target density.
func drawLabel(dst *image.RGBA, frame image.Rectangle, name string, density float64, interp draw.Interpolator) {
	if name == "" {
		return
	}
	face := basicfont.Face7x13
	textW := font.MeasureString(face, name).Ceil()
	const padX, padY = 4, 3
	lw, lh := textW+2*padX, face.Height+2*padY

	label := image.NewRGBA(image.Rect(0, 0, lw, lh))
	draw.Draw(label, label.Bounds(), image.NewUniform(labelBackground), image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  label,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(padX, padY+face.Ascent),
	}
	d.DrawString(name)

	w := int(float64(lw) * density)
	h := int(float64(lh) * density)
	cx := (frame.Min.X + frame.Max.X) / 2
	top := frame.Min.Y - h - int(4*density)
	target := image.Rect(cx-w/2, top, cx-w/2+w, top+h)
	interp.Scale(dst, target, label, label.Bounds(), draw.Over, nil)
}
