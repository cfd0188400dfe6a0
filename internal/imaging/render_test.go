package imaging

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"golang.org/x/image/draw"

	"github.com/erazemk/yearbook/internal/model"
)

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func TestBoundsCoversDefaultCanvasAndTiles(t *testing.T) {
	minX, minY, maxX, maxY := Bounds(nil)
	if minX != 0 || minY != 0 || maxX != model.CanvasWidth || maxY != model.CanvasHeight {
		t.Errorf("empty board bounds = %v,%v,%v,%v", minX, minY, maxX, maxY)
	}

	items := []model.Item{
		{Position: model.Position{X: -100, Y: 50}, Scale: 1},
		{Position: model.Position{X: 900, Y: 600}, Scale: 2},
	}
	minX, minY, maxX, maxY = Bounds(items)
	if minX != -100 {
		t.Errorf("minX = %v, want -100", minX)
	}
	if minY != 0 {
		t.Errorf("minY = %v, want 0", minY)
	}
	if maxX != 900+TileWidth*2 || maxY != 600+TileHeight*2 {
		t.Errorf("max = %v,%v", maxX, maxY)
	}
}

func TestRenderDensity(t *testing.T) {
	tiles := []Tile{{
		Item:  model.Item{Name: "Alice", Kind: model.KindSignature, Category: model.CategoryStudent, Position: model.Position{X: 100, Y: 100}, Scale: 1},
		Image: solid(40, 20, color.Black),
	}}

	img, err := Render(tiles, RenderOptions{Density: 2, Labels: true})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if img.Bounds().Dx() != model.CanvasWidth*2 || img.Bounds().Dy() != model.CanvasHeight*2 {
		t.Errorf("unexpected size %v", img.Bounds())
	}

	// The tile center carries the signature image.
	cx := (100 + TileWidth/2) * 2
	cy := (100 + TileHeight/2) * 2
	r, g, b, _ := img.At(cx, cy).RGBA()
	if r > 0x1000 || g > 0x1000 || b > 0x1000 {
		t.Errorf("expected dark pixel at tile center, got %v", img.At(cx, cy))
	}
}

func TestRenderPlaceholderForMissingImage(t *testing.T) {
	tiles := []Tile{{
		Item: model.Item{Name: "Ghost", Kind: model.KindMemory, Position: model.Position{X: 0, Y: 100}, Scale: 1},
	}}

	img, err := Render(tiles, RenderOptions{Density: 1})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	got := img.RGBAAt(TileWidth/2, 100+TileHeight/2)
	if got != placeholderColor {
		t.Errorf("expected placeholder color, got %v", got)
	}
}

func TestRenderMemoryCoversFrame(t *testing.T) {
	tiles := []Tile{{
		Item:  model.Item{Name: "Trip", Kind: model.KindMemory, Position: model.Position{X: 0, Y: 100}, Scale: 1},
		Image: solid(10, 200, color.RGBA{0, 200, 0, 255}),
	}}

	img, err := Render(tiles, RenderOptions{Density: 1})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	// A tall photo in cover mode still fills the frame's horizontal edges.
	edge := img.RGBAAt(TilePadding+1, 100+TileHeight/2)
	if edge.G < 150 || edge.R > 50 {
		t.Errorf("expected photo at frame edge, got %v", edge)
	}
}

func TestRenderRejectsHugeRaster(t *testing.T) {
	vp := Viewport{W: MaxViewportWidth, H: MaxViewportHeight}
	if _, err := Render(nil, RenderOptions{Density: 3, Viewport: vp}); err == nil {
		t.Error("expected error for an oversized raster")
	}
}

func TestDefaultViewportClipsFarTiles(t *testing.T) {
	items := []model.Item{
		{Position: model.Position{X: 100, Y: 100}, Scale: 1},
		{Position: model.Position{X: 20000, Y: 20000}, Scale: 1},
		{Position: model.Position{X: -20000, Y: 50}, Scale: 1},
	}
	vp := DefaultViewport(items)
	want := Viewport{X: -viewportOverscan, Y: 0, W: MaxViewportWidth, H: MaxViewportHeight}
	if vp != want {
		t.Errorf("viewport = %+v, want %+v", vp, want)
	}

	if got := DefaultViewport(nil); got != (Viewport{W: model.CanvasWidth, H: model.CanvasHeight}) {
		t.Errorf("empty board viewport = %+v", got)
	}
}

func TestViewportValidate(t *testing.T) {
	tests := []struct {
		name string
		vp   Viewport
		ok   bool
	}{
		{"canvas", Viewport{W: 800, H: 500}, true},
		{"offset", Viewport{X: -300, Y: 2000, W: 1200, H: 700}, true},
		{"zero width", Viewport{W: 0, H: 500}, false},
		{"negative height", Viewport{W: 800, H: -1}, false},
		{"too wide", Viewport{W: MaxViewportWidth + 1, H: 500}, false},
		{"too tall", Viewport{W: 800, H: MaxViewportHeight + 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.vp.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestSnapshotWithFarOffCanvasTile(t *testing.T) {
	tiles := []Tile{
		{Item: model.Item{Name: "Near", Kind: model.KindSignature, Category: model.CategoryStudent, Position: model.Position{X: 100, Y: 100}, Scale: 1}, Image: solid(40, 20, color.Black)},
		{Item: model.Item{Name: "Lost", Kind: model.KindSignature, Category: model.CategoryStudent, Position: model.Position{X: 20000, Y: 20000}, Scale: 1}},
	}

	data, err := Snapshot(tiles, "bg-gradient-3", DefaultDensity, Viewport{})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	b := img.Bounds()
	if b.Dx()*b.Dy() > maxSnapshotPixels {
		t.Errorf("snapshot %v exceeds the raster limit", b)
	}
	if b.Dx() < model.CanvasWidth {
		t.Errorf("snapshot %v narrower than the canvas", b)
	}
}

func TestSnapshotExplicitViewport(t *testing.T) {
	tiles := []Tile{{
		Item:  model.Item{Name: "Far", Kind: model.KindSignature, Category: model.CategoryTeacher, Position: model.Position{X: 5000, Y: 5000}, Scale: 1},
		Image: solid(40, 20, color.Black),
	}}
	vp := Viewport{X: 4900, Y: 4900, W: 400, H: 300}

	data, err := Snapshot(tiles, "", 2, vp)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if img.Bounds().Dx() != 800 || img.Bounds().Dy() != 600 {
		t.Fatalf("size = %v, want 800x600", img.Bounds())
	}
	cx := (100 + TileWidth/2) * 2
	cy := (100 + TileHeight/2) * 2
	r, g, b, _ := img.At(cx, cy).RGBA()
	if r > 0x1000 || g > 0x1000 || b > 0x1000 {
		t.Errorf("expected the tile inside the viewport, got %v", img.At(cx, cy))
	}
}

func TestSnapshotRetriesAtReducedDensity(t *testing.T) {
	defer func(limit int) { maxSnapshotPixels = limit }(maxSnapshotPixels)
	maxSnapshotPixels = 3_000_000

	// Too large at density 3, fits at the reduced density.
	tiles := []Tile{{Item: model.Item{Name: "Far", Position: model.Position{X: 1000, Y: 700}, Scale: 1}}}

	data, err := Snapshot(tiles, "bg-gradient-2", DefaultDensity, Viewport{})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	wantW := int((1000 + TileWidth) * ReducedDensity)
	if img.Bounds().Dx() != wantW {
		t.Errorf("expected reduced width %d, got %d", wantW, img.Bounds().Dx())
	}
}

func TestSnapshotRetryFitsRasterLimit(t *testing.T) {
	defer func(limit int) { maxSnapshotPixels = limit }(maxSnapshotPixels)
	maxSnapshotPixels = 500_000

	tiles := []Tile{{Item: model.Item{Name: "Wide", Position: model.Position{X: 1500, Y: 900}, Scale: 1}}}
	data, err := Snapshot(tiles, "", DefaultDensity, Viewport{})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if px := img.Bounds().Dx() * img.Bounds().Dy(); px > maxSnapshotPixels {
		t.Errorf("retry produced %d pixels, limit %d", px, maxSnapshotPixels)
	}
}

func TestSnapshotFailsAfterRetry(t *testing.T) {
	tiles := []Tile{{Item: model.Item{Position: model.Position{X: 10, Y: 10}, Scale: 1}}}
	data, err := Snapshot(tiles, "", DefaultDensity, Viewport{W: 10, H: -5})
	if err == nil {
		t.Fatal("expected failure")
	}
	if data != nil {
		t.Error("a failed snapshot must not produce data")
	}
}

func TestLoadTilesWaitsForAllImages(t *testing.T) {
	items := []model.Item{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	good := createTestPNG(8, 8)

	fetch := func(ctx context.Context, id string) ([]byte, error) {
		switch id {
		case "a":
			return good, nil
		case "b":
			return nil, nil
		default:
			return nil, errors.New("disk on fire")
		}
	}

	tiles, err := LoadTiles(context.Background(), items, fetch)
	if err != nil {
		t.Fatalf("LoadTiles: %v", err)
	}
	if len(tiles) != 3 {
		t.Fatalf("expected 3 tiles, got %d", len(tiles))
	}
	if tiles[0].Image == nil {
		t.Error("expected decoded image for a")
	}
	if tiles[1].Image != nil || tiles[2].Image != nil {
		t.Error("missing and failing images should become placeholders")
	}
	if tiles[2].Item.ID != "c" {
		t.Error("tile order must follow item order")
	}
}

func TestLoadTilesCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := LoadTiles(ctx, []model.Item{{ID: "a"}}, func(ctx context.Context, id string) ([]byte, error) {
		return nil, ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
