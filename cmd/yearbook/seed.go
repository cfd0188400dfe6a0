package main

import (
	"bytes"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"log/slog"
	"math"
	"time"

	"github.com/jaswdr/faker"

	"github.com/erazemk/yearbook/internal/config"
	"github.com/erazemk/yearbook/internal/imaging"
	"github.com/erazemk/yearbook/internal/model"
	"github.com/erazemk/yearbook/internal/store"
)

// seedCommand registers the seed flags on fs and returns the command.
func seedCommand(fs *flag.FlagSet) func(context.Context, *config.Config, *sql.DB) error {
	n := fs.Int("n", 40, "")

	return func(ctx context.Context, cfg *config.Config, database *sql.DB) error {
		if *n <= 0 {
			return fmt.Errorf("-n must be positive, got %d", *n)
		}
		created, err := seed(ctx, database, faker.New(), *n, imageOptions(cfg))
		if err != nil {
			return err
		}
		fmt.Printf("Created %d items.\n", created)
		return nil
	}
}

// seed creates n fake submissions: mostly approved signatures, with a few
// pending signatures and memories for the moderation queue.
func seed(ctx context.Context, database *sql.DB, f faker.Faker, n int, opts imaging.Options) (int, error) {
	for i := range n {
		in, err := fakeItem(f, i, opts)
		if err != nil {
			return i, err
		}
		item, err := store.CreateItem(ctx, database, *in)
		if err != nil {
			return i, fmt.Errorf("creating seed item: %w", err)
		}
		slog.Info("seed item created", "id", item.ID, "kind", item.Kind, "status", item.Status)
	}
	return n, nil
}

func fakeItem(f faker.Faker, i int, opts imaging.Options) (*store.NewItem, error) {
	in := &store.NewItem{
		Status:    model.StatusApproved,
		Kind:      model.KindSignature,
		Name:      f.Person().Name(),
		Category:  model.CategoryStudent,
		Scale:     f.Float64(2, 6, 16) / 10,
		CreatedAt: time.Now().UTC().Add(-time.Duration(f.IntBetween(1, 30*24)) * time.Hour),
	}
	if f.IntBetween(1, 8) == 1 {
		in.Category = model.CategoryTeacher
	}

	switch i % 10 {
	case 7:
		in.Status = model.StatusPending
	case 8, 9:
		in.Status = model.StatusPending
		in.Kind = model.KindMemory
		in.Category = ""
		in.Name = f.Lorem().Sentence(3)
		in.Description = f.Lorem().Sentence(8)
	}

	var raw []byte
	var err error
	if in.Kind == model.KindMemory {
		raw, err = fakePhoto(f)
	} else {
		raw, err = fakeSignature(f)
	}
	if err != nil {
		return nil, err
	}

	res, err := imaging.Process(bytes.NewReader(raw), in.Kind, opts)
	if err != nil {
		return nil, fmt.Errorf("processing seed image: %w", err)
	}
	in.Image = res.Data
	in.ImageMIME = res.MIME
	return in, nil
}

// fakeSignature draws a looping pen stroke on a transparent background.
func fakeSignature(f faker.Faker) ([]byte, error) {
	const w, h = 400, 160
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	ink := color.NRGBA{
		R: uint8(f.IntBetween(0, 60)),
		G: uint8(f.IntBetween(0, 60)),
		B: uint8(f.IntBetween(60, 160)),
		A: 255,
	}

	amp := float64(f.IntBetween(15, 45))
	freq := float64(f.IntBetween(3, 9)) / 100
	loop := float64(f.IntBetween(8, 20))
	phase := float64(f.IntBetween(0, 628)) / 100

	for t := 0.0; t < w-40; t += 0.5 {
		x := 20 + t + loop*math.Cos(t*freq*3+phase)
		y := h/2 + amp*math.Sin(t*freq+phase) + loop*math.Sin(t*freq*3+phase)
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				img.SetNRGBA(int(x)+dx, int(y)+dy, ink)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding seed signature: %w", err)
	}
	return buf.Bytes(), nil
}

// fakePhoto renders a two-colour gradient standing in for a photo.
func fakePhoto(f faker.Faker) ([]byte, error) {
	const w, h = 480, 320
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	from := [3]int{f.IntBetween(0, 255), f.IntBetween(0, 255), f.IntBetween(0, 255)}
	to := [3]int{f.IntBetween(0, 255), f.IntBetween(0, 255), f.IntBetween(0, 255)}

	for y := range h {
		for x := range w {
			t := float64(x+y) / float64(w+h)
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(float64(from[0]) + t*float64(to[0]-from[0])),
				G: uint8(float64(from[1]) + t*float64(to[1]-from[1])),
				B: uint8(float64(from[2]) + t*float64(to[2]-from[2])),
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("encoding seed photo: %w", err)
	}
	return buf.Bytes(), nil
}
