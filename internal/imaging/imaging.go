package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/image/draw"

	"github.com/erazemk/yearbook/internal/model"
)

// MaxDimension is the default maximum width or height for stored images.
const MaxDimension = 1024

// JPEGQuality is the compression quality for JPEG output.
const JPEGQuality = 85

// MaxUploadBytes is the default ceiling for a decoded upload.
const MaxUploadBytes = 5 << 20

// AllowedMIME lists the accepted input MIME types.
var AllowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// ErrTooLarge is returned when an upload exceeds the size ceiling.
var ErrTooLarge = errors.New("image too large")

// ProcessResult contains the processed image data.
type ProcessResult struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Options control upload processing. Zero values select the defaults.
type Options struct {
	MaxDimension int
	MaxBytes     int
}

func (o Options) withDefaults() Options {
	if o.MaxDimension <= 0 {
		o.MaxDimension = MaxDimension
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = MaxUploadBytes
	}
	return o
}

// DecodeDataURL decodes a base64 image data URL such as the one produced by
// canvas.toDataURL. A bare base64 payload without the data: prefix is
// accepted as well.
func DecodeDataURL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("image data is required")
	}

	payload := s
	if strings.HasPrefix(s, "data:") {
		header, data, ok := strings.Cut(s, ",")
		if !ok {
			return nil, fmt.Errorf("malformed data URL")
		}
		if !strings.HasSuffix(header, ";base64") {
			return nil, fmt.Errorf("data URL must be base64 encoded")
		}
		mediaType := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		if mediaType == "image/jpg" {
			mediaType = "image/jpeg"
		}
		if !AllowedMIME[mediaType] {
			return nil, fmt.Errorf("unsupported image type: %s (only JPEG and PNG accepted)", mediaType)
		}
		payload = data
	}

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding base64 image: %w", err)
	}
	return decoded, nil
}

// Process reads image data, validates the format by sniffing bytes,
// downscales if larger than the maximum dimension, and re-encodes it.
// Signatures stay PNG so their transparent background survives; memories
// are photos and are re-encoded as JPEG.
func Process(r io.Reader, kind string, opts Options) (*ProcessResult, error) {
	opts = opts.withDefaults()

	data, err := io.ReadAll(io.LimitReader(r, int64(opts.MaxBytes)+1))
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}
	if len(data) > opts.MaxBytes {
		return nil, fmt.Errorf("%w: limit is %s", ErrTooLarge, humanize.IBytes(uint64(opts.MaxBytes)))
	}

	// Sniff actual MIME type from bytes (not trusting client headers).
	detected := http.DetectContentType(data)
	if !AllowedMIME[detected] {
		return nil, fmt.Errorf("unsupported image format: %s (only JPEG and PNG accepted)", detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	img = downscale(img, opts.MaxDimension)

	var buf bytes.Buffer
	mime := "image/png"
	if kind == model.KindMemory {
		mime = "image/jpeg"
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality})
	} else {
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", mime, err)
	}

	bounds := img.Bounds()
	return &ProcessResult{
		Data:   buf.Bytes(),
		MIME:   mime,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

// downscale resizes the image so neither dimension exceeds maxDim.
// Uses high-quality Catmull-Rom interpolation.
// Returns the original image if already within bounds.
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	if w <= maxDim && h <= maxDim {
		return img
	}

	// Calculate new dimensions preserving aspect ratio.
	newW, newH := w, h
	if w > h {
		newW = maxDim
		newH = int(float64(h) * float64(maxDim) / float64(w))
	} else {
		newH = maxDim
		newW = int(float64(w) * float64(maxDim) / float64(h))
	}

	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func init() {
	// Register decoders (jpeg is registered by default, but be explicit).
	image.RegisterFormat("jpeg", "\xff\xd8", jpeg.Decode, jpeg.DecodeConfig)
	image.RegisterFormat("png", "\x89PNG", png.Decode, png.DecodeConfig)
}
