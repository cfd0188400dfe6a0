package client

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/erazemk/yearbook/internal/imaging"
	"github.com/erazemk/yearbook/internal/model"
)

// ValidationError reports a form field that failed client-side checks.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// SignatureForm is a drawn signature ready for submission. Image holds the
// encoded PNG or JPEG bytes.
type SignatureForm struct {
	Name     string
	Category string
	Image    []byte
}

// Validate checks the form the same way the server will.
func (f SignatureForm) Validate() error {
	if err := validateCommon(f.Name, f.Image); err != nil {
		return err
	}
	if !model.ValidCategory(f.Category) {
		return &ValidationError{Field: "type", Message: "must be student or teacher"}
	}
	return nil
}

// MemoryForm is a photo ready for submission.
type MemoryForm struct {
	Name        string
	Description string
	Image       []byte
}

// Validate checks the form the same way the server will.
func (f MemoryForm) Validate() error {
	return validateCommon(f.Name, f.Image)
}

func validateCommon(name string, image []byte) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if len(image) == 0 {
		return &ValidationError{Field: "image", Message: "image is required"}
	}
	if len(image) > imaging.MaxUploadBytes {
		return &ValidationError{
			Field:   "image",
			Message: fmt.Sprintf("image is %s, limit is %s", humanize.IBytes(uint64(len(image))), humanize.IBytes(imaging.MaxUploadBytes)),
		}
	}
	if mime := http.DetectContentType(image); !imaging.AllowedMIME[mime] {
		return &ValidationError{Field: "image", Message: "only JPEG and PNG images are accepted"}
	}
	return nil
}

func dataURL(image []byte) string {
	return "data:" + http.DetectContentType(image) + ";base64," + base64.StdEncoding.EncodeToString(image)
}
