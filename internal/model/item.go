package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Item is a signature or memory submission, the unit shown on the board.
type Item struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Kind        string    `json:"contentType"`
	Category    string    `json:"type,omitempty"`
	Description string    `json:"description,omitempty"`
	ImagePath   string    `json:"imagePath"`
	Status      string    `json:"status"`
	Position    Position  `json:"position"`
	Scale       float64   `json:"scale"`
	CreatedAt   time.Time `json:"timestamp"`
}

// Position is a point in board space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Item kinds.
const (
	KindSignature = "signature"
	KindMemory    = "memory"
)

// Signature categories.
const (
	CategoryStudent = "student"
	CategoryTeacher = "teacher"
)

// Item statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
)

// Scale bounds and the default.
const (
	MinScale     = 0.3
	MaxScale     = 5.0
	DefaultScale = 1.0
)

// Default canvas extent used for initial random placement.
const (
	CanvasWidth  = 800
	CanvasHeight = 500
)

// ClampScale limits a scale factor to [MinScale, MaxScale]. NaN becomes
// DefaultScale.
func ClampScale(s float64) float64 {
	if math.IsNaN(s) {
		return DefaultScale
	}
	return math.Max(MinScale, math.Min(MaxScale, s))
}

// Valid reports whether both coordinates are finite.
func (p Position) Valid() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Add returns p translated by q.
func (p Position) Add(q Position) Position {
	return Position{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p - q.
func (p Position) Sub(q Position) Position {
	return Position{X: p.X - q.X, Y: p.Y - q.Y}
}

// Div returns p with both coordinates divided by f.
func (p Position) Div(f float64) Position {
	return Position{X: p.X / f, Y: p.Y / f}
}

// ImagePathFor returns the public image path of an item.
func ImagePathFor(kind, id string) string {
	if kind == KindMemory {
		return "memories/" + id + ".png"
	}
	return "signatures/" + id + ".png"
}

// ValidKind reports whether kind is a known item kind.
func ValidKind(kind string) bool {
	return kind == KindSignature || kind == KindMemory
}

// ValidCategory reports whether c is a known signature category.
func ValidCategory(c string) bool {
	return c == CategoryStudent || c == CategoryTeacher
}

// NormalizeName trims the display name and rejects empty names.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("name is required")
	}
	return name, nil
}
