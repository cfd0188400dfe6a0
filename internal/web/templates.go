package web

import (
	"database/sql"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/erazemk/yearbook/internal/imaging"
	"github.com/erazemk/yearbook/internal/model"
	webembed "github.com/erazemk/yearbook/web"
)

// Templates holds parsed HTML templates.
type Templates struct {
	templates map[string]*template.Template
}

// FuncMap returns the template function map.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"ago": humanize.Time,
		"agoPtr": func(t *time.Time) string {
			if t == nil {
				return ""
			}
			return humanize.Time(*t)
		},
		"count": func(n int) string { return humanize.Comma(int64(n)) },
		"statusName": func(status string) string {
			switch status {
			case model.StatusPending:
				return "Pending"
			case model.StatusApproved:
				return "Approved"
			case model.StatusRejected:
				return "Rejected"
			case model.StatusDeleted:
				return "Deleted"
			default:
				return status
			}
		},
		"glyph": func(kind, category string) string {
			switch {
			case kind == model.KindMemory:
				return "📸"
			case category == model.CategoryTeacher:
				return "👨‍🏫"
			default:
				return "🎓"
			}
		},
		"tileWidth":  func(scale float64) float64 { return imaging.TileWidth * model.ClampScale(scale) },
		"tileHeight": func(scale float64) float64 { return imaging.TileHeight * model.ClampScale(scale) },
	}
}

// LoadTemplates parses all page templates with the layout.
func LoadTemplates() (*Templates, error) {
	tfs, err := webembed.TemplatesFS()
	if err != nil {
		return nil, fmt.Errorf("opening templates: %w", err)
	}

	// Read layout.
	layoutBytes, err := fs.ReadFile(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}

	pages := []string{
		"board.html",
		"pending.html",
		"history.html",
		"submit.html",
	}

	ts := &Templates{templates: make(map[string]*template.Template)}

	for _, page := range pages {
		pageBytes, err := fs.ReadFile(tfs, page)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", page, err)
		}

		tmpl := template.New(page).Funcs(FuncMap())
		tmpl, err = tmpl.Parse(string(layoutBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing layout for %s: %w", page, err)
		}
		tmpl, err = tmpl.Parse(string(pageBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}

		ts.templates[page] = tmpl
	}

	return ts, nil
}

// Render renders a template with the given data.
func (ts *Templates) Render(w http.ResponseWriter, name string, data any) {
	ts.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus renders a template with an explicit status code, used to
// redisplay a form with its validation errors.
func (ts *Templates) RenderStatus(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := ts.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		slog.Error("failed to render template", "template", name, "error", err)
	}
}

// PageData is the base data passed to all templates.
type PageData struct {
	Title   string
	Admin   bool
	Error   string
	Success string
}

// Server holds all dependencies for page handlers.
type Server struct {
	DB        *sql.DB
	Templates *Templates
	Images    imaging.Options
}
