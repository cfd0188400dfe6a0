package web

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/erazemk/yearbook/internal/imaging"
	webembed "github.com/erazemk/yearbook/web"
)

// NewRouter creates the web page router with all page routes registered.
// images limits and processes uploads from the submission forms.
func NewRouter(db *sql.DB, images imaging.Options) (http.Handler, error) {
	templates, err := LoadTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		DB:        db,
		Templates: templates,
		Images:    images,
	}

	static, err := webembed.StaticFS()
	if err != nil {
		return nil, fmt.Errorf("opening static assets: %w", err)
	}

	mux := http.NewServeMux()

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	mux.HandleFunc("GET /{$}", s.BoardPage)
	mux.HandleFunc("POST /settings", s.SettingsSubmit)

	mux.HandleFunc("GET /submit/signature", s.SignatureFormPage)
	mux.HandleFunc("POST /submit/signature", s.SignatureSubmit)
	mux.HandleFunc("GET /submit/memory", s.MemoryFormPage)
	mux.HandleFunc("POST /submit/memory", s.MemorySubmit)

	mux.HandleFunc("GET /pending", s.PendingPage)
	mux.HandleFunc("POST /pending/{id}/approve", s.ApproveSubmit)
	mux.HandleFunc("POST /pending/{id}/reject", s.RejectSubmit)
	mux.HandleFunc("POST /items/{id}", s.ItemUpdateSubmit)
	mux.HandleFunc("POST /items/{id}/delete", s.ItemDeleteSubmit)

	mux.HandleFunc("GET /history", s.HistoryPage)

	return AdminMode(mux), nil
}
