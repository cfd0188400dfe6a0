package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/yearbook/internal/imaging"
	"github.com/erazemk/yearbook/internal/model"
)

// Options configure the API handlers. Zero values select the defaults.
type Options struct {
	MaxUploadBytes    int
	MaxImageDimension int
	SnapshotDensity   float64
}

// NewRouter creates the API router with all endpoints registered, including
// the public image paths.
func NewRouter(db *sql.DB, opts Options) http.Handler {
	mux := http.NewServeMux()

	imgOpts := imaging.Options{MaxDimension: opts.MaxImageDimension, MaxBytes: opts.MaxUploadBytes}
	signatures := &ItemsHandler{DB: db, Kind: model.KindSignature, Images: imgOpts}
	memories := &ItemsHandler{DB: db, Kind: model.KindMemory, Images: imgOpts}
	board := &BoardHandler{DB: db, SnapshotDensity: opts.SnapshotDensity}
	images := &ImagesHandler{DB: db}

	mux.HandleFunc("GET /api/health", board.Health)

	// Listing, history, settings, export.
	mux.HandleFunc("GET /api/data", board.Data)
	mux.HandleFunc("GET /api/history", board.History)
	mux.HandleFunc("PUT /api/settings", board.UpdateSettings)
	mux.HandleFunc("GET /api/board/snapshot.png", board.Snapshot)

	// Submissions and moderation.
	mux.HandleFunc("POST /api/signatures", signatures.Create)
	mux.HandleFunc("POST /api/memories", memories.Create)
	mux.HandleFunc("POST /api/signatures/{id}/approve", signatures.Approve)
	mux.HandleFunc("POST /api/memories/{id}/approve", memories.Approve)
	mux.HandleFunc("POST /api/signatures/{id}/reject", signatures.Reject)
	mux.HandleFunc("POST /api/memories/{id}/reject", memories.Reject)

	// Approved items of either kind live under /api/signatures.
	mux.HandleFunc("PUT /api/signatures/{id}/position", signatures.UpdatePosition)
	mux.HandleFunc("PUT /api/signatures/{id}/scale", signatures.UpdateScale)
	mux.HandleFunc("PUT /api/signatures/{id}", signatures.Update)
	mux.HandleFunc("DELETE /api/signatures/{id}", signatures.Delete)

	// Images.
	mux.HandleFunc("GET /signatures/{file}", images.Get)
	mux.HandleFunc("GET /memories/{file}", images.Get)

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		jsonError(w, http.StatusNotFound, "API endpoint not found")
	})

	return mux
}
