package api

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/erazemk/yearbook/internal/imaging"
	"github.com/erazemk/yearbook/internal/model"
	"github.com/erazemk/yearbook/internal/store"
)

// BoardHandler serves board-wide endpoints: listing, history, settings and
// the snapshot export.
type BoardHandler struct {
	DB              *sql.DB
	SnapshotDensity float64
}

type settingsRequest struct {
	BackgroundTheme *string         `json:"backgroundTheme"`
	GridSize        *model.GridSize `json:"gridSize"`
}

// Health handles GET /api/health.
func (h *BoardHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.PingContext(r.Context()); err != nil {
		slog.Error("health check failed", "error", err)
		jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Data handles GET /api/data.
func (h *BoardHandler) Data(w http.ResponseWriter, r *http.Request) {
	data, err := store.LoadBoard(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to load board", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to load data")
		return
	}
	jsonResponse(w, http.StatusOK, data)
}

// History handles GET /api/history.
func (h *BoardHandler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.HistoryFilter{
		Status:   q.Get("status"),
		Category: q.Get("type"),
		Search:   q.Get("search"),
	}

	entries, err := store.ListHistory(r.Context(), h.DB, filter)
	if err != nil {
		slog.Error("failed to list history", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	if entries == nil {
		entries = []model.HistoryEntry{}
	}
	jsonResponse(w, http.StatusOK, entries)
}

// UpdateSettings handles PUT /api/settings. Omitted fields keep their
// stored values.
func (h *BoardHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	settings, err := store.GetSettings(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to get settings", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update settings")
		return
	}
	if req.BackgroundTheme != nil {
		if !model.ValidTheme(*req.BackgroundTheme) {
			jsonError(w, http.StatusBadRequest, "unknown background theme")
			return
		}
		settings.BackgroundTheme = *req.BackgroundTheme
	}
	if req.GridSize != nil {
		if req.GridSize.Rows <= 0 || req.GridSize.Cols <= 0 {
			jsonError(w, http.StatusBadRequest, "grid size must be positive")
			return
		}
		settings.GridSize = *req.GridSize
	}

	if err := store.SaveSettings(r.Context(), h.DB, settings); err != nil {
		slog.Error("failed to save settings", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update settings")
		return
	}

	slog.Info("settings updated", "theme", settings.BackgroundTheme,
		"rows", settings.GridSize.Rows, "cols", settings.GridSize.Cols)
	jsonSuccess(w, http.StatusOK, map[string]any{"settings": settings})
}

// Snapshot handles GET /api/board/snapshot.png. Optional x, y, w and h
// query parameters select the board region; by default every tile is
// covered up to the maximum viewport. Every approved item's image is
// loaded before rasterizing; the response is only written once a complete
// PNG exists.
func (h *BoardHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	vp, err := parseViewport(r.URL.Query())
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := store.LoadBoard(ctx, h.DB)
	if err != nil {
		slog.Error("failed to load board for snapshot", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to export board")
		return
	}

	tiles, err := imaging.LoadTiles(ctx, data.Signatures, func(ctx context.Context, id string) ([]byte, error) {
		img, _, err := store.GetImage(ctx, h.DB, id)
		return img, err
	})
	if err != nil {
		slog.Warn("snapshot canceled", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "export canceled")
		return
	}

	png, err := imaging.Snapshot(tiles, data.Settings.BackgroundTheme, h.SnapshotDensity, vp)
	if err != nil {
		slog.Error("snapshot failed", "items", len(tiles), "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to export board")
		return
	}

	filename := fmt.Sprintf("yearbook-%s.png", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", fmt.Sprint(len(png)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		slog.Warn("failed to write snapshot", "error", err)
		return
	}

	slog.Info("board exported", "items", len(tiles),
		"size", humanize.Bytes(uint64(len(png))), "duration", time.Since(start))
}

// parseViewport reads the optional snapshot region. Either all four values
// are given or none.
func parseViewport(q url.Values) (imaging.Viewport, error) {
	keys := []string{"x", "y", "w", "h"}
	given := 0
	for _, k := range keys {
		if q.Get(k) != "" {
			given++
		}
	}
	if given == 0 {
		return imaging.Viewport{}, nil
	}
	if given != len(keys) {
		return imaging.Viewport{}, fmt.Errorf("viewport needs x, y, w and h")
	}

	var vals [4]float64
	for i, k := range keys {
		v, err := strconv.ParseFloat(q.Get(k), 64)
		if err != nil {
			return imaging.Viewport{}, fmt.Errorf("invalid viewport %s: %q", k, q.Get(k))
		}
		vals[i] = v
	}
	vp := imaging.Viewport{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}
	if err := vp.Validate(); err != nil {
		return imaging.Viewport{}, err
	}
	return vp, nil
}
