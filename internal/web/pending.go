package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/yearbook/internal/model"
	"github.com/erazemk/yearbook/internal/store"
)

// PendingPage handles GET /pending.
func (s *Server) PendingPage(w http.ResponseWriter, r *http.Request) {
	data, err := store.LoadBoard(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to load pending items", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.Templates.Render(w, "pending.html", &struct {
		PageData
		Signatures []model.Item
		Memories   []model.Item
		Approved   []model.Item
	}{
		PageData:   pageData(r, "Moderation"),
		Signatures: data.PendingSignatures,
		Memories:   data.PendingMemories,
		Approved:   data.Signatures,
	})
}

// ApproveSubmit handles POST /pending/{id}/approve. The kind form value is
// required; optional x and y values place the item at a specific spot.
func (s *Server) ApproveSubmit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	kind := r.FormValue("kind")
	if !model.ValidKind(kind) {
		redirect(w, r, "/pending", "err", "badinput")
		return
	}

	var pos *model.Position
	if xs, ys := r.FormValue("x"), r.FormValue("y"); xs != "" && ys != "" {
		x, errX := strconv.ParseFloat(xs, 64)
		y, errY := strconv.ParseFloat(ys, 64)
		if errX != nil || errY != nil {
			redirect(w, r, "/pending", "err", "badinput")
			return
		}
		pos = &model.Position{X: x, Y: y}
	}

	err := store.ApproveItem(r.Context(), s.DB, id, kind, pos)
	if s.handleResult(w, r, err, "approve", id) {
		redirect(w, r, "/pending", "ok", "approved")
	}
}

// RejectSubmit handles POST /pending/{id}/reject.
func (s *Server) RejectSubmit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	kind := r.FormValue("kind")
	if !model.ValidKind(kind) {
		redirect(w, r, "/pending", "err", "badinput")
		return
	}
	err := store.RejectItem(r.Context(), s.DB, id, kind)
	if s.handleResult(w, r, err, "reject", id) {
		redirect(w, r, "/pending", "ok", "rejected")
	}
}

// ItemUpdateSubmit handles POST /items/{id}.
func (s *Server) ItemUpdateSubmit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	name := r.FormValue("name")
	if _, err := model.NormalizeName(name); err != nil {
		redirect(w, r, "/pending", "err", "badinput")
		return
	}

	_, err := store.UpdateMetadata(r.Context(), s.DB, id, name, r.FormValue("type"), r.FormValue("description"))
	if errors.Is(err, store.ErrNotFound) {
		redirect(w, r, "/pending", "err", "notfound")
		return
	}
	if err != nil {
		slog.Warn("item not updated", "id", id, "error", err)
		redirect(w, r, "/pending", "err", "badinput")
		return
	}
	slog.Info("item updated", "id", id, "name", name)
	redirect(w, r, "/pending", "ok", "updated")
}

// ItemDeleteSubmit handles POST /items/{id}/delete.
func (s *Server) ItemDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := store.DeleteItem(r.Context(), s.DB, id)
	if s.handleResult(w, r, err, "delete", id) {
		redirect(w, r, "/pending", "ok", "deleted")
	}
}

// handleResult redirects on failure and reports whether the action
// succeeded.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request, err error, action, id string) bool {
	if errors.Is(err, store.ErrNotFound) {
		slog.Info("moderation target not found", "action", action, "id", id)
		redirect(w, r, "/pending", "err", "notfound")
		return false
	}
	if err != nil {
		slog.Error("moderation action failed", "action", action, "id", id, "error", err)
		redirect(w, r, "/pending", "err", "failed")
		return false
	}
	slog.Info("moderation action", "action", action, "id", id)
	return true
}
