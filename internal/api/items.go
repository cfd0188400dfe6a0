package api

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/erazemk/yearbook/internal/imaging"
	"github.com/erazemk/yearbook/internal/model"
	"github.com/erazemk/yearbook/internal/store"
)

// ItemsHandler handles submission, moderation and board edits for one kind
// of item.
type ItemsHandler struct {
	DB     *sql.DB
	Kind   string
	Images imaging.Options
}

type createItemRequest struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	ImageData   string `json:"imageData"`
}

type approveRequest struct {
	Position *model.Position `json:"position"`
}

type positionRequest struct {
	Position *model.Position `json:"position"`
}

type scaleRequest struct {
	Scale *float64 `json:"scale"`
}

type updateItemRequest struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// notFound is the message returned when an id is not in the expected set.
func (h *ItemsHandler) notFound() string {
	if h.Kind == model.KindMemory {
		return "memory not found"
	}
	return "signature not found"
}

// maxBodyBytes is the request ceiling: the base64 form of a maximal image
// plus room for the other fields.
func (h *ItemsHandler) maxBodyBytes() int64 {
	limit := h.Images.MaxBytes
	if limit <= 0 {
		limit = imaging.MaxUploadBytes
	}
	return int64(limit)*4/3 + 64<<10
}

// Create handles POST /api/signatures and POST /api/memories.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes())

	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			jsonError(w, http.StatusRequestEntityTooLarge, "image too large")
			return
		}
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name, err := model.NormalizeName(req.Name)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}
	if h.Kind == model.KindSignature && !model.ValidCategory(req.Type) {
		jsonError(w, http.StatusBadRequest, "type must be student or teacher")
		return
	}

	raw, err := imaging.DecodeDataURL(req.ImageData)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	processed, err := imaging.Process(bytes.NewReader(raw), h.Kind, h.Images)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, imaging.ErrTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		jsonError(w, status, err.Error())
		return
	}

	in := store.NewItem{
		Kind:      h.Kind,
		Name:      name,
		Image:     processed.Data,
		ImageMIME: processed.MIME,
	}
	if h.Kind == model.KindSignature {
		in.Category = req.Type
	} else {
		in.Description = strings.TrimSpace(req.Description)
	}

	item, err := store.CreateItem(r.Context(), h.DB, in)
	if err != nil {
		slog.Error("failed to create item", "kind", h.Kind, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to save "+h.Kind)
		return
	}

	slog.Info(h.Kind+" submitted", "id", item.ID, "name", item.Name,
		"size", humanize.Bytes(uint64(len(processed.Data))),
		"dimensions", fmt.Sprintf("%dx%d", processed.Width, processed.Height))
	jsonSuccess(w, http.StatusCreated, map[string]any{h.Kind: item})
}

// Approve handles POST /api/{kind}/{id}/approve.
func (h *ItemsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req approveRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Position != nil && !req.Position.Valid() {
		jsonError(w, http.StatusBadRequest, "invalid position")
		return
	}

	err := store.ApproveItem(r.Context(), h.DB, id, h.Kind, req.Position)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, http.StatusNotFound, h.notFound())
		return
	}
	if err != nil {
		slog.Error("failed to approve item", "id", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to approve "+h.Kind)
		return
	}

	slog.Info(h.Kind+" approved", "id", id, "position_given", req.Position != nil)
	jsonSuccess(w, http.StatusOK, nil)
}

// Reject handles POST /api/{kind}/{id}/reject.
func (h *ItemsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	err := store.RejectItem(r.Context(), h.DB, id, h.Kind)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, http.StatusNotFound, h.notFound())
		return
	}
	if err != nil {
		slog.Error("failed to reject item", "id", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to reject "+h.Kind)
		return
	}

	slog.Info(h.Kind+" rejected", "id", id)
	jsonSuccess(w, http.StatusOK, nil)
}

// UpdatePosition handles PUT /api/signatures/{id}/position.
func (h *ItemsHandler) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req positionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Position == nil || !req.Position.Valid() {
		jsonError(w, http.StatusBadRequest, "position required")
		return
	}

	err := store.UpdatePosition(r.Context(), h.DB, id, *req.Position)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, http.StatusNotFound, h.notFound())
		return
	}
	if err != nil {
		slog.Error("failed to update position", "id", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update position")
		return
	}

	jsonSuccess(w, http.StatusOK, nil)
}

// UpdateScale handles PUT /api/signatures/{id}/scale. Out-of-range values
// are clamped, not rejected.
func (h *ItemsHandler) UpdateScale(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req scaleRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Scale == nil || math.IsNaN(*req.Scale) || math.IsInf(*req.Scale, 0) {
		jsonError(w, http.StatusBadRequest, "scale required")
		return
	}

	scale, err := store.UpdateScale(r.Context(), h.DB, id, *req.Scale)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, http.StatusNotFound, h.notFound())
		return
	}
	if err != nil {
		slog.Error("failed to update scale", "id", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update scale")
		return
	}

	jsonSuccess(w, http.StatusOK, map[string]any{"scale": scale})
}

// Update handles PUT /api/signatures/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := model.NormalizeName(req.Name); err != nil {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	existing, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get item", "id", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update "+h.Kind)
		return
	}
	if existing == nil || existing.Status != model.StatusApproved {
		jsonError(w, http.StatusNotFound, h.notFound())
		return
	}
	if existing.Kind == model.KindSignature && !model.ValidCategory(req.Type) {
		jsonError(w, http.StatusBadRequest, "type must be student or teacher")
		return
	}

	item, err := store.UpdateMetadata(r.Context(), h.DB, id, req.Name, req.Type, strings.TrimSpace(req.Description))
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, http.StatusNotFound, h.notFound())
		return
	}
	if err != nil {
		slog.Error("failed to update item", "id", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update "+h.Kind)
		return
	}

	slog.Info("item updated", "id", id, "name", item.Name, "type", item.Category)
	jsonSuccess(w, http.StatusOK, map[string]any{"signature": item})
}

// Delete handles DELETE /api/signatures/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	err := store.DeleteItem(r.Context(), h.DB, id)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, http.StatusNotFound, h.notFound())
		return
	}
	if err != nil {
		slog.Error("failed to delete item", "id", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete "+h.Kind)
		return
	}

	slog.Info("item deleted", "id", id)
	jsonSuccess(w, http.StatusOK, nil)
}
