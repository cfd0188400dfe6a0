// Package moderation implements the admin queue: listing pending
// submissions and resolving them to approved or removed.
package moderation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/erazemk/yearbook/internal/client"
	"github.com/erazemk/yearbook/internal/model"
	"github.com/erazemk/yearbook/internal/notice"
)

// API is the part of the HTTP client the queue needs.
type API interface {
	Data(ctx context.Context) (*model.BoardData, error)
	Approve(ctx context.Context, kind, id string, pos *model.Position) error
	Reject(ctx context.Context, kind, id string) error
	Delete(ctx context.Context, id string) error
	UpdateMetadata(ctx context.Context, id, name, category string) (*model.Item, error)
}

// Pending holds the pending items, grouped by kind, oldest first.
type Pending struct {
	Signatures []model.Item
	Memories   []model.Item
}

// Queue is a local view of the moderation state. Every action reports its
// outcome through Notices and reloads the lists from the server.
type Queue struct {
	api     API
	Notices *notice.Board

	mu       sync.Mutex
	pending  Pending
	approved []model.Item
	loaded   bool
}

// New creates a queue backed by api.
func New(api API) *Queue {
	return &Queue{api: api, Notices: notice.New(notice.DefaultTTL)}
}

// Refresh reloads the pending and approved lists.
func (q *Queue) Refresh(ctx context.Context) error {
	data, err := q.api.Data(ctx)
	if err != nil {
		q.Notices.Error("Could not load data")
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = Pending{
		Signatures: data.PendingSignatures,
		Memories:   data.PendingMemories,
	}
	q.approved = data.Signatures
	q.loaded = true
	return nil
}

// Loaded reports whether the first Refresh has completed.
func (q *Queue) Loaded() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loaded
}

// ListPending returns the pending items in a stable order.
func (q *Queue) ListPending() Pending {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Pending{
		Signatures: append([]model.Item(nil), q.pending.Signatures...),
		Memories:   append([]model.Item(nil), q.pending.Memories...),
	}
}

// Approved returns the approved items.
func (q *Queue) Approved() []model.Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]model.Item(nil), q.approved...)
}

// Approve publishes a pending item. A non-nil position places it on a
// specific board spot; otherwise it keeps its current position.
func (q *Queue) Approve(ctx context.Context, id string, pos *model.Position) bool {
	item, ok := q.findPending(id)
	if !ok {
		return q.notFound(ctx, "approve", id)
	}
	noun := nounFor(item.Kind)

	err := q.api.Approve(ctx, item.Kind, id, pos)
	return q.finish(ctx, err, id, "approve", noun+" approved", "Could not approve "+strings.ToLower(noun))
}

// Reject removes a pending item and its image.
func (q *Queue) Reject(ctx context.Context, id string) bool {
	item, ok := q.findPending(id)
	if !ok {
		return q.notFound(ctx, "reject", id)
	}
	noun := nounFor(item.Kind)

	err := q.api.Reject(ctx, item.Kind, id)
	return q.finish(ctx, err, id, "reject", noun+" rejected", "Could not reject "+strings.ToLower(noun))
}

// Delete removes an approved item from the board.
func (q *Queue) Delete(ctx context.Context, id string) bool {
	item, ok := q.findApproved(id)
	if !ok {
		return q.notFound(ctx, "delete", id)
	}
	noun := nounFor(item.Kind)

	err := q.api.Delete(ctx, id)
	return q.finish(ctx, err, id, "delete", noun+" deleted", "Could not delete "+strings.ToLower(noun))
}

// Rename updates an approved item's name and, for signatures, its category.
func (q *Queue) Rename(ctx context.Context, id, name, category string) bool {
	item, ok := q.findApproved(id)
	if !ok {
		return q.notFound(ctx, "rename", id)
	}
	noun := nounFor(item.Kind)

	_, err := q.api.UpdateMetadata(ctx, id, name, category)
	var verr *client.ValidationError
	if errors.As(err, &verr) {
		q.Notices.Error(verr.Error())
		return false
	}
	return q.finish(ctx, err, id, "rename", noun+" updated", "Could not update "+strings.ToLower(noun))
}

func (q *Queue) finish(ctx context.Context, err error, id, action, okText, failText string) bool {
	if errors.Is(err, client.ErrNotFound) {
		return q.notFound(ctx, action, id)
	}
	if err != nil {
		slog.Warn("moderation action failed", "action", action, "id", id, "error", err)
		q.Notices.Error(failText)
		return false
	}

	q.Notices.Info(okText)
	if err := q.Refresh(ctx); err != nil {
		slog.Warn("refresh after moderation failed", "action", action, "error", err)
		q.Notices.Info(okText)
	}
	return true
}

// notFound handles an id that is no longer where the queue expected it.
// Another session may have resolved it already, so the lists are reloaded.
func (q *Queue) notFound(ctx context.Context, action, id string) bool {
	slog.Info("moderation target not found", "action", action, "id", id)
	if err := q.Refresh(ctx); err != nil {
		slog.Warn("refresh after not found failed", "error", err)
	}
	q.Notices.Error("Item not found, the list has been refreshed")
	return false
}

func (q *Queue) findPending(id string) (model.Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, list := range [][]model.Item{q.pending.Signatures, q.pending.Memories} {
		for _, it := range list {
			if it.ID == id {
				return it, true
			}
		}
	}
	return model.Item{}, false
}

func (q *Queue) findApproved(id string) (model.Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range q.approved {
		if it.ID == id {
			return it, true
		}
	}
	return model.Item{}, false
}

func nounFor(kind string) string {
	if kind == model.KindMemory {
		return "Memory"
	}
	return "Signature"
}
