package model

import "time"

// Tombstone statuses.
const (
	StatusRejected = "rejected"
	StatusDeleted  = "deleted"
)

// Tombstone records an item that was rejected or deleted. The item and its
// image are gone; only the metadata is retained for the history view.
type Tombstone struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Kind        string    `json:"contentType"`
	Category    string    `json:"type,omitempty"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"timestamp"`
	RemovedAt   time.Time `json:"removedAt"`
}

// HistoryEntry is one row of the history view: a live item or a tombstone.
type HistoryEntry struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Kind        string     `json:"contentType"`
	Category    string     `json:"type,omitempty"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"timestamp"`
	RemovedAt   *time.Time `json:"removedAt,omitempty"`
}

// HistoryFilter narrows a history listing. Empty fields match everything.
type HistoryFilter struct {
	Status   string
	Category string
	Search   string
}
