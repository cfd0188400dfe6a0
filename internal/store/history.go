package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/erazemk/yearbook/internal/model"
)

// ListHistory returns live items and tombstones, newest first.
func ListHistory(ctx context.Context, db *sql.DB, filter model.HistoryFilter) ([]model.HistoryEntry, error) {
	var entries []model.HistoryEntry

	rows, err := db.QueryContext(ctx,
		`SELECT id, name, kind, category, description, status, created_at FROM items`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items for history: %w", err)
	}
	for rows.Next() {
		var e model.HistoryEntry
		var category, description sql.NullString
		if err := rows.Scan(&e.ID, &e.Name, &e.Kind, &category, &description, &e.Status, &e.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		e.Category = category.String
		e.Description = description.String
		entries = append(entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing items for history: %w", err)
	}

	tombstones, err := ListTombstones(ctx, db)
	if err != nil {
		return nil, err
	}
	for _, t := range tombstones {
		removedAt := t.RemovedAt
		entries = append(entries, model.HistoryEntry{
			ID:          t.ID,
			Name:        t.Name,
			Kind:        t.Kind,
			Category:    t.Category,
			Description: t.Description,
			Status:      t.Status,
			CreatedAt:   t.CreatedAt,
			RemovedAt:   &removedAt,
		})
	}

	filtered := entries[:0]
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	for _, e := range entries {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.Category != "" && e.Category != filter.Category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(e.Name), search) {
			continue
		}
		filtered = append(filtered, e)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})
	return filtered, nil
}

// ListTombstones returns all rejected and deleted items, most recently
// removed first.
func ListTombstones(ctx context.Context, db *sql.DB) ([]model.Tombstone, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, kind, category, description, status, created_at, removed_at
		 FROM tombstones ORDER BY removed_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing tombstones: %w", err)
	}
	defer rows.Close()

	var tombstones []model.Tombstone
	for rows.Next() {
		var t model.Tombstone
		var category, description sql.NullString
		if err := rows.Scan(&t.ID, &t.Name, &t.Kind, &category, &description, &t.Status, &t.CreatedAt, &t.RemovedAt); err != nil {
			return nil, fmt.Errorf("scanning tombstone: %w", err)
		}
		t.Category = category.String
		t.Description = description.String
		tombstones = append(tombstones, t)
	}
	return tombstones, rows.Err()
}
