package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/yearbook/internal/model"
)

// ErrNotFound is returned when an item is not in the set an operation
// expects it in (for example approving an id that is no longer pending).
var ErrNotFound = errors.New("item not found")

// NewItem describes an item to create. ID, Position and CreatedAt are
// assigned when left empty.
type NewItem struct {
	ID          string
	Kind        string
	Name        string
	Category    string
	Description string
	Status      string
	Position    *model.Position
	Scale       float64
	CreatedAt   time.Time
	Image       []byte
	ImageMIME   string
}

const itemColumns = `id, name, kind, category, description, status, pos_x, pos_y, scale, created_at`

// CreateItem inserts an item together with its image.
func CreateItem(ctx context.Context, db *sql.DB, in NewItem) (*model.Item, error) {
	name, err := model.NormalizeName(in.Name)
	if err != nil {
		return nil, err
	}
	if !model.ValidKind(in.Kind) {
		return nil, fmt.Errorf("invalid kind %q", in.Kind)
	}
	var category any
	if in.Kind == model.KindSignature {
		if !model.ValidCategory(in.Category) {
			return nil, fmt.Errorf("invalid category %q", in.Category)
		}
		category = in.Category
	}
	if len(in.Image) == 0 {
		return nil, fmt.Errorf("image is required")
	}

	if in.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generating item id: %w", err)
		}
		in.ID = id.String()
	}
	if in.Status == "" {
		in.Status = model.StatusPending
	}
	if in.Position == nil {
		in.Position = &model.Position{
			X: rand.Float64() * model.CanvasWidth,
			Y: rand.Float64() * model.CanvasHeight,
		}
	}
	if in.Scale == 0 {
		in.Scale = model.DefaultScale
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO items (id, name, kind, category, description, status, pos_x, pos_y, scale, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, name, in.Kind, category, in.Description, in.Status,
		in.Position.X, in.Position.Y, model.ClampScale(in.Scale), in.CreatedAt, in.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO images (item_id, data, mime) VALUES (?, ?, ?)`,
		in.ID, in.Image, in.ImageMIME,
	)
	if err != nil {
		return nil, fmt.Errorf("storing item image: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item: %w", err)
	}

	return GetItem(ctx, db, in.ID)
}

// GetItem returns an item by ID, or nil if it does not exist.
func GetItem(ctx context.Context, db *sql.DB, id string) (*model.Item, error) {
	row := db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns items with the given status in insertion order,
// optionally filtered by kind.
func ListItems(ctx context.Context, db *sql.DB, status, kind string) ([]model.Item, error) {
	var rows *sql.Rows
	var err error

	if kind != "" {
		rows, err = db.QueryContext(ctx,
			`SELECT `+itemColumns+` FROM items WHERE status = ? AND kind = ?
			 ORDER BY created_at, id`, status, kind,
		)
	} else {
		rows, err = db.QueryContext(ctx,
			`SELECT `+itemColumns+` FROM items WHERE status = ?
			 ORDER BY created_at, id`, status,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// ApproveItem moves a pending item of the given kind to the approved set.
// A non-nil position overwrites the stored one.
func ApproveItem(ctx context.Context, db *sql.DB, id, kind string, pos *model.Position) error {
	now := time.Now().UTC()
	var result sql.Result
	var err error

	if pos != nil {
		result, err = db.ExecContext(ctx,
			`UPDATE items SET status = 'approved', pos_x = ?, pos_y = ?, approved_at = ?, updated_at = ?
			 WHERE id = ? AND kind = ? AND status = 'pending'`,
			pos.X, pos.Y, now, now, id, kind,
		)
	} else {
		result, err = db.ExecContext(ctx,
			`UPDATE items SET status = 'approved', approved_at = ?, updated_at = ?
			 WHERE id = ? AND kind = ? AND status = 'pending'`,
			now, now, id, kind,
		)
	}
	if err != nil {
		return fmt.Errorf("approving item: %w", err)
	}
	return expectOneRow(result)
}

// RejectItem removes a pending item of the given kind and its image,
// leaving a tombstone for the history view.
func RejectItem(ctx context.Context, db *sql.DB, id, kind string) error {
	return removeItem(ctx, db, id, kind, model.StatusPending, model.StatusRejected)
}

// DeleteItem removes an approved item and its image, leaving a tombstone.
func DeleteItem(ctx context.Context, db *sql.DB, id string) error {
	return removeItem(ctx, db, id, "", model.StatusApproved, model.StatusDeleted)
}

func removeItem(ctx context.Context, db *sql.DB, id, kind, fromStatus, tombstoneStatus string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := scanItem(tx.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ? AND status = ?`, id, fromStatus,
	))
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("loading item: %w", err)
	}
	if kind != "" && item.Kind != kind {
		return ErrNotFound
	}

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO tombstones (id, name, kind, category, description, status, created_at, removed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Name, item.Kind, nullString(item.Category), item.Description,
		tombstoneStatus, item.CreatedAt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("writing tombstone: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM images WHERE item_id = ?`, id); err != nil {
		return fmt.Errorf("deleting item image: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing removal: %w", err)
	}
	return nil
}

// UpdatePosition sets the board position of an approved item.
func UpdatePosition(ctx context.Context, db *sql.DB, id string, pos model.Position) error {
	if !pos.Valid() {
		return fmt.Errorf("position must be finite")
	}
	result, err := db.ExecContext(ctx,
		`UPDATE items SET pos_x = ?, pos_y = ?, updated_at = ?
		 WHERE id = ? AND status = 'approved'`,
		pos.X, pos.Y, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating position: %w", err)
	}
	return expectOneRow(result)
}

// UpdateScale sets the scale of an approved item, clamped to the allowed
// range. It returns the stored value.
func UpdateScale(ctx context.Context, db *sql.DB, id string, scale float64) (float64, error) {
	scale = model.ClampScale(scale)
	result, err := db.ExecContext(ctx,
		`UPDATE items SET scale = ?, updated_at = ?
		 WHERE id = ? AND status = 'approved'`,
		scale, time.Now().UTC(), id,
	)
	if err != nil {
		return 0, fmt.Errorf("updating scale: %w", err)
	}
	return scale, expectOneRow(result)
}

// UpdateMetadata renames an approved item. Signatures also take a category;
// memories ignore it and keep their description unless a new one is given.
func UpdateMetadata(ctx context.Context, db *sql.DB, id, name, category, description string) (*model.Item, error) {
	name, err := model.NormalizeName(name)
	if err != nil {
		return nil, err
	}

	item, err := GetItem(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if item == nil || item.Status != model.StatusApproved {
		return nil, ErrNotFound
	}

	var result sql.Result
	switch item.Kind {
	case model.KindSignature:
		if !model.ValidCategory(category) {
			return nil, fmt.Errorf("invalid category %q", category)
		}
		result, err = db.ExecContext(ctx,
			`UPDATE items SET name = ?, category = ?, updated_at = ?
			 WHERE id = ? AND status = 'approved'`,
			name, category, time.Now().UTC(), id,
		)
	default:
		if description == "" {
			description = item.Description
		}
		result, err = db.ExecContext(ctx,
			`UPDATE items SET name = ?, description = ?, updated_at = ?
			 WHERE id = ? AND status = 'approved'`,
			name, description, time.Now().UTC(), id,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("updating item: %w", err)
	}
	if err := expectOneRow(result); err != nil {
		return nil, err
	}

	return GetItem(ctx, db, id)
}

// LoadBoard returns the full listing: approved items, pending items split by
// kind, and the board settings.
func LoadBoard(ctx context.Context, db *sql.DB) (*model.BoardData, error) {
	approved, err := ListItems(ctx, db, model.StatusApproved, "")
	if err != nil {
		return nil, err
	}
	pendingSignatures, err := ListItems(ctx, db, model.StatusPending, model.KindSignature)
	if err != nil {
		return nil, err
	}
	pendingMemories, err := ListItems(ctx, db, model.StatusPending, model.KindMemory)
	if err != nil {
		return nil, err
	}
	settings, err := GetSettings(ctx, db)
	if err != nil {
		return nil, err
	}

	return &model.BoardData{
		Signatures:        nonNil(approved),
		PendingSignatures: nonNil(pendingSignatures),
		PendingMemories:   nonNil(pendingMemories),
		Settings:          settings,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*model.Item, error) {
	item := &model.Item{}
	var category, description sql.NullString
	err := row.Scan(&item.ID, &item.Name, &item.Kind, &category, &description,
		&item.Status, &item.Position.X, &item.Position.Y, &item.Scale, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	item.Category = category.String
	item.Description = description.String
	item.ImagePath = model.ImagePathFor(item.Kind, item.ID)
	return item, nil
}

func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nonNil(items []model.Item) []model.Item {
	if items == nil {
		return []model.Item{}
	}
	return items
}
