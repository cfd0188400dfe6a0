// Package inbox turns photos dropped into a directory into pending
// memories.
package inbox

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"

	"github.com/erazemk/yearbook/internal/imaging"
	"github.com/erazemk/yearbook/internal/model"
	"github.com/erazemk/yearbook/internal/store"
)

// DefaultSettle is how long a file must stay unchanged before it is
// imported. Copies arrive as a series of writes.
const DefaultSettle = 500 * time.Millisecond

// FailedDir is the subdirectory unusable files are moved to.
const FailedDir = "failed"

var extensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// Watcher imports image files from a directory.
type Watcher struct {
	DB     *sql.DB
	Dir    string
	Images imaging.Options
	Settle time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New creates a watcher for dir.
func New(db *sql.DB, dir string, opts imaging.Options) *Watcher {
	return &Watcher{DB: db, Dir: dir, Images: opts, Settle: DefaultSettle}
}

// Run imports files already in the directory, then watches it until ctx
// is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return fmt.Errorf("creating inbox: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.Dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.Dir, err)
	}
	slog.Info("watching photo inbox", "dir", w.Dir)

	ready := make(chan string, 16)
	w.mu.Lock()
	w.timers = make(map[string]*time.Timer)
	w.mu.Unlock()
	defer w.stopTimers()

	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		return fmt.Errorf("reading inbox: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			w.schedule(ctx, filepath.Join(w.Dir, e.Name()), ready)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.schedule(ctx, event.Name, ready)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("inbox watcher error", "error", err)

		case path := <-ready:
			if _, err := w.ProcessFile(ctx, path); err != nil && !errors.Is(err, os.ErrNotExist) {
				slog.Warn("inbox file not imported", "path", path, "error", err)
			}
		}
	}
}

// schedule (re)starts the settle timer for path.
func (w *Watcher) schedule(ctx context.Context, path string, ready chan<- string) {
	if !extensions[strings.ToLower(filepath.Ext(path))] {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Reset(w.Settle)
		return
	}
	w.timers[path] = time.AfterFunc(w.Settle, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		select {
		case ready <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

// ProcessFile imports one image as a pending memory named after the file
// and removes it from the inbox. Files that cannot be imported are moved to
// the failed subdirectory.
func (w *Watcher) ProcessFile(ctx context.Context, path string) (*model.Item, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	processed, err := imaging.Process(bytes.NewReader(raw), model.KindMemory, w.Images)
	if err != nil {
		w.quarantine(path)
		return nil, err
	}

	item, err := store.CreateItem(ctx, w.DB, store.NewItem{
		Kind:      model.KindMemory,
		Name:      NameFromFile(path),
		Image:     processed.Data,
		ImageMIME: processed.MIME,
	})
	if err != nil {
		return nil, err
	}

	if err := os.Remove(path); err != nil {
		slog.Warn("imported inbox file not removed", "path", path, "error", err)
	}
	slog.Info("memory imported from inbox", "id", item.ID, "name", item.Name,
		"size", humanize.Bytes(uint64(len(raw))))
	return item, nil
}

func (w *Watcher) quarantine(path string) {
	dir := filepath.Join(w.Dir, FailedDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Warn("cannot create failed directory", "error", err)
		return
	}
	if err := os.Rename(path, filepath.Join(dir, filepath.Base(path))); err != nil {
		slog.Warn("cannot move unusable inbox file", "path", path, "error", err)
	}
}

// NameFromFile derives a display name from a file name:
// "class_trip-2024.jpg" becomes "class trip 2024".
func NameFromFile(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.Join(strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '.'
	}), " ")
	if name == "" {
		return "Memory"
	}
	return name
}
