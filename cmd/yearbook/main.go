package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/erazemk/yearbook/internal/api"
	"github.com/erazemk/yearbook/internal/config"
	"github.com/erazemk/yearbook/internal/db"
	"github.com/erazemk/yearbook/internal/imaging"
	"github.com/erazemk/yearbook/internal/inbox"
	"github.com/erazemk/yearbook/internal/web"
)

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger configures structured logging. INFO/WARN go to stdout, ERROR goes
// to stderr. Text output is used on a terminal and JSON otherwise. If logPath
// is non-empty, all levels are also written to that file.
func setupLogger(logPath string) (func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var cleanup func()

	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	newHandler := func(w io.Writer) slog.Handler { return slog.NewJSONHandler(w, opts) }
	if term.IsTerminal(int(os.Stdout.Fd())) {
		newHandler = func(w io.Writer) slog.Handler { return slog.NewTextHandler(w, opts) }
	}

	handler := &levelRouter{
		stdout: newHandler(stdoutW),
		stderr: newHandler(stderrW),
	}
	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

const usage = `Usage: yearbook [command] [flags]

Commands:
  serve                   run the web server (default)
  import                  import a legacy signatures.json data file
  seed                    fill the database with fake submissions

Flags:
  -c, -config <path>      YAML config file (env: YEARBOOK_CONFIG)
  -d, -db <path>          SQLite database path (default: yearbook.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -i, -inbox <dir>        watch a directory for photos to queue as memories
  -max-upload <bytes>     upload size limit (default: 5 MiB)
  -max-dimension <px>     longest stored image side (default: 1024)
  -snapshot-density <n>   snapshot pixels per board unit (default: 3)
  -cors-origin <origin>   Access-Control-Allow-Origin value (default: *)
  -h, -help               show this help and exit

Import flags:
  -data <path>            legacy data file (default: signatures.json)
  -public <dir>           directory holding signatures/ and memories/ (default: public)

Seed flags:
  -n <count>              number of items to create (default: 40)
`

func main() {
	args := os.Args[1:]
	command := "serve"
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		command, args = args[0], args[1:]
	}

	fs := flag.NewFlagSet("yearbook "+command, flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(os.Stdout, usage) }

	var run func(context.Context, *config.Config, *sql.DB) error
	switch command {
	case "serve":
		run = serve
	case "import":
		run = importCommand(fs)
	case "seed":
		run = seedCommand(fs)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	closeLog, err := setupLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	database, err := db.Open(cfg.DB)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	// Ensure schema exists (idempotent).
	if err := db.EnsureSchema(database); err != nil {
		slog.Error("failed to ensure database schema", "error", err)
		os.Exit(1)
	}

	slog.Info("database ready", "path", cfg.DB)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, database); err != nil {
		slog.Error(command+" failed", "error", err)
		os.Exit(1)
	}
}

func imageOptions(cfg *config.Config) imaging.Options {
	return imaging.Options{
		MaxDimension: cfg.MaxImageDimension,
		MaxBytes:     cfg.MaxUploadBytes,
	}
}

func serve(ctx context.Context, cfg *config.Config, database *sql.DB) error {
	apiRouter := api.NewRouter(database, api.Options{
		MaxUploadBytes:    cfg.MaxUploadBytes,
		MaxImageDimension: cfg.MaxImageDimension,
		SnapshotDensity:   cfg.SnapshotDensity,
	})
	webRouter, err := web.NewRouter(database, imageOptions(cfg))
	if err != nil {
		return fmt.Errorf("setting up web router: %w", err)
	}

	// API and image routes take priority, web routes handle the rest.
	mux := http.NewServeMux()
	mux.Handle("/api/", apiRouter)
	mux.Handle("/signatures/", apiRouter)
	mux.Handle("/memories/", apiRouter)
	mux.Handle("/", webRouter)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Wrap(mux, cfg.CORSOrigin),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if cfg.Inbox != "" {
		watcher := inbox.New(database, cfg.Inbox, imageOptions(cfg))
		go func() {
			if err := watcher.Run(ctx); err != nil {
				slog.Error("photo inbox stopped", "dir", cfg.Inbox, "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	slog.Info("server stopped, closing database")
	return nil
}
