// Package config resolves runtime settings from defaults, an optional YAML
// file, the environment and command-line flags, in that order.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/erazemk/yearbook/internal/imaging"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "YEARBOOK_"

// Config holds the server settings.
type Config struct {
	DB                string  `yaml:"db"`
	Addr              string  `yaml:"addr"`
	Log               string  `yaml:"log"`
	Inbox             string  `yaml:"inbox"`
	MaxUploadBytes    int     `yaml:"max_upload_bytes"`
	MaxImageDimension int     `yaml:"max_image_dimension"`
	SnapshotDensity   float64 `yaml:"snapshot_density"`
	CORSOrigin        string  `yaml:"cors_origin"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DB:                "yearbook.sqlite3",
		Addr:              ":8080",
		MaxUploadBytes:    imaging.MaxUploadBytes,
		MaxImageDimension: imaging.MaxDimension,
		SnapshotDensity:   imaging.DefaultDensity,
		CORSOrigin:        "*",
	}
}

// Validate reports settings that cannot work.
func (c Config) Validate() error {
	var errs []error
	if c.DB == "" {
		errs = append(errs, errors.New("db path is required"))
	}
	if c.Addr == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_upload_bytes must be positive, got %d", c.MaxUploadBytes))
	}
	if c.MaxImageDimension <= 0 {
		errs = append(errs, fmt.Errorf("max_image_dimension must be positive, got %d", c.MaxImageDimension))
	}
	if c.SnapshotDensity <= 0 || c.SnapshotDensity > 4 {
		errs = append(errs, fmt.Errorf("snapshot_density must be in (0, 4], got %g", c.SnapshotDensity))
	}
	return errors.Join(errs...)
}

// LoadFile merges a YAML file into cfg. Keys missing from the file keep
// their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg with YEARBOOK_* variables found through lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"DB":          &cfg.DB,
		"ADDR":        &cfg.Addr,
		"LOG":         &cfg.Log,
		"INBOX":       &cfg.Inbox,
		"CORS_ORIGIN": &cfg.CORSOrigin,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"MAX_UPLOAD_BYTES":    &cfg.MaxUploadBytes,
		"MAX_IMAGE_DIMENSION": &cfg.MaxImageDimension,
	}
	for key, dst := range ints {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
	}

	if v, ok := lookup(EnvPrefix + "SNAPSHOT_DENSITY"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sSNAPSHOT_DENSITY: %w", EnvPrefix, err)
		}
		cfg.SnapshotDensity = f
	}
	return nil
}

// flagValues receives parsed flag values before they are layered on top of
// the file and environment.
type flagValues struct {
	config Config
	path   string
}

func bindFlags(fs *flag.FlagSet, fv *flagValues) {
	def := Default()

	fs.StringVar(&fv.path, "config", "", "")
	fs.StringVar(&fv.path, "c", "", "")

	fs.StringVar(&fv.config.DB, "db", def.DB, "")
	fs.StringVar(&fv.config.DB, "d", def.DB, "")

	fs.StringVar(&fv.config.Addr, "addr", def.Addr, "")
	fs.StringVar(&fv.config.Addr, "a", def.Addr, "")

	fs.StringVar(&fv.config.Log, "log", "", "")
	fs.StringVar(&fv.config.Log, "l", "", "")

	fs.StringVar(&fv.config.Inbox, "inbox", "", "")
	fs.StringVar(&fv.config.Inbox, "i", "", "")

	fs.IntVar(&fv.config.MaxUploadBytes, "max-upload", def.MaxUploadBytes, "")
	fs.IntVar(&fv.config.MaxImageDimension, "max-dimension", def.MaxImageDimension, "")
	fs.Float64Var(&fv.config.SnapshotDensity, "snapshot-density", def.SnapshotDensity, "")
	fs.StringVar(&fv.config.CORSOrigin, "cors-origin", def.CORSOrigin, "")
}

// Load registers the shared flags on fs, parses args and resolves the final
// configuration. Callers may register their own flags on fs beforehand.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	var fv flagValues
	bindFlags(fs, &fv)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	loaded, err := LoadDotEnv()
	if err != nil {
		slog.Warn("ignoring unreadable dotenv file", "error", err)
	}
	if len(loaded) > 0 {
		slog.Info("loaded dotenv files", "files", loaded)
	}

	cfg := Default()
	path := fv.path
	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "db", "d":
			cfg.DB = fv.config.DB
		case "addr", "a":
			cfg.Addr = fv.config.Addr
		case "log", "l":
			cfg.Log = fv.config.Log
		case "inbox", "i":
			cfg.Inbox = fv.config.Inbox
		case "max-upload":
			cfg.MaxUploadBytes = fv.config.MaxUploadBytes
		case "max-dimension":
			cfg.MaxImageDimension = fv.config.MaxImageDimension
		case "snapshot-density":
			cfg.SnapshotDensity = fv.config.SnapshotDensity
		case "cors-origin":
			cfg.CORSOrigin = fv.config.CORSOrigin
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
