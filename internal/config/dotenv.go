package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// dotEnvFiles are read in order; variables already in the environment, or
// set by an earlier file, are kept.
var dotEnvFiles = []string{".env.local", ".env"}

// LoadDotEnv loads the dotenv files present in the working directory and
// returns the ones applied. A file that cannot be parsed is skipped and
// reported in the error; the remaining files are still loaded.
func LoadDotEnv() ([]string, error) {
	var loaded []string
	var errs []error
	for _, f := range dotEnvFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			errs = append(errs, fmt.Errorf("loading %s: %w", f, err))
			continue
		}
		loaded = append(loaded, f)
	}
	return loaded, errors.Join(errs...)
}
