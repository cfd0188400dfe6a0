package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"

	"github.com/erazemk/yearbook/internal/config"
	"github.com/erazemk/yearbook/internal/legacy"
)

// importCommand registers the import flags on fs and returns the command.
func importCommand(fs *flag.FlagSet) func(context.Context, *config.Config, *sql.DB) error {
	dataPath := fs.String("data", "signatures.json", "")
	publicDir := fs.String("public", "public", "")

	return func(ctx context.Context, cfg *config.Config, database *sql.DB) error {
		res, err := legacy.Import(ctx, database, *dataPath, *publicDir, imageOptions(cfg))
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d items from %s.\n", res.Imported, *dataPath)
		if res.Existing > 0 {
			fmt.Printf("  %d already present, skipped\n", res.Existing)
		}
		if res.MissingImages > 0 {
			fmt.Printf("  %d without a readable image, skipped\n", res.MissingImages)
		}
		if res.Invalid > 0 {
			fmt.Printf("  %d invalid records, skipped\n", res.Invalid)
		}
		if res.Settings {
			fmt.Println("  board settings imported")
		}
		return nil
	}
}
