// Package migrate applies pending ledger schema migrations and reports what
// ran.
package migrate

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"

	entrypoint "github.com/louisbranch/papertrade.space/internal/platform/cmd"
	"github.com/louisbranch/papertrade.space/internal/services/ledger/storage/sqlite"
)

// Config holds migrate command configuration.
type Config struct {
	DBPath string `env:"PAPERTRADE_DB_PATH" envDefault:"data/ledger.db"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "ledger SQLite database path")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run applies pending migrations and writes the applied script names to out.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMigrate, func(context.Context) error {
		applied, err := sqlite.Migrate(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("migrate %s: %w", cfg.DBPath, err)
		}
		if len(applied) == 0 {
			fmt.Fprintln(out, "no pending migrations")
			return nil
		}
		for _, name := range applied {
			fmt.Fprintf(out, "applied %s\n", name)
		}
		log.Printf("applied %d migrations", len(applied))
		return nil
	})
}
