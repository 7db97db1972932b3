// Package worker parses worker command flags and launches the worker runtime.
package worker

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/louisbranch/papertrade.space/internal/platform/cmd"
	workerserver "github.com/louisbranch/papertrade.space/internal/services/worker/app"
)

// Config holds worker command configuration.
type Config struct {
	Port                int           `env:"PAPERTRADE_WORKER_PORT" envDefault:"8089"`
	DBPath              string        `env:"PAPERTRADE_DB_PATH" envDefault:"data/ledger.db"`
	AlphaVantageKey     string        `env:"PAPERTRADE_ALPHAVANTAGE_API_KEY"`
	AlphaVantageBaseURL string        `env:"PAPERTRADE_ALPHAVANTAGE_BASE_URL"`
	Interval            time.Duration `env:"PAPERTRADE_WORKER_INTERVAL"`

	StartingBalanceCents int64 `env:"PAPERTRADE_STARTING_BALANCE_CENTS" envDefault:"100000"`
	WeeklyAllowanceCents int64 `env:"PAPERTRADE_WEEKLY_ALLOWANCE_CENTS" envDefault:"10000"`
	AllowanceWindowDays  int   `env:"PAPERTRADE_ALLOWANCE_WINDOW_DAYS" envDefault:"7"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The worker health gRPC server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The ledger SQLite database path")
	fs.StringVar(&cfg.AlphaVantageKey, "alphavantage-key", cfg.AlphaVantageKey, "Alpha Vantage API key")
	fs.DurationVar(&cfg.Interval, "interval", cfg.Interval, "Bookkeeping cadence, zero aligns runs to midnight UTC")
	fs.Int64Var(&cfg.WeeklyAllowanceCents, "weekly-allowance", cfg.WeeklyAllowanceCents, "Weekly allowance in cents")
	fs.IntVar(&cfg.AllowanceWindowDays, "allowance-window-days", cfg.AllowanceWindowDays, "Minimum days between allowance grants")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the worker runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceWorker, func(context.Context) error {
		return workerserver.Run(ctx, workerserver.RuntimeConfig{
			Port:                 cfg.Port,
			DBPath:               cfg.DBPath,
			AlphaVantageKey:      cfg.AlphaVantageKey,
			AlphaVantageBaseURL:  cfg.AlphaVantageBaseURL,
			Interval:             cfg.Interval,
			StartingBalanceCents: cfg.StartingBalanceCents,
			WeeklyAllowanceCents: cfg.WeeklyAllowanceCents,
			AllowanceWindowDays:  cfg.AllowanceWindowDays,
		})
	})
}
