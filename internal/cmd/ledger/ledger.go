// Package ledger parses ledger command flags and launches the HTTP API.
package ledger

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/louisbranch/papertrade.space/internal/platform/cmd"
	server "github.com/louisbranch/papertrade.space/internal/services/ledger/app"
)

// Config holds ledger command configuration.
type Config struct {
	HTTPAddr            string `env:"PAPERTRADE_LEDGER_HTTP_ADDR" envDefault:":8080"`
	DBPath              string `env:"PAPERTRADE_DB_PATH" envDefault:"data/ledger.db"`
	AlphaVantageKey     string `env:"PAPERTRADE_ALPHAVANTAGE_API_KEY"`
	AlphaVantageBaseURL string `env:"PAPERTRADE_ALPHAVANTAGE_BASE_URL"`

	AuthSecret string `env:"PAPERTRADE_AUTH_SECRET"`
	AuthIssuer string `env:"PAPERTRADE_AUTH_ISSUER" envDefault:"papertrade"`

	StartingBalanceCents int64 `env:"PAPERTRADE_STARTING_BALANCE_CENTS" envDefault:"100000"`
	WeeklyAllowanceCents int64 `env:"PAPERTRADE_WEEKLY_ALLOWANCE_CENTS" envDefault:"10000"`
	AllowanceWindowDays  int   `env:"PAPERTRADE_ALLOWANCE_WINDOW_DAYS" envDefault:"7"`

	QuoteCacheSize int           `env:"PAPERTRADE_QUOTE_CACHE_SIZE" envDefault:"256"`
	QuoteCacheTTL  time.Duration `env:"PAPERTRADE_QUOTE_CACHE_TTL" envDefault:"1m"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "ledger HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "ledger SQLite database path")
	fs.StringVar(&cfg.AlphaVantageKey, "alphavantage-key", cfg.AlphaVantageKey, "Alpha Vantage API key")
	fs.StringVar(&cfg.AuthSecret, "auth-secret", cfg.AuthSecret, "bearer token secret, empty disables auth")
	fs.Int64Var(&cfg.StartingBalanceCents, "starting-balance", cfg.StartingBalanceCents, "starting balance for new users in cents")
	fs.Int64Var(&cfg.WeeklyAllowanceCents, "weekly-allowance", cfg.WeeklyAllowanceCents, "weekly allowance in cents")
	fs.IntVar(&cfg.AllowanceWindowDays, "allowance-window-days", cfg.AllowanceWindowDays, "minimum days between allowance grants")
	fs.DurationVar(&cfg.QuoteCacheTTL, "quote-cache-ttl", cfg.QuoteCacheTTL, "quote cache entry lifetime")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the ledger app and serves the HTTP API.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceLedger, func(context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:             cfg.HTTPAddr,
			DBPath:               cfg.DBPath,
			AlphaVantageKey:      cfg.AlphaVantageKey,
			AlphaVantageBaseURL:  cfg.AlphaVantageBaseURL,
			AuthSecret:           cfg.AuthSecret,
			AuthIssuer:           cfg.AuthIssuer,
			StartingBalanceCents: cfg.StartingBalanceCents,
			WeeklyAllowanceCents: cfg.WeeklyAllowanceCents,
			AllowanceWindowDays:  cfg.AllowanceWindowDays,
			QuoteCacheSize:       cfg.QuoteCacheSize,
			QuoteCacheTTL:        cfg.QuoteCacheTTL,
		}); err != nil {
			return fmt.Errorf("serve ledger: %w", err)
		}
		return nil
	})
}
