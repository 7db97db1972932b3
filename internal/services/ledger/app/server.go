// Package app hosts the ledger HTTP API process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/papertrade.space/internal/platform/authtoken"
	"github.com/louisbranch/papertrade.space/internal/platform/money"
	"github.com/louisbranch/papertrade.space/internal/platform/timeouts"
	"github.com/louisbranch/papertrade.space/internal/services/ledger/service"
	"github.com/louisbranch/papertrade.space/internal/services/ledger/storage/sqlite"
	"github.com/louisbranch/papertrade.space/internal/services/pricing"
)

const (
	defaultStartingBalanceCents = 100_000
	defaultWeeklyAllowanceCents = 10_000
	defaultQuoteCacheSize       = 256
	defaultQuoteCacheTTL        = time.Minute
)

// Config defines the inputs for the ledger HTTP boundary.
type Config struct {
	HTTPAddr            string
	DBPath              string
	AlphaVantageKey     string
	AlphaVantageBaseURL string

	// AuthSecret enables bearer-token auth when non-empty.
	AuthSecret string
	AuthIssuer string

	StartingBalanceCents int64
	WeeklyAllowanceCents int64
	AllowanceWindowDays  int

	QuoteCacheSize int
	QuoteCacheTTL  time.Duration

	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the ledger HTTP process.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	store           interface{ Close() error }
}

// NewServer wires storage, pricing, and the service behind an HTTP handler.
func NewServer(config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if strings.TrimSpace(config.DBPath) == "" {
		return nil, errors.New("db path is required")
	}
	if strings.TrimSpace(config.AlphaVantageKey) == "" {
		return nil, errors.New("alpha vantage api key is required")
	}

	if dir := filepath.Dir(config.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger storage dir: %w", err)
		}
	}

	store, err := sqlite.Open(config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger sqlite store: %w", err)
	}

	var upstream pricing.Quoter
	if strings.TrimSpace(config.AlphaVantageBaseURL) != "" {
		upstream = pricing.NewAlphaVantageWithBaseURL(config.AlphaVantageKey, config.AlphaVantageBaseURL)
	} else {
		upstream = pricing.NewAlphaVantage(config.AlphaVantageKey)
	}
	cacheSize := config.QuoteCacheSize
	if cacheSize <= 0 {
		cacheSize = defaultQuoteCacheSize
	}
	cacheTTL := config.QuoteCacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultQuoteCacheTTL
	}
	quoter := pricing.NewCache(pricing.NewRecorder(upstream, store), cacheSize, cacheTTL)

	startingBalance := config.StartingBalanceCents
	if startingBalance <= 0 {
		startingBalance = defaultStartingBalanceCents
	}
	weeklyAllowance := config.WeeklyAllowanceCents
	if weeklyAllowance <= 0 {
		weeklyAllowance = defaultWeeklyAllowanceCents
	}
	ledgerService := service.New(store, quoter, service.Config{
		StartingBalance:     money.FromCents(startingBalance),
		WeeklyAllowance:     money.FromCents(weeklyAllowance),
		AllowanceWindowDays: config.AllowanceWindowDays,
	})

	var minter *authtoken.Minter
	if strings.TrimSpace(config.AuthSecret) != "" {
		issuer := strings.TrimSpace(config.AuthIssuer)
		if issuer == "" {
			issuer = "papertrade"
		}
		minter, err = authtoken.New([]byte(config.AuthSecret), issuer, 0, nil)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("configure auth tokens: %w", err)
		}
	}

	readHeaderTimeout := config.ReadHeaderTimeout
	if readHeaderTimeout <= 0 {
		readHeaderTimeout = timeouts.ReadHeader
	}
	shutdownTimeout := config.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = timeouts.Shutdown
	}

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           NewHandler(ledgerService, minter),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: shutdownTimeout,
		httpServer:      httpServer,
		store:           store,
	}, nil
}

// Run creates and serves a ledger server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(config)
	if err != nil {
		return fmt.Errorf("init ledger server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve ledger: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("ledger server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("ledger server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		log.Printf("close ledger store: %v", err)
	}
}
