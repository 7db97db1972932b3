// Package app runs the daily bookkeeping worker: allowance grants and
// portfolio snapshots, with a gRPC health surface for probes.
package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/louisbranch/papertrade.space/internal/platform/money"
	"github.com/louisbranch/papertrade.space/internal/services/ledger/service"
	"github.com/louisbranch/papertrade.space/internal/services/ledger/storage/sqlite"
	"github.com/louisbranch/papertrade.space/internal/services/pricing"
)

// RuntimeConfig controls worker startup and the daily loop.
type RuntimeConfig struct {
	Port                int
	DBPath              string
	AlphaVantageKey     string
	AlphaVantageBaseURL string

	StartingBalanceCents int64
	WeeklyAllowanceCents int64
	AllowanceWindowDays  int

	// Interval overrides the daily cadence; zero means midnight-aligned
	// 24h runs.
	Interval time.Duration
}

const (
	defaultWorkerPort = 8089
	defaultWorkerDB   = "data/ledger.db"

	defaultStartingBalanceCents = 100_000
	defaultWeeklyAllowanceCents = 10_000
)

// Run starts worker runtime dependencies and the daily bookkeeping loop.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.AlphaVantageKey) == "" {
		return fmt.Errorf("alpha vantage api key is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultWorkerPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultWorkerDB
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger storage dir: %w", err)
		}
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open ledger sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close ledger sqlite store: %v", closeErr)
		}
	}()

	var upstream pricing.Quoter
	if strings.TrimSpace(cfg.AlphaVantageBaseURL) != "" {
		upstream = pricing.NewAlphaVantageWithBaseURL(cfg.AlphaVantageKey, cfg.AlphaVantageBaseURL)
	} else {
		upstream = pricing.NewAlphaVantage(cfg.AlphaVantageKey)
	}
	quoter := pricing.NewRecorder(upstream, store)

	startingBalance := cfg.StartingBalanceCents
	if startingBalance <= 0 {
		startingBalance = defaultStartingBalanceCents
	}
	weeklyAllowance := cfg.WeeklyAllowanceCents
	if weeklyAllowance <= 0 {
		weeklyAllowance = defaultWeeklyAllowanceCents
	}
	ledgerService := service.New(store, quoter, service.Config{
		StartingBalance:     money.FromCents(startingBalance),
		WeeklyAllowance:     money.FromCents(weeklyAllowance),
		AllowanceWindowDays: cfg.AllowanceWindowDays,
	})

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on worker port %d: %w", cfg.Port, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("worker.runtime", grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()

	log.Printf("worker server listening at %v", listener.Addr())
	return runLoop(ctx, ledgerService, cfg.Interval)
}

// bookkeeper is the slice of the ledger service the loop needs.
type bookkeeper interface {
	GrantAllowances(ctx context.Context) error
	TakeSnapshots(ctx context.Context) error
}

// runLoop performs one bookkeeping pass immediately, then repeats on the
// configured cadence until the context ends. Pass failures are logged and
// retried on the next tick rather than stopping the worker.
func runLoop(ctx context.Context, svc bookkeeper, interval time.Duration) error {
	runPass(ctx, svc)

	for {
		wait := interval
		if wait <= 0 {
			wait = untilNextMidnight(time.Now().UTC())
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
			runPass(ctx, svc)
		}
	}
}

func runPass(ctx context.Context, svc bookkeeper) {
	if err := svc.GrantAllowances(ctx); err != nil {
		log.Printf("grant allowances: %v", err)
	}
	if err := svc.TakeSnapshots(ctx); err != nil {
		log.Printf("take snapshots: %v", err)
	}
}

// untilNextMidnight returns the duration until the next UTC day boundary.
func untilNextMidnight(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return next.Sub(now)
}
