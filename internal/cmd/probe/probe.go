// Package probe checks the worker's gRPC health endpoint, for container
// health checks and deploy gates.
package probe

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	entrypoint "github.com/louisbranch/papertrade.space/internal/platform/cmd"
	"github.com/louisbranch/papertrade.space/internal/platform/discovery"
	platformgrpc "github.com/louisbranch/papertrade.space/internal/platform/grpc"
	"github.com/louisbranch/papertrade.space/internal/platform/timeouts"
)

// Config holds probe command configuration.
type Config struct {
	WorkerAddr string        `env:"PAPERTRADE_WORKER_ADDR"`
	Timeout    time.Duration `env:"PAPERTRADE_PROBE_TIMEOUT" envDefault:"5s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	cfg.WorkerAddr = discovery.OrDefaultGRPCAddr(cfg.WorkerAddr, discovery.ServiceWorker)
	fs.StringVar(&cfg.WorkerAddr, "worker-addr", cfg.WorkerAddr, "worker gRPC address")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall probe timeout")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run dials the worker and waits for its health check to report SERVING.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := platformgrpc.DialWithHealth(
		probeCtx,
		nil,
		cfg.WorkerAddr,
		timeouts.GRPCDial,
		nil,
		platformgrpc.DefaultClientDialOptions()...,
	)
	if err != nil {
		return fmt.Errorf("probe worker at %s: %w", cfg.WorkerAddr, err)
	}
	defer conn.Close()

	fmt.Fprintf(out, "worker at %s is SERVING\n", cfg.WorkerAddr)
	return nil
}
