// Package main probes the worker's gRPC health endpoint.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	probecmd "github.com/louisbranch/papertrade.space/internal/cmd/probe"
	"github.com/louisbranch/papertrade.space/internal/platform/config"
)

func main() {
	cfg, err := probecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := probecmd.Run(ctx, cfg, os.Stdout); err != nil {
		config.Exitf("%v", err)
	}
}
