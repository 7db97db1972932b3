// Package main is the operator CLI for the ledger database.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	ledgerctlcmd "github.com/louisbranch/papertrade.space/internal/cmd/ledgerctl"
	"github.com/louisbranch/papertrade.space/internal/platform/config"
)

func main() {
	cfg, err := ledgerctlcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ledgerctlcmd.Run(ctx, cfg, os.Stdout); err != nil {
		config.Exitf("%v", err)
	}
}
