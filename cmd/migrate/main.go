// Package main applies pending ledger schema migrations.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	migratecmd "github.com/louisbranch/papertrade.space/internal/cmd/migrate"
)

func main() {
	cfg, err := migratecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[MIGRATE] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := migratecmd.Run(ctx, cfg, os.Stdout); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}
}
