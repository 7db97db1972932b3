package migrate

import (
	"context"
	"flag"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunAppliesAndThenSkipsMigrations(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ledger.db")

	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-db-path", dbPath})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}

	var out strings.Builder
	if err := Run(context.Background(), cfg, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "applied initial-tables") {
		t.Fatalf("expected initial-tables to apply, got:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "applied portfolio-snapshots") {
		t.Fatalf("expected portfolio-snapshots to apply, got:\n%s", out.String())
	}

	out.Reset()
	if err := Run(context.Background(), cfg, &out); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !strings.Contains(out.String(), "no pending migrations") {
		t.Fatalf("expected second run to be a no-op, got:\n%s", out.String())
	}
}
