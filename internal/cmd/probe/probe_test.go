package probe

import (
	"flag"
	"testing"
)

func TestParseConfigAppliesWorkerConvention(t *testing.T) {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.WorkerAddr != "worker:8089" {
		t.Fatalf("worker addr = %q, want worker:8089", cfg.WorkerAddr)
	}
}

func TestParseConfigFlagOverridesAddr(t *testing.T) {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-worker-addr", "localhost:9001"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.WorkerAddr != "localhost:9001" {
		t.Fatalf("worker addr = %q, want localhost:9001", cfg.WorkerAddr)
	}
}
