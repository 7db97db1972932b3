package config

import "testing"

type testConfig struct {
	DBPath string `env:"PAPERTRADE_TEST_DB_PATH" envDefault:"data/ledger.db"`
	Port   int    `env:"PAPERTRADE_TEST_PORT" envDefault:"8080"`
}

func TestParseEnvAppliesDefaults(t *testing.T) {
	var cfg testConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.DBPath != "data/ledger.db" {
		t.Fatalf("db path = %q, want default", cfg.DBPath)
	}
	if cfg.Port != 8080 {
		t.Fatalf("port = %d, want 8080", cfg.Port)
	}
}

func TestParseEnvReadsEnvironment(t *testing.T) {
	t.Setenv("PAPERTRADE_TEST_DB_PATH", "/tmp/other.db")
	t.Setenv("PAPERTRADE_TEST_PORT", "9000")

	var cfg testConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.DBPath != "/tmp/other.db" {
		t.Fatalf("db path = %q, want /tmp/other.db", cfg.DBPath)
	}
	if cfg.Port != 9000 {
		t.Fatalf("port = %d, want 9000", cfg.Port)
	}
}
