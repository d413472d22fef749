package config

import (
	"testing"
	"time"
)

func TestParseEnv(t *testing.T) {
	t.Setenv("VOICEGATE_ADDR", ":9090")
	t.Setenv("VOICEGATE_DATABASE_DSN", "postgres://env:env@db:5432/voicegate")
	t.Setenv("VOICEGATE_SCORER_TIMEOUT", "7s")
	t.Setenv("VOICEGATE_REQUESTS_PER_SECOND", "42")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	if cfg.EndpointAddrHTTP != ":9090" {
		t.Errorf("unexpected addr %q", cfg.EndpointAddrHTTP)
	}
	if cfg.DatabaseDSN != "postgres://env:env@db:5432/voicegate" {
		t.Errorf("unexpected dsn %q", cfg.DatabaseDSN)
	}
	if cfg.ScorerTimeout != 7*time.Second {
		t.Errorf("unexpected timeout %v", cfg.ScorerTimeout)
	}
	if cfg.RequestsPerSecond != 42 {
		t.Errorf("unexpected rps %v", cfg.RequestsPerSecond)
	}
}

func TestParseEnv_IgnoresUnparseableValues(t *testing.T) {
	t.Setenv("VOICEGATE_SCORER_TIMEOUT", "not a duration")
	t.Setenv("VOICEGATE_REQUESTS_PER_SECOND", "many")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	if cfg.ScorerTimeout != 5*time.Second {
		t.Errorf("expected default timeout kept, got %v", cfg.ScorerTimeout)
	}
	if cfg.RequestsPerSecond != 20 {
		t.Errorf("expected default rps kept, got %v", cfg.RequestsPerSecond)
	}
}
