package config

import "testing"

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Server.Port != 5560 {
		t.Errorf("server port = %d, want 5560", cfg.Server.Port)
	}
	if cfg.Database.Type != "postgres" || cfg.Database.Port != 5432 {
		t.Errorf("database defaults = %s:%d, want postgres:5432", cfg.Database.Type, cfg.Database.Port)
	}
	if cfg.Worker.BatchSize != 10 || cfg.Worker.PollInterval != "5s" {
		t.Errorf("worker defaults = %d/%s, want 10/5s", cfg.Worker.BatchSize, cfg.Worker.PollInterval)
	}
	if cfg.Worker.PublishTimeout != "60s" {
		t.Errorf("publish timeout = %s, want 60s", cfg.Worker.PublishTimeout)
	}
	if cfg.Sweeper.Schedule != "@every 1m" || cfg.Sweeper.BatchSize != 50 {
		t.Errorf("sweeper defaults = %s/%d", cfg.Sweeper.Schedule, cfg.Sweeper.BatchSize)
	}
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Worker.BatchSize = 3
	ApplyDefaults(cfg)

	if cfg.Server.Port != 8080 {
		t.Errorf("server port = %d, want explicit 8080", cfg.Server.Port)
	}
	if cfg.Worker.BatchSize != 3 {
		t.Errorf("worker batch size = %d, want explicit 3", cfg.Worker.BatchSize)
	}
}
