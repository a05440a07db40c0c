package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"INSTITUTION", "DB_NAME", "IMPORT_BATCH_SIZE", "TREATMENT_MODE", "KAFKA_BROKERS", "IMPORT_DIR"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Institution != "hospital1" {
		t.Fatalf("expected default institution, got %q", cfg.Institution)
	}
	if cfg.PostgresDB != "tailormed" {
		t.Fatalf("expected default database tailormed, got %q", cfg.PostgresDB)
	}
	if cfg.BatchSize != 1024 {
		t.Fatalf("expected batch size 1024, got %d", cfg.BatchSize)
	}
	if cfg.TreatmentMode != "append" {
		t.Fatalf("expected append mode, got %q", cfg.TreatmentMode)
	}
	if cfg.KafkaEnabled() {
		t.Fatal("expected kafka disabled without brokers")
	}
	if cfg.ImportDir != "/data/imports" {
		t.Fatalf("expected default import directory, got %q", cfg.ImportDir)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_NAME", "imports")
	t.Setenv("IMPORT_BATCH_SIZE", "10")
	t.Setenv("IMPORT_LOCK_ENABLED", "true")
	t.Setenv("IMPORT_LOCK_TTL", "5m")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg := Load()
	if cfg.PostgresDB != "imports" || cfg.BatchSize != 10 || !cfg.ImportLockEnabled {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.ImportLockTTL != 5*time.Minute {
		t.Fatalf("expected 5m lock ttl, got %s", cfg.ImportLockTTL)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.KafkaBrokers)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("IMPORT_BATCH_SIZE", "lots")
	if cfg := Load(); cfg.BatchSize != 1024 {
		t.Fatalf("expected fallback batch size, got %d", cfg.BatchSize)
	}
}
