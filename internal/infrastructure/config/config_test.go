package config_test

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/iho/pointledger/internal/domain"
	"github.com/iho/pointledger/internal/infrastructure/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("AMQP_URL", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.DatabaseURL == "" {
		t.Fatalf("expected default database URL to be set")
	}

	if cfg.HTTPPort != "8080" {
		t.Fatalf("expected default HTTP port 8080, got %s", cfg.HTTPPort)
	}

	if cfg.RedisURL != "" {
		t.Fatalf("expected redis to be disabled by default, got %s", cfg.RedisURL)
	}

	limits := cfg.Limits()
	if limits.Earn != 1000 || limits.Spend != 1000 || limits.Transfer != 1000 {
		t.Fatalf("unexpected default limits: %+v", limits)
	}
	if limits.TransferScope != domain.TransferScopeSeparate {
		t.Fatalf("expected separate transfer scope, got %s", limits.TransferScope)
	}

	if cfg.Location() != time.UTC {
		t.Fatalf("expected UTC ledger timezone, got %s", cfg.Location())
	}

	if cfg.IdempotencyMode != "enforce" || cfg.TxRetryEnabled || cfg.LimitReversals {
		t.Fatalf("unexpected defaults: mode=%s retry=%v limitReversals=%v", cfg.IdempotencyMode, cfg.TxRetryEnabled, cfg.LimitReversals)
	}

	if cfg.TxMaxRetries != 3 || cfg.TxLockTimeout != 5*time.Second {
		t.Fatalf("unexpected tx defaults: retries=%d lock=%s", cfg.TxMaxRetries, cfg.TxLockTimeout)
	}
	if cfg.RateLimitIdle != 10*time.Minute || cfg.RedisPingTimeout != 2*time.Second {
		t.Fatalf("unexpected defaults: idle=%s ping=%s", cfg.RateLimitIdle, cfg.RedisPingTimeout)
	}
	if !cfg.ConsistencyCheckEnabled() || cfg.ConsistencyCheckSchedule != "@daily" {
		t.Fatalf("expected daily consistency check, got %q", cfg.ConsistencyCheckSchedule)
	}
}

func TestLoadConsistencyCheckOff(t *testing.T) {
	t.Setenv("CONSISTENCY_CHECK_SCHEDULE", "off")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}
	if cfg.ConsistencyCheckEnabled() {
		t.Fatalf("expected consistency check to be disabled")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("REDIS_URL", "redis://example")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DATABASE_TIMEOUT", "45s")
	t.Setenv("EARN_LIMIT", "60")
	t.Setenv("TRANSFER_LIMIT_SCOPE", "combined")
	t.Setenv("LEDGER_TIMEZONE", "America/New_York")
	t.Setenv("IDEMPOTENCY_MODE", "store")
	t.Setenv("TX_RETRY_ENABLED", "true")
	t.Setenv("TX_MAX_RETRIES", "5")
	t.Setenv("TX_LOCK_TIMEOUT", "250ms")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.DatabaseURL != "postgres://example" {
		t.Fatalf("expected custom database URL, got %s", cfg.DatabaseURL)
	}

	if cfg.RedisURL != "redis://example" {
		t.Fatalf("expected custom redis URL, got %s", cfg.RedisURL)
	}

	if cfg.HTTPPort != "9090" {
		t.Fatalf("expected HTTP port override, got %s", cfg.HTTPPort)
	}

	if cfg.DatabaseTimeout != 45*time.Second {
		t.Fatalf("expected database timeout override, got %s", cfg.DatabaseTimeout)
	}

	if got := cfg.Limits(); got.Earn != 60 || got.TransferScope != domain.TransferScopeCombined {
		t.Fatalf("unexpected limits: %+v", got)
	}

	if cfg.Location().String() != "America/New_York" {
		t.Fatalf("expected New York timezone, got %s", cfg.Location())
	}

	if cfg.IdempotencyMode != "store" || !cfg.TxRetryEnabled {
		t.Fatalf("expected overrides, got mode=%s retry=%v", cfg.IdempotencyMode, cfg.TxRetryEnabled)
	}

	if cfg.TxMaxRetries != 5 || cfg.TxLockTimeout != 250*time.Millisecond {
		t.Fatalf("unexpected tx overrides: retries=%d lock=%s", cfg.TxMaxRetries, cfg.TxLockTimeout)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	original := os.Getenv("HTTP_READ_TIMEOUT")
	t.Setenv("HTTP_READ_TIMEOUT", "not-a-duration")
	t.Cleanup(func() {
		t.Setenv("HTTP_READ_TIMEOUT", original)
	})

	if _, err := config.Load(); err == nil {
		t.Fatalf("expected error for invalid duration")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero limit", "SPEND_LIMIT", "0"},
		{"negative limit", "TRANSFER_LIMIT", "-5"},
		{"unknown scope", "TRANSFER_LIMIT_SCOPE", "both"},
		{"unknown timezone", "LEDGER_TIMEZONE", "Mars/Olympus"},
		{"unknown idempotency mode", "IDEMPOTENCY_MODE", "ignore"},
		{"unknown log format", "LOG_FORMAT", "xml"},
		{"zero batch size", "OUTBOX_BATCH_SIZE", "0"},
		{"zero rate limit idle", "RATE_LIMIT_IDLE", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			if _, err := config.Load(); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoadInvalidLimitsWrapsDomainError(t *testing.T) {
	t.Setenv("EARN_LIMIT", "0")

	_, err := config.Load()
	if !errors.Is(err, domain.ErrInvalidLimits) {
		t.Fatalf("expected ErrInvalidLimits, got %v", err)
	}
}
