package infra

import (
	"testing"
	"time"
)

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "test-secret")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig accepted missing DATABASE_URL")
	}
}

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig accepted missing JWT_SECRET")
	}
}

func TestLoadConfigProtocolDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("SUBMIT_CALL_TIMEOUT_SECONDS", "")
	t.Setenv("RECOVERY_WINDOW_SECONDS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.SubmitCallTimeout != 30*time.Second {
		t.Fatalf("SubmitCallTimeout = %v, want 30s", cfg.SubmitCallTimeout)
	}
	if cfg.RecoveryWindow != 2*time.Minute {
		t.Fatalf("RecoveryWindow = %v, want 2m", cfg.RecoveryWindow)
	}
	if cfg.RecencyWindow != 5*time.Minute {
		t.Fatalf("RecencyWindow = %v, want 5m", cfg.RecencyWindow)
	}
}

func TestLoadConfigHonorsOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("SUBMIT_CALL_TIMEOUT_SECONDS", "10")
	t.Setenv("ESTIMATE_TTL_SECONDS", "45")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.SubmitCallTimeout != 10*time.Second {
		t.Fatalf("SubmitCallTimeout = %v, want 10s", cfg.SubmitCallTimeout)
	}
	if cfg.EstimateTTL != 45*time.Second {
		t.Fatalf("EstimateTTL = %v, want 45s", cfg.EstimateTTL)
	}
}
