package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "HTTP_ADDR", "DB_DRIVER", "DB_DSN", "JWT_SECRET", "JWT_TTL", "RATE_LIMIT_MAX", "RATE_LIMIT_WINDOW", "MAX_UPLOAD_BYTES", "REDIS_ADDR"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPAddr != ":3001" {
		t.Errorf("expected :3001, got %s", cfg.HTTPAddr)
	}
	if cfg.DBDriver != "sqlite3" {
		t.Errorf("expected sqlite3, got %s", cfg.DBDriver)
	}
	if cfg.JWTTTL != 24*time.Hour {
		t.Errorf("expected 24h, got %v", cfg.JWTTTL)
	}
	if cfg.RateLimitMax != 100 || cfg.RateLimitWindow != 15*time.Minute {
		t.Errorf("unexpected rate limit %d/%v", cfg.RateLimitMax, cfg.RateLimitWindow)
	}
	if cfg.MaxUploadBytes != 10<<20 {
		t.Errorf("expected 10MiB, got %d", cfg.MaxUploadBytes)
	}
	if cfg.JWTSecret == "" {
		t.Error("expected development secret")
	}
	if cfg.RedisAddr != "" {
		t.Error("expected redis disabled by default")
	}
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", EnvProduction)
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}

	t.Setenv("JWT_SECRET", "short")
	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("expected short secret error, got %v", err)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", EnvDevelopment)
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DB_DSN", "root:root@tcp(localhost:3306)/inventory?parseTime=true")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("RATE_LIMIT_MAX", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBDriver != "mysql" || cfg.JWTTTL != 2*time.Hour || cfg.RateLimitMax != 5 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Setenv("APP_ENV", EnvDevelopment)

	t.Setenv("DB_DRIVER", "postgres")
	if _, err := Load(); err == nil {
		t.Error("expected error for unsupported driver")
	}

	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("JWT_TTL", "soon")
	if _, err := Load(); err == nil {
		t.Error("expected error for bad duration")
	}
}
