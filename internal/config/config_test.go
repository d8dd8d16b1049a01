package config_test

import (
	"strings"
	"testing"
	"time"

	"alumnet/engagement-service/internal/config"
)

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for _, k := range []string{
		"APP_ENV", "LOG_LEVEL", "HTTP_PORT", "GRPC_PORT", "STORAGE_DRIVER", "DATABASE_URL",
		"DB_MAX_CONNS", "REDIS_URL", "JWT_SIGNING_KEY", "JWT_TTL", "STRICT_CAPACITY",
		"CAPACITY_AUDIT_INTERVAL", "RATE_LIMIT_PER_MINUTE",
	} {
		t.Setenv(k, "")
	}
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, map[string]string{
		"DATABASE_URL":    "postgres://localhost/alumnet",
		"JWT_SIGNING_KEY": "secret",
	})
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPPort != "8083" || cfg.GRPCPort != "9093" {
		t.Errorf("ports = %s/%s", cfg.HTTPPort, cfg.GRPCPort)
	}
	if cfg.StorageDriver != config.DriverPostgres || cfg.DBMaxConns != 10 {
		t.Errorf("storage = %s, max conns = %d", cfg.StorageDriver, cfg.DBMaxConns)
	}
	if cfg.StrictCapacity {
		t.Error("StrictCapacity should default to false")
	}
	if cfg.CapacityAuditInterval != 6*time.Hour || cfg.JWTTTL != 24*time.Hour || cfg.RateLimitPerMinute != 30 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_MemoryDriverNeedsNoDatabase(t *testing.T) {
	setEnv(t, map[string]string{
		"STORAGE_DRIVER":  "memory",
		"JWT_SIGNING_KEY": "secret",
		"STRICT_CAPACITY": "true",
	})
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.StrictCapacity {
		t.Error("StrictCapacity = false, want true")
	}
}

func TestLoad_Errors(t *testing.T) {
	base := map[string]string{"DATABASE_URL": "postgres://x", "JWT_SIGNING_KEY": "secret"}
	cases := []struct {
		name    string
		env     map[string]string
		wantMsg string
	}{
		{"missing database", map[string]string{"JWT_SIGNING_KEY": "secret"}, "DATABASE_URL"},
		{"missing key", map[string]string{"DATABASE_URL": "postgres://x"}, "JWT_SIGNING_KEY"},
		{"bad driver", map[string]string{"STORAGE_DRIVER": "sqlite"}, "STORAGE_DRIVER"},
		{"bad bool", map[string]string{"STRICT_CAPACITY": "maybe"}, "STRICT_CAPACITY"},
		{"bad duration", map[string]string{"JWT_TTL": "1 day"}, "JWT_TTL"},
		{"audit too frequent", map[string]string{"CAPACITY_AUDIT_INTERVAL": "10s"}, "CAPACITY_AUDIT_INTERVAL"},
		{"negative int", map[string]string{"RATE_LIMIT_PER_MINUTE": "-1"}, "RATE_LIMIT_PER_MINUTE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := map[string]string{}
			if !strings.HasPrefix(tc.name, "missing") {
				for k, v := range base {
					env[k] = v
				}
			}
			for k, v := range tc.env {
				env[k] = v
			}
			setEnv(t, env)
			_, err := config.Load()
			if err == nil || !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("Load err = %v, want mention of %s", err, tc.wantMsg)
			}
		})
	}
}
