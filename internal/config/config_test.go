package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/securecookie"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "DB_DRIVER", "ANON_STORE", "REDIS_ADDR", "CORS_ORIGINS", "CART_CACHE_TTL_SECONDS"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	if cfg.HTTPAddr != ":8080" || cfg.DBDriver != "pgx" || cfg.AnonStore != "cookie" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.CartCacheTTL != 5*time.Minute {
		t.Fatalf("expected 5m cache ttl, got %v", cfg.CartCacheTTL)
	}
	if len(cfg.CORSOrigins) != 1 {
		t.Fatalf("expected default origin, got %v", cfg.CORSOrigins)
	}
}

func TestFromEnv_AnonStoreFollowsRedis(t *testing.T) {
	t.Setenv("ANON_STORE", "")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	if cfg := FromEnv(); cfg.AnonStore != "redis" {
		t.Fatalf("expected redis guest carts when REDIS_ADDR is set, got %s", cfg.AnonStore)
	}

	t.Setenv("ANON_STORE", "Cookie")
	if cfg := FromEnv(); cfg.AnonStore != "cookie" {
		t.Fatalf("expected explicit ANON_STORE to win, got %s", cfg.AnonStore)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("CORS_ORIGINS", "https://shop.example.com, https://admin.example.com ,")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "3")
	t.Setenv("CART_CACHE_TTL_SECONDS", "not-a-number")
	t.Setenv("AUTO_MIGRATE", "true")

	cfg := FromEnv()
	if !cfg.AutoMigrate {
		t.Fatalf("expected AUTO_MIGRATE to parse")
	}
	if cfg.DBDriver != "sqlite" {
		t.Fatalf("expected lowercased driver, got %s", cfg.DBDriver)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://admin.example.com" {
		t.Fatalf("unexpected origins %v", cfg.CORSOrigins)
	}
	if cfg.ShutdownTimeout != 3*time.Second {
		t.Fatalf("expected 3s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.CartCacheTTL != 5*time.Minute {
		t.Fatalf("expected fallback ttl, got %v", cfg.CartCacheTTL)
	}
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("CURRENCY_SYMBOL=EUR\nLOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	defer os.Chdir(wd)
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("CURRENCY_SYMBOL", "")
	os.Unsetenv("CURRENCY_SYMBOL")

	cfg := Load()
	if cfg.CurrencySymbol != "EUR" {
		t.Fatalf("expected value from .env, got %q", cfg.CurrencySymbol)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected environment to win, got %q", cfg.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	key := base64.URLEncoding.EncodeToString(securecookie.GenerateRandomKey(64))
	enc := base64.URLEncoding.EncodeToString(securecookie.GenerateRandomKey(32))
	valid := Config{DBDriver: "pgx", AnonStore: "cookie", JWTSecret: "s", SessionAuthKey: key, SessionEncKey: enc}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	keys, _ := valid.SessionKeys()
	if len(keys) != 2 || len(keys[1]) != 32 {
		t.Fatalf("unexpected keys %d", len(keys))
	}

	cases := map[string]Config{
		"driver":      {DBDriver: "oracle", AnonStore: "cookie", JWTSecret: "s", SessionAuthKey: key},
		"anon store":  {DBDriver: "pgx", AnonStore: "disk", JWTSecret: "s", SessionAuthKey: key},
		"redis addr":  {DBDriver: "pgx", AnonStore: "redis", JWTSecret: "s", SessionAuthKey: key},
		"jwt secret":  {DBDriver: "pgx", AnonStore: "cookie", SessionAuthKey: key},
		"auth key":    {DBDriver: "pgx", AnonStore: "cookie", JWTSecret: "s"},
		"enc key len": {DBDriver: "pgx", AnonStore: "cookie", JWTSecret: "s", SessionAuthKey: key, SessionEncKey: base64.URLEncoding.EncodeToString([]byte("short"))},
	}
	for name, cfg := range cases {
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestGenerateSessionKeys(t *testing.T) {
	auth, enc, err := GenerateSessionKeys()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	cfg := Config{SessionAuthKey: auth, SessionEncKey: enc}
	keys, err := cfg.SessionKeys()
	if err != nil {
		t.Fatalf("generated keys must decode: %v", err)
	}
	if len(keys) != 2 || len(keys[0]) != 64 || len(keys[1]) != 32 {
		t.Fatalf("unexpected key sizes")
	}
}
