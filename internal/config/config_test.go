package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/skincare-storefront/internal/config"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoad_Layers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
api:
  base_url: http://backend.local/api
storage:
  driver: bolt
  bolt:
    path: /tmp/base.db
checkout:
  currency: INR
`)
	writeFile(t, dir, "kiosk.yaml", `
storage:
  driver: redis
  redis:
    addr: redis.local:6379
    ttl: 12h
`)
	t.Setenv("STOREFRONT_STORAGE__SECRET", "from-env")
	t.Setenv("STOREFRONT_API__TIMEOUT", "3s")

	cfg, err := config.Load(dir, "kiosk", "")
	require.NoError(t, err)

	assert.Equal(t, "http://backend.local/api", cfg.API.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.Equal(t, "redis", cfg.Storage.Driver)
	assert.Equal(t, "redis.local:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, 12*time.Hour, cfg.Storage.Redis.TTL)
	assert.Equal(t, "from-env", cfg.Storage.Secret)
	assert.Equal(t, "kiosk", cfg.App.Env)

	// Defaults survive for keys no layer sets.
	assert.Equal(t, "India", cfg.Checkout.DefaultCountry)
	assert.Equal(t, "storefront:", cfg.Storage.Redis.KeyPrefix)
	assert.Equal(t, 50, cfg.Notifications.FeedSize)
}

func TestLoad_DotEnvAndMissingOverlay(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "api:\n  base_url: http://backend.local\n")
	writeFile(t, dir, ".env", "STOREFRONT_STORAGE__SECRET=dotenv-secret\n")
	t.Cleanup(func() { os.Unsetenv("STOREFRONT_STORAGE__SECRET") })

	cfg, err := config.Load(dir, "nope", filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Equal(t, "dotenv-secret", cfg.Storage.Secret)
}

func TestLoad_MissingBase(t *testing.T) {
	_, err := config.Load(t.TempDir(), "", "")
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() config.Config {
		cfg := config.Default()
		cfg.API.BaseURL = "http://backend.local"
		cfg.Storage.Secret = "s"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *config.Config) {}},
		{name: "no_base_url", mutate: func(c *config.Config) { c.API.BaseURL = "" }, wantErr: "api.base_url required"},
		{name: "no_secret", mutate: func(c *config.Config) { c.Storage.Secret = "" }, wantErr: "storage.secret required"},
		{name: "unknown_driver", mutate: func(c *config.Config) { c.Storage.Driver = "sqlite" }, wantErr: `storage.driver "sqlite" unknown`},
		{name: "redis_without_addr", mutate: func(c *config.Config) { c.Storage.Driver = config.StorageRedis }, wantErr: "storage.redis.addr required"},
		{name: "postgres_without_dsn", mutate: func(c *config.Config) { c.Storage.Driver = config.StoragePostgres }, wantErr: "storage.postgres.dsn required"},
		{name: "bridge_without_url", mutate: func(c *config.Config) { c.Payment.Provider = config.PaymentBridge }, wantErr: "payment.bridge.url required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
