package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/config"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL": "postgres://localhost/kasir_test",
		"REDIS_URL":    "redis://localhost:6379/0",
		"JWT_SECRET":   "test-secret",
	}
}

func TestLoadDefaults(t *testing.T) {
	env := baseEnv()
	env["PORT"] = ""
	env["TAX_RATE_DEFAULT_PERCENT"] = ""
	env["TAX_METHOD_DEFAULT"] = ""
	env["INVOICE_PREFIX"] = ""
	env["INVOICE_ALLOC_MAX_ATTEMPTS"] = ""
	env["LOW_STOCK_THRESHOLD"] = ""
	env["IDEMPOTENCY_TTL"] = ""

	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "EXCLUSIVE", cfg.TaxMethodDefault)
	require.Equal(t, "INV", cfg.InvoicePrefix)
	require.Equal(t, 5, cfg.InvoiceAllocMaxAttempts)
	require.Equal(t, 5, cfg.LowStockThreshold)
	require.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	require.Zero(t, cfg.TaxRateDefault)
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["PORT"] = "9090"
	env["TAX_RATE_DEFAULT_PERCENT"] = "11"
	env["TAX_METHOD_DEFAULT"] = "inclusive"
	env["INVOICE_PREFIX"] = "POS"
	env["INVOICE_ALLOC_MAX_ATTEMPTS"] = "3"
	env["LOW_STOCK_THRESHOLD"] = "10"
	env["IDEMPOTENCY_TTL"] = "1h"
	env["CORS_ALLOWED_ORIGINS"] = "https://a.example, https://b.example"

	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.InDelta(t, 11.0, cfg.TaxRateDefault, 1e-9)
	require.Equal(t, "INCLUSIVE", cfg.TaxMethodDefault)
	require.Equal(t, "POS", cfg.InvoicePrefix)
	require.Equal(t, 3, cfg.InvoiceAllocMaxAttempts)
	require.Equal(t, 10, cfg.LowStockThreshold)
	require.Equal(t, time.Hour, cfg.IdempotencyTTL)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	env := baseEnv()
	env["DATABASE_URL"] = ""
	_, err := config.LoadForTests(env)
	require.Error(t, err)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	env := baseEnv()
	env["JWT_SECRET"] = ""
	_, err := config.LoadForTests(env)
	require.Error(t, err)
}
