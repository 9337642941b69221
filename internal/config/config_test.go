package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ALERT_COOLDOWN", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, LedgerDriverSQLite, cfg.LedgerDriver)
	assert.Equal(t, "quota.db", cfg.LedgerDBPath)
	assert.Equal(t, 15*time.Minute, cfg.AlertCooldown)
	assert.InDelta(t, 0.8, cfg.AlertAllowanceRatio, 1e-9)
	assert.NoError(t, cfg.ValidateLedger())
}

func TestLoadConfig_Env(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ALERT_COOLDOWN", "2m")
	t.Setenv("PDP_PROVIDER_URLS", " https://a.example/ ,https://b.example,, ")
	t.Setenv("API_PORT", "not-a-number")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.AlertCooldown)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.ProviderURLs)
	assert.Equal(t, 6532, cfg.APIPort)
}

func TestValidateLedger(t *testing.T) {
	cfg := &Config{LedgerDriver: "mysql"}
	assert.Error(t, cfg.ValidateLedger())

	cfg = &Config{LedgerDriver: LedgerDriverPostgres, PostgresHost: "db", PostgresDB: ""}
	assert.Error(t, cfg.ValidateLedger())
}

func TestValidateChain(t *testing.T) {
	cfg := &Config{
		RPCURL:             "http://localhost:1234/rpc/v1",
		PaymentsAddress:    "0x1111111111111111111111111111111111111111",
		WarmStorageAddress: "0x2222222222222222222222222222222222222222",
		USDFCAddress:       "0x3333333333333333333333333333333333333333",
	}
	assert.NoError(t, cfg.ValidateChain())

	cfg.PaymentsAddress = "0x12"
	assert.Error(t, cfg.ValidateChain())
}

func TestLoadThresholds(t *testing.T) {
	dir := t.TempDir()

	missing, err := LoadThresholds(filepath.Join(dir, "none.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultThresholds(), missing)

	path := filepath.Join(dir, "alerts.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"cost":{"warning":10,"critical":20}}`), 0o644))

	th, err := LoadThresholds(path)
	require.NoError(t, err)
	assert.Equal(t, ThresholdPair{Warning: 10, Critical: 20}, th.Cost)
	assert.Equal(t, DefaultThresholds().Egress, th.Egress)
}

func TestLoadThresholds_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "alerts.json")

	require.NoError(t, os.WriteFile(path, []byte(`{"performance":{"warning":900,"critical":100}}`), 0o644))
	_, err := LoadThresholds(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))
	_, err = LoadThresholds(path)
	assert.Error(t, err)
}
