package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/batch-wallet/internal/config"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://bsc-testnet.publicnode.com", cfg.RPC.URL)
	assert.Equal(t, int64(97), cfg.ChainID().Int64())
	assert.Equal(t, 1.1, cfg.Send.EscalationFactor)
	assert.Equal(t, 5, cfg.Send.MaxAttempts)
	assert.Equal(t, 15*time.Second, cfg.Send.RetryInterval)
	assert.Equal(t, 3*time.Second, cfg.Send.AlreadyKnownDelay)
	assert.Equal(t, 1.01, cfg.Jitter().Min)
	assert.Equal(t, 2.0, cfg.Jitter().Max)
	assert.Equal(t, 5*time.Second, cfg.Pacer().Min)
	assert.Equal(t, 10*time.Second, cfg.Pacer().Max)
	assert.Equal(t, "ethereum_wallet.txt", cfg.Wallet.File)
	assert.Equal(t, "private_main.txt", cfg.Wallet.MainKeyFile)

	price, err := cfg.GasPrice()
	require.NoError(t, err)
	assert.Nil(t, price)

	p := cfg.Policy()
	assert.Equal(t, 5, p.MaxAttempts)
}

func TestLoadFromEnvAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("BW_SEND_MAX_ATTEMPTS=3\nBW_SEND_GAS_PRICE_GWEI=2.5\n"), 0o600))
	t.Setenv("BW_RPC_URL", "http://127.0.0.1:8545")
	t.Setenv("BW_SEND_ESCALATION_FACTOR", "1.25")
	t.Setenv("BW_SEND_MAX_ATTEMPTS", "")
	t.Setenv("BW_SEND_GAS_PRICE_GWEI", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8545", cfg.RPC.URL)
	assert.Equal(t, 1.25, cfg.Send.EscalationFactor)
	assert.Equal(t, 3, cfg.Send.MaxAttempts)

	price, err := cfg.GasPrice()
	require.NoError(t, err)
	assert.Equal(t, int64(2_500_000_000), price.Int64())
}

func TestValidateRejects(t *testing.T) {
	chdir(t, t.TempDir())
	base, err := config.Load()
	require.NoError(t, err)

	tt := []struct {
		name   string
		mutate func(c *config.Config)
	}{
		{"factor not above one", func(c *config.Config) { c.Send.EscalationFactor = 1 }},
		{"zero attempts", func(c *config.Config) { c.Send.MaxAttempts = 0 }},
		{"jitter inverted", func(c *config.Config) { c.Send.JitterMin, c.Send.JitterMax = 1.5, 1.2 }},
		{"pace inverted", func(c *config.Config) { c.Batch.PaceMin, c.Batch.PaceMax = 10 * time.Second, time.Second }},
		{"bad url", func(c *config.Config) { c.RPC.URL = "not a url" }},
		{"bad token", func(c *config.Config) { c.Contracts.Token = "0x1234" }},
		{"bad gas price", func(c *config.Config) { c.Send.GasPriceGwei = "cheap" }},
	}

	for i, tc := range tt {
		cfg := base
		tc.mutate(&cfg)
		assert.Error(t, config.Validate(cfg), "[case:%d] %s", i, tc.name)
	}
}

func TestAddress(t *testing.T) {
	a, ok := config.Address("0x3cC6FC1035465d5b238F04097dF272Fe9b60EB94")
	assert.True(t, ok)
	assert.Equal(t, "0x3cC6FC1035465d5b238F04097dF272Fe9b60EB94", a.Hex())

	_, ok = config.Address("")
	assert.False(t, ok)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "testnet.env")
	require.NoError(t, os.WriteFile(path, []byte("BW_SEND_MAX_ATTEMPTS=7\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("BW_SEND_MAX_ATTEMPTS") })

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Send.MaxAttempts)

	_, err = config.LoadFile(filepath.Join(dir, "missing.env"))
	assert.ErrorContains(t, err, "env file")
}
