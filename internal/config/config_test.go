package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	server, err := cfg.GetServer()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", server.ListenAddress)
	assert.Equal(t, 15*time.Second, server.ReadTimeout)

	cache, err := cfg.GetCache()
	require.NoError(t, err)
	assert.Equal(t, "memory", cache.Type)
	assert.True(t, cache.Enabled)
	assert.Equal(t, time.Hour, cache.TTL)

	eth, err := cfg.GetEthereum()
	require.NoError(t, err)
	assert.Equal(t, "mock", eth.Provider)
	assert.Empty(t, eth.Tokens)

	models := cfg.GetModels()
	assert.Equal(t, 0.2, models.TestFraction)
	assert.Equal(t, int64(42), models.Seed)
	assert.Equal(t, 4, models.Clusters)

	assert.Equal(t, "none", cfg.GetLLM().Provider)
	assert.Equal(t, "none", cfg.GetPublisher().Type)
	assert.Equal(t, "risk.analysis", cfg.GetPublisher().NATS.Subject)
	assert.Equal(t, "high", cfg.GetPublisher().SMTP.MinLevel)

	rules, err := cfg.GetRules()
	require.NoError(t, err)
	assert.Nil(t, rules)
}

func TestInvalidDuration(t *testing.T) {
	v := NewEmptyViper()
	v.Set("cache.ttl", "soon")

	_, err := NewFromViper(v).GetCache()
	assert.Error(t, err)
}

func TestNewFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cache:
  type: sqlite
  ttl: 30m
ethereum:
  provider: rpc
  tokens:
    - symbol: DAI
      name: Dai Stablecoin
      contract: "0x6B175474E89094C44Da98b954EedeAC495271d0F"
      decimals: 18
explainer:
  rules:
    - id: whale
      name: Whale balance
      description: Very large ETH balance
      feature: eth_balance
      threshold: 1000
      comparison: greater
      weight: 12
      template: "Holds {value} ETH"
      format: number
`), 0o644))

	cfg, err := NewFromFile(path)
	require.NoError(t, err)

	cache, err := cfg.GetCache()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cache.Type)
	assert.Equal(t, 30*time.Minute, cache.TTL)

	eth, err := cfg.GetEthereum()
	require.NoError(t, err)
	assert.Equal(t, "rpc", eth.Provider)
	require.Len(t, eth.Tokens, 1)
	assert.Equal(t, "DAI", eth.Tokens[0].Symbol)
	assert.Equal(t, int32(18), eth.Tokens[0].Decimals)

	rules, err := cfg.GetRules()
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "whale", rules[0].ID)
	assert.Equal(t, "greater", rules[0].Comparison)
	assert.Equal(t, 12, rules[0].Weight)
	assert.Equal(t, 1000.0, rules[0].Threshold)
}

func TestNewFromFileMissing(t *testing.T) {
	_, err := NewFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("CHAIN_RISK_CACHE_TYPE", "redis")
	t.Setenv("CHAIN_RISK_MODELS_CLUSTERS", "6")

	cfg := NewFromEnv()

	assert.Equal(t, "redis", cfg.GetString("cache.type"))
	assert.Equal(t, 6, cfg.GetInt("models.clusters"))
	assert.Equal(t, "0.0.0.0:8080", cfg.GetString("server.listen_address"))
}
