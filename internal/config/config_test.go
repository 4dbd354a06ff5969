package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moonhollow/moonhollow/internal/tier"
	"github.com/moonhollow/moonhollow/pkg/domain"
)

const sampleConfig = `
listenAddr: ":9090"
redis:
  addr: "redis.internal:6379"
  db: 2
providers:
  acme:
    apiKeyEnv: ACME_API_KEY
    baseURL: https://gateway.internal/v1
models:
  swift-1:
    provider: acme
    perGameCap: -1
    price:
      inputPerMTok: 3
      outputPerMTok: 15
  deep-1:
    provider: acme
    perGameCap: 1
    tiers: [unlimited]
tuning:
  minResponders: 3
  roundsPerDay: 1
transcript:
  encryptionKeyEnv: TRANSCRIPT_KEY
  redactPatterns:
    - '\b\d{16}\b'
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "moonhollow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 3, cfg.Tuning.MinResponders)
	assert.Equal(t, 1, cfg.Tuning.RoundsPerDay)
	assert.Equal(t, "TRANSCRIPT_KEY", cfg.Transcript.EncryptionKeyEnv)
	assert.Len(t, cfg.Transcript.RedactPatterns, 1)

	require.Contains(t, cfg.Models, "swift-1")
	assert.Equal(t, tier.CapUnlimited, cfg.Models["swift-1"].PerGameCap)
	assert.Equal(t, []domain.Tier{domain.TierUnlimited}, cfg.Models["deep-1"].Tiers)
}

func TestLoad_MissingDefaultPathUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Chdir(dir))

	cfg, err := Load(DefaultPath)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Empty(t, cfg.Models)
}

func TestLoad_MissingExplicitPathFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_Validation(t *testing.T) {
	t.Run("unknown provider", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
providers: {}
models:
  swift-1:
    provider: ghost
    perGameCap: -1
`))
		require.ErrorContains(t, err, "unknown provider")
	})
	t.Run("missing provider", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
models:
  swift-1:
    perGameCap: -1
`))
		require.ErrorContains(t, err, "provider is required")
	})
	t.Run("invalid cap", func(t *testing.T) {
		_, err := Load(writeConfig(t, `
providers:
  acme:
    apiKeyEnv: ACME_API_KEY
models:
  swift-1:
    provider: acme
    perGameCap: -2
`))
		require.ErrorContains(t, err, "invalid perGameCap")
	})
	t.Run("broken yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "models: ["))
		require.Error(t, err)
	})
}

func TestCatalogAndPriceTable(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	catalog := cfg.Catalog()
	require.Contains(t, catalog, "swift-1")
	assert.Equal(t, "acme", catalog["swift-1"].Provider)
	assert.Equal(t, 1, catalog["deep-1"].PerGameCap)

	table := cfg.PriceTable()
	require.Contains(t, table, "swift-1")
	assert.Equal(t, 3.0, table["swift-1"].InputPerMTok)
	// Models without a price entry are absent, which prices them at zero.
	assert.NotContains(t, table, "deep-1")
}

func TestProvider_APIKey(t *testing.T) {
	p := Provider{APIKeyEnv: "MOONHOLLOW_TEST_KEY"}
	t.Setenv("MOONHOLLOW_TEST_KEY", "sk-test")
	assert.Equal(t, "sk-test", p.APIKey())

	assert.Empty(t, Provider{}.APIKey())
}
