// Package config loads the moonhollow configuration file. Secrets are never
// stored in the file itself; provider keys come from the environment, with
// the file only naming which variable to read.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/moonhollow/moonhollow/internal/tier"
	"github.com/moonhollow/moonhollow/pkg/agent"
	"github.com/moonhollow/moonhollow/pkg/domain"
)

// Default file name, looked up in the working directory when no path is
// given.
const DefaultPath = "moonhollow.yaml"

// Redis holds connection settings for the game store.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// Provider configures one upstream model provider.
type Provider struct {
	// APIKeyEnv names the environment variable holding the key.
	APIKeyEnv string `yaml:"apiKeyEnv"`
	// BaseURL overrides the provider endpoint, for gateways and local
	// compatible servers.
	BaseURL string `yaml:"baseURL,omitempty"`
}

// Model is one catalog entry: tier gating plus pricing.
type Model struct {
	Provider   string            `yaml:"provider"`
	Tiers      []domain.Tier     `yaml:"tiers,omitempty"`
	PerGameCap int               `yaml:"perGameCap"`
	Price      *agent.ModelPrice `yaml:"price,omitempty"`
}

// Tuning mirrors the scheduler knobs that are worth exposing.
type Tuning struct {
	MinResponders int           `yaml:"minResponders,omitempty"`
	MaxResponders int           `yaml:"maxResponders,omitempty"`
	RoundsPerDay  int           `yaml:"roundsPerDay,omitempty"`
	ResetsPerDay  int           `yaml:"resetsPerDay,omitempty"`
	LockTTL       time.Duration `yaml:"lockTTL,omitempty"`
}

// Transcript configures at-rest protection of the message log.
type Transcript struct {
	// EncryptionKeyEnv names the environment variable holding a base64
	// encoded 32-byte key. Empty disables encryption.
	EncryptionKeyEnv string `yaml:"encryptionKeyEnv,omitempty"`
	// FallbackKeyEnvs name variables holding previous keys, for rotation.
	FallbackKeyEnvs []string `yaml:"fallbackKeyEnvs,omitempty"`
	// RedactPatterns are regular expressions masked out of message bodies
	// before they are persisted.
	RedactPatterns []string `yaml:"redactPatterns,omitempty"`
}

// Config is the root document.
type Config struct {
	ListenAddr string              `yaml:"listenAddr,omitempty"`
	Redis      Redis               `yaml:"redis"`
	Providers  map[string]Provider `yaml:"providers"`
	Models     map[string]Model    `yaml:"models"`
	Tuning     Tuning              `yaml:"tuning,omitempty"`
	Transcript Transcript          `yaml:"transcript,omitempty"`
}

// Load reads and validates the configuration at path. A missing file yields
// the built-in defaults, which run against a local redis with no providers
// configured.
func Load(path string) (*Config, error) {
	cfg := defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && path == DefaultPath {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		ListenAddr: ":8080",
		Redis:      Redis{Addr: "localhost:6379"},
		Providers:  map[string]Provider{},
		Models:     map[string]Model{},
	}
}

func (c *Config) validate() error {
	for id, m := range c.Models {
		if m.Provider == "" {
			return fmt.Errorf("model %q: provider is required", id)
		}
		if _, ok := c.Providers[m.Provider]; !ok {
			return fmt.Errorf("model %q: unknown provider %q", id, m.Provider)
		}
		if m.PerGameCap < tier.CapUnlimited {
			return fmt.Errorf("model %q: invalid perGameCap %d", id, m.PerGameCap)
		}
	}
	return nil
}

// APIKey resolves the provider's key from the environment. An unset variable
// is not an error here; the provider adapter will fail the first call with
// an authentication error instead.
func (p Provider) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

// Catalog converts the model table into the limiter's catalog form.
func (c *Config) Catalog() tier.Catalog {
	catalog := make(tier.Catalog, len(c.Models))
	for id, m := range c.Models {
		catalog[id] = tier.ModelConfig{
			Provider:   m.Provider,
			Tiers:      m.Tiers,
			PerGameCap: m.PerGameCap,
		}
	}
	return catalog
}

// PriceTable extracts per-model rates for cost accounting. Models without a
// price entry are absent and price at zero.
func (c *Config) PriceTable() map[string]agent.ModelPrice {
	table := make(map[string]agent.ModelPrice)
	for id, m := range c.Models {
		if m.Price != nil {
			table[id] = *m.Price
		}
	}
	return table
}
