// Package config loads the application configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sigweihq/walletconnector/pkg/chains"
	"github.com/sigweihq/walletconnector/pkg/constants"
	"github.com/sigweihq/walletconnector/pkg/types"
	"github.com/sigweihq/walletconnector/pkg/utils"
	"gopkg.in/yaml.v2"
)

// AppConfig represents the top-level configuration
type AppConfig struct {
	// AppID and ProjectID identify the application at the wallet-auth
	// service. They are passed through untouched.
	AppID     string `yaml:"app_id"`
	ProjectID string `yaml:"project_id"`

	// HubURL is the wallet-auth hub. Empty keeps authentication in-process.
	HubURL string `yaml:"hub_url"`

	SwitchChainTimeout      time.Duration `yaml:"switch_chain_timeout"` // negative disables the timeout
	AllowUnconfiguredChains bool          `yaml:"allow_unconfigured_chains"`
	DiscoverRPCURLs         bool          `yaml:"discover_rpc_urls"` // fill missing RPC URLs from chainlist.org

	Logging LoggingConfig `yaml:"logging"`
	Chains  []types.Chain `yaml:"chains"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// SlogLevel maps the configured level to a slog level, defaulting to info
func (l LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoadEnv loads variables from the given .env files, skipping the ones that
// do not exist. Without arguments it tries ".env".
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

// Load reads configuration from a YAML file. Environment variables in the
// file are expanded before parsing.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document, applies defaults and validates it
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.SwitchChainTimeout == 0 {
		c.SwitchChainTimeout = constants.DefaultSwitchChainTimeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	// Well-known chains may be listed by id only
	for i := range c.Chains {
		known, ok := chains.WellKnown(c.Chains[i].ID)
		if !ok {
			continue
		}
		chain := &c.Chains[i]
		if chain.Name == "" {
			chain.Name = known.Name
		}
		if chain.Network == "" {
			chain.Network = known.Network
		}
		if chain.NativeCurrency == (types.NativeCurrency{}) {
			chain.NativeCurrency = known.NativeCurrency
		}
		if len(chain.RPCURLs.Default.HTTP) == 0 && len(chain.RPCURLs.Public.HTTP) == 0 {
			chain.RPCURLs = known.RPCURLs
		}
		if !chain.Testnet {
			chain.Testnet = known.Testnet
		}
	}
}

// Validate checks the hub URL and the chain list
func (c *AppConfig) Validate() error {
	if len(c.Chains) == 0 {
		return errors.New("at least one chain must be configured")
	}

	seen := make(map[int64]bool, len(c.Chains))
	for _, chain := range c.Chains {
		if seen[chain.ID] {
			return fmt.Errorf("chain %d configured twice", chain.ID)
		}
		seen[chain.ID] = true
	}

	if c.HubURL != "" {
		if err := utils.ValidateServiceURL(c.HubURL); err != nil {
			return fmt.Errorf("invalid hub_url: %w", err)
		}
	}

	if err := chains.NewRegistry(c.Chains...).Validate(); err != nil {
		return fmt.Errorf("invalid chain configuration: %w", err)
	}
	return nil
}

// Registry builds the chain registry, in configuration order
func (c *AppConfig) Registry() *chains.Registry {
	return chains.NewRegistry(c.Chains...)
}
