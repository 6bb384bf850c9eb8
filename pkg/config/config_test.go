package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sigweihq/walletconnector/pkg/constants"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_APP_ID", "clx-app-123")
	t.Setenv("TEST_BASE_RPC", "https://base.example.com")

	path := writeFile(t, "config.yaml", `
app_id: ${TEST_APP_ID}
project_id: wc-project
hub_url: https://auth.example.com
switch_chain_timeout: 45s
allow_unconfigured_chains: true
logging:
  level: debug
chains:
  - id: 1
  - id: 8453
    rpcUrls:
      default:
        http: [${TEST_BASE_RPC}]
      public:
        http: [${TEST_BASE_RPC}]
  - id: 31337
    name: Anvil
    network: anvil
    nativeCurrency:
      name: Ether
      symbol: ETH
      decimals: 18
    rpcUrls:
      default:
        http: [http://127.0.0.1:8545]
    testnet: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "clx-app-123", cfg.AppID)
	assert.Equal(t, "wc-project", cfg.ProjectID)
	assert.Equal(t, "https://auth.example.com", cfg.HubURL)
	assert.Equal(t, 45*time.Second, cfg.SwitchChainTimeout)
	assert.True(t, cfg.AllowUnconfiguredChains)
	assert.False(t, cfg.DiscoverRPCURLs)
	assert.Equal(t, slog.LevelDebug, cfg.Logging.SlogLevel())
	assert.Equal(t, "text", cfg.Logging.Format)

	require.Len(t, cfg.Chains, 3)

	mainnet := cfg.Chains[0]
	assert.Equal(t, "Ethereum", mainnet.Name)
	assert.Equal(t, "ETH", mainnet.NativeCurrency.Symbol)
	assert.Equal(t, constants.OfficialRPCEndpoints[1], mainnet.RPCURLs.Public.HTTP)

	base := cfg.Chains[1]
	assert.Equal(t, "Base", base.Name)
	assert.Equal(t, []string{"https://base.example.com"}, base.RPCURLs.Public.HTTP)

	anvil := cfg.Chains[2]
	assert.Equal(t, "Anvil", anvil.Name)
	assert.True(t, anvil.Testnet)
	assert.Equal(t, 18, anvil.NativeCurrency.Decimals)

	registry := cfg.Registry()
	assert.Equal(t, 3, registry.Len())
	assert.True(t, registry.IsSupported(31337))
	assert.True(t, registry.IsUnsupported(137))
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Parse([]byte("chains:\n  - id: 137\n"))
	require.NoError(t, err)

	assert.Equal(t, constants.DefaultSwitchChainTimeout, cfg.SwitchChainTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "Polygon", cfg.Chains[0].Name)
	assert.Equal(t, "POL", cfg.Chains[0].NativeCurrency.Symbol)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "no chains",
			content: "app_id: x\n",
			wantErr: "at least one chain",
		},
		{
			name:    "duplicate chain",
			content: "chains:\n  - id: 1\n  - id: 1\n",
			wantErr: "configured twice",
		},
		{
			name:    "unknown chain without name",
			content: "chains:\n  - id: 31337\n",
			wantErr: "name is required",
		},
		{
			name:    "insecure rpc url",
			content: "chains:\n  - id: 31337\n    name: Remote\n    rpcUrls:\n      default:\n        http: [http://rpc.example.com]\n",
			wantErr: "invalid chain configuration",
		},
		{
			name:    "insecure hub url",
			content: "hub_url: http://auth.example.com\nchains:\n  - id: 1\n",
			wantErr: "invalid hub_url",
		},
		{
			name:    "malformed yaml",
			content: "chains: [\n",
			wantErr: "failed to parse config file",
		},
		{
			name:    "bad duration",
			content: "switch_chain_timeout: soon\nchains:\n  - id: 1\n",
			wantErr: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadEnv(t *testing.T) {
	const key = "WALLETCONNECTOR_TEST_ENV"
	t.Setenv(key, "")
	os.Unsetenv(key)

	path := writeFile(t, "test.env", key+"=from-file\n")
	require.NoError(t, LoadEnv(filepath.Join(t.TempDir(), "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv(key))

	// missing files are skipped
	assert.NoError(t, LoadEnv(filepath.Join(t.TempDir(), "none.env")))
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{level: "debug", want: slog.LevelDebug},
		{level: "INFO", want: slog.LevelInfo},
		{level: "warn", want: slog.LevelWarn},
		{level: "warning", want: slog.LevelWarn},
		{level: "error", want: slog.LevelError},
		{level: "", want: slog.LevelInfo},
		{level: "verbose", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.want, LoggingConfig{Level: tt.level}.SlogLevel())
		})
	}
}
