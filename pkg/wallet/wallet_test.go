package wallet

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sigweihq/walletconnector/pkg/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockWallet struct {
	address          string
	connectorType    string
	walletClientType string
}

func (m *mockWallet) Address() string          { return m.address }
func (m *mockWallet) ConnectorType() string    { return m.connectorType }
func (m *mockWallet) WalletClientType() string { return m.walletClientType }

func (m *mockWallet) IsConnected(ctx context.Context) (bool, error) { return true, nil }

func (m *mockWallet) GetProvider(ctx context.Context) (provider.Provider, error) { return nil, nil }

func TestSame(t *testing.T) {
	base := &mockWallet{address: "0xabc", connectorType: "injected", walletClientType: "metamask"}

	tests := []struct {
		name string
		a    Wallet
		b    Wallet
		want bool
	}{
		{
			name: "identical record",
			a:    base,
			b:    base,
			want: true,
		},
		{
			name: "equal identity different record",
			a:    base,
			b:    &mockWallet{address: "0xabc", connectorType: "injected", walletClientType: "metamask"},
			want: true,
		},
		{
			name: "different address",
			a:    base,
			b:    &mockWallet{address: "0xdef", connectorType: "injected", walletClientType: "metamask"},
			want: false,
		},
		{
			name: "different connector type",
			a:    base,
			b:    &mockWallet{address: "0xabc", connectorType: "embedded", walletClientType: "metamask"},
			want: false,
		},
		{
			name: "different wallet client type",
			a:    base,
			b:    &mockWallet{address: "0xabc", connectorType: "injected", walletClientType: "coinbase_wallet"},
			want: false,
		},
		{
			name: "one nil",
			a:    base,
			b:    nil,
			want: false,
		},
		{
			name: "both nil",
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Same(tt.a, tt.b))
		})
	}
}

func TestFind(t *testing.T) {
	a := &mockWallet{address: "0xa", connectorType: "injected", walletClientType: "metamask"}
	b := &mockWallet{address: "0xb", connectorType: "embedded", walletClientType: "privy"}
	list := []Wallet{a, b}

	found, ok := Find(list, &mockWallet{address: "0xb", connectorType: "embedded", walletClientType: "privy"})
	assert.True(t, ok)
	assert.Same(t, b, found)

	_, ok = Find(list, &mockWallet{address: "0xc"})
	assert.False(t, ok)

	_, ok = Find(list, nil)
	assert.False(t, ok)
}

type accountsAPI struct {
	accounts []string
}

func (a *accountsAPI) Accounts() []string {
	return a.accounts
}

func TestRPCWalletIsConnected(t *testing.T) {
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", &accountsAPI{
		accounts: []string{"0xab5801a7d398351b8be11c439e05c5b3259aec9b"},
	}))
	httpServer := httptest.NewServer(server)
	defer httpServer.Close()
	defer server.Stop()

	tests := []struct {
		name    string
		address string
		want    bool
	}{
		{
			name:    "listed address with different case",
			address: "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B",
			want:    true,
		},
		{
			name:    "unlisted address",
			address: "0x0000000000000000000000000000000000000001",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewRPCWallet(tt.address, "injected", "rpc", httpServer.URL, nil)
			defer w.Close()

			connected, err := w.IsConnected(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, connected)
		})
	}
}
