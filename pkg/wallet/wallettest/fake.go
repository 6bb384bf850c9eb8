// Package wallettest offers an in-memory wallet for tests.
package wallettest

import (
	"context"
	"sync"

	"github.com/sigweihq/walletconnector/pkg/provider"
	"github.com/sigweihq/walletconnector/pkg/wallet"
)

// FakeWallet is a wallet record with a fixed provider
type FakeWallet struct {
	address          string
	connectorType    string
	walletClientType string

	mu            sync.Mutex
	provider      provider.Provider
	providerErr   error
	connected     bool
	connectedErr  error
	providerCalls int
}

// Verify FakeWallet implements wallet.Wallet
var _ wallet.Wallet = (*FakeWallet)(nil)

// New creates a connected fake wallet
func New(address, connectorType, walletClientType string, p provider.Provider) *FakeWallet {
	return &FakeWallet{
		address:          address,
		connectorType:    connectorType,
		walletClientType: walletClientType,
		provider:         p,
		connected:        true,
	}
}

func (w *FakeWallet) Address() string          { return w.address }
func (w *FakeWallet) ConnectorType() string    { return w.connectorType }
func (w *FakeWallet) WalletClientType() string { return w.walletClientType }

// IsConnected implements wallet.Wallet
func (w *FakeWallet) IsConnected(ctx context.Context) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected, w.connectedErr
}

// GetProvider implements wallet.Wallet
func (w *FakeWallet) GetProvider(ctx context.Context) (provider.Provider, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.providerCalls++
	if w.providerErr != nil {
		return nil, w.providerErr
	}
	return w.provider, nil
}

// SetConnected changes the connectivity answer
func (w *FakeWallet) SetConnected(connected bool, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = connected
	w.connectedErr = err
}

// FailProvider makes GetProvider fail with err
func (w *FakeWallet) FailProvider(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.providerErr = err
}

// ProviderCalls returns how many times GetProvider was called
func (w *FakeWallet) ProviderCalls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.providerCalls
}
