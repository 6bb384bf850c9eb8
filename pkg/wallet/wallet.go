// Package wallet defines the connected wallet records handed out by the
// wallet-auth service.
package wallet

import (
	"context"

	"github.com/sigweihq/walletconnector/pkg/provider"
)

// Wallet is a connected wallet owned by the wallet-auth service
type Wallet interface {
	// Address returns the account address as reported by the service
	Address() string

	// ConnectorType returns how the wallet is connected (e.g., "injected", "embedded")
	ConnectorType() string

	// WalletClientType returns the wallet brand (e.g., "metamask", "privy")
	WalletClientType() string

	// IsConnected reports whether the wallet is still reachable
	IsConnected(ctx context.Context) (bool, error)

	// GetProvider returns the wallet's provider
	GetProvider(ctx context.Context) (provider.Provider, error)
}

// Same reports whether two wallets have the same identity:
// connector type, wallet client type and address
func Same(a, b Wallet) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ConnectorType() == b.ConnectorType() &&
		a.WalletClientType() == b.WalletClientType() &&
		a.Address() == b.Address()
}

// Find returns the record in list with the same identity as target
func Find(list []Wallet, target Wallet) (Wallet, bool) {
	if target == nil {
		return nil, false
	}
	for _, w := range list {
		if Same(w, target) {
			return w, true
		}
	}
	return nil, false
}
