// Package connector exposes a single wallet, chosen from the wallets of the
// wallet-auth service, through the connector contract the chain client uses.
//
// The Adapter tracks one active wallet at a time. Changing the active wallet
// drops the listeners of the old wallet's provider before the new provider is
// subscribed, and tries to move the new wallet to the chain the previous one
// was on.
package connector

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sigweihq/walletconnector/pkg/events"
	"github.com/sigweihq/walletconnector/pkg/provider"
	"github.com/sigweihq/walletconnector/pkg/types"
	"github.com/sigweihq/walletconnector/pkg/wallet"
	"github.com/sigweihq/walletconnector/pkg/walletclient"
)

// ConnectOptions are the options of Connect
type ConnectOptions struct {
	// ChainID, when set, is the chain to switch to after connecting
	ChainID *int64
}

// WalletClientOptions are the options of GetWalletClient
type WalletClientOptions struct {
	// ChainID, when set and configured, binds the client to that chain
	ChainID *int64
}

// Connector is the contract the chain client expects from a wallet source
type Connector interface {
	// ID returns the connector identifier (e.g., "privy")
	ID() string

	// Name returns a human readable name
	Name() string

	// Ready reports whether a provider has been attached
	Ready() bool

	// Connect attaches the wallet's provider and returns account and chain
	Connect(ctx context.Context, opts ConnectOptions) (types.ConnectorData, error)

	// Disconnect detaches provider listeners and logs out
	Disconnect(ctx context.Context) error

	// GetAccount returns the checksummed account address
	GetAccount(ctx context.Context) (common.Address, error)

	// GetChainID returns the chain the wallet is on
	GetChainID(ctx context.Context) (int64, error)

	// GetProvider returns the wallet's provider
	GetProvider(ctx context.Context) (provider.Provider, error)

	// GetWalletClient returns a client bound to the account, provider and optional chain
	GetWalletClient(ctx context.Context, opts WalletClientOptions) (*walletclient.Client, error)

	// IsAuthorized reports whether provider, account and wallet connectivity are all available
	IsAuthorized(ctx context.Context) bool

	// On subscribes to "change", "connect", "disconnect" and "message" events
	On(event string, listener events.Listener) events.Handle

	// Off removes a subscription
	Off(h events.Handle)
}

// ChainSwitcher is implemented by connectors that can move the wallet to another chain
type ChainSwitcher interface {
	SwitchChain(ctx context.Context, chainID int64) (types.Chain, error)
}

// WalletSwitcher is the capability set a connector needs to be driven by the
// wallet-auth service. Any implementation is accepted, not only Adapter.
type WalletSwitcher interface {
	Connector
	ChainSwitcher

	// ActiveWallet returns the wallet currently bound, or nil
	ActiveWallet() wallet.Wallet

	// SetActiveWallet binds another wallet
	SetActiveWallet(ctx context.Context, w wallet.Wallet) error
}

// Verify Adapter implements the full capability set
var _ WalletSwitcher = (*Adapter)(nil)
