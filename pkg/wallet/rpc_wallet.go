package wallet

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/sigweihq/walletconnector/pkg/constants"
	"github.com/sigweihq/walletconnector/pkg/provider"
)

// RPCWallet is a wallet reachable through a JSON-RPC endpoint
type RPCWallet struct {
	address          string
	connectorType    string
	walletClientType string
	endpoint         string
	logger           *slog.Logger

	mu       sync.Mutex
	provider *provider.RPCProvider
}

// Verify RPCWallet implements Wallet
var _ Wallet = (*RPCWallet)(nil)

// NewRPCWallet creates a wallet for address served at endpoint.
// The endpoint is dialed on first use.
func NewRPCWallet(address, connectorType, walletClientType, endpoint string, logger *slog.Logger) *RPCWallet {
	if logger == nil {
		logger = slog.Default()
	}
	return &RPCWallet{
		address:          address,
		connectorType:    connectorType,
		walletClientType: walletClientType,
		endpoint:         endpoint,
		logger:           logger,
	}
}

func (w *RPCWallet) Address() string          { return w.address }
func (w *RPCWallet) ConnectorType() string    { return w.connectorType }
func (w *RPCWallet) WalletClientType() string { return w.walletClientType }

// GetProvider implements Wallet
func (w *RPCWallet) GetProvider(ctx context.Context) (provider.Provider, error) {
	return w.rpcProvider(ctx)
}

// IsConnected implements Wallet
// The wallet is connected when the endpoint lists its address in eth_accounts.
func (w *RPCWallet) IsConnected(ctx context.Context) (bool, error) {
	p, err := w.rpcProvider(ctx)
	if err != nil {
		return false, err
	}

	var accounts []string
	if err := p.Request(ctx, &accounts, constants.MethodAccounts); err != nil {
		return false, err
	}
	for _, a := range accounts {
		if strings.EqualFold(a, w.address) {
			return true, nil
		}
	}
	return false, nil
}

// Close drops the dialed provider
func (w *RPCWallet) Close() {
	w.mu.Lock()
	p := w.provider
	w.provider = nil
	w.mu.Unlock()

	if p != nil {
		p.Close()
	}
}

func (w *RPCWallet) rpcProvider(ctx context.Context) (*provider.RPCProvider, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.provider != nil {
		return w.provider, nil
	}

	p, err := provider.DialRPCProvider(ctx, w.endpoint, w.logger.With("wallet", w.address))
	if err != nil {
		return nil, err
	}
	w.provider = p
	return p, nil
}
