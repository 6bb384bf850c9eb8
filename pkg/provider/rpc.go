package provider

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sigweihq/walletconnector/pkg/constants"
	"github.com/sigweihq/walletconnector/pkg/events"
)

// RPCProvider implements Provider on top of a JSON-RPC wallet endpoint.
// A plain JSON-RPC transport has no push channel, so chain and account
// changes are detected after switch requests and by Poll.
type RPCProvider struct {
	client  *rpc.Client
	emitter *events.Emitter
	logger  *slog.Logger

	mu       sync.Mutex
	chainID  string
	accounts []string
	closed   bool
}

// Verify RPCProvider implements Provider
var _ Provider = (*RPCProvider)(nil)

// NewRPCProvider wraps an existing rpc client
func NewRPCProvider(client *rpc.Client, logger *slog.Logger) *RPCProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &RPCProvider{
		client:  client,
		emitter: events.NewEmitter(),
		logger:  logger,
	}
}

// DialRPCProvider connects to a wallet JSON-RPC endpoint (http, ws or ipc)
func DialRPCProvider(ctx context.Context, endpoint string, logger *slog.Logger) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return NewRPCProvider(client, logger), nil
}

// Request implements Provider
func (p *RPCProvider) Request(ctx context.Context, result any, method string, params ...any) error {
	switching := method == constants.MethodSwitchEthereumChain || method == constants.MethodAddEthereumChain
	if switching && p.lastChainID() == "" {
		// seed the chain id so the change can be detected afterwards
		if _, err := p.refreshChainID(ctx); err != nil {
			p.logger.Debug("failed to read chain id before switch", "error", err)
		}
	}

	if err := p.client.CallContext(ctx, result, method, params...); err != nil {
		return err
	}

	if switching {
		if _, err := p.refreshChainID(ctx); err != nil {
			p.logger.Warn("failed to refresh chain id after switch", "method", method, "error", err)
		}
	}
	return nil
}

func (p *RPCProvider) lastChainID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chainID
}

// On implements Provider
func (p *RPCProvider) On(event string, listener events.Listener) events.Handle {
	return p.emitter.On(event, listener)
}

// RemoveListener implements Provider
func (p *RPCProvider) RemoveListener(h events.Handle) {
	p.emitter.Off(h)
}

// ListenerCount returns the number of listeners subscribed to an event
func (p *RPCProvider) ListenerCount(event string) int {
	return p.emitter.ListenerCount(event)
}

// Poll checks eth_chainId and eth_accounts every interval and emits
// chainChanged / accountsChanged when they change. Blocks until ctx is done.
func (p *RPCProvider) Poll(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = constants.DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := p.refreshChainID(ctx); err != nil && ctx.Err() == nil {
			p.logger.Debug("chain id poll failed", "error", err)
		}
		if err := p.refreshAccounts(ctx); err != nil && ctx.Err() == nil {
			p.logger.Debug("accounts poll failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close closes the underlying client and emits disconnect
func (p *RPCProvider) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.client.Close()
	p.emitter.Emit(constants.EventDisconnect, errors.New("provider closed"))
}

// refreshChainID reads eth_chainId and emits chainChanged when it differs
// from the last observed value. The first observation is not emitted.
func (p *RPCProvider) refreshChainID(ctx context.Context) (string, error) {
	var chainID hexutil.Uint64
	if err := p.client.CallContext(ctx, &chainID, constants.MethodChainID); err != nil {
		return "", err
	}
	current := chainID.String()

	p.mu.Lock()
	previous := p.chainID
	p.chainID = current
	p.mu.Unlock()

	if previous != "" && previous != current {
		p.emitter.Emit(constants.EventChainChanged, current)
	}
	return current, nil
}

func (p *RPCProvider) refreshAccounts(ctx context.Context) error {
	var accounts []string
	if err := p.client.CallContext(ctx, &accounts, constants.MethodAccounts); err != nil {
		return err
	}

	p.mu.Lock()
	previous := p.accounts
	p.accounts = accounts
	p.mu.Unlock()

	if previous != nil && !slices.EqualFunc(previous, accounts, strings.EqualFold) {
		p.emitter.Emit(constants.EventAccountsChanged, accounts)
	}
	return nil
}
