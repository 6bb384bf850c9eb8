package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sigweihq/walletconnector/pkg/chains"
	"github.com/sigweihq/walletconnector/pkg/constants"
	"github.com/sigweihq/walletconnector/pkg/events"
	"github.com/sigweihq/walletconnector/pkg/metrics"
	"github.com/sigweihq/walletconnector/pkg/provider"
	"github.com/sigweihq/walletconnector/pkg/types"
	"github.com/sigweihq/walletconnector/pkg/wallet"
	"github.com/sigweihq/walletconnector/pkg/walletclient"
)

// Config holds the adapter configuration
type Config struct {
	// Chains is the configured chain list. Nil means no chain is configured.
	Chains *chains.Registry

	// Logout is the wallet-auth service logout action, called by Disconnect
	Logout func(ctx context.Context) error

	Logger *slog.Logger

	// SwitchChainTimeout bounds the wait for a chain switch confirmation.
	// Zero uses constants.DefaultSwitchChainTimeout, a negative value disables it.
	SwitchChainTimeout time.Duration

	// AllowUnconfiguredChains lets SwitchChain try chains missing from Chains.
	// A placeholder chain is returned when the wallet confirms.
	AllowUnconfiguredChains bool

	// ActiveWallet is the wallet bound at construction, if any
	ActiveWallet wallet.Wallet
}

// Adapter exposes the active wallet of the wallet-auth service as a Connector.
//
// cycleMu serializes wallet activation and provider cycles. mu guards the
// fields below it and is never held across provider calls.
type Adapter struct {
	chains            *chains.Registry
	logout            func(ctx context.Context) error
	logger            *slog.Logger
	switchTimeout     time.Duration
	allowUnconfigured bool

	proxy   *provider.Proxy
	emitter *events.Emitter

	cycleMu sync.Mutex

	mu               sync.RWMutex
	active           wallet.Wallet
	requested        wallet.Wallet
	ready            bool
	subscribed       provider.Provider
	handles          []events.Handle
	generation       uint64
	activation       context.Context
	cancelActivation context.CancelCauseFunc
}

// NewAdapter creates a new wallet connector adapter
func NewAdapter(cfg Config) *Adapter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := cfg.Chains
	if registry == nil {
		registry = chains.NewRegistry()
	}
	timeout := cfg.SwitchChainTimeout
	if timeout == 0 {
		timeout = constants.DefaultSwitchChainTimeout
	}

	a := &Adapter{
		chains:            registry,
		logout:            cfg.Logout,
		logger:            logger.With("connector", constants.ConnectorID),
		switchTimeout:     timeout,
		allowUnconfigured: cfg.AllowUnconfiguredChains,
		proxy:             provider.NewProxy(),
		emitter:           events.NewEmitter(),
	}
	a.activation, a.cancelActivation = context.WithCancelCause(context.Background())

	if cfg.ActiveWallet != nil {
		a.active = cfg.ActiveWallet
		a.requested = cfg.ActiveWallet
		a.proxy.Bind(cfg.ActiveWallet)
	}
	return a
}

func (a *Adapter) ID() string   { return constants.ConnectorID }
func (a *Adapter) Name() string { return constants.ConnectorName }

// Ready reports whether a provider is attached for the active wallet
func (a *Adapter) Ready() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ready
}

// Chains returns the configured chain registry
func (a *Adapter) Chains() *chains.Registry {
	return a.chains
}

// ActiveWallet returns the wallet currently bound, or nil
func (a *Adapter) ActiveWallet() wallet.Wallet {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.active
}

// On subscribes to connector events
func (a *Adapter) On(event string, listener events.Listener) events.Handle {
	return a.emitter.On(event, listener)
}

// Off removes a connector event subscription
func (a *Adapter) Off(h events.Handle) {
	a.emitter.Off(h)
}

// Connect attaches the active wallet's provider and optionally switches chain
func (a *Adapter) Connect(ctx context.Context, opts ConnectOptions) (types.ConnectorData, error) {
	a.emitter.Emit(constants.EventMessage, types.Message{Type: types.MessageConnecting})

	account, err := a.GetAccount(ctx)
	if err != nil {
		return types.ConnectorData{}, err
	}

	a.cycleMu.Lock()
	err = a.cycleProviderLocked(ctx)
	a.cycleMu.Unlock()
	if err != nil {
		return types.ConnectorData{}, err
	}

	chainID, err := a.GetChainID(ctx)
	if err != nil {
		return types.ConnectorData{}, err
	}

	if opts.ChainID != nil && *opts.ChainID != chainID {
		chain, err := a.SwitchChain(ctx, *opts.ChainID)
		if err != nil {
			return types.ConnectorData{}, err
		}
		chainID = chain.ID
	}

	data := types.ConnectorData{
		Account: account,
		Chain:   a.chainStatus(chainID),
	}
	a.logger.Debug("connected", "account", account.Hex(), "chainID", chainID)
	a.emitter.Emit(constants.EventConnect, data)
	return data, nil
}

// Disconnect drops the provider listeners and logs out.
// The active wallet is kept until a new one is activated.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.cycleMu.Lock()
	a.unsubscribeLocked()
	a.cycleMu.Unlock()

	if a.logout == nil {
		return nil
	}
	if err := a.logout(ctx); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

// GetAccount returns the checksummed address of the active wallet.
// It never touches the provider.
func (a *Adapter) GetAccount(ctx context.Context) (common.Address, error) {
	w := a.ActiveWallet()
	if w == nil {
		return common.Address{}, &ConnectorNotFoundError{}
	}
	return parseAddress(w.Address())
}

// GetChainID asks the provider which chain the wallet is on
func (a *Adapter) GetChainID(ctx context.Context) (int64, error) {
	p, err := a.GetProvider(ctx)
	if err != nil {
		return 0, err
	}

	var raw json.RawMessage
	if err := p.Request(ctx, &raw, constants.MethodChainID); err != nil {
		return 0, fmt.Errorf("failed to get chain id: %w", err)
	}
	id, err := chains.NormalizeChainID(raw)
	if err != nil {
		return 0, fmt.Errorf("failed to parse chain id: %w", err)
	}
	return id, nil
}

// GetProvider returns the provider of the active wallet
func (a *Adapter) GetProvider(ctx context.Context) (provider.Provider, error) {
	p, err := a.proxy.Get(ctx)
	if err != nil {
		return nil, &ConnectorNotFoundError{Err: err}
	}
	return p, nil
}

// GetWalletClient returns a client bound to the active account and provider.
// The chain is bound only when opts.ChainID names a configured chain.
func (a *Adapter) GetWalletClient(ctx context.Context, opts WalletClientOptions) (*walletclient.Client, error) {
	account, err := a.GetAccount(ctx)
	if err != nil {
		return nil, err
	}
	p, err := a.GetProvider(ctx)
	if err != nil {
		return nil, err
	}

	var chain *types.Chain
	if opts.ChainID != nil {
		if c, ok := a.chains.Find(*opts.ChainID); ok {
			chain = &c
		}
	}
	return walletclient.New(account, p, chain), nil
}

// IsAuthorized reports whether the provider and account resolve and the wallet is connected
func (a *Adapter) IsAuthorized(ctx context.Context) bool {
	if _, err := a.GetProvider(ctx); err != nil {
		return false
	}
	if _, err := a.GetAccount(ctx); err != nil {
		return false
	}
	w := a.ActiveWallet()
	if w == nil {
		return false
	}
	connected, err := w.IsConnected(ctx)
	return err == nil && connected
}

// SetActiveWallet binds w and moves it to the chain the previous wallet was on.
// Activating the wallet that is already active is a no-op unless a newer
// activation is still waiting, which it then supersedes. Failing to restore
// the previous chain is logged and does not fail the activation.
func (a *Adapter) SetActiveWallet(ctx context.Context, w wallet.Wallet) error {
	if w == nil {
		return &ConnectorNotFoundError{Err: errors.New("cannot activate a nil wallet")}
	}
	if a.settled(w) {
		return nil
	}

	// Pending switches of the previous activation are cancelled before
	// waiting for the cycle lock they may be holding.
	activation := a.beginActivation(w)

	a.cycleMu.Lock()
	defer a.cycleMu.Unlock()

	if activation.Err() != nil {
		return fmt.Errorf("activate %s: %w", w.Address(), ErrActivationSuperseded)
	}
	if wallet.Same(a.ActiveWallet(), w) {
		return nil
	}

	previousChainID, previousErr := a.GetChainID(ctx)
	if previousErr != nil {
		a.logger.Debug("no previous chain to restore", "error", previousErr)
	}

	a.mu.Lock()
	a.active = w
	a.mu.Unlock()
	a.proxy.Bind(w)
	metrics.WalletActivations.WithLabelValues(constants.ConnectorID).Inc()

	if err := a.cycleProviderLocked(ctx); err != nil {
		return err
	}

	if previousErr == nil {
		a.restoreChain(ctx, activation, previousChainID)
	}

	account, err := parseAddress(w.Address())
	if err != nil {
		return err
	}
	a.logger.Info("active wallet changed",
		"address", account.Hex(),
		"connectorType", w.ConnectorType(),
		"walletClientType", w.WalletClientType())
	a.emitter.Emit(constants.EventChange, types.ChangeEvent{Account: &account})
	return nil
}

// restoreChain moves the new wallet to chainID when it is on another chain
func (a *Adapter) restoreChain(ctx context.Context, activation context.Context, chainID int64) {
	current, err := a.GetChainID(ctx)
	if err != nil {
		a.logger.Warn("failed to read chain of new wallet", "error", err)
		return
	}
	if current == chainID {
		return
	}

	chain, configured, err := a.resolveTarget(chainID)
	if err == nil {
		_, err = a.switchChain(ctx, activation, chain, configured)
	}
	if err != nil {
		a.logger.Warn("failed to restore previous chain",
			"from", current,
			"to", chainID,
			"error", err)
	}
}

// settled reports whether w is both bound and the latest requested wallet.
// A wallet that is bound while a newer request waits is not settled.
func (a *Adapter) settled(w wallet.Wallet) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return wallet.Same(a.active, w) && wallet.Same(a.requested, w)
}

// beginActivation cancels the previous activation and starts a new one for w
func (a *Adapter) beginActivation(w wallet.Wallet) context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.requested = w
	a.cancelActivation(ErrSwitchSuperseded)
	a.activation, a.cancelActivation = context.WithCancelCause(context.Background())
	return a.activation
}

func (a *Adapter) activationContext() context.Context {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.activation
}

// cycleProviderLocked replaces the subscribed provider with the one of the active wallet.
// Old listeners are removed before new ones are added. Caller holds cycleMu.
func (a *Adapter) cycleProviderLocked(ctx context.Context) error {
	a.unsubscribeLocked()
	a.proxy.Invalidate()

	a.mu.Lock()
	a.ready = false
	a.generation++
	generation := a.generation
	a.mu.Unlock()

	p, err := a.GetProvider(ctx)
	if err != nil {
		return err
	}

	handles := []events.Handle{
		p.On(constants.EventAccountsChanged, func(payload any) { a.onAccountsChanged(generation, payload) }),
		p.On(constants.EventChainChanged, func(payload any) { a.onChainChanged(generation, payload) }),
		p.On(constants.EventDisconnect, func(payload any) { a.onDisconnect(generation, payload) }),
	}

	a.mu.Lock()
	a.subscribed = p
	a.handles = handles
	a.ready = true
	a.mu.Unlock()

	metrics.ProviderCycles.WithLabelValues(constants.ConnectorID).Inc()
	return nil
}

// unsubscribeLocked removes every listener from the subscribed provider. Caller holds cycleMu.
func (a *Adapter) unsubscribeLocked() {
	a.mu.Lock()
	p, handles := a.subscribed, a.handles
	a.subscribed = nil
	a.handles = nil
	a.mu.Unlock()

	if p == nil {
		return
	}
	for _, h := range handles {
		p.RemoveListener(h)
	}
}

func (a *Adapter) subscribedProvider() provider.Provider {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.subscribed
}

// current reports whether generation is still the subscribed provider cycle
func (a *Adapter) current(generation uint64) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.generation == generation && a.subscribed != nil
}

func (a *Adapter) chainStatus(chainID int64) types.ChainStatus {
	return types.ChainStatus{
		ID:          chainID,
		Unsupported: a.chains.IsUnsupported(chainID),
	}
}

func (a *Adapter) onAccountsChanged(generation uint64, payload any) {
	if !a.current(generation) {
		return
	}

	if len(accountsFromPayload(payload)) == 0 {
		a.logger.Info("wallet reported no accounts")
		a.emitter.Emit(constants.EventDisconnect, nil)
		return
	}

	account, err := a.GetAccount(context.Background())
	if err != nil {
		a.logger.Warn("failed to resolve account after accountsChanged", "error", err)
		return
	}
	a.emitter.Emit(constants.EventChange, types.ChangeEvent{Account: &account})
}

func (a *Adapter) onChainChanged(generation uint64, payload any) {
	if !a.current(generation) {
		return
	}

	chainID, err := chains.NormalizeChainID(payload)
	if err != nil {
		a.logger.Warn("ignoring malformed chainChanged event", "payload", payload, "error", err)
		return
	}
	status := a.chainStatus(chainID)
	a.emitter.Emit(constants.EventChange, types.ChangeEvent{Chain: &status})
}

// onDisconnect tears the connection down. A dropped session (code 1013) gets
// one re-authorization check first.
func (a *Adapter) onDisconnect(generation uint64, payload any) {
	if !a.current(generation) {
		return
	}

	cause, _ := payload.(error)
	if code, ok := provider.ErrorCode(cause); ok && code == constants.CodeSessionInvalid {
		err := a.reauthorize()
		if err == nil {
			a.logger.Info("provider session recovered")
			metrics.ProviderDisconnects.WithLabelValues(constants.ConnectorID, "true").Inc()
			return
		}
		a.logger.Warn("re-authorization failed", "error", err)
	}

	a.mu.Lock()
	if a.generation == generation {
		a.ready = false
	}
	a.mu.Unlock()

	metrics.ProviderDisconnects.WithLabelValues(constants.ConnectorID, "false").Inc()
	a.logger.Info("provider disconnected", "error", cause)
	a.emitter.Emit(constants.EventDisconnect, cause)
}

func (a *Adapter) reauthorize() error {
	ctx, cancel := context.WithTimeout(context.Background(), constants.ReauthorizeTimeout)
	defer cancel()

	p, err := a.GetProvider(ctx)
	if err != nil {
		return err
	}
	var accounts []string
	if err := p.Request(ctx, &accounts, constants.MethodAccounts); err != nil {
		return fmt.Errorf("failed to get accounts: %w", err)
	}
	if len(accounts) == 0 {
		return errors.New("wallet returned no accounts")
	}
	_, err = a.GetAccount(ctx)
	return err
}

// parseAddress validates and checksums a wallet address
func parseAddress(address string) (common.Address, error) {
	if !common.IsHexAddress(address) {
		return common.Address{}, &InvalidAddressError{Address: address}
	}
	return common.HexToAddress(address), nil
}

// accountsFromPayload reads the address list of an accountsChanged event
func accountsFromPayload(payload any) []string {
	switch v := payload.(type) {
	case []string:
		return v
	case []common.Address:
		out := make([]string, len(v))
		for i, addr := range v {
			out[i] = addr.Hex()
		}
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
