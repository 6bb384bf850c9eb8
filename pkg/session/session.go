// Package session wires one wallet connector into a chain client and keeps it
// in line with the wallet-auth service for the lifetime of an application
// session.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sigweihq/walletconnector/pkg/auth"
	"github.com/sigweihq/walletconnector/pkg/chains"
	"github.com/sigweihq/walletconnector/pkg/client"
	"github.com/sigweihq/walletconnector/pkg/connector"
	"github.com/sigweihq/walletconnector/pkg/constants"
	"github.com/sigweihq/walletconnector/pkg/coordinator"
	"github.com/sigweihq/walletconnector/pkg/events"
	"github.com/sigweihq/walletconnector/pkg/types"
	"github.com/sigweihq/walletconnector/pkg/wallet"
)

var (
	ErrNoAuthService  = errors.New("wallet-auth service is required")
	ErrAlreadyStarted = errors.New("session already started")
)

const eventState = "state"

// Config holds the session configuration
type Config struct {
	Auth   auth.Service
	Chains *chains.Registry

	// ConnectorOverride replaces the default adapter. Any implementation of
	// the capability set is accepted.
	ConnectorOverride connector.WalletSwitcher

	Logger *slog.Logger

	// Passed to the default adapter
	SwitchChainTimeout      time.Duration
	AllowUnconfiguredChains bool
}

// State is the view of the session published to the application
type State struct {
	// Ready is the connector's ready flag
	Ready bool

	// Wallet is the wallet-auth record of the active wallet, or the
	// connector's own record when the list has none
	Wallet wallet.Wallet
}

// Session owns the connector, the chain client and the coordinator
type Session struct {
	auth        auth.Service
	connector   connector.WalletSwitcher
	client      *client.Client
	coordinator *coordinator.Coordinator
	logger      *slog.Logger
	emitter     *events.Emitter

	mu        sync.RWMutex
	state     State
	wallets   []wallet.Wallet
	connected wallet.Wallet
	started   bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// New builds a session. The connector is the override when given, a new
// Adapter otherwise, and is the only connector of the chain client.
func New(cfg Config) (*Session, error) {
	if cfg.Auth == nil {
		return nil, ErrNoAuthService
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn := cfg.ConnectorOverride
	if conn == nil {
		conn = connector.NewAdapter(connector.Config{
			Chains:                  cfg.Chains,
			Logout:                  cfg.Auth.Logout,
			Logger:                  logger,
			SwitchChainTimeout:      cfg.SwitchChainTimeout,
			AllowUnconfiguredChains: cfg.AllowUnconfiguredChains,
		})
	} else {
		logger.Info("using connector override", "connector", conn.ID())
	}

	c, err := client.New(client.Config{
		Connectors: []connector.Connector{conn},
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	return &Session{
		auth:        cfg.Auth,
		connector:   conn,
		client:      c,
		coordinator: coordinator.New(conn, logger),
		logger:      logger,
		emitter:     events.NewEmitter(),
	}, nil
}

// Start runs the session loop until ctx is done or Close is called
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	walletUpdates, unsubscribe := s.auth.Subscribe()

	changes := make(chan struct{}, 1)
	notify := func(any) {
		select {
		case changes <- struct{}{}:
		default:
		}
	}
	handles := []events.Handle{
		s.connector.On(constants.EventChange, notify),
		s.connector.On(constants.EventDisconnect, notify),
	}

	go func() {
		defer close(s.done)
		defer unsubscribe()
		defer func() {
			for _, h := range handles {
				s.connector.Off(h)
			}
		}()
		s.loop(ctx, walletUpdates, changes)
	}()
	return nil
}

func (s *Session) loop(ctx context.Context, walletUpdates <-chan []wallet.Wallet, changes <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return

		case wallets, ok := <-walletUpdates:
			if !ok {
				return
			}
			s.mu.Lock()
			s.wallets = wallets
			s.mu.Unlock()

			_ = s.coordinator.Update(ctx, wallets)
			s.refresh(ctx, true)

		case <-changes:
			s.refresh(ctx, false)
		}
	}
}

// refresh recomputes the view and auto-connects the client when a wallet is
// resolved. listChanged retries the connect for an unchanged listed wallet.
func (s *Session) refresh(ctx context.Context, listChanged bool) {
	active := s.connector.ActiveWallet()

	s.mu.Lock()
	view := active
	listed, inList := wallet.Find(s.wallets, active)
	if inList {
		view = listed
	}
	state := State{Ready: s.connector.Ready(), Wallet: view}
	changed := state.Ready != s.state.Ready || !wallet.Same(state.Wallet, s.state.Wallet)
	s.state = state

	// A connector record missing from the list (after logout) only connects
	// when it is a different wallet.
	attempt := state.Wallet != nil &&
		(!wallet.Same(state.Wallet, s.connected) || (listChanged && inList))
	if attempt {
		s.connected = state.Wallet
	}
	s.mu.Unlock()

	if changed {
		s.emitter.Emit(eventState, state)
	}
	if attempt {
		s.autoConnect(ctx)
	}
}

func (s *Session) autoConnect(ctx context.Context) {
	st := s.client.State()
	if st.IsConnected() || st.IsLoading() {
		return
	}
	if _, err := s.client.Connect(ctx, client.ConnectOptions{}); err != nil {
		s.logger.Warn("auto-connect failed", "error", err)
	}
}

// Close stops the session loop
func (s *Session) Close() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// State returns the current view
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe calls listener whenever the view changes
func (s *Session) Subscribe(listener func(State)) events.Handle {
	return s.emitter.On(eventState, func(payload any) {
		listener(payload.(State))
	})
}

// Unsubscribe removes a view listener
func (s *Session) Unsubscribe(h events.Handle) {
	s.emitter.Off(h)
}

// SetActiveWallet makes w the connector's active wallet
func (s *Session) SetActiveWallet(ctx context.Context, w wallet.Wallet) error {
	return s.connector.SetActiveWallet(ctx, w)
}

// SwitchNetwork switches the connected wallet to chainID. Connectors that
// cannot switch chains always fail.
func (s *Session) SwitchNetwork(ctx context.Context, chainID int64) (types.Chain, error) {
	return s.client.SwitchNetwork(ctx, chainID, client.SwitchNetworkOptions{
		ThrowForSwitchChainNotSupported: true,
	})
}

// Disconnect disconnects the chain client, which logs the user out
func (s *Session) Disconnect(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Client returns the chain client
func (s *Session) Client() *client.Client {
	return s.client
}

// Connector returns the session's connector
func (s *Session) Connector() connector.WalletSwitcher {
	return s.connector
}
