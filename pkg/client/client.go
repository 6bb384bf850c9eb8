// Package client is a minimal chain-client framework: it owns the connection
// status of an application and talks to wallets only through connectors.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sigweihq/walletconnector/pkg/connector"
	"github.com/sigweihq/walletconnector/pkg/constants"
	"github.com/sigweihq/walletconnector/pkg/events"
	"github.com/sigweihq/walletconnector/pkg/types"
	"github.com/sigweihq/walletconnector/pkg/walletclient"
)

var (
	ErrNoConnectors            = errors.New("no connectors configured")
	ErrNotConnected            = errors.New("client is not connected")
	ErrAlreadyConnected        = errors.New("client is already connected")
	ErrSwitchChainNotSupported = errors.New("connector does not support switching chains")
)

const eventState = "state"

// Status is the connection status of the client
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusReconnecting Status = "reconnecting"
	StatusConnected    Status = "connected"
)

// State is a snapshot of the client connection
type State struct {
	Status    Status
	Connector string
	Account   common.Address
	Chain     types.ChainStatus
}

// IsConnected reports whether a connector is connected
func (s State) IsConnected() bool {
	return s.Status == StatusConnected
}

// IsLoading reports whether a connection attempt is in progress
func (s State) IsLoading() bool {
	return s.Status == StatusConnecting || s.Status == StatusReconnecting
}

// Config holds the client configuration
type Config struct {
	Connectors []connector.Connector
	Logger     *slog.Logger
}

// ConnectOptions are the options of Connect
type ConnectOptions struct {
	// Connector defaults to the first configured connector
	Connector connector.Connector
	ChainID   *int64
}

// SwitchNetworkOptions are the options of SwitchNetwork
type SwitchNetworkOptions struct {
	// ThrowForSwitchChainNotSupported fails with ErrSwitchChainNotSupported
	// instead of doing nothing when the connector cannot switch chains
	ThrowForSwitchChainNotSupported bool
}

// Client tracks the connection to one of its connectors
type Client struct {
	connectors []connector.Connector
	logger     *slog.Logger
	emitter    *events.Emitter

	mu      sync.RWMutex
	state   State
	active  connector.Connector
	watches []events.Handle
}

// New creates a disconnected client
func New(cfg Config) (*Client, error) {
	if len(cfg.Connectors) == 0 {
		return nil, ErrNoConnectors
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		connectors: append([]connector.Connector(nil), cfg.Connectors...),
		logger:     logger,
		emitter:    events.NewEmitter(),
		state:      State{Status: StatusDisconnected},
	}, nil
}

// Connectors returns the configured connectors
func (c *Client) Connectors() []connector.Connector {
	return append([]connector.Connector(nil), c.connectors...)
}

// State returns the current connection state
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Subscribe calls listener with every new state
func (c *Client) Subscribe(listener func(State)) events.Handle {
	return c.emitter.On(eventState, func(payload any) {
		listener(payload.(State))
	})
}

// Unsubscribe removes a state listener
func (c *Client) Unsubscribe(h events.Handle) {
	c.emitter.Off(h)
}

// Connect connects through opts.Connector, or the first connector
func (c *Client) Connect(ctx context.Context, opts ConnectOptions) (types.ConnectorData, error) {
	conn := opts.Connector
	if conn == nil {
		conn = c.connectors[0]
	}

	c.mu.Lock()
	if c.state.Status == StatusConnected {
		c.mu.Unlock()
		return types.ConnectorData{}, ErrAlreadyConnected
	}
	previous := c.state.Status
	if previous != StatusReconnecting {
		c.state.Status = StatusConnecting
	}
	c.mu.Unlock()
	c.publish()

	c.watch(conn)
	data, err := conn.Connect(ctx, connector.ConnectOptions{ChainID: opts.ChainID})
	if err != nil {
		c.unwatch()
		c.setState(State{Status: StatusDisconnected})
		c.logger.Warn("connect failed", "connector", conn.ID(), "error", err)
		return types.ConnectorData{}, err
	}

	c.setState(State{
		Status:    StatusConnected,
		Connector: conn.ID(),
		Account:   data.Account,
		Chain:     data.Chain,
	})
	c.logger.Info("connected",
		"connector", conn.ID(),
		"account", data.Account.Hex(),
		"chainID", data.Chain.ID)
	return data, nil
}

// Reconnect connects through the first connector that is already authorized.
// Returns false when none is.
func (c *Client) Reconnect(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.state.Status == StatusConnected {
		c.mu.Unlock()
		return true, nil
	}
	c.state.Status = StatusReconnecting
	c.mu.Unlock()
	c.publish()

	for _, conn := range c.connectors {
		if !conn.IsAuthorized(ctx) {
			continue
		}
		if _, err := c.Connect(ctx, ConnectOptions{Connector: conn}); err != nil {
			c.logger.Debug("reconnect failed", "connector", conn.ID(), "error", err)
			continue
		}
		return true, nil
	}

	c.setState(State{Status: StatusDisconnected})
	return false, nil
}

// Disconnect disconnects the active connector
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.RLock()
	conn := c.active
	c.mu.RUnlock()

	c.unwatch()
	c.setState(State{Status: StatusDisconnected})

	if conn == nil {
		return nil
	}
	if err := conn.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect %s: %w", conn.ID(), err)
	}
	return nil
}

// SwitchNetwork moves the connected wallet to chainID
func (c *Client) SwitchNetwork(ctx context.Context, chainID int64, opts SwitchNetworkOptions) (types.Chain, error) {
	c.mu.RLock()
	conn := c.active
	c.mu.RUnlock()
	if conn == nil {
		return types.Chain{}, ErrNotConnected
	}

	switcher, ok := conn.(connector.ChainSwitcher)
	if !ok {
		if opts.ThrowForSwitchChainNotSupported {
			return types.Chain{}, ErrSwitchChainNotSupported
		}
		c.logger.Debug("connector cannot switch chains", "connector", conn.ID())
		return types.Chain{}, nil
	}

	chain, err := switcher.SwitchChain(ctx, chainID)
	if err != nil {
		return types.Chain{}, err
	}
	return chain, nil
}

// WalletClient returns a wallet client of the connected account
func (c *Client) WalletClient(ctx context.Context, chainID *int64) (*walletclient.Client, error) {
	c.mu.RLock()
	conn := c.active
	c.mu.RUnlock()
	if conn == nil {
		return nil, ErrNotConnected
	}
	return conn.GetWalletClient(ctx, connector.WalletClientOptions{ChainID: chainID})
}

// watch subscribes to the events of conn, replacing any previous subscription
func (c *Client) watch(conn connector.Connector) {
	c.unwatch()

	handles := []events.Handle{
		conn.On(constants.EventChange, c.onChange),
		conn.On(constants.EventDisconnect, c.onDisconnect),
		conn.On(constants.EventMessage, func(payload any) {
			c.logger.Debug("connector message", "connector", conn.ID(), "message", payload)
		}),
	}

	c.mu.Lock()
	c.active = conn
	c.watches = handles
	c.mu.Unlock()
}

func (c *Client) unwatch() {
	c.mu.Lock()
	conn, handles := c.active, c.watches
	c.active = nil
	c.watches = nil
	c.mu.Unlock()

	if conn == nil {
		return
	}
	for _, h := range handles {
		conn.Off(h)
	}
}

func (c *Client) onChange(payload any) {
	change, ok := payload.(types.ChangeEvent)
	if !ok {
		return
	}

	c.mu.Lock()
	if change.Account != nil {
		c.state.Account = *change.Account
	}
	if change.Chain != nil {
		c.state.Chain = *change.Chain
	}
	c.mu.Unlock()
	c.publish()
}

func (c *Client) onDisconnect(any) {
	c.unwatch()
	c.setState(State{Status: StatusDisconnected})
	c.logger.Info("connector disconnected")
}

func (c *Client) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
	c.publish()
}

func (c *Client) publish() {
	c.emitter.Emit(eventState, c.State())
}
