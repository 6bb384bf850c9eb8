package client

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sigweihq/walletconnector/pkg/chains"
	"github.com/sigweihq/walletconnector/pkg/connector"
	"github.com/sigweihq/walletconnector/pkg/constants"
	"github.com/sigweihq/walletconnector/pkg/provider/providertest"
	"github.com/sigweihq/walletconnector/pkg/types"
	"github.com/sigweihq/walletconnector/pkg/wallet/wallettest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "0xab5801a7d398351b8be11c439e05c5b3259aec9b"

// plainConnector hides the chain switching capability of the wrapped connector
type plainConnector struct {
	connector.Connector
}

func testAdapter(t *testing.T, p *providertest.FakeProvider, logout func(context.Context) error) (*connector.Adapter, *wallettest.FakeWallet) {
	t.Helper()
	mainnet, _ := chains.WellKnown(constants.ChainIDEthereum)
	polygon, _ := chains.WellKnown(constants.ChainIDPolygon)

	w := wallettest.New(testAddress, "injected", "metamask", p)
	a := connector.NewAdapter(connector.Config{
		Chains:       chains.NewRegistry(mainnet, polygon),
		Logout:       logout,
		ActiveWallet: w,
	})
	return a, w
}

func newTestClient(t *testing.T, conns ...connector.Connector) *Client {
	t.Helper()
	c, err := New(Config{Connectors: conns})
	require.NoError(t, err)
	return c
}

// stateRecorder collects published states
type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func recordStates(c *Client) *stateRecorder {
	r := &stateRecorder{}
	c.Subscribe(func(s State) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.states = append(r.states, s)
	})
	return r
}

func (r *stateRecorder) statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, len(r.states))
	for i, s := range r.states {
		out[i] = s.Status
	}
	return out
}

func TestNewWithoutConnectors(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrNoConnectors)
}

func TestConnect(t *testing.T) {
	ctx := context.Background()
	a, _ := testAdapter(t, providertest.New(constants.ChainIDPolygon), nil)
	c := newTestClient(t, a)
	r := recordStates(c)

	data, err := c.Connect(ctx, ConnectOptions{})
	require.NoError(t, err)

	state := c.State()
	assert.True(t, state.IsConnected())
	assert.False(t, state.IsLoading())
	assert.Equal(t, constants.ConnectorID, state.Connector)
	assert.Equal(t, common.HexToAddress(testAddress), state.Account)
	assert.Equal(t, types.ChainStatus{ID: constants.ChainIDPolygon}, state.Chain)
	assert.Equal(t, data.Account, state.Account)
	assert.Equal(t, []Status{StatusConnecting, StatusConnected}, r.statuses())

	_, err = c.Connect(ctx, ConnectOptions{})
	assert.ErrorIs(t, err, ErrAlreadyConnected)
}

func TestConnectWithChain(t *testing.T) {
	p := providertest.New(constants.ChainIDEthereum, constants.ChainIDPolygon)
	a, _ := testAdapter(t, p, nil)
	c := newTestClient(t, a)

	polygon := constants.ChainIDPolygon
	data, err := c.Connect(context.Background(), ConnectOptions{ChainID: &polygon})
	require.NoError(t, err)
	assert.Equal(t, polygon, data.Chain.ID)
	assert.Equal(t, polygon, c.State().Chain.ID)
}

func TestConnectFailure(t *testing.T) {
	a := connector.NewAdapter(connector.Config{})
	c := newTestClient(t, a)

	_, err := c.Connect(context.Background(), ConnectOptions{})
	var notFound *connector.ConnectorNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, StatusDisconnected, c.State().Status)
}

func TestConnectorEvents(t *testing.T) {
	ctx := context.Background()
	p := providertest.New(constants.ChainIDEthereum)
	a, _ := testAdapter(t, p, nil)
	c := newTestClient(t, a)
	_, err := c.Connect(ctx, ConnectOptions{})
	require.NoError(t, err)

	p.Emit(constants.EventChainChanged, "0x2105")
	assert.Equal(t, types.ChainStatus{ID: constants.ChainIDBase, Unsupported: true}, c.State().Chain)

	p.Emit(constants.EventAccountsChanged, []string{})
	assert.Equal(t, StatusDisconnected, c.State().Status)

	// the client stopped listening
	p.Emit(constants.EventChainChanged, "0x1")
	assert.Equal(t, State{Status: StatusDisconnected}, c.State())
}

func TestDisconnect(t *testing.T) {
	ctx := context.Background()
	logouts := 0
	a, _ := testAdapter(t, providertest.New(1), func(context.Context) error {
		logouts++
		return nil
	})
	c := newTestClient(t, a)

	require.NoError(t, c.Disconnect(ctx))
	assert.Equal(t, 0, logouts)

	_, err := c.Connect(ctx, ConnectOptions{})
	require.NoError(t, err)
	require.NoError(t, c.Disconnect(ctx))
	assert.Equal(t, 1, logouts)
	assert.Equal(t, StatusDisconnected, c.State().Status)
}

func TestDisconnectError(t *testing.T) {
	ctx := context.Background()
	a, _ := testAdapter(t, providertest.New(1), func(context.Context) error {
		return errors.New("logout failed")
	})
	c := newTestClient(t, a)
	_, err := c.Connect(ctx, ConnectOptions{})
	require.NoError(t, err)

	err = c.Disconnect(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logout failed")
	assert.Equal(t, StatusDisconnected, c.State().Status)
}

func TestReconnect(t *testing.T) {
	tests := []struct {
		name      string
		connected bool
		want      bool
	}{
		{name: "authorized wallet", connected: true, want: true},
		{name: "wallet not connected", connected: false, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, w := testAdapter(t, providertest.New(1), nil)
			w.SetConnected(tt.connected, nil)
			c := newTestClient(t, a)
			r := recordStates(c)

			ok, err := c.Reconnect(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, tt.want, c.State().IsConnected())

			statuses := r.statuses()
			require.NotEmpty(t, statuses)
			assert.Equal(t, StatusReconnecting, statuses[0])
		})
	}
}

func TestSwitchNetwork(t *testing.T) {
	ctx := context.Background()

	t.Run("not connected", func(t *testing.T) {
		a, _ := testAdapter(t, providertest.New(1), nil)
		_, err := newTestClient(t, a).SwitchNetwork(ctx, constants.ChainIDPolygon, SwitchNetworkOptions{})
		assert.ErrorIs(t, err, ErrNotConnected)
	})

	t.Run("switches and tracks chain", func(t *testing.T) {
		a, _ := testAdapter(t, providertest.New(1, constants.ChainIDPolygon), nil)
		c := newTestClient(t, a)
		_, err := c.Connect(ctx, ConnectOptions{})
		require.NoError(t, err)

		chain, err := c.SwitchNetwork(ctx, constants.ChainIDPolygon, SwitchNetworkOptions{ThrowForSwitchChainNotSupported: true})
		require.NoError(t, err)
		assert.Equal(t, constants.ChainIDPolygon, chain.ID)
		assert.Equal(t, constants.ChainIDPolygon, c.State().Chain.ID)
	})

	t.Run("switch error propagates", func(t *testing.T) {
		a, _ := testAdapter(t, providertest.New(1), nil)
		c := newTestClient(t, a)
		_, err := c.Connect(ctx, ConnectOptions{})
		require.NoError(t, err)

		_, err = c.SwitchNetwork(ctx, 999, SwitchNetworkOptions{})
		var notConfigured *connector.ChainNotConfiguredError
		assert.ErrorAs(t, err, &notConfigured)
	})

	tests := []struct {
		name    string
		throw   bool
		wantErr error
	}{
		{name: "unsupported connector throws", throw: true, wantErr: ErrSwitchChainNotSupported},
		{name: "unsupported connector ignored", throw: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := testAdapter(t, providertest.New(1, constants.ChainIDPolygon), nil)
			c := newTestClient(t, plainConnector{a})
			_, err := c.Connect(ctx, ConnectOptions{})
			require.NoError(t, err)

			chain, err := c.SwitchNetwork(ctx, constants.ChainIDPolygon, SwitchNetworkOptions{ThrowForSwitchChainNotSupported: tt.throw})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, types.Chain{}, chain)
			assert.Equal(t, int64(1), c.State().Chain.ID)
		})
	}
}

func TestWalletClient(t *testing.T) {
	ctx := context.Background()
	a, _ := testAdapter(t, providertest.New(1), nil)
	c := newTestClient(t, a)

	_, err := c.WalletClient(ctx, nil)
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = c.Connect(ctx, ConnectOptions{})
	require.NoError(t, err)

	polygon := constants.ChainIDPolygon
	wc, err := c.WalletClient(ctx, &polygon)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(testAddress), wc.Account())
	require.NotNil(t, wc.Chain())
	assert.Equal(t, polygon, wc.Chain().ID)
}

func TestUnsubscribe(t *testing.T) {
	a, _ := testAdapter(t, providertest.New(1), nil)
	c := newTestClient(t, a)

	calls := 0
	h := c.Subscribe(func(State) { calls++ })
	c.Unsubscribe(h)

	_, err := c.Connect(context.Background(), ConnectOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, calls)
	assert.Len(t, c.Connectors(), 1)
}
