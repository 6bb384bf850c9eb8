package connector

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sigweihq/walletconnector/pkg/chains"
	"github.com/sigweihq/walletconnector/pkg/constants"
	"github.com/sigweihq/walletconnector/pkg/metrics"
	"github.com/sigweihq/walletconnector/pkg/provider"
	"github.com/sigweihq/walletconnector/pkg/provider/providertest"
	"github.com/sigweihq/walletconnector/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connectedAdapter(t *testing.T, p *providertest.FakeProvider, opts ...func(*Config)) *Adapter {
	t.Helper()
	opts = append([]func(*Config){func(c *Config) { c.ActiveWallet = newWallet(addr1, p) }}, opts...)
	a := newTestAdapter(t, opts...)
	_, err := a.Connect(context.Background(), ConnectOptions{})
	require.NoError(t, err)
	return a
}

func switchResult(result string) float64 {
	return testutil.ToFloat64(metrics.ChainSwitches.WithLabelValues(constants.ConnectorID, result))
}

func TestSwitchChainConfirmed(t *testing.T) {
	p := providertest.New(constants.ChainIDEthereum, constants.ChainIDPolygon)
	a := connectedAdapter(t, p)
	r := record(a, constants.EventChange)
	before := switchResult(metrics.SwitchConfirmed)

	chain, err := a.SwitchChain(context.Background(), constants.ChainIDPolygon)
	require.NoError(t, err)

	assert.Equal(t, constants.ChainIDPolygon, chain.ID)
	assert.Equal(t, "Polygon", chain.Name)
	assert.Equal(t, constants.ChainIDPolygon, p.ChainID())
	assert.Equal(t, []types.ChainStatus{{ID: constants.ChainIDPolygon}}, r.chainChanges())
	assert.Equal(t, 0, p.RequestCount(constants.MethodAddEthereumChain))
	assert.Equal(t, before+1, switchResult(metrics.SwitchConfirmed))
}

func TestSwitchChainRequestShape(t *testing.T) {
	var params []any
	p := providertest.New(constants.ChainIDEthereum)
	p.Handle(constants.MethodSwitchEthereumChain, func(ctx context.Context, ps []any) (any, error) {
		params = ps
		p.Emit(constants.EventChainChanged, "0x2105")
		return nil, nil
	})
	a := connectedAdapter(t, p)

	_, err := a.SwitchChain(context.Background(), constants.ChainIDBase)
	require.NoError(t, err)

	data, err := json.Marshal(params)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"chainId":"0x2105"}]`, string(data))
}

func TestSwitchChainWaitsForBothSignals(t *testing.T) {
	ack := make(chan struct{})
	p := providertest.New(constants.ChainIDEthereum)
	p.Handle(constants.MethodSwitchEthereumChain, func(ctx context.Context, ps []any) (any, error) {
		select {
		case <-ack:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	a := connectedAdapter(t, p)

	done := make(chan error, 1)
	go func() {
		_, err := a.SwitchChain(context.Background(), constants.ChainIDPolygon)
		done <- err
	}()

	require.Eventually(t, func() bool {
		return p.RequestCount(constants.MethodSwitchEthereumChain) == 1
	}, time.Second, 5*time.Millisecond)

	// the change alone does not complete the switch
	p.Emit(constants.EventChainChanged, "0x89")
	select {
	case err := <-done:
		t.Fatalf("switch completed before acknowledgement: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(ack)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("switch did not complete")
	}
}

func TestSwitchChainIgnoresOtherChainChanges(t *testing.T) {
	p := providertest.New(constants.ChainIDEthereum).Silent()
	p.Handle(constants.MethodSwitchEthereumChain, func(ctx context.Context, ps []any) (any, error) {
		p.Emit(constants.EventChainChanged, "0x2105")
		return nil, nil
	})
	a := connectedAdapter(t, p, func(c *Config) { c.SwitchChainTimeout = 50 * time.Millisecond })

	_, err := a.SwitchChain(context.Background(), constants.ChainIDPolygon)
	var timeout *SwitchChainTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, constants.ChainIDPolygon, timeout.ChainID)
}

func TestSwitchChainAddsUnknownChain(t *testing.T) {
	var added map[string]any
	p := providertest.New(constants.ChainIDEthereum)
	p.Handle(constants.MethodAddEthereumChain, func(ctx context.Context, ps []any) (any, error) {
		require.Len(t, ps, 1)
		data, err := json.Marshal(ps[0])
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &added))
		return nil, nil
	})
	a := connectedAdapter(t, p)
	before := switchResult(metrics.SwitchAdded)

	chain, err := a.SwitchChain(context.Background(), constants.ChainIDPolygon)
	require.NoError(t, err)

	assert.Equal(t, constants.ChainIDPolygon, chain.ID)
	assert.Equal(t, 1, p.RequestCount(constants.MethodSwitchEthereumChain))
	assert.Equal(t, 1, p.RequestCount(constants.MethodAddEthereumChain))
	assert.Equal(t, before+1, switchResult(metrics.SwitchAdded))

	require.NotNil(t, added)
	assert.Equal(t, "0x89", added["chainId"])
	assert.Equal(t, "Polygon", added["chainName"])
	assert.Equal(t, map[string]any{"name": "POL", "symbol": "POL", "decimals": float64(18)}, added["nativeCurrency"])
	assert.Equal(t, []any{constants.OfficialRPCEndpoints[constants.ChainIDPolygon][0]}, added["rpcUrls"])
}

func TestSwitchChainAddWithoutPublicRPC(t *testing.T) {
	var added map[string]any
	p := providertest.New(constants.ChainIDEthereum)
	p.Handle(constants.MethodAddEthereumChain, func(ctx context.Context, ps []any) (any, error) {
		data, _ := json.Marshal(ps[0])
		_ = json.Unmarshal(data, &added)
		return nil, nil
	})
	registry := chains.NewRegistry(types.Chain{ID: 31337, Name: "Anvil"})
	a := connectedAdapter(t, p, func(c *Config) { c.Chains = registry })

	_, err := a.SwitchChain(context.Background(), 31337)
	require.NoError(t, err)
	assert.Equal(t, []any{""}, added["rpcUrls"])
}

func TestSwitchChainFailures(t *testing.T) {
	tests := []struct {
		name       string
		provider   func() *providertest.FakeProvider
		target     int64
		wantAdds   int
		wantResult string
		check      func(t *testing.T, err error)
	}{
		{
			name:       "add rejected",
			provider:   func() *providertest.FakeProvider { return providertest.New(1).FailAdd(provider.NewRPCError(4001, "User rejected")) },
			target:     constants.ChainIDPolygon,
			wantAdds:   1,
			wantResult: metrics.SwitchRejected,
			check: func(t *testing.T, err error) {
				var rejected *UserRejectedRequestError
				assert.ErrorAs(t, err, &rejected)
			},
		},
		{
			name:       "add fails for another reason",
			provider:   func() *providertest.FakeProvider { return providertest.New(1).FailAdd(errors.New("invalid rpc url")) },
			target:     constants.ChainIDPolygon,
			wantAdds:   1,
			wantResult: metrics.SwitchRejected,
			check: func(t *testing.T, err error) {
				var rejected *UserRejectedRequestError
				assert.ErrorAs(t, err, &rejected)
			},
		},
		{
			name: "rejected by code",
			provider: func() *providertest.FakeProvider {
				return providertest.New(1, constants.ChainIDPolygon).FailSwitch(provider.NewRPCError(constants.CodeUserRejectedRequest, "denied"))
			},
			target:     constants.ChainIDPolygon,
			wantResult: metrics.SwitchRejected,
			check: func(t *testing.T, err error) {
				var rejected *UserRejectedRequestError
				assert.ErrorAs(t, err, &rejected)
			},
		},
		{
			name: "rejected by message",
			provider: func() *providertest.FakeProvider {
				return providertest.New(1, constants.ChainIDPolygon).FailSwitch(errors.New("MetaMask: User rejected the request."))
			},
			target:     constants.ChainIDPolygon,
			wantResult: metrics.SwitchRejected,
			check: func(t *testing.T, err error) {
				var rejected *UserRejectedRequestError
				assert.ErrorAs(t, err, &rejected)
			},
		},
		{
			name: "generic failure",
			provider: func() *providertest.FakeProvider {
				return providertest.New(1, constants.ChainIDPolygon).FailSwitch(provider.NewRPCError(-32603, "internal error"))
			},
			target:     constants.ChainIDPolygon,
			wantResult: metrics.SwitchFailed,
			check: func(t *testing.T, err error) {
				var switchErr *SwitchChainError
				require.ErrorAs(t, err, &switchErr)
				assert.Equal(t, constants.ChainIDPolygon, switchErr.ChainID)
				code, ok := provider.ErrorCode(err)
				assert.True(t, ok)
				assert.Equal(t, -32603, code)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.provider()
			a := connectedAdapter(t, p)
			before := switchResult(tt.wantResult)

			_, err := a.SwitchChain(context.Background(), tt.target)
			require.Error(t, err)
			tt.check(t, err)

			assert.Equal(t, 1, p.RequestCount(constants.MethodSwitchEthereumChain))
			assert.Equal(t, tt.wantAdds, p.RequestCount(constants.MethodAddEthereumChain))
			assert.Equal(t, before+1, switchResult(tt.wantResult))
		})
	}
}

func TestSwitchChainNotConfigured(t *testing.T) {
	p := providertest.New(constants.ChainIDEthereum, 999)
	w := newWallet(addr1, p)
	a := newTestAdapter(t, func(c *Config) { c.ActiveWallet = w })

	_, err := a.SwitchChain(context.Background(), 999)

	var notConfigured *ChainNotConfiguredError
	require.ErrorAs(t, err, &notConfigured)
	assert.Equal(t, int64(999), notConfigured.ChainID)
	assert.Equal(t, constants.ConnectorID, notConfigured.ConnectorID)
	assert.Empty(t, p.Requests())
	assert.Equal(t, 0, w.ProviderCalls())
}

func TestSwitchChainUnconfiguredAllowed(t *testing.T) {
	t.Run("wallet knows the chain", func(t *testing.T) {
		p := providertest.New(constants.ChainIDEthereum, 999)
		a := connectedAdapter(t, p, func(c *Config) { c.AllowUnconfiguredChains = true })

		chain, err := a.SwitchChain(context.Background(), 999)
		require.NoError(t, err)
		assert.Equal(t, chains.Placeholder(999), chain)
		assert.Equal(t, "Chain 0x3e7", chain.Name)
	})

	t.Run("wallet does not know the chain", func(t *testing.T) {
		p := providertest.New(constants.ChainIDEthereum)
		a := connectedAdapter(t, p, func(c *Config) { c.AllowUnconfiguredChains = true })

		_, err := a.SwitchChain(context.Background(), 999)
		var notConfigured *ChainNotConfiguredError
		require.ErrorAs(t, err, &notConfigured)
		assert.Equal(t, 0, p.RequestCount(constants.MethodAddEthereumChain))
	})
}

func TestSwitchChainTimeout(t *testing.T) {
	p := providertest.New(constants.ChainIDEthereum, constants.ChainIDPolygon).Silent()
	a := connectedAdapter(t, p, func(c *Config) { c.SwitchChainTimeout = 30 * time.Millisecond })
	before := switchResult(metrics.SwitchTimeout)

	_, err := a.SwitchChain(context.Background(), constants.ChainIDPolygon)

	var timeout *SwitchChainTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 30*time.Millisecond, timeout.Timeout)
	assert.Equal(t, before+1, switchResult(metrics.SwitchTimeout))
}

func TestSwitchChainCallerCancel(t *testing.T) {
	p := providertest.New(constants.ChainIDEthereum, constants.ChainIDPolygon).Silent()
	a := connectedAdapter(t, p, func(c *Config) { c.SwitchChainTimeout = -1 })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := a.SwitchChain(ctx, constants.ChainIDPolygon)
	var switchErr *SwitchChainError
	require.ErrorAs(t, err, &switchErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSwitchChainSupersededByActivation(t *testing.T) {
	ctx := context.Background()
	p1 := providertest.New(constants.ChainIDEthereum, constants.ChainIDPolygon).Silent()
	a := newTestAdapter(t, func(c *Config) { c.SwitchChainTimeout = -1 })
	require.NoError(t, a.SetActiveWallet(ctx, newWallet(addr1, p1)))

	done := make(chan error, 1)
	go func() {
		_, err := a.SwitchChain(ctx, constants.ChainIDPolygon)
		done <- err
	}()

	require.Eventually(t, func() bool {
		return p1.RequestCount(constants.MethodSwitchEthereumChain) == 1
	}, time.Second, 5*time.Millisecond)

	p2 := providertest.New(constants.ChainIDPolygon)
	require.NoError(t, a.SetActiveWallet(ctx, newWallet(addr2, p2)))

	select {
	case err := <-done:
		var switchErr *SwitchChainError
		require.ErrorAs(t, err, &switchErr)
		assert.ErrorIs(t, err, ErrSwitchSuperseded)
	case <-time.After(time.Second):
		t.Fatal("superseded switch did not fail")
	}

	assert.Equal(t, 0, p1.TotalListeners())
	assert.Equal(t, 3, p2.TotalListeners())
}

func TestSwitchChainSubscribesWhenNeeded(t *testing.T) {
	p := providertest.New(constants.ChainIDEthereum, constants.ChainIDPolygon)
	a := newTestAdapter(t, func(c *Config) { c.ActiveWallet = newWallet(addr1, p) })

	_, err := a.SwitchChain(context.Background(), constants.ChainIDPolygon)
	require.NoError(t, err)
	assert.Equal(t, 3, p.TotalListeners())
	assert.True(t, a.Ready())
}

func TestIsUserRejection(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "code 4001", err: provider.NewRPCError(4001, "denied"), want: true},
		{name: "wrapped code 4001", err: &SwitchChainError{Err: provider.NewRPCError(4001, "denied")}, want: true},
		{name: "message", err: errors.New("User Rejected the request"), want: true},
		{name: "other code", err: provider.NewRPCError(4902, "unknown chain"), want: false},
		{name: "other message", err: errors.New("network error"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUserRejection(tt.err))
		})
	}
}
