// Package providertest offers an in-memory provider for tests.
package providertest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sigweihq/walletconnector/pkg/constants"
	"github.com/sigweihq/walletconnector/pkg/events"
	"github.com/sigweihq/walletconnector/pkg/provider"
)

// Request is one recorded provider request
type Request struct {
	Method string
	Params []any
}

// Handler answers a request in place of the default behaviour
type Handler func(ctx context.Context, params []any) (any, error)

// FakeProvider simulates a wallet provider.
//
// By default it answers eth_chainId and eth_accounts from its state, accepts
// wallet_switchEthereumChain for known chains (emitting chainChanged), fails
// with code 4902 for unknown ones, and learns chains from wallet_addEthereumChain.
type FakeProvider struct {
	emitter *events.Emitter

	mu        sync.Mutex
	chainID   int64
	known     map[int64]bool
	accounts  []string
	handlers  map[string]Handler
	requests  []Request
	silent    bool
	switchErr error
	addErr    error
}

// Verify FakeProvider implements provider.Provider
var _ provider.Provider = (*FakeProvider)(nil)

// New creates a fake provider on chainID that knows the given extra chains
func New(chainID int64, known ...int64) *FakeProvider {
	f := &FakeProvider{
		emitter: events.NewEmitter(),
		chainID: chainID,
		known:   map[int64]bool{chainID: true},
	}
	for _, id := range known {
		f.known[id] = true
	}
	return f
}

// WithAccounts sets the eth_accounts answer
func (f *FakeProvider) WithAccounts(accounts ...string) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts = accounts
	return f
}

// Handle overrides the behaviour for one method
func (f *FakeProvider) Handle(method string, h Handler) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = make(map[string]Handler)
	}
	f.handlers[method] = h
	return f
}

// Silent stops chainChanged from being emitted after a successful switch
func (f *FakeProvider) Silent() *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.silent = true
	return f
}

// FailSwitch makes wallet_switchEthereumChain fail with err
func (f *FakeProvider) FailSwitch(err error) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switchErr = err
	return f
}

// FailAdd makes wallet_addEthereumChain fail with err
func (f *FakeProvider) FailAdd(err error) *FakeProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addErr = err
	return f
}

// ChainID returns the chain the fake wallet is on
func (f *FakeProvider) ChainID() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chainID
}

// SetChainID moves the wallet to another chain without emitting an event
func (f *FakeProvider) SetChainID(chainID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chainID = chainID
	f.known[chainID] = true
}

// Request implements provider.Provider
func (f *FakeProvider) Request(ctx context.Context, result any, method string, params ...any) error {
	f.mu.Lock()
	f.requests = append(f.requests, Request{Method: method, Params: params})
	handler := f.handlers[method]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	var (
		value any
		err   error
	)
	if handler != nil {
		value, err = handler(ctx, params)
	} else {
		value, err = f.handle(method, params)
	}
	if err != nil {
		return err
	}
	return decodeInto(value, result)
}

func (f *FakeProvider) handle(method string, params []any) (any, error) {
	switch method {
	case constants.MethodChainID:
		return hexutil.EncodeUint64(uint64(f.ChainID())), nil

	case constants.MethodAccounts:
		f.mu.Lock()
		defer f.mu.Unlock()
		return append([]string(nil), f.accounts...), nil

	case constants.MethodSwitchEthereumChain:
		id, err := chainIDParam(params)
		if err != nil {
			return nil, err
		}

		f.mu.Lock()
		switchErr, known, silent := f.switchErr, f.known[id], f.silent
		if switchErr == nil && known {
			f.chainID = id
		}
		f.mu.Unlock()

		if switchErr != nil {
			return nil, switchErr
		}
		if !known {
			return nil, provider.NewRPCError(constants.CodeUnrecognizedChain, "Unrecognized chain ID")
		}
		if !silent {
			f.emitter.Emit(constants.EventChainChanged, hexutil.EncodeUint64(uint64(id)))
		}
		return nil, nil

	case constants.MethodAddEthereumChain:
		id, err := chainIDParam(params)
		if err != nil {
			return nil, err
		}

		f.mu.Lock()
		defer f.mu.Unlock()
		if f.addErr != nil {
			return nil, f.addErr
		}
		f.known[id] = true
		return nil, nil

	default:
		return nil, provider.NewRPCError(constants.CodeUnsupportedMethod, fmt.Sprintf("method %s not supported", method))
	}
}

// On implements provider.Provider
func (f *FakeProvider) On(event string, listener events.Listener) events.Handle {
	return f.emitter.On(event, listener)
}

// RemoveListener implements provider.Provider
func (f *FakeProvider) RemoveListener(h events.Handle) {
	f.emitter.Off(h)
}

// Emit fires a provider event as the wallet would
func (f *FakeProvider) Emit(event string, payload any) {
	f.emitter.Emit(event, payload)
}

// ListenerCount returns the number of listeners of an event
func (f *FakeProvider) ListenerCount(event string) int {
	return f.emitter.ListenerCount(event)
}

// TotalListeners returns the number of listeners across the EIP-1193 events
func (f *FakeProvider) TotalListeners() int {
	return f.ListenerCount(constants.EventAccountsChanged) +
		f.ListenerCount(constants.EventChainChanged) +
		f.ListenerCount(constants.EventDisconnect)
}

// Requests returns the recorded requests
func (f *FakeProvider) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}

// RequestCount returns how many requests used method
func (f *FakeProvider) RequestCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, r := range f.requests {
		if r.Method == method {
			count++
		}
	}
	return count
}

// ChainIDParam decodes the chainId of a wallet_switchEthereumChain / wallet_addEthereumChain request
func ChainIDParam(params []any) (int64, error) {
	return chainIDParam(params)
}

func chainIDParam(params []any) (int64, error) {
	if len(params) != 1 {
		return 0, provider.NewRPCError(-32602, "expected exactly one parameter")
	}
	data, err := json.Marshal(params[0])
	if err != nil {
		return 0, err
	}
	var p struct {
		ChainID hexutil.Uint64 `json:"chainId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return 0, provider.NewRPCError(-32602, err.Error())
	}
	return int64(p.ChainID), nil
}

func decodeInto(value any, result any) error {
	if result == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, result)
}
