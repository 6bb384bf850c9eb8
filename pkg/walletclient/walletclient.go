// Package walletclient provides a client bound to one account, one provider
// and optionally one chain. Signing happens inside the wallet; the client only
// forwards requests to the provider.
package walletclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sigweihq/walletconnector/pkg/chains"
	"github.com/sigweihq/walletconnector/pkg/constants"
	"github.com/sigweihq/walletconnector/pkg/provider"
	"github.com/sigweihq/walletconnector/pkg/types"
)

// TransactionArgs are the eth_sendTransaction parameters
type TransactionArgs struct {
	From                 *common.Address `json:"from,omitempty"`
	To                   *common.Address `json:"to,omitempty"`
	Gas                  *hexutil.Uint64 `json:"gas,omitempty"`
	GasPrice             *hexutil.Big    `json:"gasPrice,omitempty"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas,omitempty"`
	Value                *hexutil.Big    `json:"value,omitempty"`
	Nonce                *hexutil.Uint64 `json:"nonce,omitempty"`
	Data                 hexutil.Bytes   `json:"data,omitempty"`
}

// ChainMismatchError is returned when the wallet is on another chain than the client is bound to
type ChainMismatchError struct {
	Expected int64
	Actual   int64
}

func (e *ChainMismatchError) Error() string {
	return fmt.Sprintf("wallet is on chain %d, client is bound to chain %d", e.Actual, e.Expected)
}

// Client issues wallet requests for a single account
type Client struct {
	account  common.Address
	chain    *types.Chain
	provider provider.Provider
}

// New creates a wallet client. chain may be nil for a client not bound to a chain.
func New(account common.Address, p provider.Provider, chain *types.Chain) *Client {
	return &Client{
		account:  account,
		chain:    chain,
		provider: p,
	}
}

// Account returns the account the client signs for
func (c *Client) Account() common.Address {
	return c.account
}

// Chain returns the bound chain, or nil
func (c *Client) Chain() *types.Chain {
	return c.chain
}

// Provider returns the transport of the client
func (c *Client) Provider() provider.Provider {
	return c.provider
}

// Request forwards a raw request to the provider
func (c *Client) Request(ctx context.Context, result any, method string, params ...any) error {
	return c.provider.Request(ctx, result, method, params...)
}

// ChainID returns the chain the wallet is currently on
func (c *Client) ChainID(ctx context.Context) (int64, error) {
	var raw json.RawMessage
	if err := c.provider.Request(ctx, &raw, constants.MethodChainID); err != nil {
		return 0, err
	}
	return chains.NormalizeChainID(raw)
}

// SendTransaction asks the wallet to sign and broadcast a transaction.
// From defaults to the client account. When the client is bound to a chain
// the wallet must be on that chain.
func (c *Client) SendTransaction(ctx context.Context, args TransactionArgs) (common.Hash, error) {
	if args.From == nil {
		from := c.account
		args.From = &from
	}

	if c.chain != nil {
		current, err := c.ChainID(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("failed to read wallet chain: %w", err)
		}
		if current != c.chain.ID {
			return common.Hash{}, &ChainMismatchError{Expected: c.chain.ID, Actual: current}
		}
	}

	var hash common.Hash
	if err := c.provider.Request(ctx, &hash, constants.MethodSendTransaction, args); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// SignMessage asks the wallet for a personal_sign signature over message
func (c *Client) SignMessage(ctx context.Context, message []byte) (hexutil.Bytes, error) {
	var signature hexutil.Bytes
	if err := c.provider.Request(ctx, &signature, constants.MethodPersonalSign, hexutil.Bytes(message), c.account); err != nil {
		return nil, err
	}
	return signature, nil
}
