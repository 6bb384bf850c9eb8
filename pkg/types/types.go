package types

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
)

// NativeCurrency describes the gas token of a chain
type NativeCurrency struct {
	Name     string `json:"name" yaml:"name"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Decimals int    `json:"decimals" yaml:"decimals"`
}

// RPCEndpoints is a set of transport URLs for one RPC provider
type RPCEndpoints struct {
	HTTP      []string `json:"http" yaml:"http"`
	WebSocket []string `json:"webSocket,omitempty" yaml:"webSocket,omitempty"`
}

// RPCURLs groups the default and public endpoints of a chain
type RPCURLs struct {
	Default RPCEndpoints `json:"default" yaml:"default"`
	Public  RPCEndpoints `json:"public" yaml:"public"`
}

// Chain is a configured blockchain network descriptor
type Chain struct {
	ID                int64          `json:"id" yaml:"id"`
	Name              string         `json:"name" yaml:"name"`
	Network           string         `json:"network" yaml:"network"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency" yaml:"nativeCurrency"`
	RPCURLs           RPCURLs        `json:"rpcUrls" yaml:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty" yaml:"blockExplorerUrls,omitempty"`
	Testnet           bool           `json:"testnet,omitempty" yaml:"testnet,omitempty"`
}

// PublicHTTPURL returns the first public HTTP endpoint, or "" when none is configured
func (c Chain) PublicHTTPURL() string {
	if len(c.RPCURLs.Public.HTTP) > 0 {
		return c.RPCURLs.Public.HTTP[0]
	}
	return ""
}

// ChainStatus is the chain a connector currently sees
// Unsupported is true when the id is not in the configured chain list
type ChainStatus struct {
	ID          int64 `json:"id"`
	Unsupported bool  `json:"unsupported"`
}

// ConnectorData is returned by a successful connect
type ConnectorData struct {
	Account common.Address `json:"account"`
	Chain   ChainStatus    `json:"chain"`
}

// ChangeEvent is the payload of a connector "change" event
// Exactly one of Account or Chain is set
type ChangeEvent struct {
	Account *common.Address `json:"account,omitempty"`
	Chain   *ChainStatus    `json:"chain,omitempty"`
}

// MarshalJSON writes the account in its EIP-55 checksummed form
func (d ConnectorData) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Account string      `json:"account"`
		Chain   ChainStatus `json:"chain"`
	}{d.Account.Hex(), d.Chain})
}

// MarshalJSON writes the account in its EIP-55 checksummed form
func (e ChangeEvent) MarshalJSON() ([]byte, error) {
	out := struct {
		Account string       `json:"account,omitempty"`
		Chain   *ChainStatus `json:"chain,omitempty"`
	}{Chain: e.Chain}
	if e.Account != nil {
		out.Account = e.Account.Hex()
	}
	return json.Marshal(out)
}

// Message is the payload of a connector "message" event
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// MessageConnecting is emitted at the start of a connect
const MessageConnecting = "connecting"
