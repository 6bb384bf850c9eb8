package constants

import "time"

const (
	DefaultSwitchChainTimeout = 60 * time.Second // how long a chain switch waits for the wallet to confirm
	EndpointFetchTimeout      = 30 * time.Second // timeout for chainlist.org fetch
	EndpointHealthTimeout     = 3 * time.Second  // timeout for a single endpoint health check
	TLSHandshakeTimeout       = 10 * time.Second // timeout for TLS handshake
	ResponseHeaderTimeout     = 20 * time.Second // timeout for response header
	ExpectContinueTimeout     = 1 * time.Second  // timeout for expect continue
	DefaultPollInterval       = 4 * time.Second  // default RPC provider polling interval
	ReauthorizeTimeout        = 10 * time.Second // timeout for the re-authorization check after a session drop
	MaxResponseBodySize       = 10 * 1024 * 1024 // maximum response body size in bytes (10MB)
)

// Connector identity
const (
	ConnectorID   = "privy"
	ConnectorName = "Privy"
)

// JSON-RPC methods
const (
	MethodChainID             = "eth_chainId"
	MethodAccounts            = "eth_accounts"
	MethodSendTransaction     = "eth_sendTransaction"
	MethodPersonalSign        = "personal_sign"
	MethodSwitchEthereumChain = "wallet_switchEthereumChain"
	MethodAddEthereumChain    = "wallet_addEthereumChain"
)

// Provider (EIP-1193) events
const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
	EventDisconnect      = "disconnect"
)

// Connector events
const (
	EventChange  = "change"
	EventConnect = "connect"
	EventMessage = "message"
)

// Provider error codes
const (
	CodeUserRejectedRequest = 4001 // EIP-1193 user rejected the request
	CodeUnsupportedMethod   = 4200 // EIP-1193 method not supported
	CodeUnrecognizedChain   = 4902 // chain has not been added to the wallet
	CodeSessionInvalid      = 1013 // provider session dropped, may recover
)

// Chain IDs
const (
	ChainIDEthereum    int64 = 1
	ChainIDSepolia     int64 = 11155111
	ChainIDPolygon     int64 = 137
	ChainIDPolygonAmoy int64 = 80002
	ChainIDBase        int64 = 8453
	ChainIDBaseSepolia int64 = 84532
	ChainIDAvalanche   int64 = 43114
)

var ChainIDToName = map[int64]string{
	ChainIDEthereum:    "Ethereum",
	ChainIDSepolia:     "Sepolia",
	ChainIDPolygon:     "Polygon",
	ChainIDPolygonAmoy: "Polygon Amoy",
	ChainIDBase:        "Base",
	ChainIDBaseSepolia: "Base Sepolia",
	ChainIDAvalanche:   "Avalanche",
}

var OfficialRPCEndpoints = map[int64][]string{
	ChainIDEthereum:    {"https://cloudflare-eth.com"},
	ChainIDSepolia:     {"https://rpc.sepolia.org"},
	ChainIDPolygon:     {"https://polygon-rpc.com"},
	ChainIDPolygonAmoy: {"https://rpc-amoy.polygon.technology"},
	ChainIDBase:        {"https://mainnet.base.org"},
	ChainIDBaseSepolia: {"https://sepolia.base.org"},
	ChainIDAvalanche:   {"https://api.avax.network/ext/bc/C/rpc"},
}
