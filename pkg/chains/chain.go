package chains

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sigweihq/walletconnector/pkg/constants"
	"github.com/sigweihq/walletconnector/pkg/types"
)

// HexID encodes a chain id the way wallets expect it on the wire ("0x89")
func HexID(chainID int64) string {
	return hexutil.EncodeUint64(uint64(chainID))
}

// Placeholder builds a minimal chain record for an id missing from the configuration.
// Wallets may know chains the application does not.
func Placeholder(chainID int64) types.Chain {
	id := HexID(chainID)
	return types.Chain{
		ID:      chainID,
		Name:    fmt.Sprintf("Chain %s", id),
		Network: id,
		NativeCurrency: types.NativeCurrency{
			Name:     "Ether",
			Symbol:   "ETH",
			Decimals: 18,
		},
		RPCURLs: types.RPCURLs{
			Default: types.RPCEndpoints{HTTP: []string{""}},
			Public:  types.RPCEndpoints{HTTP: []string{""}},
		},
	}
}

// WellKnown returns a chain descriptor for the chains listed in constants,
// using the official RPC endpoints
func WellKnown(chainID int64) (types.Chain, bool) {
	name, ok := constants.ChainIDToName[chainID]
	if !ok {
		return types.Chain{}, false
	}

	currency := types.NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18}
	switch chainID {
	case constants.ChainIDPolygon, constants.ChainIDPolygonAmoy:
		currency = types.NativeCurrency{Name: "POL", Symbol: "POL", Decimals: 18}
	case constants.ChainIDAvalanche:
		currency = types.NativeCurrency{Name: "Avalanche", Symbol: "AVAX", Decimals: 18}
	}

	endpoints := append([]string(nil), constants.OfficialRPCEndpoints[chainID]...)
	return types.Chain{
		ID:             chainID,
		Name:           name,
		Network:        HexID(chainID),
		NativeCurrency: currency,
		RPCURLs: types.RPCURLs{
			Default: types.RPCEndpoints{HTTP: endpoints},
			Public:  types.RPCEndpoints{HTTP: endpoints},
		},
		Testnet: chainID == constants.ChainIDSepolia ||
			chainID == constants.ChainIDPolygonAmoy ||
			chainID == constants.ChainIDBaseSepolia,
	}, true
}
