package chains

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// NormalizeChainID converts a chain id as reported by a provider to an integer.
// Accepted forms: "0x"-prefixed hex strings, decimal strings, Go integers,
// float64 (as decoded from JSON numbers), json.Number and *big.Int.
func NormalizeChainID(v any) (int64, error) {
	switch id := v.(type) {
	case string:
		return parseChainIDString(id)
	case json.Number:
		return parseChainIDString(id.String())
	case json.RawMessage:
		var decoded any
		if err := json.Unmarshal(id, &decoded); err != nil {
			return 0, fmt.Errorf("invalid chain id %q: %w", string(id), err)
		}
		return NormalizeChainID(decoded)
	case int:
		return int64(id), nil
	case int32:
		return int64(id), nil
	case int64:
		return id, nil
	case uint64:
		if id > math.MaxInt64 {
			return 0, fmt.Errorf("chain id %d overflows int64", id)
		}
		return int64(id), nil
	case float64:
		if id != math.Trunc(id) || id < 0 || id > math.MaxInt64 {
			return 0, fmt.Errorf("invalid chain id %v", id)
		}
		return int64(id), nil
	case *big.Int:
		if id == nil || !id.IsInt64() {
			return 0, fmt.Errorf("invalid chain id %v", id)
		}
		return id.Int64(), nil
	default:
		return 0, fmt.Errorf("unsupported chain id type %T", v)
	}
}

func parseChainIDString(s string) (int64, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	id, err := strconv.ParseInt(s, base, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chain id %q: %w", s, err)
	}
	return id, nil
}
