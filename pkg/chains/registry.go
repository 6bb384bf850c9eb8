package chains

import (
	"fmt"
	"sync"

	"github.com/sigweihq/walletconnector/pkg/types"
	"github.com/sigweihq/walletconnector/pkg/utils"
)

// Registry holds the configured chains, keyed by chain id.
// Insertion order is kept so the first chain can act as the default.
type Registry struct {
	chains map[int64]types.Chain
	order  []int64
	mu     sync.RWMutex
}

// NewRegistry creates a registry from a chain list.
// Later entries with the same id replace earlier ones.
func NewRegistry(chains ...types.Chain) *Registry {
	r := &Registry{
		chains: make(map[int64]types.Chain),
	}
	for _, chain := range chains {
		r.Register(chain)
	}
	return r
}

// Register adds a chain or replaces the chain with the same id (idempotent)
func (r *Registry) Register(chain types.Chain) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.chains[chain.ID]; !exists {
		r.order = append(r.order, chain.ID)
	}
	r.chains[chain.ID] = chain
}

// Find looks up a chain by id
func (r *Registry) Find(chainID int64) (types.Chain, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chain, exists := r.chains[chainID]
	return chain, exists
}

// Get looks up a chain by id and fails when it is not configured
func (r *Registry) Get(chainID int64) (types.Chain, error) {
	chain, ok := r.Find(chainID)
	if !ok {
		return types.Chain{}, fmt.Errorf("chain %d is not configured", chainID)
	}
	return chain, nil
}

// IsSupported checks if a chain id is configured
func (r *Registry) IsSupported(chainID int64) bool {
	_, ok := r.Find(chainID)
	return ok
}

// IsUnsupported is the negation of IsSupported, matching the connector's "unsupported" flag
func (r *Registry) IsUnsupported(chainID int64) bool {
	return !r.IsSupported(chainID)
}

// All returns the chains in configuration order
func (r *Registry) All() []types.Chain {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chains := make([]types.Chain, 0, len(r.order))
	for _, id := range r.order {
		chains = append(chains, r.chains[id])
	}
	return chains
}

// Len returns the number of configured chains
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Validate checks every chain has an id, a name and secure RPC URLs
func (r *Registry) Validate() error {
	for _, chain := range r.All() {
		if chain.ID <= 0 {
			return fmt.Errorf("chain %q: id must be positive", chain.Name)
		}
		if chain.Name == "" {
			return fmt.Errorf("chain %d: name is required", chain.ID)
		}
		urls := append(append([]string(nil), chain.RPCURLs.Default.HTTP...), chain.RPCURLs.Public.HTTP...)
		for _, url := range urls {
			if url == "" {
				continue
			}
			if err := utils.ValidateRPCURL(url); err != nil {
				return fmt.Errorf("chain %d: %w", chain.ID, err)
			}
		}
	}
	return nil
}
