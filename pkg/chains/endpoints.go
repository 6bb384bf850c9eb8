package chains

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sigweihq/walletconnector/pkg/constants"
	"github.com/sigweihq/walletconnector/pkg/types"
	"github.com/sigweihq/walletconnector/pkg/utils"
)

// DefaultChainListURL is the public chainlist.org RPC index
const DefaultChainListURL = "https://chainlist.org/rpcs.json"

// ChainListResponse represents a chain entry from chainlist.org/rpcs.json
type ChainListResponse struct {
	ChainID int `json:"chainId"`
	RPC     []struct {
		URL string `json:"url"`
	} `json:"rpc"`
}

// HealthCheck reports whether an RPC endpoint answers
type HealthCheck func(ctx context.Context, endpoint string) bool

// ChainListEndpointProvider fetches RPC endpoints from chainlist.org
// and performs health checks to prioritize reliable endpoints.
// It is used to fill chains whose configuration carries no public RPC URL,
// since wallet_addEthereumChain needs one.
type ChainListEndpointProvider struct {
	endpoints   map[int64][]string // chainID -> []rpc_urls
	listURL     string
	httpClient  *http.Client
	healthCheck HealthCheck
	logger      *slog.Logger
	mu          sync.RWMutex
}

// NewChainListEndpointProvider creates a provider that fetches from chainlist.org
func NewChainListEndpointProvider(logger *slog.Logger) *ChainListEndpointProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChainListEndpointProvider{
		endpoints:   make(map[int64][]string),
		listURL:     DefaultChainListURL,
		httpClient:  utils.CreateHTTPClientWithTimeouts(constants.EndpointFetchTimeout),
		healthCheck: isEndpointHealthy,
		logger:      logger,
	}
}

// WithListURL overrides the chainlist index location
func (p *ChainListEndpointProvider) WithListURL(url string) *ChainListEndpointProvider {
	p.listURL = url
	return p
}

// WithHealthCheck overrides the endpoint health check
func (p *ChainListEndpointProvider) WithHealthCheck(check HealthCheck) *ChainListEndpointProvider {
	p.healthCheck = check
	return p
}

// GetEndpoints returns the known endpoints of a chain, healthy ones first
func (p *ChainListEndpointProvider) GetEndpoints(chainID int64) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	endpoints := p.endpoints[chainID]
	if len(endpoints) == 0 {
		// Fallback to official endpoints if chainlist fetch hasn't completed
		return constants.OfficialRPCEndpoints[chainID]
	}
	return endpoints
}

// RefreshEndpoints fetches fresh endpoints from chainlist.org for the given chains
// and performs health checks
func (p *ChainListEndpointProvider) RefreshEndpoints(ctx context.Context, chainIDs ...int64) error {
	chainListData, err := p.fetchAllChains(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	// Clear existing endpoints and start fresh
	p.endpoints = make(map[int64][]string)
	p.setOfficialEndpoints(chainIDs)

	if err != nil {
		p.logger.Warn("failed to fetch from chainlist.org, using official endpoints only", "error", err)
		return err
	}

	p.addChainlistEndpoints(chainListData, chainIDs)
	p.healthCheckAndPrioritize(ctx)

	return nil
}

// Enrich fills every chain of the registry that has no public HTTP endpoint
// with the best known endpoint. Returns the ids of the chains that changed.
func (p *ChainListEndpointProvider) Enrich(registry *Registry) []int64 {
	var updated []int64
	for _, chain := range registry.All() {
		if chain.PublicHTTPURL() != "" {
			continue
		}
		endpoints := p.GetEndpoints(chain.ID)
		if len(endpoints) == 0 {
			p.logger.Warn("no endpoints available for chain", "chainID", chain.ID)
			continue
		}

		chain.RPCURLs.Public = types.RPCEndpoints{HTTP: append([]string(nil), endpoints...)}
		if len(chain.RPCURLs.Default.HTTP) == 0 {
			chain.RPCURLs.Default = chain.RPCURLs.Public
		}
		registry.Register(chain)
		updated = append(updated, chain.ID)
	}
	return updated
}

// setOfficialEndpoints sets the official reliable endpoints
func (p *ChainListEndpointProvider) setOfficialEndpoints(chainIDs []int64) {
	for _, chainID := range chainIDs {
		if endpoints, ok := constants.OfficialRPCEndpoints[chainID]; ok {
			p.endpoints[chainID] = append([]string(nil), endpoints...)
		}
	}
}

// fetchAllChains fetches chain data from chainlist.org
func (p *ChainListEndpointProvider) fetchAllChains(ctx context.Context) ([]ChainListResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.listURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create chainlist request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chainlist data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chainlist returned status %d", resp.StatusCode)
	}

	var chains []ChainListResponse
	body := io.LimitReader(resp.Body, constants.MaxResponseBodySize)
	if err := json.NewDecoder(body).Decode(&chains); err != nil {
		return nil, fmt.Errorf("failed to decode chainlist data: %w", err)
	}

	return chains, nil
}

// addChainlistEndpoints adds endpoints from chainlist.org for the wanted chains
func (p *ChainListEndpointProvider) addChainlistEndpoints(chainListData []ChainListResponse, chainIDs []int64) {
	wanted := make(map[int64]bool, len(chainIDs))
	for _, id := range chainIDs {
		wanted[id] = true
	}

	for _, chain := range chainListData {
		chainID := int64(chain.ChainID)
		if !wanted[chainID] {
			continue
		}

		var httpsRPCs []string
		for _, rpc := range chain.RPC {
			// Only include HTTPS URLs and exclude templated URLs
			if strings.HasPrefix(rpc.URL, "https://") && !strings.Contains(rpc.URL, "${") {
				httpsRPCs = append(httpsRPCs, rpc.URL)
			}
		}
		if len(httpsRPCs) > 0 {
			p.endpoints[chainID] = appendUnique(p.endpoints[chainID], httpsRPCs...)
		}
	}
}

// healthCheckAndPrioritize checks endpoint health and prioritizes working ones
func (p *ChainListEndpointProvider) healthCheckAndPrioritize(ctx context.Context) {
	for chainID, endpoints := range p.endpoints {
		if len(endpoints) == 0 {
			continue
		}

		var healthyEndpoints, unhealthyEndpoints []string
		for _, endpoint := range endpoints {
			if p.healthCheck(ctx, endpoint) {
				healthyEndpoints = append(healthyEndpoints, endpoint)
			} else {
				unhealthyEndpoints = append(unhealthyEndpoints, endpoint)
			}
		}

		// Prioritize healthy endpoints first, then unhealthy as backup
		p.endpoints[chainID] = append(healthyEndpoints, unhealthyEndpoints...)

		p.logger.Debug("health check complete",
			"chainID", chainID,
			"healthy", len(healthyEndpoints),
			"unhealthy", len(unhealthyEndpoints))
	}
}

// isEndpointHealthy performs a simple health check on an RPC endpoint
func isEndpointHealthy(ctx context.Context, endpoint string) bool {
	ctx, cancel := context.WithTimeout(ctx, constants.EndpointHealthTimeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return false
	}
	defer client.Close()

	_, err = client.BlockNumber(ctx)
	return err == nil
}

func appendUnique(list []string, items ...string) []string {
	seen := make(map[string]bool, len(list))
	for _, s := range list {
		seen[s] = true
	}
	for _, s := range items {
		if !seen[s] {
			seen[s] = true
			list = append(list, s)
		}
	}
	return list
}
