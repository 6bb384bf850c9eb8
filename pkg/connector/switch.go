package connector

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/sigweihq/walletconnector/pkg/chains"
	"github.com/sigweihq/walletconnector/pkg/constants"
	"github.com/sigweihq/walletconnector/pkg/metrics"
	"github.com/sigweihq/walletconnector/pkg/provider"
	"github.com/sigweihq/walletconnector/pkg/types"
	"golang.org/x/sync/errgroup"
)

var userRejectedPattern = regexp.MustCompile(`(?i)user rejected`)

var errSwitchTimedOut = errors.New("chain switch timed out")

type switchChainParameter struct {
	ChainID string `json:"chainId"`
}

type addEthereumChainParameter struct {
	ChainID           string               `json:"chainId"`
	ChainName         string               `json:"chainName"`
	NativeCurrency    types.NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string             `json:"rpcUrls"`
	BlockExplorerURLs []string             `json:"blockExplorerUrls,omitempty"`
}

// SwitchChain asks the wallet to move to chainID.
//
// It returns once the wallet acknowledged the request and a matching chain
// change was observed. Wallets that do not know the chain are asked to add it.
// Chains missing from the configuration fail without any provider request
// unless AllowUnconfiguredChains is set.
func (a *Adapter) SwitchChain(ctx context.Context, chainID int64) (types.Chain, error) {
	activation := a.activationContext()

	chain, configured, err := a.resolveTarget(chainID)
	if err != nil {
		return types.Chain{}, err
	}
	if err := a.ensureSubscribed(ctx); err != nil {
		return types.Chain{}, err
	}
	return a.switchChain(ctx, activation, chain, configured)
}

// resolveTarget looks up the configured chain, or a placeholder when unconfigured chains are allowed
func (a *Adapter) resolveTarget(chainID int64) (types.Chain, bool, error) {
	if chain, ok := a.chains.Find(chainID); ok {
		return chain, true, nil
	}
	if a.allowUnconfigured {
		return chains.Placeholder(chainID), false, nil
	}
	a.recordSwitch(metrics.SwitchNotConfigured)
	return types.Chain{}, false, &ChainNotConfiguredError{ChainID: chainID, ConnectorID: a.ID()}
}

// ensureSubscribed runs a provider cycle when no provider is subscribed,
// so that chain changes reach the switch waiter
func (a *Adapter) ensureSubscribed(ctx context.Context) error {
	if a.subscribedProvider() != nil {
		return nil
	}

	a.cycleMu.Lock()
	defer a.cycleMu.Unlock()
	if a.subscribedProvider() != nil {
		return nil
	}
	return a.cycleProviderLocked(ctx)
}

func (a *Adapter) switchChain(ctx context.Context, activation context.Context, chain types.Chain, configured bool) (types.Chain, error) {
	if activation.Err() != nil {
		a.recordSwitch(metrics.SwitchSuperseded)
		return types.Chain{}, &SwitchChainError{ChainID: chain.ID, Err: ErrSwitchSuperseded}
	}

	p, err := a.GetProvider(ctx)
	if err != nil {
		return types.Chain{}, err
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop := context.AfterFunc(activation, func() {
		cancel(context.Cause(activation))
	})
	defer stop()

	if a.switchTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeoutCause(ctx, a.switchTimeout, errSwitchTimedOut)
		defer cancelTimeout()
	}

	a.logger.Debug("switching chain", "chainID", chain.ID)
	start := time.Now()

	if err := a.requestSwitch(ctx, p, chain.ID); err != nil {
		return a.classifySwitchError(ctx, p, chain, configured, err)
	}

	metrics.ChainSwitchLatency.WithLabelValues(constants.ConnectorID).Observe(time.Since(start).Seconds())
	a.recordSwitch(metrics.SwitchConfirmed)
	a.logger.Info("chain switched", "chainID", chain.ID, "name", chain.Name)
	return chain, nil
}

// requestSwitch issues wallet_switchEthereumChain and waits for the matching change event.
// Both must complete.
func (a *Adapter) requestSwitch(ctx context.Context, p provider.Provider, chainID int64) error {
	confirmed := make(chan struct{})
	var once sync.Once

	// Subscribed before the request: wallets may report the change before answering.
	h := a.emitter.On(constants.EventChange, func(payload any) {
		ev, ok := payload.(types.ChangeEvent)
		if ok && ev.Chain != nil && ev.Chain.ID == chainID {
			once.Do(func() { close(confirmed) })
		}
	})
	defer a.emitter.Off(h)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.Request(gctx, nil, constants.MethodSwitchEthereumChain,
			switchChainParameter{ChainID: chains.HexID(chainID)})
	})
	g.Go(func() error {
		select {
		case <-confirmed:
			return nil
		case <-gctx.Done():
			return context.Cause(gctx)
		}
	})
	return g.Wait()
}

func (a *Adapter) classifySwitchError(ctx context.Context, p provider.Provider, chain types.Chain, configured bool, err error) (types.Chain, error) {
	if ctx.Err() != nil {
		cause := context.Cause(ctx)
		switch {
		case errors.Is(cause, errSwitchTimedOut):
			a.recordSwitch(metrics.SwitchTimeout)
			return types.Chain{}, &SwitchChainTimeoutError{ChainID: chain.ID, Timeout: a.switchTimeout}
		case errors.Is(cause, ErrSwitchSuperseded):
			a.recordSwitch(metrics.SwitchSuperseded)
			return types.Chain{}, &SwitchChainError{ChainID: chain.ID, Err: ErrSwitchSuperseded}
		default:
			a.recordSwitch(metrics.SwitchFailed)
			return types.Chain{}, &SwitchChainError{ChainID: chain.ID, Err: cause}
		}
	}

	if !configured {
		a.recordSwitch(metrics.SwitchNotConfigured)
		return types.Chain{}, &ChainNotConfiguredError{ChainID: chain.ID, ConnectorID: a.ID()}
	}

	if code, ok := provider.ErrorCode(err); ok && code == constants.CodeUnrecognizedChain {
		return a.addChain(ctx, p, chain)
	}

	if isUserRejection(err) {
		a.recordSwitch(metrics.SwitchRejected)
		return types.Chain{}, &UserRejectedRequestError{Err: err}
	}

	a.recordSwitch(metrics.SwitchFailed)
	return types.Chain{}, &SwitchChainError{ChainID: chain.ID, Err: err}
}

// addChain asks the wallet to add a chain it did not recognize
func (a *Adapter) addChain(ctx context.Context, p provider.Provider, chain types.Chain) (types.Chain, error) {
	params := addEthereumChainParameter{
		ChainID:           chains.HexID(chain.ID),
		ChainName:         chain.Name,
		NativeCurrency:    chain.NativeCurrency,
		RPCURLs:           []string{chain.PublicHTTPURL()},
		BlockExplorerURLs: chain.BlockExplorerURLs,
	}

	a.logger.Info("wallet does not know chain, requesting add", "chainID", chain.ID, "name", chain.Name)
	if err := p.Request(ctx, nil, constants.MethodAddEthereumChain, params); err != nil {
		a.recordSwitch(metrics.SwitchRejected)
		return types.Chain{}, &UserRejectedRequestError{Err: err}
	}

	a.recordSwitch(metrics.SwitchAdded)
	return chain, nil
}

func (a *Adapter) recordSwitch(result string) {
	metrics.ChainSwitches.WithLabelValues(constants.ConnectorID, result).Inc()
}

// isUserRejection detects wallet-side rejections by code or message
func isUserRejection(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := provider.ErrorCode(err); ok && code == constants.CodeUserRejectedRequest {
		return true
	}
	return userRejectedPattern.MatchString(err.Error())
}
