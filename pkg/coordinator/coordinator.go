// Package coordinator keeps the connector's active wallet in line with the
// wallet list published by the wallet-auth service.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sigweihq/walletconnector/pkg/wallet"
)

// Target is the connector whose active wallet is driven
type Target interface {
	ActiveWallet() wallet.Wallet
	SetActiveWallet(ctx context.Context, w wallet.Wallet) error
}

// Coordinator activates the first wallet of the list when the connector has
// none, and again when the list size changed and the active wallet is no
// longer connected.
type Coordinator struct {
	target Target
	logger *slog.Logger

	mu        sync.Mutex
	seen      bool
	lastCount int
}

// New creates a coordinator driving target
func New(target Target, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		target: target,
		logger: logger,
	}
}

// Update reacts to a new wallet list. Calls are serialized.
func (c *Coordinator) Update(ctx context.Context, wallets []wallet.Wallet) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	countChanged := !c.seen || len(wallets) != c.lastCount
	c.seen = true
	c.lastCount = len(wallets)

	if len(wallets) == 0 {
		return nil
	}

	active := c.target.ActiveWallet()
	if active == nil {
		return c.activate(ctx, wallets[0], "no active wallet")
	}
	if !countChanged {
		return nil
	}

	connected, err := active.IsConnected(ctx)
	if err != nil {
		c.logger.Warn("failed to check active wallet connectivity",
			"address", active.Address(),
			"error", err)
	}
	if err == nil && connected {
		return nil
	}
	return c.activate(ctx, wallets[0], "active wallet disconnected")
}

func (c *Coordinator) activate(ctx context.Context, w wallet.Wallet, reason string) error {
	c.logger.Debug("activating wallet", "address", w.Address(), "reason", reason)
	if err := c.target.SetActiveWallet(ctx, w); err != nil {
		c.logger.Error("failed to activate wallet", "address", w.Address(), "error", err)
		return fmt.Errorf("failed to activate wallet %s: %w", w.Address(), err)
	}
	return nil
}

// Run feeds every list received from updates to Update until ctx is done or
// updates is closed. Activation failures are logged and do not stop the loop.
func (c *Coordinator) Run(ctx context.Context, updates <-chan []wallet.Wallet) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case wallets, ok := <-updates:
			if !ok {
				return nil
			}
			_ = c.Update(ctx, wallets)
		}
	}
}
