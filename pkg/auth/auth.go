// Package auth defines the wallet-authentication service the connector is
// driven by, and an in-memory implementation of it.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/sigweihq/walletconnector/pkg/wallet"
)

// ErrNotReady is returned by Login before the service finished initializing
var ErrNotReady = errors.New("wallet-auth service is not ready")

// Service authenticates users and publishes their connected wallets
type Service interface {
	// Ready reports whether the service finished initializing
	Ready() bool

	// Authenticated reports whether a user is logged in
	Authenticated() bool

	Login(ctx context.Context) error
	Logout(ctx context.Context) error

	// Wallets returns the current connected wallets, most recently connected first
	Wallets() []wallet.Wallet

	// Subscribe returns a channel receiving the wallet list whenever it changes,
	// starting with the current one. Slow readers only see the latest list.
	Subscribe() (<-chan []wallet.Wallet, func())
}

// MemoryService is an in-process Service. Wallets are added and removed by
// the embedding application.
type MemoryService struct {
	logger *slog.Logger

	mu            sync.Mutex
	ready         bool
	authenticated bool
	wallets       []wallet.Wallet
	subscribers   map[chan []wallet.Wallet]struct{}
}

// Verify MemoryService implements Service
var _ Service = (*MemoryService)(nil)

// NewMemoryService creates a ready, logged-out service with no wallets
func NewMemoryService(logger *slog.Logger) *MemoryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryService{
		logger:      logger,
		ready:       true,
		subscribers: make(map[chan []wallet.Wallet]struct{}),
	}
}

func (s *MemoryService) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// SetReady changes the ready flag
func (s *MemoryService) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

func (s *MemoryService) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// Login marks the user authenticated
func (s *MemoryService) Login(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return ErrNotReady
	}
	s.authenticated = true
	s.logger.Info("user logged in")
	return nil
}

// Logout clears the session and the wallet list
func (s *MemoryService) Logout(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = false
	s.wallets = nil
	s.publishLocked()
	s.logger.Info("user logged out")
	return nil
}

func (s *MemoryService) Wallets() []wallet.Wallet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]wallet.Wallet(nil), s.wallets...)
}

// AddWallet puts w at the front of the list, replacing a record with the same identity
func (s *MemoryService) AddWallet(w wallet.Wallet) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wallets := []wallet.Wallet{w}
	for _, existing := range s.wallets {
		if !wallet.Same(existing, w) {
			wallets = append(wallets, existing)
		}
	}
	s.wallets = wallets
	s.publishLocked()
	s.logger.Debug("wallet connected", "address", w.Address(), "wallets", len(wallets))
}

// RemoveWallet drops the record with the same identity as w.
// Returns false when no such record exists.
func (s *MemoryService) RemoveWallet(w wallet.Wallet) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	wallets := make([]wallet.Wallet, 0, len(s.wallets))
	for _, existing := range s.wallets {
		if !wallet.Same(existing, w) {
			wallets = append(wallets, existing)
		}
	}
	if len(wallets) == len(s.wallets) {
		return false
	}
	s.wallets = wallets
	s.publishLocked()
	s.logger.Debug("wallet disconnected", "address", w.Address(), "wallets", len(wallets))
	return true
}

// SetWallets replaces the whole list
func (s *MemoryService) SetWallets(wallets ...wallet.Wallet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets = append([]wallet.Wallet(nil), wallets...)
	s.publishLocked()
}

func (s *MemoryService) Subscribe() (<-chan []wallet.Wallet, func()) {
	ch := make(chan []wallet.Wallet, 1)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- append([]wallet.Wallet(nil), s.wallets...)
	s.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, ch)
			close(ch)
			s.mu.Unlock()
		})
	}
	return ch, unsubscribe
}

// publishLocked replaces any undelivered list with the current one. Caller holds mu.
func (s *MemoryService) publishLocked() {
	for ch := range s.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- append([]wallet.Wallet(nil), s.wallets...):
		default:
		}
	}
}
