package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sigweihq/walletconnector/pkg/constants"
	"github.com/sigweihq/walletconnector/pkg/hubclient"
	"github.com/sigweihq/walletconnector/pkg/types"
	"github.com/sigweihq/walletconnector/pkg/wallet"
)

// HubService is a Service backed by the wallet-auth hub. The user signs in by
// signing the hub's message with the signer wallet, which then becomes the
// first connected wallet.
type HubService struct {
	*MemoryService

	hub    *hubclient.AuthClient
	signer wallet.Wallet
	logger *slog.Logger

	mu   sync.Mutex
	user *types.User
}

// Verify HubService implements Service
var _ Service = (*HubService)(nil)

// NewHubService creates a logged-out service signing in with signer
func NewHubService(hub *hubclient.HubClient, signer wallet.Wallet, logger *slog.Logger) *HubService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HubService{
		MemoryService: NewMemoryService(logger),
		hub:           hub.Auth,
		signer:        signer,
		logger:        logger.With("hub", hub.URL),
	}
}

// Login runs the sign-in flow: fetch the message, sign it with personal_sign,
// exchange the signature for tokens.
func (s *HubService) Login(ctx context.Context) error {
	if !s.Ready() {
		return ErrNotReady
	}

	address := s.signer.Address()
	msg, err := s.hub.GetAuthMessage(ctx, address)
	if err != nil {
		return err
	}

	p, err := s.signer.GetProvider(ctx)
	if err != nil {
		return fmt.Errorf("failed to get signer provider: %w", err)
	}
	var signature string
	if err := p.Request(ctx, &signature, constants.MethodPersonalSign, hexutil.Encode([]byte(msg.Message)), address); err != nil {
		return fmt.Errorf("failed to sign auth message: %w", err)
	}

	resp, err := s.hub.Login(ctx, msg.Message, signature)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.user = resp.User
	s.mu.Unlock()

	if err := s.MemoryService.Login(ctx); err != nil {
		return err
	}
	s.AddWallet(s.signer)

	if resp.User != nil {
		s.logger.Info("hub session established", "user", resp.User.ID, "address", address)
	}
	return nil
}

// Logout ends the hub session. Local state is cleared even when the hub call
// fails; the hub error is returned.
func (s *HubService) Logout(ctx context.Context) error {
	err := s.hub.Logout(ctx)
	if errors.Is(err, hubclient.ErrNotAuthenticated) {
		err = nil
	}
	s.hub.ClearTokens()

	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()

	return errors.Join(err, s.MemoryService.Logout(ctx))
}

// User returns the signed-in user, nil when logged out
func (s *HubService) User() *types.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Refresh re-reads the user from the hub, refreshing the access token when needed
func (s *HubService) Refresh(ctx context.Context) (*types.User, error) {
	user, err := s.hub.GetMe(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	return user, nil
}
