package connector

import (
	"errors"
	"fmt"
	"time"
)

// ErrSwitchSuperseded is wrapped by a SwitchChainError when a newer wallet
// activation cancelled an in-flight chain switch
var ErrSwitchSuperseded = errors.New("chain switch superseded by a new wallet activation")

// ErrActivationSuperseded is returned by SetActiveWallet when a newer activation
// started while it was waiting for the provider cycle
var ErrActivationSuperseded = errors.New("wallet activation superseded")

// ConnectorNotFoundError is returned when there is no active wallet or its provider cannot be obtained
type ConnectorNotFoundError struct {
	Err error
}

func (e *ConnectorNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connector not found: %v", e.Err)
	}
	return "connector not found"
}

func (e *ConnectorNotFoundError) Unwrap() error {
	return e.Err
}

// ChainNotConfiguredError is returned when switching to a chain absent from the configuration
type ChainNotConfiguredError struct {
	ChainID     int64
	ConnectorID string
}

func (e *ChainNotConfiguredError) Error() string {
	return fmt.Sprintf("chain %d not configured for connector %q", e.ChainID, e.ConnectorID)
}

// UserRejectedRequestError is returned when the wallet user rejected the request
type UserRejectedRequestError struct {
	Err error
}

func (e *UserRejectedRequestError) Error() string {
	return fmt.Sprintf("user rejected the request: %v", e.Err)
}

func (e *UserRejectedRequestError) Unwrap() error {
	return e.Err
}

// SwitchChainError is returned for any other chain switch failure
type SwitchChainError struct {
	ChainID int64
	Err     error
}

func (e *SwitchChainError) Error() string {
	return fmt.Sprintf("failed to switch to chain %d: %v", e.ChainID, e.Err)
}

func (e *SwitchChainError) Unwrap() error {
	return e.Err
}

// SwitchChainTimeoutError is returned when the wallet did not confirm a switch in time
type SwitchChainTimeoutError struct {
	ChainID int64
	Timeout time.Duration
}

func (e *SwitchChainTimeoutError) Error() string {
	return fmt.Sprintf("switch to chain %d not confirmed within %s", e.ChainID, e.Timeout)
}

// InvalidAddressError is returned when the active wallet reports a malformed address
type InvalidAddressError struct {
	Address string
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("invalid address: %q", e.Address)
}
