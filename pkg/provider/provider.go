// Package provider defines the EIP-1193 style provider contract a wallet
// exposes, a proxy that caches the provider of the currently bound wallet,
// and a provider backed by a go-ethereum JSON-RPC client.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sigweihq/walletconnector/pkg/events"
)

// Provider is a request/subscribe capability obtained from a wallet.
//
// Request has the shape of rpc.Client.CallContext: the JSON result is decoded
// into result, which may be nil when the caller does not need it.
// Events: "accountsChanged" ([]string), "chainChanged" (string or number),
// "disconnect" (error, may be nil).
type Provider interface {
	Request(ctx context.Context, result any, method string, params ...any) error
	On(event string, listener events.Listener) events.Handle
	RemoveListener(h events.Handle)
}

// RPCError is an EIP-1193 provider error
type RPCError struct {
	Code    int
	Message string
	Data    any
}

// Verify RPCError is classified like errors coming from rpc.Client
var _ rpc.Error = (*RPCError)(nil)
var _ rpc.DataError = (*RPCError)(nil)

func NewRPCError(code int, message string) *RPCError {
	return &RPCError{Code: code, Message: message}
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// ErrorCode implements rpc.Error
func (e *RPCError) ErrorCode() int {
	return e.Code
}

// ErrorData implements rpc.DataError
func (e *RPCError) ErrorData() interface{} {
	return e.Data
}

// ErrorCode extracts the JSON-RPC / EIP-1193 code from err.
// Works for RPCError and for errors returned by a go-ethereum rpc.Client.
func ErrorCode(err error) (int, bool) {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode(), true
	}
	return 0, false
}
