package entity

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned by gateway and state operations used before a successful connect.
var ErrNotConnected = errors.New("contract gateway is not connected")

// Wallet provider error codes (EIP-1193).
const (
	ProviderCodeUserRejected = 4001
	ProviderCodeUnknownChain = 4902
)

// ProviderError is an error reported by the wallet provider with its numeric code.
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("wallet provider error %d: %s", e.Code, e.Message)
}

// ErrorCode mirrors go-ethereum's rpc.Error so classifiers see one code shape.
func (e *ProviderError) ErrorCode() int { return e.Code }

// EnvironmentError means no wallet provider is available to the client.
type EnvironmentError struct {
	Reason string
}

func (e *EnvironmentError) Error() string {
	return "wallet environment unavailable: " + e.Reason
}

// NetworkMismatchError means the wallet stayed on the wrong chain after switch/add attempts.
type NetworkMismatchError struct {
	Expected string
	Actual   string
	Err      error
}

func (e *NetworkMismatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("network mismatch: expected %s, got %s: %v", e.Expected, e.Actual, e.Err)
	}
	return fmt.Sprintf("network mismatch: expected %s, got %s", e.Expected, e.Actual)
}

func (e *NetworkMismatchError) Unwrap() error { return e.Err }

// AbiLoadError means the yield contract interface description could not be fetched or parsed.
type AbiLoadError struct {
	Source string
	Err    error
}

func (e *AbiLoadError) Error() string {
	return fmt.Sprintf("failed to load contract ABI from %s: %v", e.Source, e.Err)
}

func (e *AbiLoadError) Unwrap() error { return e.Err }

// RpcError wraps a transport or read failure of a contract query.
type RpcError struct {
	Method string
	Err    error
}

func (e *RpcError) Error() string {
	return fmt.Sprintf("rpc call %s failed: %v", e.Method, e.Err)
}

func (e *RpcError) Unwrap() error { return e.Err }

// DuplicateTransactionError is returned when an identical transaction is already in flight.
type DuplicateTransactionError struct {
	Key string
}

func (e *DuplicateTransactionError) Error() string {
	return "transaction already in progress: " + e.Key
}

// FailureReason is the classified cause of a failed transaction.
type FailureReason string

const (
	ReasonUserRejected      FailureReason = "user-rejected"
	ReasonInsufficientFunds FailureReason = "insufficient-funds"
	ReasonContract          FailureReason = "contract-reason"
	ReasonGeneric           FailureReason = "generic-failure"
)

// TransactionError is the only error shape a failed transaction surfaces to callers.
type TransactionError struct {
	Reason  FailureReason
	Message string
}

func (e *TransactionError) Error() string { return e.Message }
