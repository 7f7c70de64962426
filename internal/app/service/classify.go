package service

import (
	"errors"
	"strings"

	"earn_usdc/internal/config"
	"earn_usdc/internal/domain/entity"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

const revertPrefix = "execution reverted"

// ClassifyTransactionError maps err onto one of the four user-facing failure reasons, checked
// in priority order: user rejection, insufficient funds, contract reason, generic.
func ClassifyTransactionError(err error) *entity.TransactionError {
	var classified *entity.TransactionError
	if errors.As(err, &classified) {
		return classified
	}
	if isUserRejection(err) {
		return &entity.TransactionError{Reason: entity.ReasonUserRejected, Message: config.ErrTransactionRejected}
	}
	if isInsufficientFunds(err) {
		return &entity.TransactionError{Reason: entity.ReasonInsufficientFunds, Message: config.ErrInsufficientBalance}
	}
	if reason, ok := contractReason(err); ok {
		return &entity.TransactionError{Reason: entity.ReasonContract, Message: reason}
	}
	return &entity.TransactionError{Reason: entity.ReasonGeneric, Message: config.ErrTransactionFailed}
}

func isUserRejection(err error) bool {
	var coded interface{ ErrorCode() int }
	if errors.As(err, &coded) && coded.ErrorCode() == entity.ProviderCodeUserRejected {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "action_rejected") ||
		strings.Contains(msg, "user rejected") ||
		strings.Contains(msg, "user denied")
}

func isInsufficientFunds(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "insufficient funds") || strings.Contains(msg, "insufficient_funds")
}

// contractReason extracts the revert reason from ABI encoded revert data, falling back to the
// text after "execution reverted".
func contractReason(err error) (string, bool) {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if reason, ok := unpackRevertData(dataErr.ErrorData()); ok {
			return reason, true
		}
	}

	msg := err.Error()
	idx := strings.Index(strings.ToLower(msg), revertPrefix)
	if idx < 0 {
		return "", false
	}
	reason := strings.TrimSpace(strings.TrimPrefix(msg[idx+len(revertPrefix):], ":"))
	if reason == "" {
		return revertPrefix, true
	}
	return reason, true
}

func unpackRevertData(data any) (string, bool) {
	var raw []byte
	switch v := data.(type) {
	case string:
		decoded, err := hexutil.Decode(v)
		if err != nil {
			return "", false
		}
		raw = decoded
	case []byte:
		raw = v
	default:
		return "", false
	}
	reason, err := abi.UnpackRevert(raw)
	if err != nil || reason == "" {
		return "", false
	}
	return reason, true
}
