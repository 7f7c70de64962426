package entity

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ContractHandle is a contract bound to the connected signer.
type ContractHandle interface {
	Name() string
	Address() common.Address
	Transact(ctx context.Context, method string, args ...any) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// PreparedTransaction is a fully specified contract call that has not been submitted yet.
type PreparedTransaction struct {
	Target      ContractHandle
	Method      string
	Args        []any
	Description string
}

// ContractEventKind is the internal name of a yield contract event.
type ContractEventKind string

const (
	EventDeposit           ContractEventKind = "deposit"
	EventWithdrawal        ContractEventKind = "withdrawal"
	EventRewardClaimed     ContractEventKind = "reward"
	EventReferralProcessed ContractEventKind = "referral"
)

// ContractEvent is a decoded yield contract log.
type ContractEvent struct {
	Kind        ContractEventKind `json:"kind"`
	Name        string            `json:"name"`
	Payload     map[string]any    `json:"payload"`
	BlockNumber uint64            `json:"blockNumber"`
	TxHash      common.Hash       `json:"txHash"`
}

// Amount returns the first *big.Int field in the payload named by keys.
func (e ContractEvent) Amount(keys ...string) *big.Int {
	for _, key := range keys {
		if v, ok := e.Payload[key].(*big.Int); ok {
			return v
		}
	}
	return nil
}
