package port

import (
	"context"
	"math/big"

	"earn_usdc/internal/domain/entity"

	"github.com/ethereum/go-ethereum/core/types"
)

// Publisher is the sending half of the notification bus.
type Publisher interface {
	Publish(topic entity.Topic, payload any)
}

// StateService is the in-memory snapshot store refreshed from the contract gateway.
type StateService interface {
	Initialize(ctx context.Context) error
	RefreshBalances(ctx context.Context)
	RefreshRewards(ctx context.Context)
	RefreshRates(ctx context.Context)
	UpdateWalletState(connected bool, address string, kind entity.WalletKind)
	Snapshot() entity.AppState
	Cleanup()
}

// TransactionService executes prepared transactions.
type TransactionService interface {
	Execute(ctx context.Context, tx entity.PreparedTransaction) (*types.Receipt, error)
	ExecuteWithApproval(ctx context.Context, tx entity.PreparedTransaction, requiredAmount, currentAllowance *big.Int) (*types.Receipt, error)
	HasPending() bool
	Cleanup()
}
