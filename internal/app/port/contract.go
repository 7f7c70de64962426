package port

import (
	"context"
	"math/big"

	"earn_usdc/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ContractGateway wraps the yield and token contracts bound to a signer.
type ContractGateway interface {
	Connect(ctx context.Context, signer Signer) error
	Disconnect()
	Connected() bool
	Account() (common.Address, error)

	GetTokenBalance(ctx context.Context) (*big.Int, error)
	GetDepositBalance(ctx context.Context) (*big.Int, error)
	GetPendingReward(ctx context.Context) (*big.Int, error)
	GetAnnualRate(ctx context.Context) (decimal.Decimal, error)
	GetReferralRates(ctx context.Context) (entity.ReferralRates, error)
	GetAllowance(ctx context.Context) (*big.Int, error)

	ApprovalPreparer
	PrepareDeposit(amount, referralCode *big.Int) (entity.PreparedTransaction, error)
	PrepareWithdraw(amount *big.Int) (entity.PreparedTransaction, error)
	PrepareClaimReward() (entity.PreparedTransaction, error)

	YieldEvents() (EventSource, error)
}

// ApprovalPreparer builds token approval transactions for the yield contract.
type ApprovalPreparer interface {
	PrepareApproval(amount *big.Int) (entity.PreparedTransaction, error)
}

// EventSource delivers decoded contract events by ABI event name.
type EventSource interface {
	WatchEvent(ctx context.Context, eventName string, kind entity.ContractEventKind, handler func(entity.ContractEvent)) (unsubscribe func(), err error)
}
