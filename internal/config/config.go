// Package config holds the static constants of the client: contract addresses, the target
// network, token scale, limits, intervals and user-facing string tables.
package config

import (
	"math/big"
	"time"

	"earn_usdc/internal/domain/entity"
)

// Contract addresses on Base.
const (
	EarnUSDCAddress = "0x3038eBDFF5C17d9B0f07871b66FCDc7B9329fCD8"
	USDCAddress     = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
)

// EarnUSDCABIURL is the published interface description of the yield contract.
const EarnUSDCABIURL = "https://smartusdc.github.io/EarnUSDCv8.0/src/abis/EarnUSDC.json"

// Token fixed-point scale.
const (
	USDCDecimals    = 6
	DisplayDecimals = 5
	TokenSymbol     = "USDC"
)

// MinDepositUnits is the minimum actionable amount, 0.01 USDC.
const MinDepositUnits = 10000

// MinDeposit returns MinDepositUnits as a big integer.
func MinDeposit() *big.Int { return big.NewInt(MinDepositUnits) }

// Polling and UI timings.
const (
	BalanceUpdateInterval = 30 * time.Second
	RateUpdateInterval    = 60 * time.Second
	ToastDuration         = 3 * time.Second
)

// BaseNetwork is the only network the client operates on.
var BaseNetwork = entity.NetworkDescriptor{ //nolint:gochecknoglobals // static table
	ChainID:   "0x2105",
	ChainName: "Base",
	NativeCurrency: entity.NativeCurrency{
		Name:     "ETH",
		Symbol:   "ETH",
		Decimals: 18,
	},
	RPCURLs:           []string{"https://mainnet.base.org"},
	BlockExplorerURLs: []string{"https://basescan.org"},
}

// Yield contract event names as declared in its ABI.
const (
	EventNameDeposit           = "Deposit"
	EventNameWithdrawal        = "Withdrawal"
	EventNameRewardClaimed     = "DepositRewardClaimed"
	EventNameReferralProcessed = "ReferralProcessed"
)

// ContractEvents maps ABI event names onto the internal event kinds.
var ContractEvents = map[string]entity.ContractEventKind{ //nolint:gochecknoglobals // static table
	EventNameDeposit:           entity.EventDeposit,
	EventNameWithdrawal:        entity.EventWithdrawal,
	EventNameRewardClaimed:     entity.EventRewardClaimed,
	EventNameReferralProcessed: entity.EventReferralProcessed,
}

// User-facing messages.
const (
	ErrWalletRequired       = "Please connect your wallet"
	ErrNetwork              = "Please switch to Base network"
	ErrTransactionRejected  = "Transaction rejected by user"
	ErrInsufficientBalance  = "Insufficient balance for transaction"
	ErrMinimumAmount        = "Amount is below minimum required"
	ErrInvalidAmount        = "Please enter a valid amount"
	ErrTransactionFailed    = "Transaction failed"
	ErrAddNetwork           = "Failed to add Base network"
	ErrInitialization       = "Failed to initialize application"
	ErrUnexpected           = "An unexpected error occurred"
	ErrInvalidReferralCode  = "Invalid referral code"
	ErrTransactionPending   = "Transaction already in progress"
	MsgDepositSuccessful    = "Deposit successful"
	MsgWithdrawalSuccessful = "Withdrawal successful"
	MsgClaimSuccessful      = "Rewards claimed successfully"
)

// Transaction descriptions.
const (
	DescDeposit  = "Deposit USDC"
	DescWithdraw = "Withdraw USDC"
	DescClaim    = "Claim Rewards"
	DescApprove  = "Approve USDC"
)
