package entity

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// SnapshotKind identifies one independently refreshed slice of application state.
type SnapshotKind string

const (
	SnapshotBalances SnapshotKind = "balances"
	SnapshotRewards  SnapshotKind = "rewards"
	SnapshotRates    SnapshotKind = "rates"
	SnapshotWallet   SnapshotKind = "wallet"
)

// BalanceSnapshot holds token and deposit balances in the token's smallest unit.
type BalanceSnapshot struct {
	TokenBalance     *big.Int  `json:"tokenBalance"`
	DepositedBalance *big.Int  `json:"depositedBalance"`
	CapturedAt       time.Time `json:"capturedAt"`
}

// RewardSnapshot holds the reward accrued and not yet claimed.
type RewardSnapshot struct {
	PendingReward *big.Int  `json:"pendingReward"`
	CapturedAt    time.Time `json:"capturedAt"`
}

// RateSnapshot holds percentage rates, already scaled from basis points.
type RateSnapshot struct {
	AnnualPercentageRate decimal.Decimal `json:"annualPercentageRate"`
	ReferrerRate         decimal.Decimal `json:"referrerRate"`
	ReferredRate         decimal.Decimal `json:"referredRate"`
	CapturedAt           time.Time       `json:"capturedAt"`
}

// ReferralRates is the pair of referral reward rates reported by the yield contract.
type ReferralRates struct {
	Referrer decimal.Decimal
	Referred decimal.Decimal
}

// AppState is a point-in-time copy of every snapshot the client holds.
type AppState struct {
	Wallet   WalletState     `json:"wallet"`
	Balances BalanceSnapshot `json:"balances"`
	Rewards  RewardSnapshot  `json:"rewards"`
	Rates    RateSnapshot    `json:"rates"`
}

// ZeroBalances returns the empty balance snapshot.
func ZeroBalances() BalanceSnapshot {
	return BalanceSnapshot{TokenBalance: big.NewInt(0), DepositedBalance: big.NewInt(0)}
}

// ZeroRewards returns the empty reward snapshot.
func ZeroRewards() RewardSnapshot {
	return RewardSnapshot{PendingReward: big.NewInt(0)}
}

// ZeroRates returns the empty rate snapshot.
func ZeroRates() RateSnapshot {
	return RateSnapshot{
		AnnualPercentageRate: decimal.Zero,
		ReferrerRate:         decimal.Zero,
		ReferredRate:         decimal.Zero,
	}
}

// ZeroAppState returns the state of a client with no wallet connected.
func ZeroAppState() AppState {
	return AppState{
		Balances: ZeroBalances(),
		Rewards:  ZeroRewards(),
		Rates:    ZeroRates(),
	}
}
