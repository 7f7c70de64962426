package view

import (
	"math/big"

	"earn_usdc/internal/config"
	"earn_usdc/internal/domain/entity"
	"earn_usdc/internal/pkg/utils"

	"github.com/shopspring/decimal"
)

// Screen names the top-level panel shown to the user.
type Screen string

const (
	ScreenWelcome Screen = "welcome"
	ScreenMain    Screen = "main"
)

// WalletView is the wallet status block.
type WalletView struct {
	Connected    bool   `json:"connected"`
	Address      string `json:"address"`
	ShortAddress string `json:"shortAddress"`
	Kind         string `json:"kind"`
}

// ViewModel is everything the dashboard renders.
type ViewModel struct {
	Screen         Screen        `json:"screen"`
	Wallet         WalletView    `json:"wallet"`
	TokenBalance   string        `json:"tokenBalance"`
	UserBalance    string        `json:"userBalance"`
	USDValue       string        `json:"usdValue"`
	PendingRewards string        `json:"pendingRewards"`
	ClaimEnabled   bool          `json:"claimEnabled"`
	CurrentAPR     string        `json:"currentAPR"`
	ReferrerRate   string        `json:"referrerRate"`
	ReferredRate   string        `json:"referredRate"`
	Loading        bool          `json:"loading"`
	Toast          *entity.Toast `json:"toast,omitempty"`
}

// Presenter renders snapshots. It keeps no state of its own.
type Presenter struct {
	decimals      int
	displayDigits int
	symbol        string
}

// NewPresenter creates a Presenter for the token in scope.
func NewPresenter() *Presenter {
	return &Presenter{decimals: config.USDCDecimals, displayDigits: config.DisplayDecimals, symbol: config.TokenSymbol}
}

// Render projects st onto display strings.
func (p *Presenter) Render(st entity.AppState) ViewModel {
	vm := ViewModel{
		Screen: ScreenWelcome,
		Wallet: WalletView{
			Connected:    st.Wallet.Connected,
			Address:      st.Wallet.Address,
			ShortAddress: ShortAddress(st.Wallet.Address),
			Kind:         string(st.Wallet.Kind),
		},
		TokenBalance:   p.withSymbol(st.Balances.TokenBalance),
		UserBalance:    p.withSymbol(st.Balances.DepositedBalance),
		USDValue:       p.FormatAmount(st.Balances.DepositedBalance),
		PendingRewards: p.withSymbol(st.Rewards.PendingReward),
		ClaimEnabled:   st.Rewards.PendingReward != nil && st.Rewards.PendingReward.Sign() > 0,
		CurrentAPR:     percent(st.Rates.AnnualPercentageRate),
		ReferrerRate:   percent(st.Rates.ReferrerRate),
		ReferredRate:   percent(st.Rates.ReferredRate),
	}
	if st.Wallet.Connected {
		vm.Screen = ScreenMain
	}
	return vm
}

// FormatAmount renders smallest units truncated to the display digits.
func (p *Presenter) FormatAmount(amount *big.Int) string {
	return utils.FormatUnits(amount, p.decimals, p.displayDigits)
}

func (p *Presenter) withSymbol(amount *big.Int) string {
	return p.FormatAmount(amount) + " " + p.symbol
}

func percent(d decimal.Decimal) string {
	return d.StringFixed(2) + "%"
}

// ShortAddress abbreviates an account to 0x1234...abcd.
func ShortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
