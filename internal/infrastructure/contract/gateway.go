// Package contract binds the yield and token contracts to the connected signer and exposes the
// reads, transaction preparation and event watching the application needs.
package contract

import (
	"context"
	"math/big"
	"sync"
	"time"

	"earn_usdc/internal/app/port"
	"earn_usdc/internal/config"
	"earn_usdc/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	earnContractName  = "EarnUSDC"
	tokenContractName = "USDC"
)

// GatewayConfig holds the addresses and limits of a Gateway.
type GatewayConfig struct {
	EarnAddress     common.Address
	TokenAddress    common.Address
	CallTimeout     time.Duration
	RateLimit       float64
	BurstLimit      int
	LogPollInterval time.Duration
}

type session struct {
	account common.Address
	earn    *boundHandle
	token   *boundHandle
}

// Gateway implements port.ContractGateway.
type Gateway struct {
	cfg     GatewayConfig
	loader  *ABILoader
	limiter *rate.Limiter
	logger  port.Logger

	mu      sync.RWMutex
	session *session
}

// NewGateway creates a disconnected gateway.
func NewGateway(cfg GatewayConfig, loader *ABILoader, logger port.Logger) *Gateway {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.BurstLimit <= 0 {
		cfg.BurstLimit = 1
	}
	if cfg.LogPollInterval <= 0 {
		cfg.LogPollInterval = 15 * time.Second
	}
	return &Gateway{
		cfg:     cfg,
		loader:  loader,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.BurstLimit),
		logger:  logger.With("component", "ContractGateway"),
	}
}

// Connect loads the yield contract ABI and binds both contracts to signer.
func (g *Gateway) Connect(ctx context.Context, signer port.Signer) error {
	if signer == nil {
		return &entity.EnvironmentError{Reason: "no signer available"}
	}

	earnABI, err := g.loader.Load(ctx)
	if err != nil {
		return err
	}

	s := &session{
		account: signer.Address(),
		earn:    newBoundHandle(earnContractName, g.cfg.EarnAddress, earnABI, signer, g.cfg.LogPollInterval, g.logger),
		token:   newBoundHandle(tokenContractName, g.cfg.TokenAddress, tokenInterface(), signer, g.cfg.LogPollInterval, g.logger),
	}

	g.mu.Lock()
	g.session = s
	g.mu.Unlock()

	g.logger.Info("Contracts bound", "account", s.account.Hex(), "earn", g.cfg.EarnAddress.Hex(), "token", g.cfg.TokenAddress.Hex())
	return nil
}

// Disconnect releases the bound contracts. Safe to call repeatedly.
func (g *Gateway) Disconnect() {
	g.mu.Lock()
	wasConnected := g.session != nil
	g.session = nil
	g.mu.Unlock()

	if wasConnected {
		g.logger.Info("Contracts released")
	}
}

// Connected reports whether Connect succeeded and Disconnect has not been called since.
func (g *Gateway) Connected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.session != nil
}

// Account returns the address the contracts are bound to.
func (g *Gateway) Account() (common.Address, error) {
	s, err := g.current()
	if err != nil {
		return common.Address{}, err
	}
	return s.account, nil
}

func (g *Gateway) current() (*session, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.session == nil {
		return nil, entity.ErrNotConnected
	}
	return g.session, nil
}

// read runs a throttled single-value view call. Failures are wrapped in *entity.RpcError.
func (g *Gateway) read(ctx context.Context, pick func(*session) *boundHandle, method string, args ...any) (*big.Int, error) {
	s, err := g.current()
	if err != nil {
		return nil, err
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, &entity.RpcError{Method: method, Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()

	value, err := pick(s).call(callCtx, s.account, method, args...)
	if err != nil {
		g.logger.Debug("Contract read failed", "method", method, "error", err)
		return nil, &entity.RpcError{Method: method, Err: err}
	}
	return value, nil
}

func earn(s *session) *boundHandle  { return s.earn }
func token(s *session) *boundHandle { return s.token }

// GetTokenBalance returns the account's token balance in smallest units.
func (g *Gateway) GetTokenBalance(ctx context.Context) (*big.Int, error) {
	account, err := g.Account()
	if err != nil {
		return nil, err
	}
	return g.read(ctx, token, "balanceOf", account)
}

// GetDepositBalance returns the account's deposited balance in smallest units.
func (g *Gateway) GetDepositBalance(ctx context.Context) (*big.Int, error) {
	account, err := g.Account()
	if err != nil {
		return nil, err
	}
	return g.read(ctx, earn, "deposits", account)
}

// GetPendingReward returns the reward accrued and not yet claimed.
func (g *Gateway) GetPendingReward(ctx context.Context) (*big.Int, error) {
	account, err := g.Account()
	if err != nil {
		return nil, err
	}
	return g.read(ctx, earn, "calculateReward", account)
}

// GetAnnualRate returns the current APR as a percentage.
func (g *Gateway) GetAnnualRate(ctx context.Context) (decimal.Decimal, error) {
	bps, err := g.read(ctx, earn, "currentAPR")
	if err != nil {
		return decimal.Zero, err
	}
	return basisPointsToPercent(bps), nil
}

// GetReferralRates reads both referral rates concurrently, as percentages.
func (g *Gateway) GetReferralRates(ctx context.Context) (entity.ReferralRates, error) {
	var referrer, referred *big.Int

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		v, err := g.read(egCtx, earn, "referrerRewardRate")
		referrer = v
		return err
	})
	eg.Go(func() error {
		v, err := g.read(egCtx, earn, "referredRewardRate")
		referred = v
		return err
	})
	if err := eg.Wait(); err != nil {
		return entity.ReferralRates{}, err
	}

	return entity.ReferralRates{
		Referrer: basisPointsToPercent(referrer),
		Referred: basisPointsToPercent(referred),
	}, nil
}

// GetAllowance returns how much of the account's token the yield contract may spend.
func (g *Gateway) GetAllowance(ctx context.Context) (*big.Int, error) {
	account, err := g.Account()
	if err != nil {
		return nil, err
	}
	return g.read(ctx, token, "allowance", account, g.cfg.EarnAddress)
}

// PrepareDeposit describes depositFunds(amount, referralCode). A nil code means no referral.
func (g *Gateway) PrepareDeposit(amount, referralCode *big.Int) (entity.PreparedTransaction, error) {
	s, err := g.current()
	if err != nil {
		return entity.PreparedTransaction{}, err
	}
	if referralCode == nil {
		referralCode = big.NewInt(0)
	}
	return entity.PreparedTransaction{
		Target:      s.earn,
		Method:      "depositFunds",
		Args:        []any{new(big.Int).Set(amount), new(big.Int).Set(referralCode)},
		Description: config.DescDeposit,
	}, nil
}

// PrepareWithdraw describes withdraw(amount).
func (g *Gateway) PrepareWithdraw(amount *big.Int) (entity.PreparedTransaction, error) {
	s, err := g.current()
	if err != nil {
		return entity.PreparedTransaction{}, err
	}
	return entity.PreparedTransaction{
		Target:      s.earn,
		Method:      "withdraw",
		Args:        []any{new(big.Int).Set(amount)},
		Description: config.DescWithdraw,
	}, nil
}

// PrepareClaimReward describes claimDepositReward().
func (g *Gateway) PrepareClaimReward() (entity.PreparedTransaction, error) {
	s, err := g.current()
	if err != nil {
		return entity.PreparedTransaction{}, err
	}
	return entity.PreparedTransaction{
		Target:      s.earn,
		Method:      "claimDepositReward",
		Args:        []any{},
		Description: config.DescClaim,
	}, nil
}

// PrepareApproval describes approve(yieldContract, amount) on the token contract.
func (g *Gateway) PrepareApproval(amount *big.Int) (entity.PreparedTransaction, error) {
	s, err := g.current()
	if err != nil {
		return entity.PreparedTransaction{}, err
	}
	return entity.PreparedTransaction{
		Target:      s.token,
		Method:      "approve",
		Args:        []any{g.cfg.EarnAddress, new(big.Int).Set(amount)},
		Description: config.DescApprove,
	}, nil
}

// YieldEvents returns the event source of the yield contract.
func (g *Gateway) YieldEvents() (port.EventSource, error) {
	s, err := g.current()
	if err != nil {
		return nil, err
	}
	return s.earn, nil
}

func basisPointsToPercent(bps *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(bps, 0).Shift(-2)
}
