package view

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync/atomic"

	"earn_usdc/internal/app/port"
	"earn_usdc/internal/config"
	"earn_usdc/internal/domain/entity"
	"earn_usdc/internal/pkg/utils"

	pkgerrors "github.com/pkg/errors"
)

// ErrInvalidReferralCode is returned for referral codes that are not non-negative integers.
var ErrInvalidReferralCode = errors.New(config.ErrInvalidReferralCode)

// Session is the connection lifecycle the controller drives.
type Session interface {
	ConnectWallet(ctx context.Context) error
	DisconnectWallet()
	Connected() bool
}

// Controller handles user actions: it validates input, runs the orchestrated transaction with
// the loading overlay up, refreshes state afterwards and toasts the outcome.
type Controller struct {
	session   Session
	gateway   port.ContractGateway
	state     port.StateService
	txs       port.TransactionService
	validator *Validator
	presenter *Presenter
	toaster   *Toaster
	logger    port.Logger

	loading atomic.Int32
}

// NewController creates a Controller.
func NewController(
	session Session,
	gateway port.ContractGateway,
	state port.StateService,
	txs port.TransactionService,
	toaster *Toaster,
	logger port.Logger,
) *Controller {
	return &Controller{
		session:   session,
		gateway:   gateway,
		state:     state,
		txs:       txs,
		validator: NewValidator(),
		presenter: NewPresenter(),
		toaster:   toaster,
		logger:    logger.With("component", "ViewController"),
	}
}

// Validator returns the amount validator.
func (c *Controller) Validator() *Validator { return c.validator }

// View renders the latest snapshot together with the overlay and toast.
func (c *Controller) View() ViewModel {
	vm := c.presenter.Render(c.state.Snapshot())
	vm.Loading = c.Loading()
	if toast, ok := c.toaster.Current(); ok {
		vm.Toast = &toast
	}
	return vm
}

// Loading reports whether an action is running.
func (c *Controller) Loading() bool { return c.loading.Load() > 0 }

// Connect connects the wallet. Failures are toasted with a single generic message.
func (c *Controller) Connect(ctx context.Context) error {
	c.loading.Add(1)
	defer c.loading.Add(-1)

	if err := c.session.ConnectWallet(ctx); err != nil {
		c.logger.Error("Wallet connection failed", "error", err)
		c.toaster.Show(ConnectMessage(err), entity.ToastError)
		return err
	}
	return nil
}

// Disconnect disconnects the wallet.
func (c *Controller) Disconnect() {
	c.session.DisconnectWallet()
}

// Deposit deposits amount, approving the yield contract first when the allowance is short.
// An empty referral code means none.
func (c *Controller) Deposit(ctx context.Context, amount, referralCode string) error {
	parsed, err := c.parseAmount(amount)
	if err != nil {
		return err
	}
	code, err := parseReferralCode(referralCode)
	if err != nil {
		c.toaster.Show(config.ErrInvalidReferralCode, entity.ToastError)
		return err
	}

	return c.execute(ctx, config.MsgDepositSuccessful, func(ctx context.Context) error {
		ptx, err := c.gateway.PrepareDeposit(parsed, code)
		if err != nil {
			return pkgerrors.Wrap(err, "prepare deposit")
		}
		allowance, err := c.gateway.GetAllowance(ctx)
		if err != nil {
			return pkgerrors.Wrap(err, "read allowance")
		}
		_, err = c.txs.ExecuteWithApproval(ctx, ptx, parsed, allowance)
		return err
	})
}

// Withdraw withdraws amount from the yield contract.
func (c *Controller) Withdraw(ctx context.Context, amount string) error {
	parsed, err := c.parseAmount(amount)
	if err != nil {
		return err
	}

	return c.execute(ctx, config.MsgWithdrawalSuccessful, func(ctx context.Context) error {
		ptx, err := c.gateway.PrepareWithdraw(parsed)
		if err != nil {
			return pkgerrors.Wrap(err, "prepare withdraw")
		}
		_, err = c.txs.Execute(ctx, ptx)
		return err
	})
}

// Claim claims the pending reward.
func (c *Controller) Claim(ctx context.Context) error {
	return c.execute(ctx, config.MsgClaimSuccessful, func(ctx context.Context) error {
		ptx, err := c.gateway.PrepareClaimReward()
		if err != nil {
			return pkgerrors.Wrap(err, "prepare claim")
		}
		_, err = c.txs.Execute(ctx, ptx)
		return err
	})
}

// MaxAmount returns the token balance formatted for the amount input.
func (c *Controller) MaxAmount(ctx context.Context) (string, error) {
	if !c.session.Connected() {
		return "", entity.ErrNotConnected
	}
	balance, err := c.gateway.GetTokenBalance(ctx)
	if err != nil {
		c.logger.Warn("Failed to read token balance", "error", err)
		return "", err
	}
	return c.presenter.FormatAmount(balance), nil
}

func (c *Controller) parseAmount(amount string) (*big.Int, error) {
	parsed, err := c.validator.Parse(amount)
	if err != nil {
		c.toaster.Show(UserMessage(err), entity.ToastError)
		return nil, err
	}
	if human, ferr := utils.FormatBigInt(parsed, config.USDCDecimals); ferr == nil {
		c.logger.Debug("Amount accepted", "amount", human)
	}
	return parsed, nil
}

func (c *Controller) execute(ctx context.Context, success string, action func(context.Context) error) error {
	if !c.session.Connected() {
		c.toaster.Show(config.ErrWalletRequired, entity.ToastError)
		return entity.ErrNotConnected
	}

	c.loading.Add(1)
	defer c.loading.Add(-1)

	if err := action(ctx); err != nil {
		c.toaster.Show(UserMessage(err), entity.ToastError)
		return err
	}
	c.toaster.Show(success, entity.ToastSuccess)

	c.state.RefreshBalances(ctx)
	c.state.RefreshRewards(ctx)
	return nil
}

// UserMessage maps an action error onto the text shown to the user. Raw errors are never shown.
func UserMessage(err error) string {
	var (
		txErr  *entity.TransactionError
		dupErr *entity.DuplicateTransactionError
		envErr *entity.EnvironmentError
	)
	switch {
	case errors.As(err, &txErr):
		return txErr.Message
	case errors.As(err, &dupErr):
		return config.ErrTransactionPending
	case errors.As(err, &envErr), errors.Is(err, entity.ErrNotConnected):
		return config.ErrWalletRequired
	case errors.Is(err, ErrBelowMinimum):
		return config.ErrMinimumAmount
	case errors.Is(err, ErrInvalidAmount):
		return config.ErrInvalidAmount
	case errors.Is(err, ErrInvalidReferralCode):
		return config.ErrInvalidReferralCode
	default:
		return config.ErrUnexpected
	}
}

// ConnectMessage maps a connection failure onto the text shown to the user.
func ConnectMessage(err error) string {
	var (
		envErr      *entity.EnvironmentError
		mismatchErr *entity.NetworkMismatchError
	)
	switch {
	case errors.As(err, &envErr):
		return config.ErrWalletRequired
	case errors.As(err, &mismatchErr):
		if mismatchErr.Err != nil && strings.Contains(mismatchErr.Err.Error(), config.ErrAddNetwork) {
			return config.ErrAddNetwork
		}
		return config.ErrNetwork
	default:
		return config.ErrInitialization
	}
}

func parseReferralCode(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return big.NewInt(0), nil
	}
	code, ok := new(big.Int).SetString(s, 10)
	if !ok || code.Sign() < 0 {
		return nil, ErrInvalidReferralCode
	}
	return code, nil
}
