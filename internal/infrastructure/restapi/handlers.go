package restapi

import (
	"context"
	"errors"
	"io"
	"net/http"

	"earn_usdc/internal/app/port"
	"earn_usdc/internal/app/view"
	"earn_usdc/internal/domain/entity"
	"earn_usdc/internal/pkg/notify"

	"github.com/gin-gonic/gin"
)

// Dashboard is the set of user actions and projections served over HTTP.
type Dashboard interface {
	View() view.ViewModel
	Validator() *view.Validator
	Connect(ctx context.Context) error
	Disconnect()
	Deposit(ctx context.Context, amount, referralCode string) error
	Withdraw(ctx context.Context, amount string) error
	Claim(ctx context.Context) error
	MaxAmount(ctx context.Context) (string, error)
}

// AmountRequest is the body of validate, deposit and withdraw requests.
type AmountRequest struct {
	Amount       string `json:"amount"`
	ReferralCode string `json:"referralCode,omitempty"`
}

// ValidateResponse reports the validity of an amount and the resulting button state.
type ValidateResponse struct {
	Valid   bool             `json:"valid"`
	Buttons view.ButtonState `json:"buttons"`
}

// ActionResponse is returned by every action endpoint.
type ActionResponse struct {
	Error string         `json:"error,omitempty"`
	View  view.ViewModel `json:"view"`
}

// MaxAmountResponse carries the formatted token balance.
type MaxAmountResponse struct {
	Amount string `json:"amount"`
}

// DashboardHandler serves the dashboard page, its JSON API and the notification stream.
type DashboardHandler struct {
	dashboard Dashboard
	page      *view.Page
	bus       *notify.Bus
	logger    port.Logger
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(dashboard Dashboard, page *view.Page, bus *notify.Bus, logger port.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboard: dashboard,
		page:      page,
		bus:       bus,
		logger:    logger.With("component", "DashboardHandler"),
	}
}

// PageHandler renders the HTML dashboard.
func (h *DashboardHandler) PageHandler(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := h.page.Render(c.Writer, h.dashboard.View()); err != nil {
		h.logger.Error("Failed to render page", "error", err)
	}
}

// StateHandler returns the current view model.
func (h *DashboardHandler) StateHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.dashboard.View())
}

// ValidateHandler checks an amount typed by the user.
func (h *DashboardHandler) ValidateHandler(c *gin.Context) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v := h.dashboard.Validator()
	c.JSON(http.StatusOK, ValidateResponse{Valid: v.Validate(req.Amount), Buttons: v.Buttons(req.Amount)})
}

// ConnectHandler connects the wallet.
func (h *DashboardHandler) ConnectHandler(c *gin.Context) {
	err := h.dashboard.Connect(c.Request.Context())
	h.respond(c, err, view.ConnectMessage)
}

// DisconnectHandler disconnects the wallet.
func (h *DashboardHandler) DisconnectHandler(c *gin.Context) {
	h.dashboard.Disconnect()
	h.respond(c, nil, view.UserMessage)
}

// DepositHandler deposits the requested amount.
func (h *DashboardHandler) DepositHandler(c *gin.Context) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.dashboard.Deposit(c.Request.Context(), req.Amount, req.ReferralCode)
	h.respond(c, err, view.UserMessage)
}

// WithdrawHandler withdraws the requested amount.
func (h *DashboardHandler) WithdrawHandler(c *gin.Context) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.dashboard.Withdraw(c.Request.Context(), req.Amount)
	h.respond(c, err, view.UserMessage)
}

// ClaimHandler claims the pending reward.
func (h *DashboardHandler) ClaimHandler(c *gin.Context) {
	err := h.dashboard.Claim(c.Request.Context())
	h.respond(c, err, view.UserMessage)
}

// MaxAmountHandler returns the token balance for the amount input.
func (h *DashboardHandler) MaxAmountHandler(c *gin.Context) {
	amount, err := h.dashboard.MaxAmount(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": view.UserMessage(err)})
		return
	}
	c.JSON(http.StatusOK, MaxAmountResponse{Amount: amount})
}

// EventsHandler streams bus notifications as server-sent events named by topic.
func (h *DashboardHandler) EventsHandler(c *gin.Context) {
	sub := h.bus.Subscribe()
	defer sub.Close()
	ctx := c.Request.Context()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(io.Writer) bool {
		select {
		case n, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent(string(n.Topic), n.Payload)
			return true
		case <-ctx.Done():
			return false
		}
	})
}

func (h *DashboardHandler) respond(c *gin.Context, err error, message func(error) string) {
	resp := ActionResponse{View: h.dashboard.View()}
	if err != nil {
		resp.Error = message(err)
		c.JSON(statusFor(err), resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func statusFor(err error) int {
	var (
		envErr      *entity.EnvironmentError
		mismatchErr *entity.NetworkMismatchError
		dupErr      *entity.DuplicateTransactionError
		txErr       *entity.TransactionError
	)
	switch {
	case errors.Is(err, view.ErrBelowMinimum), errors.Is(err, view.ErrInvalidAmount), errors.Is(err, view.ErrInvalidReferralCode):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrNotConnected), errors.As(err, &mismatchErr), errors.As(err, &dupErr):
		return http.StatusConflict
	case errors.As(err, &envErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &txErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}
