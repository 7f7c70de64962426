package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"earn_usdc/internal/app/port"
	"earn_usdc/internal/domain/entity"
	"earn_usdc/internal/pkg/metrics"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/puzpuzpuz/xsync/v2"
)

var errExecutionReverted = errors.New("execution reverted")

// TransactionService submits prepared transactions, waits for their receipts and announces the
// outcome.
type TransactionService struct {
	bus            port.Publisher
	approvals      port.ApprovalPreparer
	logger         port.Logger
	receiptTimeout time.Duration

	pending *xsync.MapOf[string, struct{}]
}

// NewTransactionService creates a TransactionService. Approvals are built by approvals.
func NewTransactionService(bus port.Publisher, approvals port.ApprovalPreparer, receiptTimeout time.Duration, logger port.Logger) *TransactionService {
	return &TransactionService{
		bus:            bus,
		approvals:      approvals,
		logger:         logger.With("component", "TransactionService"),
		receiptTimeout: receiptTimeout,
		pending:        xsync.NewMapOf[struct{}](),
	}
}

// TransactionKey identifies a prepared transaction by content: target, method and arguments.
func TransactionKey(ptx entity.PreparedTransaction) string {
	var target string
	if ptx.Target != nil {
		target = ptx.Target.Address().Hex()
	}
	argsHash := crypto.Keccak256Hash([]byte(fmt.Sprintf("%v", ptx.Args)))
	return fmt.Sprintf("%s:%s:%s", target, ptx.Method, argsHash.Hex())
}

// Execute submits ptx and waits for it to be mined. A transaction identical to one still in
// flight is rejected with *entity.DuplicateTransactionError. Any other failure is returned as
// *entity.TransactionError.
func (s *TransactionService) Execute(ctx context.Context, ptx entity.PreparedTransaction) (*types.Receipt, error) {
	key := TransactionKey(ptx)
	if _, inFlight := s.pending.LoadOrStore(key, struct{}{}); inFlight {
		s.logger.Warn("Rejecting duplicate transaction", "method", ptx.Method, "key", key)
		return nil, &entity.DuplicateTransactionError{Key: key}
	}
	defer s.pending.Delete(key)

	if ptx.Target == nil {
		return nil, s.fail(ptx, errors.New("prepared transaction has no target contract"))
	}
	s.logger.Info("Submitting transaction", "description", ptx.Description, "contract", ptx.Target.Name(), "method", ptx.Method)
	started := time.Now()

	tx, err := ptx.Target.Transact(ctx, ptx.Method, ptx.Args...)
	if err != nil {
		return nil, s.fail(ptx, err)
	}

	waitCtx := ctx
	if s.receiptTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.receiptTimeout)
		defer cancel()
	}
	receipt, err := ptx.Target.WaitMined(waitCtx, tx)
	if err != nil {
		return nil, s.fail(ptx, err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return nil, s.fail(ptx, errExecutionReverted)
	}

	metrics.TransactionsTotal.WithLabelValues(ptx.Method, "confirmed").Inc()
	metrics.ConfirmationSeconds.WithLabelValues(ptx.Method).Observe(time.Since(started).Seconds())
	s.logger.Info("Transaction confirmed", "description", ptx.Description, "hash", tx.Hash().Hex(), "block", receipt.BlockNumber)

	s.bus.Publish(entity.TopicTransactionComplete, entity.TransactionComplete{
		Description: ptx.Description,
		Hash:        tx.Hash().Hex(),
	})
	return receipt, nil
}

func (s *TransactionService) fail(ptx entity.PreparedTransaction, err error) error {
	classified := ClassifyTransactionError(err)
	metrics.TransactionsTotal.WithLabelValues(ptx.Method, string(classified.Reason)).Inc()
	s.logger.Warn("Transaction failed", "description", ptx.Description, "reason", classified.Reason, "error", err)

	s.bus.Publish(entity.TopicTransactionFailed, entity.TransactionFailed{
		Description: ptx.Description,
		Reason:      string(classified.Reason),
		Message:     classified.Message,
	})
	return classified
}

// ExecuteWithApproval runs an approval of requiredAmount to completion first when
// currentAllowance is below it, then runs ptx.
func (s *TransactionService) ExecuteWithApproval(ctx context.Context, ptx entity.PreparedTransaction, requiredAmount, currentAllowance *big.Int) (*types.Receipt, error) {
	if currentAllowance == nil || currentAllowance.Cmp(requiredAmount) < 0 {
		approval, err := s.approvals.PrepareApproval(requiredAmount)
		if err != nil {
			return nil, err
		}
		s.logger.Info("Allowance insufficient, approving first", "required", requiredAmount, "allowance", currentAllowance)
		if _, err := s.Execute(ctx, approval); err != nil {
			return nil, err
		}
	}
	return s.Execute(ctx, ptx)
}

// HasPending reports whether any transaction is in flight.
func (s *TransactionService) HasPending() bool {
	pending := false
	s.pending.Range(func(string, struct{}) bool {
		pending = true
		return false
	})
	return pending
}

// Cleanup forgets every in-flight key. Results of those transactions are still delivered to
// their callers.
func (s *TransactionService) Cleanup() {
	s.pending.Range(func(key string, _ struct{}) bool {
		s.pending.Delete(key)
		return true
	})
}
