package contract

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"earn_usdc/internal/app/port"
	"earn_usdc/internal/domain/entity"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// boundHandle is a contract bound to the connected signer. It implements entity.ContractHandle
// and, for contracts with events, port.EventSource.
type boundHandle struct {
	name            string
	address         common.Address
	abi             abi.ABI
	contract        *bind.BoundContract
	signer          port.Signer
	logPollInterval time.Duration
	logger          port.Logger
}

func newBoundHandle(name string, address common.Address, parsed abi.ABI, signer port.Signer, logPollInterval time.Duration, logger port.Logger) *boundHandle {
	backend := signer.Backend()
	return &boundHandle{
		name:            name,
		address:         address,
		abi:             parsed,
		contract:        bind.NewBoundContract(address, parsed, backend, backend, backend),
		signer:          signer,
		logPollInterval: logPollInterval,
		logger:          logger.With("contract", name),
	}
}

func (h *boundHandle) Name() string            { return h.name }
func (h *boundHandle) Address() common.Address { return h.address }

func (h *boundHandle) call(ctx context.Context, from common.Address, method string, args ...any) (*big.Int, error) {
	var out []any
	if err := h.contract.Call(&bind.CallOpts{Context: ctx, From: from}, &out, method, args...); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	value, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s returned %T, expected *big.Int", method, out[0])
	}
	return value, nil
}

// Transact signs and submits method with args.
func (h *boundHandle) Transact(ctx context.Context, method string, args ...any) (*types.Transaction, error) {
	opts, err := h.signer.TransactOpts(ctx)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	return h.contract.Transact(opts, method, args...)
}

// WaitMined blocks until tx has a receipt or ctx ends.
func (h *boundHandle) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return bind.WaitMined(ctx, h.signer.Backend(), tx)
}

// WatchEvent streams decoded logs of eventName to handler. It uses a log subscription when the
// backend can push, and polls FilterLogs otherwise. The returned unsubscribe waits for the
// watcher to exit, so handler is never invoked after it returns; handler must not call it.
func (h *boundHandle) WatchEvent(ctx context.Context, eventName string, kind entity.ContractEventKind, handler func(entity.ContractEvent)) (func(), error) {
	event, ok := h.abi.Events[eventName]
	if !ok {
		return nil, fmt.Errorf("event %s not found in %s ABI", eventName, h.name)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	deliver := func(log types.Log) {
		if log.Removed {
			return
		}
		ev, err := h.decode(eventName, kind, log)
		if err != nil {
			h.logger.Warn("Failed to decode contract event", "event", eventName, "tx", log.TxHash.Hex(), "error", err)
			return
		}
		if watchCtx.Err() != nil {
			return
		}
		handler(ev)
	}

	if h.signer.SupportsSubscriptions() {
		logs, sub, err := h.contract.WatchLogs(&bind.WatchOpts{Context: watchCtx}, eventName)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", eventName, err)
		}
		go func() {
			defer close(done)
			defer sub.Unsubscribe()
			for {
				select {
				case log := <-logs:
					deliver(log)
				case err := <-sub.Err():
					if err != nil {
						h.logger.Error("Contract event subscription failed", "event", eventName, "error", err)
					}
					return
				case <-watchCtx.Done():
					return
				}
			}
		}()
	} else {
		go func() {
			defer close(done)
			h.pollLogs(watchCtx, event.ID, deliver)
		}()
	}

	h.logger.Debug("Watching contract event", "event", eventName, "push", h.signer.SupportsSubscriptions())
	return func() {
		cancel()
		<-done
	}, nil
}

func (h *boundHandle) pollLogs(ctx context.Context, topic common.Hash, deliver func(types.Log)) {
	backend := h.signer.Backend()

	// from stays unset until the head is known; filtering from genesis is rejected by public RPCs
	var (
		from    uint64
		started bool
	)
	if head, err := backend.HeaderByNumber(ctx, nil); err == nil {
		from, started = head.Number.Uint64()+1, true
	}

	ticker := time.NewTicker(h.logPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		head, err := backend.HeaderByNumber(ctx, nil)
		if err != nil {
			h.logger.Warn("Failed to read chain head for log polling", "error", err)
			continue
		}
		to := head.Number.Uint64()
		if !started {
			from, started = to+1, true
			continue
		}
		if to < from {
			continue
		}

		logs, err := backend.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(from),
			ToBlock:   new(big.Int).SetUint64(to),
			Addresses: []common.Address{h.address},
			Topics:    [][]common.Hash{{topic}},
		})
		if err != nil {
			h.logger.Warn("Failed to filter contract logs", "from", from, "to", to, "error", err)
			continue
		}
		for _, log := range logs {
			deliver(log)
		}
		from = to + 1
	}
}

func (h *boundHandle) decode(eventName string, kind entity.ContractEventKind, log types.Log) (entity.ContractEvent, error) {
	payload := make(map[string]any)
	if err := h.contract.UnpackLogIntoMap(payload, eventName, log); err != nil {
		return entity.ContractEvent{}, err
	}
	return entity.ContractEvent{
		Kind:        kind,
		Name:        eventName,
		Payload:     payload,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
	}, nil
}
