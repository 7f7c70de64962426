package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"earn_usdc/internal/app/port"
	"earn_usdc/internal/config"
	"earn_usdc/internal/domain/entity"
	"earn_usdc/internal/pkg/metrics"
)

// EventRelay turns wallet provider callbacks and contract events into bus notifications. It
// never touches application state itself.
type EventRelay struct {
	bus    port.Publisher
	logger port.Logger

	mu                sync.Mutex
	provider          port.WalletProvider
	providerListeners map[string]port.ListenerID
	contractUnsubs    []func()
}

// NewEventRelay creates an EventRelay publishing to bus.
func NewEventRelay(bus port.Publisher, logger port.Logger) *EventRelay {
	return &EventRelay{
		bus:               bus,
		logger:            logger.With("component", "EventRelay"),
		providerListeners: make(map[string]port.ListenerID),
	}
}

// SubscribeProviderEvents registers the accountsChanged and chainChanged callbacks. Calling it
// again first removes the callbacks of the previous registration.
func (r *EventRelay) SubscribeProviderEvents(provider port.WalletProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeProviderListenersLocked()

	r.provider = provider
	r.providerListeners[port.EventAccountsChanged] = provider.On(port.EventAccountsChanged, r.onAccountsChanged)
	r.providerListeners[port.EventChainChanged] = provider.On(port.EventChainChanged, r.onChainChanged)
	r.logger.Debug("Subscribed to wallet provider events")
}

func (r *EventRelay) onAccountsChanged(args ...any) {
	accounts := accountsFromArgs(args)
	if len(accounts) == 0 {
		r.logger.Info("Wallet reported no accounts")
		r.bus.Publish(entity.TopicWalletDisconnected, nil)
		return
	}
	r.logger.Info("Wallet account changed", "account", accounts[0])
	r.bus.Publish(entity.TopicWalletConnected, entity.WalletConnected{Account: accounts[0]})
}

func (r *EventRelay) onChainChanged(args ...any) {
	r.logger.Info("Wallet chain changed, reload requested", "args", args)
	r.bus.Publish(entity.TopicReloadRequested, nil)
}

// SubscribeContractEvents registers one watcher per yield contract event. Either every watcher is
// registered or none is.
func (r *EventRelay) SubscribeContractEvents(ctx context.Context, source port.EventSource) error {
	names := make([]string, 0, len(config.ContractEvents))
	for name := range config.ContractEvents {
		names = append(names, name)
	}
	sort.Strings(names)

	unsubs := make([]func(), 0, len(names))
	for _, name := range names {
		kind := config.ContractEvents[name]
		unsubscribe, err := source.WatchEvent(ctx, name, kind, r.onContractEvent)
		if err != nil {
			for _, u := range unsubs {
				u()
			}
			return fmt.Errorf("failed to watch %s events: %w", name, err)
		}
		unsubs = append(unsubs, unsubscribe)
	}

	r.mu.Lock()
	r.contractUnsubs = append(r.contractUnsubs, unsubs...)
	r.mu.Unlock()

	r.logger.Debug("Subscribed to contract events", "events", names)
	return nil
}

func (r *EventRelay) onContractEvent(ev entity.ContractEvent) {
	metrics.ContractEventsTotal.WithLabelValues(string(ev.Kind)).Inc()
	r.logger.Info("Contract event", "event", ev.Name, "block", ev.BlockNumber, "tx", ev.TxHash.Hex())
	r.bus.Publish(entity.TopicStateChanged, entity.StateChanged{Kind: string(ev.Kind), Value: ev})
}

// UnsubscribeContractEvents stops every contract watcher.
func (r *EventRelay) UnsubscribeContractEvents() {
	r.mu.Lock()
	unsubs := r.contractUnsubs
	r.contractUnsubs = nil
	r.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
}

// UnsubscribeAll removes every provider callback and contract watcher. Idempotent.
func (r *EventRelay) UnsubscribeAll() {
	r.UnsubscribeContractEvents()

	r.mu.Lock()
	r.removeProviderListenersLocked()
	r.mu.Unlock()
}

func (r *EventRelay) removeProviderListenersLocked() {
	if r.provider == nil {
		return
	}
	for event, id := range r.providerListeners {
		r.provider.RemoveListener(event, id)
		delete(r.providerListeners, event)
	}
	r.provider = nil
}

// ListenerCount returns the number of live registrations this relay owns.
func (r *EventRelay) ListenerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.providerListeners) + len(r.contractUnsubs)
}

func accountsFromArgs(args []any) []string {
	if len(args) == 0 {
		return nil
	}
	switch v := args[0].(type) {
	case []string:
		return v
	case []any:
		accounts := make([]string, 0, len(v))
		for _, a := range v {
			if s, ok := a.(string); ok {
				accounts = append(accounts, s)
			}
		}
		return accounts
	case string:
		return []string{v}
	}
	return nil
}
