package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"earn_usdc/internal/app/port"
	"earn_usdc/internal/config"
	"earn_usdc/internal/domain/entity"
	"earn_usdc/internal/pkg/notify"
)

// App wires the wallet provider, gateway, state, orchestrator and relay together and owns the
// connection lifecycle.
type App struct {
	provider port.WalletProvider
	gateway  port.ContractGateway
	state    port.StateService
	txs      port.TransactionService
	relay    *EventRelay
	bus      *notify.Bus
	network  entity.NetworkDescriptor
	logger   port.Logger

	lifeCtx    context.Context
	lifeCancel context.CancelFunc

	// opMu serializes lifecycle operations.
	opMu        sync.Mutex
	initialized bool
	connected   bool
	account     string
	// wallet lifecycle topics and contract refreshes run on separate subscriptions so a burst
	// of state changes cannot crowd out a disconnect or reload
	controlSub *notify.Subscription
	eventSub   *notify.Subscription
	loops      sync.WaitGroup
}

// NewApp creates an App. A nil provider means no wallet is available in this environment.
func NewApp(
	provider port.WalletProvider,
	gateway port.ContractGateway,
	state port.StateService,
	txs port.TransactionService,
	relay *EventRelay,
	bus *notify.Bus,
	network entity.NetworkDescriptor,
	logger port.Logger,
) *App {
	lifeCtx, lifeCancel := context.WithCancel(context.Background())
	return &App{
		provider:   provider,
		gateway:    gateway,
		state:      state,
		txs:        txs,
		relay:      relay,
		bus:        bus,
		network:    network,
		logger:     logger.With("component", "App"),
		lifeCtx:    lifeCtx,
		lifeCancel: lifeCancel,
	}
}

// Gateway returns the contract gateway.
func (a *App) Gateway() port.ContractGateway { return a.gateway }

// State returns the application state service.
func (a *App) State() port.StateService { return a.state }

// Transactions returns the transaction orchestrator.
func (a *App) Transactions() port.TransactionService { return a.txs }

// Connected reports whether a wallet session is established.
func (a *App) Connected() bool {
	a.opMu.Lock()
	defer a.opMu.Unlock()
	return a.connected
}

// Initialize checks the environment, subscribes to wallet events and restores an existing
// authorization. Calling it again after success does nothing.
func (a *App) Initialize(ctx context.Context) error {
	a.opMu.Lock()
	defer a.opMu.Unlock()
	return a.initializeLocked(ctx)
}

func (a *App) initializeLocked(ctx context.Context) error {
	if a.initialized {
		return nil
	}
	if a.provider == nil {
		return &entity.EnvironmentError{Reason: config.ErrWalletRequired}
	}

	a.relay.SubscribeProviderEvents(a.provider)
	if a.controlSub == nil {
		a.controlSub = a.bus.Subscribe(
			entity.TopicWalletConnected,
			entity.TopicWalletDisconnected,
			entity.TopicReloadRequested,
		)
		a.eventSub = a.bus.Subscribe(entity.TopicStateChanged)
		a.loops.Add(2)
		go a.handleControl(a.controlSub)
		go a.handleStateChanges(a.eventSub)
	}

	a.checkExistingConnectionLocked(ctx)
	a.initialized = true
	a.logger.Info("Application initialized")
	return nil
}

func (a *App) checkExistingConnectionLocked(ctx context.Context) {
	accounts, err := requestAccounts(ctx, a.provider, port.MethodAccounts)
	if err != nil {
		a.logger.Error("Failed to check existing connection", "error", err)
		return
	}
	if len(accounts) == 0 {
		return
	}

	chainID, err := a.chainID(ctx)
	if err != nil {
		a.logger.Error("Failed to read wallet chain", "error", err)
		return
	}
	if !sameChainID(chainID, a.network.ChainID) {
		a.logger.Warn("Existing authorization is on another network, waiting for connect", "chainId", chainID)
		return
	}

	if err := a.handleConnectionLocked(ctx, accounts[0]); err != nil {
		a.logger.Error("Failed to restore existing connection", "error", err)
	}
}

// ConnectWallet moves the wallet onto the target network, requests the account and sets up
// every connected service. On failure the app is left disconnected.
func (a *App) ConnectWallet(ctx context.Context) error {
	a.opMu.Lock()
	defer a.opMu.Unlock()

	if a.provider == nil {
		return &entity.EnvironmentError{Reason: config.ErrWalletRequired}
	}
	if err := a.ensureNetwork(ctx); err != nil {
		a.logger.Error("Wallet network check failed", "error", err)
		return err
	}

	accounts, err := requestAccounts(ctx, a.provider, port.MethodRequestAccounts)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		return &entity.ProviderError{Code: entity.ProviderCodeUserRejected, Message: "no account authorized"}
	}

	if a.connected {
		if a.account == accounts[0] {
			return nil
		}
		a.teardownLocked()
	}
	return a.handleConnectionLocked(ctx, accounts[0])
}

// ensureNetwork switches the wallet to the target network, adding the network first when the
// wallet does not know it.
func (a *App) ensureNetwork(ctx context.Context) error {
	current, err := a.chainID(ctx)
	if err != nil {
		return &entity.NetworkMismatchError{Expected: a.network.ChainID, Err: err}
	}
	if sameChainID(current, a.network.ChainID) {
		return nil
	}

	a.logger.Info("Wallet on wrong network, requesting switch", "current", current, "target", a.network.ChainID)
	_, err = a.provider.Request(ctx, port.MethodSwitchChain, entity.SwitchChainParameter{ChainID: a.network.ChainID})
	if err != nil {
		var providerErr *entity.ProviderError
		if !errors.As(err, &providerErr) || providerErr.Code != entity.ProviderCodeUnknownChain {
			return &entity.NetworkMismatchError{Expected: a.network.ChainID, Actual: current, Err: err}
		}

		a.logger.Info("Wallet does not know the target network, adding it", "chainId", a.network.ChainID)
		if _, err := a.provider.Request(ctx, port.MethodAddChain, a.network); err != nil {
			return &entity.NetworkMismatchError{
				Expected: a.network.ChainID,
				Actual:   current,
				Err:      fmt.Errorf("%s: %w", config.ErrAddNetwork, err),
			}
		}
	}

	after, err := a.chainID(ctx)
	if err != nil {
		return &entity.NetworkMismatchError{Expected: a.network.ChainID, Actual: current, Err: err}
	}
	if !sameChainID(after, a.network.ChainID) {
		return &entity.NetworkMismatchError{Expected: a.network.ChainID, Actual: after}
	}
	return nil
}

func (a *App) handleConnectionLocked(ctx context.Context, account string) error {
	if err := a.setupConnectionLocked(ctx, account); err != nil {
		a.teardownLocked()
		return err
	}
	a.connected = true
	a.account = account
	a.logger.Info("Wallet connected", "account", account)
	return nil
}

func (a *App) setupConnectionLocked(ctx context.Context, account string) error {
	signer, err := a.provider.Signer(ctx)
	if err != nil {
		return err
	}
	if err := a.gateway.Connect(ctx, signer); err != nil {
		return err
	}
	if err := a.state.Initialize(ctx); err != nil {
		return err
	}

	source, err := a.gateway.YieldEvents()
	if err != nil {
		return err
	}
	if err := a.relay.SubscribeContractEvents(a.lifeCtx, source); err != nil {
		return err
	}

	a.state.UpdateWalletState(true, account, entity.DetectWalletKind(a.provider.Flags()))
	return nil
}

// teardownLocked releases every connected resource.
func (a *App) teardownLocked() {
	a.gateway.Disconnect()
	a.relay.UnsubscribeContractEvents()
	a.state.Cleanup()
	a.txs.Cleanup()
	a.connected = false
	a.account = ""
}

// DisconnectWallet tears down the session. Safe to call when not connected.
func (a *App) DisconnectWallet() {
	a.opMu.Lock()
	defer a.opMu.Unlock()
	a.disconnectLocked()
}

func (a *App) disconnectLocked() {
	wasConnected := a.connected
	a.teardownLocked()
	a.state.UpdateWalletState(false, "", "")
	if wasConnected {
		a.logger.Info("Wallet disconnected")
	}
}

// Reload tears everything down and initializes again, unless the wallet is still connected on
// the target network.
func (a *App) Reload(ctx context.Context) error {
	a.opMu.Lock()
	defer a.opMu.Unlock()

	if a.connected && a.provider != nil {
		if chainID, err := a.chainID(ctx); err == nil && sameChainID(chainID, a.network.ChainID) {
			a.logger.Debug("Chain change does not affect the session, skipping reload", "chainId", chainID)
			return nil
		}
	}

	a.logger.Info("Reloading application")
	a.disconnectLocked()
	a.relay.UnsubscribeAll()
	a.initialized = false
	return a.initializeLocked(ctx)
}

// Close disconnects and releases every subscription.
func (a *App) Close() {
	a.opMu.Lock()
	a.disconnectLocked()
	a.relay.UnsubscribeAll()
	a.initialized = false
	controlSub, eventSub := a.controlSub, a.eventSub
	a.controlSub, a.eventSub = nil, nil
	a.opMu.Unlock()

	a.lifeCancel()
	if controlSub != nil {
		controlSub.Close()
		eventSub.Close()
		a.loops.Wait()
	}
	a.logger.Info("Application closed")
}

func (a *App) handleControl(sub *notify.Subscription) {
	defer a.loops.Done()
	for n := range sub.C {
		switch n.Topic {
		case entity.TopicWalletDisconnected:
			a.DisconnectWallet()
		case entity.TopicWalletConnected:
			a.onAccountChanged(n.Payload)
		case entity.TopicReloadRequested:
			if err := a.Reload(a.lifeCtx); err != nil {
				a.logger.Error("Reload failed", "error", err)
			}
		}
	}
}

func (a *App) handleStateChanges(sub *notify.Subscription) {
	defer a.loops.Done()
	for n := range sub.C {
		a.onStateChanged(n.Payload)
	}
}

// onAccountChanged reconnects when the wallet switches to a different account mid-session.
func (a *App) onAccountChanged(payload any) {
	connected, ok := payload.(entity.WalletConnected)
	if !ok {
		return
	}

	a.opMu.Lock()
	defer a.opMu.Unlock()
	if !a.connected || a.account == connected.Account {
		return
	}
	a.logger.Info("Wallet account switched, reconnecting", "account", connected.Account)
	a.teardownLocked()
	if err := a.handleConnectionLocked(a.lifeCtx, connected.Account); err != nil {
		a.logger.Error("Failed to reconnect after account switch", "error", err)
		a.state.UpdateWalletState(false, "", "")
	}
}

// onStateChanged refreshes balances and rewards after a contract event.
func (a *App) onStateChanged(payload any) {
	changed, ok := payload.(entity.StateChanged)
	if !ok {
		return
	}
	if _, isEvent := changed.Value.(entity.ContractEvent); !isEvent {
		return
	}
	if !a.Connected() {
		return
	}
	a.state.RefreshBalances(a.lifeCtx)
	a.state.RefreshRewards(a.lifeCtx)
}

func (a *App) chainID(ctx context.Context) (string, error) {
	res, err := a.provider.Request(ctx, port.MethodChainID)
	if err != nil {
		return "", err
	}
	chainID, ok := res.(string)
	if !ok {
		return "", fmt.Errorf("unexpected %s result %T", port.MethodChainID, res)
	}
	return chainID, nil
}

func requestAccounts(ctx context.Context, provider port.WalletProvider, method string) ([]string, error) {
	res, err := provider.Request(ctx, method)
	if err != nil {
		return nil, err
	}
	switch res.(type) {
	case nil, []string, []any:
		return accountsFromArgs([]any{res}), nil
	default:
		return nil, fmt.Errorf("unexpected %s result %T", method, res)
	}
}

func sameChainID(a, b string) bool {
	x, errA := entity.ParseHexChainID(a)
	y, errB := entity.ParseHexChainID(b)
	return errA == nil && errB == nil && x == y
}
