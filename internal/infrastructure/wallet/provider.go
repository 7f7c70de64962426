// Package wallet implements a local keyed wallet that speaks the same request/event protocol
// as a browser-injected provider.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"earn_usdc/internal/app/port"
	"earn_usdc/internal/domain/entity"
	networkclient "earn_usdc/internal/infrastructure/network/client"
	networkdefinition "earn_usdc/internal/infrastructure/network/definition"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Provider error codes besides the ones the application reacts to.
const (
	codeUnauthorized      = 4100
	codeUnsupportedMethod = 4200
	codeInvalidParams     = -32602
	codeInternal          = -32603
)

// MethodRevokePermissions drops the account authorization, like a user disconnecting the site.
const MethodRevokePermissions = "wallet_revokePermissions"

// Backend is a chain connection the wallet can sign against.
type Backend interface {
	port.ChainBackend
	SupportsSubscriptions() bool
}

// Connector opens chain connections for network descriptors.
type Connector interface {
	Connect(ctx context.Context, desc entity.NetworkDescriptor) (Backend, error)
}

type rpcConnector struct {
	clients *networkclient.Provider
}

// NewRPCConnector adapts the cached EVM client provider to Connector.
func NewRPCConnector(clients *networkclient.Provider) Connector {
	return &rpcConnector{clients: clients}
}

func (c *rpcConnector) Connect(ctx context.Context, desc entity.NetworkDescriptor) (Backend, error) {
	evm, err := c.clients.GetClient(ctx, desc)
	if err != nil {
		return nil, err
	}
	return evm, nil
}

// Provider implements port.WalletProvider for a single private key.
type Provider struct {
	key       *ecdsa.PrivateKey
	address   common.Address
	connector Connector
	networks  *networkdefinition.Registry
	logger    port.Logger

	mu         sync.Mutex
	current    entity.NetworkDescriptor
	backend    Backend
	authorized bool
	listeners  map[string]map[port.ListenerID]func(args ...any)
	nextID     port.ListenerID
}

// NewProvider creates a wallet sitting on start, reachable through backend. The start network is
// the only one the wallet knows until another is added.
func NewProvider(key *ecdsa.PrivateKey, start entity.NetworkDescriptor, backend Backend, connector Connector, logger port.Logger) *Provider {
	return &Provider{
		key:       key,
		address:   crypto.PubkeyToAddress(key.PublicKey),
		connector: connector,
		networks:  networkdefinition.NewRegistry(logger, start),
		logger:    logger.With("component", "LocalWallet"),
		current:   start,
		backend:   backend,
		listeners: make(map[string]map[port.ListenerID]func(args ...any)),
	}
}

// Open dials rpcURL, describes the chain it serves and returns a wallet sitting on it.
func Open(ctx context.Context, key *ecdsa.PrivateKey, rpcURL string, clients *networkclient.Provider, logger port.Logger) (*Provider, error) {
	evm, err := clients.Open(ctx, []string{rpcURL})
	if err != nil {
		return nil, fmt.Errorf("failed to open wallet network: %w", err)
	}
	start := networkdefinition.Describe(evm.DialedChainID(), evm.URL())
	logger.Info("Local wallet network opened", "chainId", start.ChainID, "name", start.ChainName)
	return NewProvider(key, start, evm, NewRPCConnector(clients), logger), nil
}

// Flags reports a local keystore wallet.
func (p *Provider) Flags() entity.ProviderFlags {
	return entity.ProviderFlags{IsLocalKeystore: true}
}

// Request dispatches an EIP-1193 request.
func (p *Provider) Request(ctx context.Context, method string, params ...any) (any, error) {
	switch method {
	case port.MethodRequestAccounts:
		return p.requestAccounts(), nil
	case port.MethodAccounts:
		p.mu.Lock()
		defer p.mu.Unlock()
		if !p.authorized {
			return []string{}, nil
		}
		return []string{p.address.Hex()}, nil
	case port.MethodChainID:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.current.ChainID, nil
	case port.MethodSwitchChain:
		return nil, p.switchChain(ctx, params)
	case port.MethodAddChain:
		return nil, p.addChain(ctx, params)
	case MethodRevokePermissions:
		p.revoke()
		return nil, nil
	default:
		return nil, &entity.ProviderError{Code: codeUnsupportedMethod, Message: "unsupported method " + method}
	}
}

func (p *Provider) requestAccounts() []string {
	p.mu.Lock()
	changed := !p.authorized
	p.authorized = true
	p.mu.Unlock()

	accounts := []string{p.address.Hex()}
	if changed {
		p.logger.Info("Account authorized", "account", p.address.Hex())
		p.emit(port.EventAccountsChanged, accounts)
	}
	return accounts
}

func (p *Provider) revoke() {
	p.mu.Lock()
	changed := p.authorized
	p.authorized = false
	p.mu.Unlock()

	if changed {
		p.logger.Info("Account authorization revoked", "account", p.address.Hex())
		p.emit(port.EventAccountsChanged, []string{})
	}
}

func (p *Provider) switchChain(ctx context.Context, params []any) error {
	chainID, err := switchTarget(params)
	if err != nil {
		return &entity.ProviderError{Code: codeInvalidParams, Message: err.Error()}
	}

	desc, known := p.networks.Get(chainID)
	if !known {
		return &entity.ProviderError{Code: entity.ProviderCodeUnknownChain, Message: "Unrecognized chain ID " + chainID}
	}
	return p.activate(ctx, desc)
}

func (p *Provider) addChain(ctx context.Context, params []any) error {
	desc, err := addTarget(params)
	if err != nil {
		return &entity.ProviderError{Code: codeInvalidParams, Message: err.Error()}
	}
	if err := p.networks.Add(desc); err != nil {
		return &entity.ProviderError{Code: codeInvalidParams, Message: err.Error()}
	}
	registered, _ := p.networks.Get(desc.ChainID)
	return p.activate(ctx, registered)
}

// activate moves the wallet onto desc and announces chainChanged when the chain differs.
func (p *Provider) activate(ctx context.Context, desc entity.NetworkDescriptor) error {
	p.mu.Lock()
	same := sameChain(p.current.ChainID, desc.ChainID)
	p.mu.Unlock()
	if same {
		return nil
	}

	backend, err := p.connector.Connect(ctx, desc)
	if err != nil {
		p.logger.Error("Failed to connect to network", "chainId", desc.ChainID, "error", err)
		return &entity.ProviderError{Code: codeInternal, Message: err.Error()}
	}

	p.mu.Lock()
	p.current = desc
	p.backend = backend
	p.mu.Unlock()

	p.logger.Info("Switched network", "chainId", desc.ChainID, "name", desc.ChainName)
	p.emit(port.EventChainChanged, desc.ChainID)
	return nil
}

// On registers handler for event.
func (p *Provider) On(event string, handler func(args ...any)) port.ListenerID {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	if p.listeners[event] == nil {
		p.listeners[event] = make(map[port.ListenerID]func(args ...any))
	}
	p.listeners[event][p.nextID] = handler
	return p.nextID
}

// RemoveListener unregisters a handler added with On. Unknown ids are ignored.
func (p *Provider) RemoveListener(event string, id port.ListenerID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.listeners[event], id)
	if len(p.listeners[event]) == 0 {
		delete(p.listeners, event)
	}
}

// ListenerCount returns the number of handlers registered for event.
func (p *Provider) ListenerCount(event string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners[event])
}

func (p *Provider) emit(event string, args ...any) {
	p.mu.Lock()
	handlers := make([]func(args ...any), 0, len(p.listeners[event]))
	for _, h := range p.listeners[event] {
		handlers = append(handlers, h)
	}
	p.mu.Unlock()

	for _, h := range handlers {
		h(args...)
	}
}

// Signer returns a transaction signer for the current chain. The account must be authorized.
func (p *Provider) Signer(ctx context.Context) (port.Signer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.authorized {
		return nil, &entity.ProviderError{Code: codeUnauthorized, Message: "account not authorized"}
	}
	chainID, err := p.current.NumericChainID()
	if err != nil {
		return nil, err
	}
	return &keyedSigner{
		key:     p.key,
		address: p.address,
		chainID: new(big.Int).SetUint64(chainID),
		backend: p.backend,
	}, nil
}

type keyedSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	backend Backend
}

func (s *keyedSigner) Address() common.Address     { return s.address }
func (s *keyedSigner) Backend() port.ChainBackend  { return s.backend }
func (s *keyedSigner) SupportsSubscriptions() bool { return s.backend.SupportsSubscriptions() }

func (s *keyedSigner) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(s.key, s.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	return opts, nil
}

func sameChain(a, b string) bool {
	x, errA := entity.ParseHexChainID(a)
	y, errB := entity.ParseHexChainID(b)
	return errA == nil && errB == nil && x == y
}

func switchTarget(params []any) (string, error) {
	if len(params) == 0 {
		return "", fmt.Errorf("missing chain parameter")
	}
	switch v := params[0].(type) {
	case entity.SwitchChainParameter:
		return v.ChainID, nil
	case *entity.SwitchChainParameter:
		return v.ChainID, nil
	case map[string]any:
		if id, ok := v["chainId"].(string); ok {
			return id, nil
		}
	case string:
		return v, nil
	}
	return "", fmt.Errorf("unsupported chain parameter %T", params[0])
}

func addTarget(params []any) (entity.NetworkDescriptor, error) {
	if len(params) == 0 {
		return entity.NetworkDescriptor{}, fmt.Errorf("missing network parameter")
	}
	switch v := params[0].(type) {
	case entity.NetworkDescriptor:
		return v, nil
	case *entity.NetworkDescriptor:
		return *v, nil
	}
	return entity.NetworkDescriptor{}, fmt.Errorf("unsupported network parameter %T", params[0])
}
