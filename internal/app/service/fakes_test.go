package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"earn_usdc/internal/app/port"
	"earn_usdc/internal/config"
	"earn_usdc/internal/domain/entity"
	"earn_usdc/internal/pkg/notify"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	earnAddress  = common.HexToAddress(config.EarnUSDCAddress)
	tokenAddress = common.HexToAddress(config.USDCAddress)
	testAccount  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

// journal is an ordered log shared by fake contract handles.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(entry string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

func (j *journal) count(entry string) int {
	n := 0
	for _, e := range j.all() {
		if e == entry {
			n++
		}
	}
	return n
}

type fakeHandle struct {
	name    string
	address common.Address
	journal *journal

	mu          sync.Mutex
	nonce       uint64
	transactErr map[string]error
	waitErr     error
	status      uint64
	gates       map[string]chan struct{}
	methods     map[common.Hash]string
}

func newFakeHandle(name string, address common.Address, j *journal) *fakeHandle {
	return &fakeHandle{
		name:        name,
		address:     address,
		journal:     j,
		transactErr: make(map[string]error),
		status:      types.ReceiptStatusSuccessful,
		gates:       make(map[string]chan struct{}),
		methods:     make(map[common.Hash]string),
	}
}

func (h *fakeHandle) Name() string            { return h.name }
func (h *fakeHandle) Address() common.Address { return h.address }

func (h *fakeHandle) gate(method string) chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	g := make(chan struct{})
	h.gates[method] = g
	return g
}

func (h *fakeHandle) Transact(ctx context.Context, method string, _ ...any) (*types.Transaction, error) {
	h.journal.add("submit:" + method)

	h.mu.Lock()
	gate := h.gates[method]
	err := h.transactErr[method]
	h.nonce++
	tx := types.NewTx(&types.LegacyTx{Nonce: h.nonce, To: &h.address, Gas: 21000, GasPrice: big.NewInt(1), Data: []byte(method)})
	h.methods[tx.Hash()] = method
	h.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (h *fakeHandle) WaitMined(_ context.Context, tx *types.Transaction) (*types.Receipt, error) {
	h.mu.Lock()
	method := h.methods[tx.Hash()]
	status, waitErr := h.status, h.waitErr
	h.mu.Unlock()

	h.journal.add("mined:" + method)
	if waitErr != nil {
		return nil, waitErr
	}
	return &types.Receipt{Status: status, TxHash: tx.Hash(), BlockNumber: big.NewInt(1)}, nil
}

// fakeEventSource is a testify mock of port.EventSource that keeps the registered handlers.
type fakeEventSource struct {
	mock.Mock

	mu       sync.Mutex
	handlers map[string]func(entity.ContractEvent)
	active   int
}

func newFakeEventSource() *fakeEventSource {
	return &fakeEventSource{handlers: make(map[string]func(entity.ContractEvent))}
}

func (s *fakeEventSource) WatchEvent(ctx context.Context, eventName string, kind entity.ContractEventKind, handler func(entity.ContractEvent)) (func(), error) {
	args := s.Called(eventName, kind)
	if err := args.Error(0); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[eventName] = handler
	s.active++
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.handlers, eventName)
			s.active--
		})
	}, nil
}

func (s *fakeEventSource) fire(eventName string, ev entity.ContractEvent) {
	s.mu.Lock()
	h := s.handlers[eventName]
	s.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

func (s *fakeEventSource) activeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

type fakeGateway struct {
	mu           sync.Mutex
	connected    bool
	connectErr   error
	readErr      error
	tokenBalance *big.Int
	deposit      *big.Int
	reward       *big.Int
	allowance    *big.Int
	apr          decimal.Decimal
	rates        entity.ReferralRates
	calls        map[string]int

	balanceGate    chan struct{}
	balanceGates   []chan struct{}
	balanceEntered chan struct{}

	journal *journal
	earn    *fakeHandle
	token   *fakeHandle
	events  *fakeEventSource
}

func newFakeGateway() *fakeGateway {
	j := &journal{}
	events := newFakeEventSource()
	events.On("WatchEvent", mock.Anything, mock.Anything).Return(nil)
	return &fakeGateway{
		tokenBalance: big.NewInt(25_000_000),
		deposit:      big.NewInt(10_000_000),
		reward:       big.NewInt(12_345),
		allowance:    big.NewInt(0),
		apr:          decimal.RequireFromString("12.5"),
		rates:        entity.ReferralRates{Referrer: decimal.NewFromInt(5), Referred: decimal.RequireFromString("2.5")},
		calls:        make(map[string]int),
		journal:      j,
		earn:         newFakeHandle("EarnUSDC", earnAddress, j),
		token:        newFakeHandle("USDC", tokenAddress, j),
		events:       events,
	}
}

func (g *fakeGateway) record(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[name]++
	if !g.connected {
		return entity.ErrNotConnected
	}
	return g.readErr
}

func (g *fakeGateway) callCount(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[name]
}

func (g *fakeGateway) setReadErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.readErr = err
}

func (g *fakeGateway) Connect(context.Context, port.Signer) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["Connect"]++
	if g.connectErr != nil {
		return g.connectErr
	}
	g.connected = true
	return nil
}

func (g *fakeGateway) Disconnect() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connected = false
}

func (g *fakeGateway) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connected
}

func (g *fakeGateway) Account() (common.Address, error) {
	if err := g.record("Account"); err != nil {
		return common.Address{}, err
	}
	return testAccount, nil
}

func (g *fakeGateway) GetTokenBalance(ctx context.Context) (*big.Int, error) {
	g.mu.Lock()
	gate, entered := g.balanceGate, g.balanceEntered
	if len(g.balanceGates) > 0 {
		gate, g.balanceGates = g.balanceGates[0], g.balanceGates[1:]
	}
	g.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err := g.record("GetTokenBalance"); err != nil {
		return nil, err
	}
	return g.tokenBalance, nil
}

func (g *fakeGateway) GetDepositBalance(context.Context) (*big.Int, error) {
	if err := g.record("GetDepositBalance"); err != nil {
		return nil, err
	}
	return g.deposit, nil
}

func (g *fakeGateway) GetPendingReward(context.Context) (*big.Int, error) {
	if err := g.record("GetPendingReward"); err != nil {
		return nil, err
	}
	return g.reward, nil
}

func (g *fakeGateway) GetAnnualRate(context.Context) (decimal.Decimal, error) {
	if err := g.record("GetAnnualRate"); err != nil {
		return decimal.Zero, err
	}
	return g.apr, nil
}

func (g *fakeGateway) GetReferralRates(context.Context) (entity.ReferralRates, error) {
	if err := g.record("GetReferralRates"); err != nil {
		return entity.ReferralRates{}, err
	}
	return g.rates, nil
}

func (g *fakeGateway) GetAllowance(context.Context) (*big.Int, error) {
	if err := g.record("GetAllowance"); err != nil {
		return nil, err
	}
	return g.allowance, nil
}

func (g *fakeGateway) PrepareApproval(amount *big.Int) (entity.PreparedTransaction, error) {
	return entity.PreparedTransaction{Target: g.token, Method: "approve", Args: []any{earnAddress, amount}, Description: config.DescApprove}, nil
}

func (g *fakeGateway) PrepareDeposit(amount, referralCode *big.Int) (entity.PreparedTransaction, error) {
	if referralCode == nil {
		referralCode = big.NewInt(0)
	}
	return entity.PreparedTransaction{Target: g.earn, Method: "depositFunds", Args: []any{amount, referralCode}, Description: config.DescDeposit}, nil
}

func (g *fakeGateway) PrepareWithdraw(amount *big.Int) (entity.PreparedTransaction, error) {
	return entity.PreparedTransaction{Target: g.earn, Method: "withdraw", Args: []any{amount}, Description: config.DescWithdraw}, nil
}

func (g *fakeGateway) PrepareClaimReward() (entity.PreparedTransaction, error) {
	return entity.PreparedTransaction{Target: g.earn, Method: "claimDepositReward", Args: []any{}, Description: config.DescClaim}, nil
}

func (g *fakeGateway) YieldEvents() (port.EventSource, error) {
	if !g.Connected() {
		return nil, entity.ErrNotConnected
	}
	return g.events, nil
}

type stubSigner struct{ address common.Address }

func (s stubSigner) Address() common.Address { return s.address }
func (s stubSigner) TransactOpts(context.Context) (*bind.TransactOpts, error) {
	return nil, errors.New("not used")
}
func (s stubSigner) Backend() port.ChainBackend  { return nil }
func (s stubSigner) SupportsSubscriptions() bool { return false }

type providerRequest struct {
	method string
	params []any
}

// fakeProvider is a scriptable wallet provider.
type fakeProvider struct {
	mu         sync.Mutex
	chainID    string
	known      map[string]bool
	accounts   []string
	authorized bool
	switchErr  error
	addErr     error
	signerErr  error
	flags      entity.ProviderFlags
	requests   []providerRequest
	listeners  map[string]map[port.ListenerID]func(args ...any)
	nextID     port.ListenerID
}

func newFakeProvider(chainID string) *fakeProvider {
	return &fakeProvider{
		chainID:   chainID,
		known:     map[string]bool{chainID: true},
		accounts:  []string{testAccount.Hex()},
		flags:     entity.ProviderFlags{IsMetaMask: true},
		listeners: make(map[string]map[port.ListenerID]func(args ...any)),
	}
}

func (p *fakeProvider) Request(_ context.Context, method string, params ...any) (any, error) {
	p.mu.Lock()
	p.requests = append(p.requests, providerRequest{method: method, params: params})

	switch method {
	case port.MethodAccounts:
		defer p.mu.Unlock()
		if !p.authorized {
			return []string{}, nil
		}
		return append([]string(nil), p.accounts...), nil
	case port.MethodRequestAccounts:
		changed := !p.authorized
		p.authorized = true
		accounts := append([]string(nil), p.accounts...)
		p.mu.Unlock()
		if changed {
			p.emit(port.EventAccountsChanged, accounts)
		}
		return accounts, nil
	case port.MethodChainID:
		defer p.mu.Unlock()
		return p.chainID, nil
	case port.MethodSwitchChain:
		if p.switchErr != nil {
			defer p.mu.Unlock()
			return nil, p.switchErr
		}
		target := params[0].(entity.SwitchChainParameter).ChainID
		if !p.known[target] {
			p.mu.Unlock()
			return nil, &entity.ProviderError{Code: entity.ProviderCodeUnknownChain, Message: "Unrecognized chain ID"}
		}
		p.chainID = target
		p.mu.Unlock()
		p.emit(port.EventChainChanged, target)
		return nil, nil
	case port.MethodAddChain:
		if p.addErr != nil {
			defer p.mu.Unlock()
			return nil, p.addErr
		}
		desc := params[0].(entity.NetworkDescriptor)
		p.known[desc.ChainID] = true
		p.chainID = desc.ChainID
		p.mu.Unlock()
		p.emit(port.EventChainChanged, desc.ChainID)
		return nil, nil
	}
	p.mu.Unlock()
	return nil, fmt.Errorf("unexpected method %s", method)
}

func (p *fakeProvider) On(event string, handler func(args ...any)) port.ListenerID {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	if p.listeners[event] == nil {
		p.listeners[event] = make(map[port.ListenerID]func(args ...any))
	}
	p.listeners[event][p.nextID] = handler
	return p.nextID
}

func (p *fakeProvider) RemoveListener(event string, id port.ListenerID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.listeners[event], id)
}

func (p *fakeProvider) listenerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, hs := range p.listeners {
		n += len(hs)
	}
	return n
}

func (p *fakeProvider) emit(event string, args ...any) {
	p.mu.Lock()
	var handlers []func(args ...any)
	for _, h := range p.listeners[event] {
		handlers = append(handlers, h)
	}
	p.mu.Unlock()
	for _, h := range handlers {
		h(args...)
	}
}

func (p *fakeProvider) Flags() entity.ProviderFlags { return p.flags }

func (p *fakeProvider) Signer(context.Context) (port.Signer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.signerErr != nil {
		return nil, p.signerErr
	}
	return stubSigner{address: testAccount}, nil
}

func (p *fakeProvider) requestsFor(method string) []providerRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []providerRequest
	for _, r := range p.requests {
		if r.method == method {
			out = append(out, r)
		}
	}
	return out
}

// waitFor reads sub until a notification of topic arrives.
func waitFor(t *testing.T, sub *notify.Subscription, topic entity.Topic) entity.Notification {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case n, ok := <-sub.C:
			require.True(t, ok, "subscription closed while waiting for %s", topic)
			if n.Topic == topic {
				return n
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", topic)
		}
	}
}
