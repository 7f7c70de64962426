package contract

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"sync"
	"testing"

	"earn_usdc/internal/app/port"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

var testChainID = big.NewInt(8453)

// fakeBackend answers view calls by selector and records submitted transactions.
type fakeBackend struct {
	port.ChainBackend

	mu        sync.Mutex
	responses map[[4]byte][]byte
	failures  map[[4]byte]error
	sent      []*types.Transaction
	head      uint64
	logs      []types.Log
	filterN   int
	queries   []ethereum.FilterQuery

	headFailures int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		responses: make(map[[4]byte][]byte),
		failures:  make(map[[4]byte]error),
		head:      100,
	}
}

func (b *fakeBackend) respond(t *testing.T, parsed abi.ABI, method string, values ...any) {
	t.Helper()
	m, ok := parsed.Methods[method]
	require.True(t, ok, method)
	out, err := m.Outputs.Pack(values...)
	require.NoError(t, err)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.responses[[4]byte(m.ID)] = out
}

func (b *fakeBackend) fail(parsed abi.ABI, method string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[[4]byte(parsed.Methods[method].ID)] = err
}

func (b *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x1}, nil
}

func (b *fakeBackend) PendingCodeAt(context.Context, common.Address) ([]byte, error) {
	return []byte{0x1}, nil
}

func (b *fakeBackend) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var selector [4]byte
	copy(selector[:], call.Data)
	if err, ok := b.failures[selector]; ok {
		return nil, err
	}
	if out, ok := b.responses[selector]; ok {
		return out, nil
	}
	return nil, errors.New("unexpected call")
}

func (b *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.headFailures > 0 {
		b.headFailures--
		return nil, errors.New("head unavailable")
	}
	b.head++
	return &types.Header{Number: new(big.Int).SetUint64(b.head), BaseFee: big.NewInt(1_000_000)}, nil
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) { return 0, nil }

func (b *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000), nil
}

func (b *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000), nil
}

func (b *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, tx)
	return nil
}

func (b *fakeBackend) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queries = append(b.queries, q)
	b.filterN++
	if b.filterN > 1 {
		return nil, nil
	}
	return b.logs, nil
}

func (b *fakeBackend) filterQueries() []ethereum.FilterQuery {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ethereum.FilterQuery(nil), b.queries...)
}

func (b *fakeBackend) sentTransactions() []*types.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*types.Transaction(nil), b.sent...)
}

type fakeSigner struct {
	key     *ecdsa.PrivateKey
	backend *fakeBackend
}

func newFakeSigner(t *testing.T, backend *fakeBackend) *fakeSigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &fakeSigner{key: key, backend: backend}
}

func (s *fakeSigner) Address() common.Address { return crypto.PubkeyToAddress(s.key.PublicKey) }

func (s *fakeSigner) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(s.key, testChainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	return opts, nil
}

func (s *fakeSigner) Backend() port.ChainBackend { return s.backend }

func (s *fakeSigner) SupportsSubscriptions() bool { return false }
