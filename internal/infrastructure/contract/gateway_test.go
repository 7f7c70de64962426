package contract

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"earn_usdc/internal/config"
	"earn_usdc/internal/domain/entity"
	"earn_usdc/internal/pkg/logger"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testABIFile = "testdata/EarnUSDC.json"

type countingABIClient struct {
	calls int
	body  []byte
	err   error
}

func (c *countingABIClient) FetchABI(context.Context, string) ([]byte, error) {
	c.calls++
	return c.body, c.err
}

func newTestGateway(t *testing.T) (*Gateway, *fakeBackend, *fakeSigner, abi.ABI) {
	t.Helper()
	loader := NewABILoader(nil, "", testABIFile, time.Minute, logger.NewNop())
	gw := NewGateway(GatewayConfig{
		EarnAddress:     common.HexToAddress(config.EarnUSDCAddress),
		TokenAddress:    common.HexToAddress(config.USDCAddress),
		CallTimeout:     time.Second,
		RateLimit:       1000,
		BurstLimit:      100,
		LogPollInterval: 10 * time.Millisecond,
	}, loader, logger.NewNop())

	backend := newFakeBackend()
	signer := newFakeSigner(t, backend)
	require.NoError(t, gw.Connect(context.Background(), signer))

	earnABI, err := loader.Load(context.Background())
	require.NoError(t, err)
	return gw, backend, signer, earnABI
}

func TestGateway_NotConnected(t *testing.T) {
	loader := NewABILoader(nil, "", testABIFile, time.Minute, logger.NewNop())
	gw := NewGateway(GatewayConfig{}, loader, logger.NewNop())
	ctx := context.Background()

	assert.False(t, gw.Connected())

	_, err := gw.Account()
	assert.ErrorIs(t, err, entity.ErrNotConnected)
	_, err = gw.GetTokenBalance(ctx)
	assert.ErrorIs(t, err, entity.ErrNotConnected)
	_, err = gw.GetDepositBalance(ctx)
	assert.ErrorIs(t, err, entity.ErrNotConnected)
	_, err = gw.GetPendingReward(ctx)
	assert.ErrorIs(t, err, entity.ErrNotConnected)
	_, err = gw.GetAnnualRate(ctx)
	assert.ErrorIs(t, err, entity.ErrNotConnected)
	_, err = gw.GetReferralRates(ctx)
	assert.ErrorIs(t, err, entity.ErrNotConnected)
	_, err = gw.GetAllowance(ctx)
	assert.ErrorIs(t, err, entity.ErrNotConnected)
	_, err = gw.PrepareDeposit(big.NewInt(1), nil)
	assert.ErrorIs(t, err, entity.ErrNotConnected)
	_, err = gw.PrepareWithdraw(big.NewInt(1))
	assert.ErrorIs(t, err, entity.ErrNotConnected)
	_, err = gw.PrepareClaimReward()
	assert.ErrorIs(t, err, entity.ErrNotConnected)
	_, err = gw.PrepareApproval(big.NewInt(1))
	assert.ErrorIs(t, err, entity.ErrNotConnected)
	_, err = gw.YieldEvents()
	assert.ErrorIs(t, err, entity.ErrNotConnected)
}

func TestGateway_ConnectWithoutSigner(t *testing.T) {
	gw := NewGateway(GatewayConfig{}, NewABILoader(nil, "", testABIFile, time.Minute, logger.NewNop()), logger.NewNop())

	err := gw.Connect(context.Background(), nil)

	var envErr *entity.EnvironmentError
	assert.ErrorAs(t, err, &envErr)
	assert.False(t, gw.Connected())
}

func TestGateway_ConnectAbiFailure(t *testing.T) {
	client := &countingABIClient{err: errors.New("404")}
	loader := NewABILoader(client, "https://example.invalid/abi.json", "", time.Minute, logger.NewNop())
	gw := NewGateway(GatewayConfig{}, loader, logger.NewNop())

	err := gw.Connect(context.Background(), newFakeSigner(t, newFakeBackend()))

	var abiErr *entity.AbiLoadError
	require.ErrorAs(t, err, &abiErr)
	assert.Equal(t, "https://example.invalid/abi.json", abiErr.Source)
	assert.False(t, gw.Connected())
}

func TestABILoader_CachesParsedABI(t *testing.T) {
	client := &countingABIClient{body: []byte(`[{"type":"function","name":"currentAPR","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"}]`)}
	loader := NewABILoader(client, "https://example.invalid/abi.json", "", time.Minute, logger.NewNop())

	first, err := loader.Load(context.Background())
	require.NoError(t, err)
	second, err := loader.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, client.calls)
	assert.Contains(t, first.Methods, "currentAPR")
	assert.Contains(t, second.Methods, "currentAPR")
}

func TestABILoader_MissingFile(t *testing.T) {
	loader := NewABILoader(nil, "", "testdata/missing.json", time.Minute, logger.NewNop())

	_, err := loader.Load(context.Background())

	var abiErr *entity.AbiLoadError
	assert.ErrorAs(t, err, &abiErr)
}

func TestGateway_Reads(t *testing.T) {
	gw, backend, signer, earnABI := newTestGateway(t)
	ctx := context.Background()

	backend.respond(t, tokenInterface(), "balanceOf", big.NewInt(25_000_000))
	backend.respond(t, tokenInterface(), "allowance", big.NewInt(5_000_000))
	backend.respond(t, earnABI, "deposits", big.NewInt(10_500_000))
	backend.respond(t, earnABI, "calculateReward", big.NewInt(12_345))
	backend.respond(t, earnABI, "currentAPR", big.NewInt(1250))
	backend.respond(t, earnABI, "referrerRewardRate", big.NewInt(500))
	backend.respond(t, earnABI, "referredRewardRate", big.NewInt(250))

	account, err := gw.Account()
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), account)

	balance, err := gw.GetTokenBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(25_000_000), balance.Int64())

	deposit, err := gw.GetDepositBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10_500_000), deposit.Int64())

	reward, err := gw.GetPendingReward(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12_345), reward.Int64())

	apr, err := gw.GetAnnualRate(ctx)
	require.NoError(t, err)
	assert.Equal(t, "12.5", apr.String())

	rates, err := gw.GetReferralRates(ctx)
	require.NoError(t, err)
	assert.Equal(t, "5", rates.Referrer.String())
	assert.Equal(t, "2.5", rates.Referred.String())

	allowance, err := gw.GetAllowance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5_000_000), allowance.Int64())
}

func TestGateway_ReadFailureIsRpcError(t *testing.T) {
	gw, backend, _, earnABI := newTestGateway(t)
	backend.respond(t, earnABI, "referrerRewardRate", big.NewInt(500))
	backend.fail(earnABI, "referredRewardRate", errors.New("connection reset"))
	backend.fail(earnABI, "deposits", errors.New("connection reset"))

	_, err := gw.GetDepositBalance(context.Background())
	var rpcErr *entity.RpcError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "deposits", rpcErr.Method)

	_, err = gw.GetReferralRates(context.Background())
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "referredRewardRate", rpcErr.Method)
}

func TestGateway_PrepareTransactions(t *testing.T) {
	gw, _, _, _ := newTestGateway(t)
	earnAddress := common.HexToAddress(config.EarnUSDCAddress)
	tokenAddress := common.HexToAddress(config.USDCAddress)

	tests := []struct {
		name        string
		prepare     func() (entity.PreparedTransaction, error)
		target      common.Address
		method      string
		args        []any
		description string
	}{
		{
			name:        "deposit without referral",
			prepare:     func() (entity.PreparedTransaction, error) { return gw.PrepareDeposit(big.NewInt(20000), nil) },
			target:      earnAddress,
			method:      "depositFunds",
			args:        []any{big.NewInt(20000), big.NewInt(0)},
			description: config.DescDeposit,
		},
		{
			name: "deposit with referral",
			prepare: func() (entity.PreparedTransaction, error) {
				return gw.PrepareDeposit(big.NewInt(20000), big.NewInt(42))
			},
			target:      earnAddress,
			method:      "depositFunds",
			args:        []any{big.NewInt(20000), big.NewInt(42)},
			description: config.DescDeposit,
		},
		{
			name:        "withdraw",
			prepare:     func() (entity.PreparedTransaction, error) { return gw.PrepareWithdraw(big.NewInt(15000)) },
			target:      earnAddress,
			method:      "withdraw",
			args:        []any{big.NewInt(15000)},
			description: config.DescWithdraw,
		},
		{
			name:        "claim",
			prepare:     gw.PrepareClaimReward,
			target:      earnAddress,
			method:      "claimDepositReward",
			args:        []any{},
			description: config.DescClaim,
		},
		{
			name:        "approval targets token contract",
			prepare:     func() (entity.PreparedTransaction, error) { return gw.PrepareApproval(big.NewInt(20000)) },
			target:      tokenAddress,
			method:      "approve",
			args:        []any{earnAddress, big.NewInt(20000)},
			description: config.DescApprove,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ptx, err := tt.prepare()
			require.NoError(t, err)
			assert.Equal(t, tt.target, ptx.Target.Address())
			assert.Equal(t, tt.method, ptx.Method)
			assert.Equal(t, tt.args, ptx.Args)
			assert.Equal(t, tt.description, ptx.Description)
		})
	}
}

func TestGateway_DisconnectIsIdempotent(t *testing.T) {
	gw, _, _, _ := newTestGateway(t)
	require.True(t, gw.Connected())

	gw.Disconnect()
	gw.Disconnect()

	assert.False(t, gw.Connected())
	_, err := gw.GetPendingReward(context.Background())
	assert.ErrorIs(t, err, entity.ErrNotConnected)
}

func TestHandle_TransactApprovalOnToken(t *testing.T) {
	gw, backend, _, _ := newTestGateway(t)

	ptx, err := gw.PrepareApproval(big.NewInt(30000))
	require.NoError(t, err)

	tx, err := ptx.Target.Transact(context.Background(), ptx.Method, ptx.Args...)
	require.NoError(t, err)

	sent := backend.sentTransactions()
	require.Len(t, sent, 1)
	assert.Equal(t, tx.Hash(), sent[0].Hash())
	assert.Equal(t, common.HexToAddress(config.USDCAddress), *sent[0].To())
	assert.Equal(t, tokenInterface().Methods["approve"].ID, sent[0].Data()[:4])
}

func TestHandle_WatchEventPolling(t *testing.T) {
	gw, backend, signer, earnABI := newTestGateway(t)

	event := earnABI.Events[config.EventNameDeposit]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(50000))
	require.NoError(t, err)
	backend.logs = []types.Log{{
		Address:     common.HexToAddress(config.EarnUSDCAddress),
		Topics:      []common.Hash{event.ID, common.BytesToHash(signer.Address().Bytes())},
		Data:        data,
		BlockNumber: 101,
		TxHash:      common.HexToHash("0xabc"),
	}}

	source, err := gw.YieldEvents()
	require.NoError(t, err)

	var (
		mu       sync.Mutex
		received []entity.ContractEvent
	)
	unsubscribe, err := source.WatchEvent(context.Background(), config.EventNameDeposit, entity.EventDeposit, func(ev entity.ContractEvent) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, ev)
	})
	require.NoError(t, err)
	defer unsubscribe()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	ev := received[0]
	assert.Equal(t, entity.EventDeposit, ev.Kind)
	assert.Equal(t, config.EventNameDeposit, ev.Name)
	assert.Equal(t, int64(50000), ev.Amount("amount").Int64())
	assert.Equal(t, signer.Address(), ev.Payload["user"])
	assert.Equal(t, uint64(101), ev.BlockNumber)
}

func depositLog(t *testing.T, earnABI abi.ABI, user common.Address) types.Log {
	t.Helper()
	event := earnABI.Events[config.EventNameDeposit]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(50000))
	require.NoError(t, err)
	return types.Log{
		Address:     common.HexToAddress(config.EarnUSDCAddress),
		Topics:      []common.Hash{event.ID, common.BytesToHash(user.Bytes())},
		Data:        data,
		BlockNumber: 101,
		TxHash:      common.HexToHash("0xabc"),
	}
}

func TestHandle_WatchEventPollingWaitsForHead(t *testing.T) {
	gw, backend, _, _ := newTestGateway(t)
	backend.mu.Lock()
	backend.headFailures = 2
	backend.mu.Unlock()

	source, err := gw.YieldEvents()
	require.NoError(t, err)
	unsubscribe, err := source.WatchEvent(context.Background(), config.EventNameDeposit, entity.EventDeposit, func(entity.ContractEvent) {})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(backend.filterQueries()) >= 2
	}, 2*time.Second, 10*time.Millisecond)
	unsubscribe()

	queries := backend.filterQueries()
	assert.Greater(t, queries[0].FromBlock.Uint64(), uint64(100))
	for i, q := range queries {
		assert.LessOrEqual(t, q.FromBlock.Uint64(), q.ToBlock.Uint64(), "query %d", i)
		if i > 0 {
			assert.Equal(t, queries[i-1].ToBlock.Uint64()+1, q.FromBlock.Uint64(), "query %d", i)
		}
	}
}

func TestHandle_UnsubscribeWaitsForHandler(t *testing.T) {
	gw, backend, signer, earnABI := newTestGateway(t)
	backend.logs = []types.Log{depositLog(t, earnABI, signer.Address())}

	source, err := gw.YieldEvents()
	require.NoError(t, err)

	entered, release := make(chan struct{}), make(chan struct{})
	var calls atomic.Int32
	unsubscribe, err := source.WatchEvent(context.Background(), config.EventNameDeposit, entity.EventDeposit, func(entity.ContractEvent) {
		calls.Add(1)
		close(entered)
		<-release
	})
	require.NoError(t, err)

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}

	var returned atomic.Bool
	go func() {
		unsubscribe()
		returned.Store(true)
	}()
	assert.Never(t, returned.Load, 100*time.Millisecond, 10*time.Millisecond)

	close(release)
	require.Eventually(t, returned.Load, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHandle_WatchUnknownEvent(t *testing.T) {
	gw, _, _, _ := newTestGateway(t)
	source, err := gw.YieldEvents()
	require.NoError(t, err)

	_, err = source.WatchEvent(context.Background(), "Nope", entity.EventDeposit, func(entity.ContractEvent) {})
	assert.Error(t, err)
}
