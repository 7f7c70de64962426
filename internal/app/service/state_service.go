package service

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"earn_usdc/internal/app/port"
	"earn_usdc/internal/domain/entity"
	"earn_usdc/internal/pkg/metrics"

	"github.com/puzpuzpuz/xsync/v2"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// pollToken marks one running poll in the in-progress set. Only the poll that stored it may
// remove it.
type pollToken struct{ generation uint64 }

// StateService holds the application snapshots and keeps them fresh by polling the gateway.
type StateService struct {
	gateway         port.ContractGateway
	bus             port.Publisher
	logger          port.Logger
	balanceInterval time.Duration
	rateInterval    time.Duration
	now             func() time.Time

	inProgress *xsync.MapOf[string, *pollToken]
	state      atomic.Pointer[entity.AppState]
	generation atomic.Uint64

	mu sync.Mutex

	schedMu   sync.Mutex
	scheduler *cron.Cron
	cancel    context.CancelFunc
}

// NewStateService creates a StateService with zeroed snapshots.
func NewStateService(gateway port.ContractGateway, bus port.Publisher, balanceInterval, rateInterval time.Duration, logger port.Logger) *StateService {
	s := &StateService{
		gateway:         gateway,
		bus:             bus,
		logger:          logger.With("component", "StateService"),
		balanceInterval: balanceInterval,
		rateInterval:    rateInterval,
		now:             time.Now,
		inProgress:      xsync.NewMapOf[*pollToken](),
	}
	zero := entity.ZeroAppState()
	s.state.Store(&zero)
	return s
}

// Initialize runs the balance, reward and rate polls concurrently and then schedules the
// periodic balance and rate polls.
func (s *StateService) Initialize(ctx context.Context) error {
	if !s.gateway.Connected() {
		return entity.ErrNotConnected
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { s.RefreshBalances(egCtx); return nil })
	eg.Go(func() error { s.RefreshRewards(egCtx); return nil })
	eg.Go(func() error { s.RefreshRates(egCtx); return nil })
	_ = eg.Wait()

	s.startPeriodicUpdates()
	s.logger.Info("Application state initialized")
	return nil
}

func (s *StateService) startPeriodicUpdates() {
	s.schedMu.Lock()
	defer s.schedMu.Unlock()
	s.stopPeriodicUpdatesLocked()

	pollCtx, cancel := context.WithCancel(context.Background())
	scheduler := cron.New()
	scheduler.Schedule(cron.Every(s.balanceInterval), cron.FuncJob(func() { s.RefreshBalances(pollCtx) }))
	scheduler.Schedule(cron.Every(s.rateInterval), cron.FuncJob(func() { s.RefreshRates(pollCtx) }))
	scheduler.Start()

	s.scheduler = scheduler
	s.cancel = cancel
	s.logger.Debug("Periodic updates started", "balanceInterval", s.balanceInterval, "rateInterval", s.rateInterval)
}

func (s *StateService) stopPeriodicUpdatesLocked() {
	if s.scheduler == nil {
		return
	}
	s.cancel()
	s.scheduler.Stop()
	s.scheduler = nil
	s.cancel = nil
}

// RefreshBalances polls token and deposit balances.
func (s *StateService) RefreshBalances(ctx context.Context) {
	s.refresh(ctx, entity.SnapshotBalances, func(ctx context.Context) (func(*entity.AppState), error) {
		var tokenBalance, depositBalance *big.Int
		eg, egCtx := errgroup.WithContext(ctx)
		eg.Go(func() (err error) {
			tokenBalance, err = s.gateway.GetTokenBalance(egCtx)
			return err
		})
		eg.Go(func() (err error) {
			depositBalance, err = s.gateway.GetDepositBalance(egCtx)
			return err
		})
		if err := eg.Wait(); err != nil {
			return nil, err
		}

		snapshot := entity.BalanceSnapshot{TokenBalance: tokenBalance, DepositedBalance: depositBalance, CapturedAt: s.now()}
		return func(st *entity.AppState) { st.Balances = snapshot }, nil
	})
}

// RefreshRewards polls the pending reward.
func (s *StateService) RefreshRewards(ctx context.Context) {
	s.refresh(ctx, entity.SnapshotRewards, func(ctx context.Context) (func(*entity.AppState), error) {
		pending, err := s.gateway.GetPendingReward(ctx)
		if err != nil {
			return nil, err
		}
		snapshot := entity.RewardSnapshot{PendingReward: pending, CapturedAt: s.now()}
		return func(st *entity.AppState) { st.Rewards = snapshot }, nil
	})
}

// RefreshRates polls the APR and both referral rates.
func (s *StateService) RefreshRates(ctx context.Context) {
	s.refresh(ctx, entity.SnapshotRates, func(ctx context.Context) (func(*entity.AppState), error) {
		var snapshot entity.RateSnapshot
		eg, egCtx := errgroup.WithContext(ctx)
		eg.Go(func() (err error) {
			snapshot.AnnualPercentageRate, err = s.gateway.GetAnnualRate(egCtx)
			return err
		})
		eg.Go(func() error {
			rates, err := s.gateway.GetReferralRates(egCtx)
			snapshot.ReferrerRate = rates.Referrer
			snapshot.ReferredRate = rates.Referred
			return err
		})
		if err := eg.Wait(); err != nil {
			return nil, err
		}

		snapshot.CapturedAt = s.now()
		return func(st *entity.AppState) { st.Rates = snapshot }, nil
	})
}

// refresh runs one guarded poll of kind. A poll of the same kind already in flight makes this
// call a no-op. Failures are logged and swallowed.
func (s *StateService) refresh(ctx context.Context, kind entity.SnapshotKind, poll func(context.Context) (func(*entity.AppState), error)) {
	key := string(kind)
	generation := s.generation.Load()
	token := &pollToken{generation: generation}
	if _, running := s.inProgress.LoadOrStore(key, token); running {
		metrics.PollsTotal.WithLabelValues(key, "skipped").Inc()
		s.logger.Debug("Poll already in progress, skipping", "kind", key)
		return
	}
	defer s.release(key, token)

	apply, err := poll(ctx)
	if err != nil {
		metrics.PollsTotal.WithLabelValues(key, "error").Inc()
		s.logger.Error("State poll failed", "kind", key, "error", err)
		return
	}

	updated, ok := s.update(generation, apply)
	if !ok {
		s.logger.Debug("Discarding poll result after cleanup", "kind", key)
		return
	}
	metrics.PollsTotal.WithLabelValues(key, "ok").Inc()
	s.notifyStateChanged(kind, updated)
}

// release removes key from the in-progress set if token still owns it. After Cleanup a newer
// poll may hold the key.
func (s *StateService) release(key string, token *pollToken) {
	s.inProgress.Compute(key, func(current *pollToken, loaded bool) (*pollToken, bool) {
		return current, !loaded || current == token
	})
}

// update swaps in a modified copy of the state unless Cleanup ran since generation was read.
func (s *StateService) update(generation uint64, apply func(*entity.AppState)) (entity.AppState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation.Load() != generation {
		return entity.AppState{}, false
	}
	next := *s.state.Load()
	apply(&next)
	s.state.Store(&next)
	return next, true
}

func (s *StateService) notifyStateChanged(kind entity.SnapshotKind, st entity.AppState) {
	var value any
	switch kind {
	case entity.SnapshotBalances:
		value = cloneBalances(st.Balances)
	case entity.SnapshotRewards:
		value = cloneRewards(st.Rewards)
	case entity.SnapshotRates:
		value = st.Rates
	case entity.SnapshotWallet:
		value = st.Wallet
	}
	s.bus.Publish(entity.TopicStateChanged, entity.StateChanged{Kind: string(kind), Value: value})
}

// UpdateWalletState replaces the wallet state and announces it.
func (s *StateService) UpdateWalletState(connected bool, address string, kind entity.WalletKind) {
	wallet := entity.WalletState{Connected: connected}
	if connected {
		wallet.Address = address
		wallet.Kind = kind
	}
	updated, _ := s.update(s.generation.Load(), func(st *entity.AppState) { st.Wallet = wallet })
	s.notifyStateChanged(entity.SnapshotWallet, updated)
}

// Snapshot returns a copy of the whole state that callers may keep.
func (s *StateService) Snapshot() entity.AppState {
	st := *s.state.Load()
	st.Balances = cloneBalances(st.Balances)
	st.Rewards = cloneRewards(st.Rewards)
	return st
}

// Cleanup stops the timers, clears the in-progress set and zeroes every snapshot. Idempotent.
func (s *StateService) Cleanup() {
	s.schedMu.Lock()
	s.stopPeriodicUpdatesLocked()
	s.schedMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation.Add(1)
	s.inProgress.Range(func(key string, _ *pollToken) bool {
		s.inProgress.Delete(key)
		return true
	})
	zero := entity.ZeroAppState()
	s.state.Store(&zero)
}

// PollInProgress reports whether a poll of kind is currently running.
func (s *StateService) PollInProgress(kind entity.SnapshotKind) bool {
	_, running := s.inProgress.Load(string(kind))
	return running
}

func cloneBalances(b entity.BalanceSnapshot) entity.BalanceSnapshot {
	return entity.BalanceSnapshot{
		TokenBalance:     cloneInt(b.TokenBalance),
		DepositedBalance: cloneInt(b.DepositedBalance),
		CapturedAt:       b.CapturedAt,
	}
}

func cloneRewards(r entity.RewardSnapshot) entity.RewardSnapshot {
	return entity.RewardSnapshot{PendingReward: cloneInt(r.PendingReward), CapturedAt: r.CapturedAt}
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
