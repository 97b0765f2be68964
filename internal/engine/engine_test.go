package engine

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emperorhan/prediction-indexer/internal/domain/event"
	"github.com/emperorhan/prediction-indexer/internal/retry"
	"github.com/emperorhan/prediction-indexer/internal/store"
	"github.com/emperorhan/prediction-indexer/internal/store/memory"
)

func TestApplyLog_DoubleApplyIsIdempotent(t *testing.T) {
	e, st := newTestEngine(t)
	createAMMMarket(t, e, 100, "0xpoll1", "0xmarket1", "0xcreator")

	buy := mkLog(t, event.NameTokensBought, 102, 0, event.TokensBoughtArgs{
		Market:           "0xmarket1",
		Trader:           "0xalice",
		Side:             "yes",
		CollateralAmount: 100 * usdc,
		FeeAmount:        2 * usdc,
		TokenAmount:      95 * usdc,
	})
	apply(t, e, buy)
	first := getMarket(t, st, "0xmarket1")

	// Duplicate through the in-process fast path.
	apply(t, e, buy)
	assert.Equal(t, first, getMarket(t, st, "0xmarket1"))

	// Duplicate through the ledger path, as after a restart.
	e.seen.Reset()
	apply(t, e, buy)
	assert.Equal(t, first, getMarket(t, st, "0xmarket1"))

	ps := getPlatformStats(t, st)
	assert.Equal(t, int64(1), ps.TotalTrades)
	assert.Equal(t, 100*usdc, ps.TotalVolume)
}

func TestApplyLog_WrongDecodePayloadIsAnomaly(t *testing.T) {
	e, st := newTestEngine(t)

	lg := mkLog(t, event.NameTokensBought, 10, 0, "not-an-object")
	apply(t, e, lg)

	// Recorded in the ledger so it is never reprocessed, but no entity rows.
	assert.True(t, hasApplied(t, st, lg))
	assert.Nil(t, getPlatformStats(t, st))
}

func TestApplyLog_UnknownEventIsAnomaly(t *testing.T) {
	e, st := newTestEngine(t)

	lg := mkLog(t, "SomethingNew", 10, 0, struct{}{})
	apply(t, e, lg)
	assert.True(t, hasApplied(t, st, lg))
}

func TestApplyLog_AnomalyDoesNotMutateState(t *testing.T) {
	e, st := newTestEngine(t)
	createAMMMarket(t, e, 100, "0xpoll1", "0xmarket1", "0xcreator")
	before := getPlatformStats(t, st)

	// Duplicate market creation is an anomaly, not an error.
	dup := mkLog(t, event.NameMarketCreated, 105, 0, event.MarketCreatedArgs{
		Market:  "0xmarket1",
		Poll:    "0xpoll1",
		Creator: "0xsomeoneelse",
	})
	apply(t, e, dup)

	assert.True(t, hasApplied(t, st, dup))
	after := getPlatformStats(t, st)
	assert.Equal(t, before.TotalMarkets, after.TotalMarkets)
	assert.Equal(t, before.TotalUsers, after.TotalUsers)
	assert.Equal(t, "0xcreator", getMarket(t, st, "0xmarket1").Creator)
}

func TestApplyLog_OverflowIsTerminal(t *testing.T) {
	e, _ := newTestEngine(t)
	createAMMMarket(t, e, 100, "0xpoll1", "0xmarket1", "0xcreator")

	apply(t, e, mkLog(t, event.NameTokensBought, 102, 0, event.TokensBoughtArgs{
		Market:           "0xmarket1",
		Trader:           "0xalice",
		Side:             "yes",
		CollateralAmount: math.MaxInt64,
	}))

	overflowing := mkLog(t, event.NameTokensBought, 103, 0, event.TokensBoughtArgs{
		Market:           "0xmarket1",
		Trader:           "0xalice",
		Side:             "yes",
		CollateralAmount: 1,
	})
	err := e.applyLogWithRetry(context.Background(), overflowing)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMoneyOverflow)
	assert.Contains(t, err.Error(), "terminal_failure")

	decision := retry.Classify(err)
	assert.False(t, decision.IsTransient())
	assert.Equal(t, "message_terminal", decision.Reason)
}

func TestApplyLog_WrongChainRejectedByRun(t *testing.T) {
	st := memory.New()
	logsCh := make(chan event.Log, 1)
	revertCh := make(chan event.Revert)
	e := New(testChain, st, logsCh, revertCh, testLogger())

	wrong := mkLog(t, event.NamePollCreated, 1, 0, event.PollCreatedArgs{Poll: "0xp", Creator: "0xc"})
	wrong.ChainID = testChain + 1
	logsCh <- wrong
	close(logsCh)

	require.NoError(t, e.Run(context.Background()))
	assert.False(t, inTx(t, st, func(tx store.Tx) (bool, error) {
		return tx.HasApplied(context.Background(), wrong.ChainID, wrong.TxHash, wrong.LogIndex)
	}))
}

func TestRun_RevertOutranksQueuedLogs(t *testing.T) {
	st := memory.New()
	logsCh := make(chan event.Log, 4)
	revertCh := make(chan event.Revert, 1)
	e := New(testChain, st, logsCh, revertCh, testLogger())

	createAMMMarket(t, e, 100, "0xpoll1", "0xmarket1", "0xcreator")

	// Dead branch: a buy at block 200 that the chain later reorgs away.
	dead := mkLog(t, event.NameTokensBought, 200, 0, event.TokensBoughtArgs{
		Market:           "0xmarket1",
		Trader:           "0xalice",
		Side:             "yes",
		CollateralAmount: 100 * usdc,
	})
	apply(t, e, dead)

	// The follower emits the revert and then the replacement branch. Both
	// sit queued before the engine runs again; the revert must win, or the
	// compensation would delete the replacement's rows.
	replacement := mkLog(t, event.NameTokensBought, 200, 0, event.TokensBoughtArgs{
		Market:           "0xmarket1",
		Trader:           "0xalice",
		Side:             "yes",
		CollateralAmount: 77 * usdc,
	})
	replacement.TxHash = "0xtx000200b"
	revertCh <- event.Revert{ChainID: testChain, FromBlock: 200}
	logsCh <- replacement
	close(revertCh)
	close(logsCh)

	require.NoError(t, e.Run(context.Background()))

	assert.Equal(t, 77*usdc, getMarket(t, st, "0xmarket1").TotalVolume)
	assert.False(t, hasApplied(t, st, dead))
	assert.True(t, hasApplied(t, st, replacement))
}

func TestApplyLogWithRetry_TransientExhaustion(t *testing.T) {
	e, _ := newTestEngine(t, WithRetryConfig(3, time.Millisecond, 2*time.Millisecond))

	var sleeps int
	e.sleepFn = func(ctx context.Context, d time.Duration) error {
		sleeps++
		return nil
	}

	// A store that always fails transiently.
	e.db = failingStore{err: retry.Transient(assert.AnError)}

	lg := mkLog(t, event.NamePollCreated, 1, 0, event.PollCreatedArgs{Poll: "0xp", Creator: "0xc"})
	err := e.applyLogWithRetry(context.Background(), lg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transient_recovery_exhausted")
	assert.Equal(t, 2, sleeps)
}

func TestApplyLogWithRetry_TerminalFailsFast(t *testing.T) {
	e, _ := newTestEngine(t, WithRetryConfig(3, time.Millisecond, 2*time.Millisecond))

	var sleeps int
	e.sleepFn = func(ctx context.Context, d time.Duration) error {
		sleeps++
		return nil
	}
	e.db = failingStore{err: retry.Terminal(assert.AnError)}

	lg := mkLog(t, event.NamePollCreated, 1, 0, event.PollCreatedArgs{Poll: "0xp", Creator: "0xc"})
	err := e.applyLogWithRetry(context.Background(), lg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terminal_failure")
	assert.Zero(t, sleeps)
}

func TestRetryDelay_GrowthAndCap(t *testing.T) {
	e, _ := newTestEngine(t, WithRetryConfig(5, 100*time.Millisecond, 400*time.Millisecond))

	for attempt, bounds := range map[int][2]time.Duration{
		1: {100 * time.Millisecond, 125 * time.Millisecond},
		2: {200 * time.Millisecond, 250 * time.Millisecond},
		3: {400 * time.Millisecond, 500 * time.Millisecond},
		4: {400 * time.Millisecond, 500 * time.Millisecond},
	} {
		d := e.retryDelay(attempt)
		assert.GreaterOrEqual(t, d, bounds[0], "attempt %d", attempt)
		assert.LessOrEqual(t, d, bounds[1], "attempt %d", attempt)
	}
}

func TestCheckOrdering_TracksLastPosition(t *testing.T) {
	e, _ := newTestEngine(t)

	e.checkOrdering(mkLog(t, event.NamePollCreated, 10, 0, struct{}{}))
	assert.True(t, e.haveLast)
	assert.Equal(t, int64(10), e.lastBlock)

	// Regression in block number is survivable; state still advances.
	e.checkOrdering(mkLog(t, event.NamePollCreated, 9, 0, struct{}{}))
	assert.Equal(t, int64(9), e.lastBlock)
}
