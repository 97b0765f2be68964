package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/emperorhan/prediction-indexer/internal/domain/event"
	"github.com/emperorhan/prediction-indexer/internal/domain/model"
	"github.com/emperorhan/prediction-indexer/internal/store"
	"github.com/emperorhan/prediction-indexer/internal/store/memory"
)

const testChain = model.ChainID(8453)

// Fixed-point with 6 implied decimals, so 1 USDC = 1_000_000.
const usdc = int64(1_000_000)

var testBlockTime = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *memory.Store) {
	t.Helper()
	st := memory.New()
	logsCh := make(chan event.Log)
	revertCh := make(chan event.Revert)
	e := New(testChain, st, logsCh, revertCh, testLogger(), opts...)
	return e, st
}

// mkLog builds a canonical log. Block time advances one second per block so
// rollup buckets are deterministic but distinguishable.
func mkLog(t *testing.T, name string, block, logIndex int64, args any) event.Log {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	return event.Log{
		ChainID:     testChain,
		BlockNumber: block,
		TxIndex:     0,
		LogIndex:    logIndex,
		TxHash:      fmt.Sprintf("0xtx%06d", block),
		BlockTime:   testBlockTime.Add(time.Duration(block) * time.Second),
		Name:        name,
		Args:        raw,
	}
}

func apply(t *testing.T, e *Engine, lg event.Log) {
	t.Helper()
	require.NoError(t, e.applyLog(context.Background(), lg))
}

func inTx[T any](t *testing.T, st *memory.Store, fn func(tx store.Tx) (T, error)) T {
	t.Helper()
	tx, err := st.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()
	v, err := fn(tx)
	require.NoError(t, err)
	return v
}

func getMarket(t *testing.T, st *memory.Store, address string) *model.Market {
	return inTx(t, st, func(tx store.Tx) (*model.Market, error) {
		return tx.GetMarket(context.Background(), testChain, address)
	})
}

func getUser(t *testing.T, st *memory.Store, address string) *model.User {
	return inTx(t, st, func(tx store.Tx) (*model.User, error) {
		return tx.GetUser(context.Background(), testChain, address)
	})
}

func getPoll(t *testing.T, st *memory.Store, address string) *model.Poll {
	return inTx(t, st, func(tx store.Tx) (*model.Poll, error) {
		return tx.GetPoll(context.Background(), testChain, address)
	})
}

func getPlatformStats(t *testing.T, st *memory.Store) *model.PlatformStats {
	return inTx(t, st, func(tx store.Tx) (*model.PlatformStats, error) {
		return tx.GetPlatformStats(context.Background(), testChain)
	})
}

func getDailyStats(t *testing.T, st *memory.Store, at time.Time) *model.DailyStats {
	return inTx(t, st, func(tx store.Tx) (*model.DailyStats, error) {
		return tx.GetDailyStats(context.Background(), testChain, model.DayBucket(at))
	})
}

func getHourlyStats(t *testing.T, st *memory.Store, at time.Time) *model.HourlyStats {
	return inTx(t, st, func(tx store.Tx) (*model.HourlyStats, error) {
		return tx.GetHourlyStats(context.Background(), testChain, model.HourBucket(at))
	})
}

func hasApplied(t *testing.T, st *memory.Store, lg event.Log) bool {
	return inTx(t, st, func(tx store.Tx) (bool, error) {
		return tx.HasApplied(context.Background(), lg.ChainID, lg.TxHash, lg.LogIndex)
	})
}

// failingStore fails every transaction begin with a fixed error, for retry
// classification tests.
type failingStore struct {
	err error
}

func (f failingStore) Begin(context.Context) (store.Tx, error) {
	return nil, f.err
}

// createAMMMarket applies the standard poll + market creation prologue.
func createAMMMarket(t *testing.T, e *Engine, block int64, poll, market, creator string) {
	t.Helper()
	apply(t, e, mkLog(t, event.NamePollCreated, block, 0, event.PollCreatedArgs{
		Poll:     poll,
		Creator:  creator,
		Question: "will it settle yes",
		Sources:  []string{"https://example.com"},
	}))
	apply(t, e, mkLog(t, event.NameMarketCreated, block+1, 0, event.MarketCreatedArgs{
		Market:          market,
		Poll:            poll,
		Creator:         creator,
		CollateralToken: "0xusdc",
		YesToken:        "0xyes",
		NoToken:         "0xno",
		FeeTier:         30,
	}))
}
