//go:build integration

package postgres_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emperorhan/prediction-indexer/internal/domain/model"
	"github.com/emperorhan/prediction-indexer/internal/store"
	"github.com/emperorhan/prediction-indexer/internal/store/postgres"
)

const chain = model.ChainID(8453)

// testDB prefers an external database from TEST_DB_URL (assumed migrated)
// and falls back to a Docker-based ephemeral PostgreSQL.
func testDB(t *testing.T) *postgres.DB {
	t.Helper()
	if url := os.Getenv("TEST_DB_URL"); url != "" {
		db, err := postgres.New(postgres.Config{
			URL:             url,
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: time.Minute,
		})
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		return db
	}
	return setupTestContainer(t)
}

func begin(t *testing.T, s *postgres.Store) store.Tx {
	t.Helper()
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { tx.Rollback() })
	return tx
}

func TestStore_MarketRoundTrip(t *testing.T) {
	db := testDB(t)
	s := postgres.NewStore(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	tx := begin(t, s)
	m := &model.Market{
		ChainID:         chain,
		Address:         "0xmarket-roundtrip",
		PollAddress:     "0xpoll1",
		Creator:         "0xcreator",
		MarketType:      model.MarketTypeAMM,
		CollateralToken: "0xusdc",
		TotalVolume:     5_000_000,
		CurrentTvl:      2_000_000,
		UniqueTraders:   3,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, tx.PutMarket(ctx, m))
	require.NoError(t, tx.Commit())

	tx = begin(t, s)
	got, err := tx.GetMarket(ctx, chain, "0xmarket-roundtrip")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, m.TotalVolume, got.TotalVolume)
	assert.Equal(t, m.MarketType, got.MarketType)
	assert.Equal(t, m.UniqueTraders, got.UniqueTraders)

	// Put is a full-row upsert.
	got.TotalVolume = 9_000_000
	require.NoError(t, tx.PutMarket(ctx, got))
	require.NoError(t, tx.Commit())

	tx = begin(t, s)
	got, err = tx.GetMarket(ctx, chain, "0xmarket-roundtrip")
	require.NoError(t, err)
	assert.Equal(t, int64(9_000_000), got.TotalVolume)

	missing, err := tx.GetMarket(ctx, chain, "0xnever")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_UserNullableColumns(t *testing.T) {
	db := testDB(t)
	s := postgres.NewStore(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	tx := begin(t, s)
	ref := "0xref"
	u := &model.User{
		ChainID:         chain,
		Address:         "0xuser-nullable",
		ReferrerAddress: &ref,
		FirstTradeAt:    &now,
		CurrentStreak:   -2,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, tx.PutUser(ctx, u))
	require.NoError(t, tx.Commit())

	tx = begin(t, s)
	got, err := tx.GetUser(ctx, chain, "0xuser-nullable")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.ReferrerAddress)
	assert.Equal(t, "0xref", *got.ReferrerAddress)
	require.NotNil(t, got.FirstTradeAt)
	assert.True(t, got.FirstTradeAt.Equal(now))
	assert.Nil(t, got.LastTradeAt)
	assert.Equal(t, int64(-2), got.CurrentStreak)
}

func TestStore_LedgerLifecycle(t *testing.T) {
	db := testDB(t)
	s := postgres.NewStore(db)
	ctx := context.Background()

	tx := begin(t, s)
	snap := []store.SnapshotEntry{
		{Table: model.TableUsers, Key: "k1", Before: json.RawMessage(`{"totalTrades":1}`)},
		{Table: model.TableMarkets, Key: "k2"},
	}
	for i, ev := range []store.AppliedEvent{
		{ChainID: chain, TxHash: "0xledger-a", LogIndex: 0, BlockNumber: 100, EventName: "TokensBought", Snapshot: snap},
		{ChainID: chain, TxHash: "0xledger-a", LogIndex: 2, BlockNumber: 100, EventName: "TokensSold"},
		{ChainID: chain, TxHash: "0xledger-b", LogIndex: 0, TxIndex: 1, BlockNumber: 101, EventName: "WinningsRedeemed"},
	} {
		ev := ev
		ev.AppliedAt = time.Now().UTC()
		require.NoError(t, tx.MarkApplied(ctx, &ev), "event %d", i)
	}
	require.NoError(t, tx.Commit())

	tx = begin(t, s)
	ok, err := tx.HasApplied(ctx, chain, "0xledger-a", 0)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = tx.HasApplied(ctx, chain, "0xledger-a", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	evs, err := tx.ListAppliedFrom(ctx, chain, 100)
	require.NoError(t, err)
	require.Len(t, evs, 3)
	// Reverse canonical order, newest first.
	assert.Equal(t, int64(101), evs[0].BlockNumber)
	assert.Equal(t, int64(2), evs[1].LogIndex)
	assert.Equal(t, int64(0), evs[2].LogIndex)
	// The snapshot survives the JSONB round trip.
	require.Len(t, evs[2].Snapshot, 2)
	assert.Equal(t, model.TableUsers, evs[2].Snapshot[0].Table)
	assert.JSONEq(t, `{"totalTrades":1}`, string(evs[2].Snapshot[0].Before))
	assert.Nil(t, evs[2].Snapshot[1].Before)

	n, err := tx.DeleteAppliedFrom(ctx, chain, 101)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, tx.Commit())

	tx = begin(t, s)
	ok, err = tx.HasApplied(ctx, chain, "0xledger-b", 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_RawRestoreAndDelete(t *testing.T) {
	db := testDB(t)
	s := postgres.NewStore(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	tx := begin(t, s)
	u := &model.User{ChainID: chain, Address: "0xraw-user", TotalTrades: 7, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, tx.PutUser(ctx, u))
	require.NoError(t, tx.Commit())

	// Capture the row as the undo machinery would, mutate it, then restore
	// the capture.
	raw, err := json.Marshal(u)
	require.NoError(t, err)

	tx = begin(t, s)
	u.TotalTrades = 99
	require.NoError(t, tx.PutUser(ctx, u))
	require.NoError(t, tx.Commit())

	tx = begin(t, s)
	require.NoError(t, tx.RestoreRaw(ctx, model.TableUsers, model.UserID(chain, "0xraw-user"), raw))
	require.NoError(t, tx.Commit())

	tx = begin(t, s)
	got, err := tx.GetUser(ctx, chain, "0xraw-user")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(7), got.TotalTrades)

	require.NoError(t, tx.DeleteRaw(ctx, model.TableUsers, model.UserID(chain, "0xraw-user")))
	require.NoError(t, tx.Commit())

	tx = begin(t, s)
	got, err = tx.GetUser(ctx, chain, "0xraw-user")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_RawUnknownTable(t *testing.T) {
	db := testDB(t)
	s := postgres.NewStore(db)
	ctx := context.Background()

	tx := begin(t, s)
	err := tx.DeleteRaw(ctx, "users; drop table users", "k")
	assert.ErrorIs(t, err, store.ErrUnknownTable)
}

func TestReader_Aggregates(t *testing.T) {
	db := testDB(t)
	s := postgres.NewStore(db)
	r := postgres.NewReader(db)
	ctx := context.Background()
	rc := model.ChainID(777) // isolated chain for aggregate sums
	now := time.Now().UTC().Truncate(time.Microsecond)

	tx := begin(t, s)
	require.NoError(t, tx.PutMarket(ctx, &model.Market{
		ChainID: rc, Address: "0xm1", MarketType: model.MarketTypeAMM,
		TotalVolume: 5_000_000, CurrentTvl: 2_000_000, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, tx.PutMarket(ctx, &model.Market{
		ChainID: rc, Address: "0xm2", MarketType: model.MarketTypePari,
		TotalVolume: 3_000_000, CurrentTvl: 1_000_000, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, tx.PutMarketUser(ctx, &model.MarketUser{ChainID: rc, MarketAddress: "0xm1", Address: "0xa", LastTradeAt: now}))
	require.NoError(t, tx.PutMarketUser(ctx, &model.MarketUser{ChainID: rc, MarketAddress: "0xm1", Address: "0xb", LastTradeAt: now}))
	require.NoError(t, tx.PutMarketUser(ctx, &model.MarketUser{ChainID: rc, MarketAddress: "0xm2", Address: "0xa", LastTradeAt: now}))
	require.NoError(t, tx.PutUser(ctx, &model.User{ChainID: rc, Address: "0xa", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, tx.PutPlatformStats(ctx, &model.PlatformStats{
		ChainID: rc, TotalVolume: 8_000_000, TotalLiquidity: 3_000_000,
		TotalMarkets: 2, TotalAmmMarkets: 1, TotalPariMarkets: 1, TotalUsers: 1, UpdatedAt: now,
	}))
	require.NoError(t, tx.Commit())

	vol, err := r.SumMarketVolume(ctx, rc)
	require.NoError(t, err)
	assert.Equal(t, int64(8_000_000), vol)

	tvl, err := r.SumMarketTvl(ctx, rc)
	require.NoError(t, err)
	assert.Equal(t, int64(3_000_000), tvl)

	amm, pari, err := r.CountMarketsByType(ctx, rc)
	require.NoError(t, err)
	assert.Equal(t, int64(1), amm)
	assert.Equal(t, int64(1), pari)

	counts, err := r.MarketTraderCounts(ctx, rc)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts["0xm1"])
	assert.Equal(t, int64(1), counts["0xm2"])

	ps, err := r.ReadPlatformStats(ctx, rc)
	require.NoError(t, err)
	require.NotNil(t, ps)
	assert.Equal(t, int64(8_000_000), ps.TotalVolume)

	var users int
	require.NoError(t, r.ListUsers(ctx, rc, func(*model.User) error {
		users++
		return nil
	}))
	assert.Equal(t, 1, users)

	var markets int
	require.NoError(t, r.ListMarkets(ctx, rc, func(*model.Market) error {
		markets++
		return nil
	}))
	assert.Equal(t, 2, markets)
}
