package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emperorhan/prediction-indexer/internal/domain/model"
	"github.com/emperorhan/prediction-indexer/internal/store"
)

const chain = model.ChainID(8453)

func begin(t *testing.T, s *Store) store.Tx {
	t.Helper()
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	return tx
}

func TestTx_PendingWritesVisibleInTx(t *testing.T) {
	s := New()
	ctx := context.Background()
	tx := begin(t, s)

	require.NoError(t, tx.PutMarket(ctx, &model.Market{
		ChainID: chain, Address: "0xm", MarketType: model.MarketTypeAMM,
	}))

	m, err := tx.GetMarket(ctx, chain, "0xm")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "0xm", m.Address)
	require.NoError(t, tx.Rollback())
}

func TestTx_RollbackDiscardsWrites(t *testing.T) {
	s := New()
	ctx := context.Background()

	tx := begin(t, s)
	require.NoError(t, tx.PutUser(ctx, &model.User{ChainID: chain, Address: "0xa"}))
	require.NoError(t, tx.Rollback())

	tx = begin(t, s)
	u, err := tx.GetUser(ctx, chain, "0xa")
	require.NoError(t, err)
	assert.Nil(t, u)
	require.NoError(t, tx.Rollback())
}

func TestTx_CommitPublishesWrites(t *testing.T) {
	s := New()
	ctx := context.Background()

	tx := begin(t, s)
	require.NoError(t, tx.PutUser(ctx, &model.User{ChainID: chain, Address: "0xa", TotalTrades: 3}))
	require.NoError(t, tx.Commit())

	tx = begin(t, s)
	u, err := tx.GetUser(ctx, chain, "0xa")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, int64(3), u.TotalTrades)
	require.NoError(t, tx.Rollback())
}

func TestTx_CommitTwiceFails(t *testing.T) {
	s := New()
	tx := begin(t, s)
	require.NoError(t, tx.Commit())
	assert.Error(t, tx.Commit())
}

func TestCountMarketUsers_SeesPendingRows(t *testing.T) {
	s := New()
	ctx := context.Background()

	tx := begin(t, s)
	require.NoError(t, tx.PutMarketUser(ctx, &model.MarketUser{ChainID: chain, MarketAddress: "0xm", Address: "0xa"}))
	require.NoError(t, tx.Commit())

	tx = begin(t, s)
	require.NoError(t, tx.PutMarketUser(ctx, &model.MarketUser{ChainID: chain, MarketAddress: "0xm", Address: "0xb"}))
	require.NoError(t, tx.PutMarketUser(ctx, &model.MarketUser{ChainID: chain, MarketAddress: "0xother", Address: "0xc"}))

	n, err := tx.CountMarketUsers(ctx, chain, "0xm")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, tx.Rollback())
}

func TestRestoreRaw_RoundTripsEntity(t *testing.T) {
	s := New()
	ctx := context.Background()

	orig := &model.User{ChainID: chain, Address: "0xa", TotalVolume: 42, UpdatedAt: time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)}
	data, err := json.Marshal(orig)
	require.NoError(t, err)

	tx := begin(t, s)
	require.NoError(t, tx.RestoreRaw(ctx, model.TableUsers, orig.ID(), json.RawMessage(data)))
	require.NoError(t, tx.Commit())

	tx = begin(t, s)
	got, err := tx.GetUser(ctx, chain, "0xa")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *orig, *got)
	require.NoError(t, tx.Rollback())
}

func TestRestoreRaw_UnknownTable(t *testing.T) {
	s := New()
	tx := begin(t, s)
	err := tx.RestoreRaw(context.Background(), "nonsense", "k", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, store.ErrUnknownTable)
	assert.ErrorIs(t, tx.DeleteRaw(context.Background(), "nonsense", "k"), store.ErrUnknownTable)
	require.NoError(t, tx.Rollback())
}

func TestDeleteRaw_RemovesRow(t *testing.T) {
	s := New()
	ctx := context.Background()

	tx := begin(t, s)
	require.NoError(t, tx.PutUser(ctx, &model.User{ChainID: chain, Address: "0xa"}))
	require.NoError(t, tx.Commit())

	tx = begin(t, s)
	require.NoError(t, tx.DeleteRaw(ctx, model.TableUsers, model.UserID(chain, "0xa")))
	// The delete is visible to reads inside the same transaction.
	u, err := tx.GetUser(ctx, chain, "0xa")
	require.NoError(t, err)
	assert.Nil(t, u)
	require.NoError(t, tx.Commit())

	tx = begin(t, s)
	u, err = tx.GetUser(ctx, chain, "0xa")
	require.NoError(t, err)
	assert.Nil(t, u)
	require.NoError(t, tx.Rollback())
}

func markApplied(t *testing.T, tx store.Tx, txHash string, block, txIndex, logIndex int64) {
	t.Helper()
	require.NoError(t, tx.MarkApplied(context.Background(), &store.AppliedEvent{
		ChainID:     chain,
		TxHash:      txHash,
		LogIndex:    logIndex,
		BlockNumber: block,
		TxIndex:     txIndex,
		EventName:   "TokensBought",
	}))
}

func TestLedger_HasAppliedSeesPendingMark(t *testing.T) {
	s := New()
	ctx := context.Background()

	tx := begin(t, s)
	markApplied(t, tx, "0xt1", 10, 0, 0)

	ok, err := tx.HasApplied(ctx, chain, "0xt1", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tx.HasApplied(ctx, chain, "0xt1", 1)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, tx.Rollback())

	// Rolled back, so nothing was recorded.
	tx = begin(t, s)
	ok, err = tx.HasApplied(ctx, chain, "0xt1", 0)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, tx.Rollback())
}

func TestLedger_ListAppliedFromReverseCanonicalOrder(t *testing.T) {
	s := New()
	ctx := context.Background()

	tx := begin(t, s)
	markApplied(t, tx, "0xt1", 10, 0, 0)
	markApplied(t, tx, "0xt2", 11, 0, 0)
	markApplied(t, tx, "0xt2", 11, 0, 2)
	markApplied(t, tx, "0xt3", 11, 1, 0)
	markApplied(t, tx, "0xt4", 12, 0, 0)
	require.NoError(t, tx.Commit())

	tx = begin(t, s)
	evs, err := tx.ListAppliedFrom(ctx, chain, 11)
	require.NoError(t, err)
	require.Len(t, evs, 4)

	// Newest first: block desc, then tx index desc, then log index desc.
	assert.Equal(t, int64(12), evs[0].BlockNumber)
	assert.Equal(t, int64(1), evs[1].TxIndex)
	assert.Equal(t, int64(2), evs[2].LogIndex)
	assert.Equal(t, int64(0), evs[3].LogIndex)
	require.NoError(t, tx.Rollback())
}

func TestLedger_DeleteAppliedFrom(t *testing.T) {
	s := New()
	ctx := context.Background()

	tx := begin(t, s)
	markApplied(t, tx, "0xt1", 10, 0, 0)
	markApplied(t, tx, "0xt2", 11, 0, 0)
	markApplied(t, tx, "0xt3", 12, 0, 0)
	require.NoError(t, tx.Commit())

	tx = begin(t, s)
	n, err := tx.DeleteAppliedFrom(ctx, chain, 11)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, tx.Commit())

	tx = begin(t, s)
	ok, err := tx.HasApplied(ctx, chain, "0xt1", 0)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = tx.HasApplied(ctx, chain, "0xt2", 0)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, tx.Rollback())
}

func TestMarkApplied_CopiesSnapshot(t *testing.T) {
	s := New()
	ctx := context.Background()

	snap := []store.SnapshotEntry{{Table: model.TableUsers, Key: "k", Before: json.RawMessage(`{"a":1}`)}}
	tx := begin(t, s)
	require.NoError(t, tx.MarkApplied(ctx, &store.AppliedEvent{
		ChainID: chain, TxHash: "0xt1", BlockNumber: 10, Snapshot: snap,
	}))
	// Caller mutations after the mark must not leak into the ledger.
	snap[0].Key = "mutated"
	require.NoError(t, tx.Commit())

	tx = begin(t, s)
	evs, err := tx.ListAppliedFrom(ctx, chain, 0)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	require.Len(t, evs[0].Snapshot, 1)
	assert.Equal(t, "k", evs[0].Snapshot[0].Key)
	require.NoError(t, tx.Rollback())
}
