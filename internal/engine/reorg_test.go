package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emperorhan/prediction-indexer/internal/domain/event"
	"github.com/emperorhan/prediction-indexer/internal/domain/model"
)

func TestHandleRevert_RestoresPreBranchState(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	createAMMMarket(t, e, 100, "0xpoll1", "0xmarket1", "0xcreator")
	apply(t, e, mkLog(t, event.NameTokensBought, 102, 0, event.TokensBoughtArgs{
		Market:           "0xmarket1",
		Trader:           "0xalice",
		Side:             "yes",
		CollateralAmount: 10 * usdc,
		FeeAmount:        1 * usdc,
	}))

	// The state to come back to.
	wantMarket := *getMarket(t, st, "0xmarket1")
	wantAlice := *getUser(t, st, "0xalice")
	wantPS := *getPlatformStats(t, st)

	// The branch being reverted: more trades, a new trader, a redemption.
	branch := []event.Log{
		mkLog(t, event.NameTokensBought, 200, 0, event.TokensBoughtArgs{
			Market:           "0xmarket1",
			Trader:           "0xalice",
			Side:             "yes",
			CollateralAmount: 25 * usdc,
		}),
		mkLog(t, event.NameTokensBought, 200, 1, event.TokensBoughtArgs{
			Market:           "0xmarket1",
			Trader:           "0xbob",
			Side:             "no",
			CollateralAmount: 40 * usdc,
		}),
		mkLog(t, event.NameWinningsRedeemed, 201, 0, event.WinningsRedeemedArgs{
			Market:           "0xmarket1",
			User:             "0xalice",
			CollateralAmount: 60 * usdc,
			Outcome:          model.SideYes,
		}),
	}
	for _, lg := range branch {
		apply(t, e, lg)
	}
	require.Equal(t, int64(2), getMarket(t, st, "0xmarket1").UniqueTraders)

	require.NoError(t, e.handleRevert(ctx, event.Revert{ChainID: testChain, FromBlock: 200}))

	assert.Equal(t, wantMarket, *getMarket(t, st, "0xmarket1"))
	assert.Equal(t, wantAlice, *getUser(t, st, "0xalice"))
	assert.Equal(t, wantPS, *getPlatformStats(t, st))
	// Bob only ever existed on the dead branch.
	assert.Nil(t, getUser(t, st, "0xbob"))

	for _, lg := range branch {
		assert.False(t, hasApplied(t, st, lg))
	}
	assert.True(t, hasApplied(t, st, mkLog(t, event.NameTokensBought, 102, 0, nil)))
}

func TestHandleRevert_ReplacementBranchReapplies(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	createAMMMarket(t, e, 100, "0xpoll1", "0xmarket1", "0xcreator")

	dead := mkLog(t, event.NameTokensBought, 200, 0, event.TokensBoughtArgs{
		Market:           "0xmarket1",
		Trader:           "0xalice",
		Side:             "yes",
		CollateralAmount: 10 * usdc,
	})
	apply(t, e, dead)
	require.NoError(t, e.handleRevert(ctx, event.Revert{ChainID: testChain, FromBlock: 200}))

	// The same position on the replacement branch must not be treated as a
	// duplicate by the in-process dedupe set.
	replacement := mkLog(t, event.NameTokensBought, 200, 0, event.TokensBoughtArgs{
		Market:           "0xmarket1",
		Trader:           "0xalice",
		Side:             "yes",
		CollateralAmount: 99 * usdc,
	})
	apply(t, e, replacement)

	assert.Equal(t, 99*usdc, getMarket(t, st, "0xmarket1").TotalVolume)
	assert.True(t, hasApplied(t, st, replacement))
}

func TestHandleRevert_EmptyRangeIsNoOp(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	createAMMMarket(t, e, 100, "0xpoll1", "0xmarket1", "0xcreator")
	want := *getMarket(t, st, "0xmarket1")

	require.NoError(t, e.handleRevert(ctx, event.Revert{ChainID: testChain, FromBlock: 500}))

	assert.Equal(t, want, *getMarket(t, st, "0xmarket1"))
	assert.True(t, hasApplied(t, st, mkLog(t, event.NamePollCreated, 100, 0, nil)))
}

func TestHandleRevert_WrongChainIgnored(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	createAMMMarket(t, e, 100, "0xpoll1", "0xmarket1", "0xcreator")

	require.NoError(t, e.handleRevert(ctx, event.Revert{ChainID: testChain + 1, FromBlock: 0}))

	assert.NotNil(t, getMarket(t, st, "0xmarket1"))
	assert.True(t, hasApplied(t, st, mkLog(t, event.NamePollCreated, 100, 0, nil)))
}

func TestHandleRevert_MidBlockBoundary(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	createAMMMarket(t, e, 100, "0xpoll1", "0xmarket1", "0xcreator")
	kept := mkLog(t, event.NameTokensBought, 150, 0, event.TokensBoughtArgs{
		Market:           "0xmarket1",
		Trader:           "0xalice",
		Side:             "yes",
		CollateralAmount: 5 * usdc,
	})
	apply(t, e, kept)
	apply(t, e, mkLog(t, event.NameTokensBought, 151, 0, event.TokensBoughtArgs{
		Market:           "0xmarket1",
		Trader:           "0xalice",
		Side:             "yes",
		CollateralAmount: 7 * usdc,
	}))

	// Reverting from 151 keeps everything at 150 and below.
	require.NoError(t, e.handleRevert(ctx, event.Revert{ChainID: testChain, FromBlock: 151}))

	m := getMarket(t, st, "0xmarket1")
	assert.Equal(t, 5*usdc, m.TotalVolume)
	assert.True(t, hasApplied(t, st, kept))
}
