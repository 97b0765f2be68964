package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emperorhan/prediction-indexer/internal/domain/event"
	"github.com/emperorhan/prediction-indexer/internal/domain/model"
	"github.com/emperorhan/prediction-indexer/internal/store"
)

func TestTokensBought_Accounting(t *testing.T) {
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

	m := getMarket(t, st, "0xmarket1")
	require.NotNil(t, m)
	// Volume counts the gross collateral; the full amount entered the pool.
	assert.Equal(t, 100*usdc, m.TotalVolume)
	assert.Equal(t, 100*usdc, m.CurrentTvl)
	assert.Equal(t, 2*usdc, m.TotalFees)
	assert.Equal(t, int64(1), m.TotalTrades)
	assert.Equal(t, int64(1), m.UniqueTraders)

	alice := getUser(t, st, "0xalice")
	require.NotNil(t, alice)
	assert.Equal(t, int64(1), alice.TotalTrades)
	assert.Equal(t, 100*usdc, alice.TotalVolume)
	assert.Equal(t, 100*usdc, alice.TotalDeposited)
	assert.Equal(t, -100*usdc, alice.RealizedPnL)
	require.NotNil(t, alice.FirstTradeAt)
	require.NotNil(t, alice.LastTradeAt)

	ps := getPlatformStats(t, st)
	assert.Equal(t, int64(1), ps.TotalTrades)
	assert.Equal(t, 100*usdc, ps.TotalVolume)
	assert.Equal(t, 2*usdc, ps.TotalFees)
	assert.Equal(t, 100*usdc, ps.TotalLiquidity)
	// Creator plus trader.
	assert.Equal(t, int64(2), ps.TotalUsers)

	tr := inTx(t, st, func(tx store.Tx) (*model.Trade, error) {
		return tx.GetTrade(context.Background(), testChain, buy.TxHash, buy.LogIndex)
	})
	require.NotNil(t, tr)
	assert.Equal(t, model.TradeTypeBuy, tr.TradeType)
	assert.Equal(t, model.Side("yes"), tr.Side)
	assert.Equal(t, 95*usdc, tr.TokenAmountOut)
	assert.Equal(t, "0xpoll1", tr.PollAddress)
}

func TestTokensSold_Accounting(t *testing.T) {
	e, st := newTestEngine(t)
	createAMMMarket(t, e, 100, "0xpoll1", "0xmarket1", "0xcreator")

	apply(t, e, mkLog(t, event.NameTokensBought, 102, 0, event.TokensBoughtArgs{
		Market:           "0xmarket1",
		Trader:           "0xalice",
		Side:             "yes",
		CollateralAmount: 100 * usdc,
		FeeAmount:        2 * usdc,
	}))
	apply(t, e, mkLog(t, event.NameTokensSold, 103, 0, event.TokensSoldArgs{
		Market:           "0xmarket1",
		Trader:           "0xalice",
		Side:             "yes",
		TokenAmount:      40 * usdc,
		CollateralAmount: 50 * usdc,
		FeeAmount:        1 * usdc,
	}))

	m := getMarket(t, st, "0xmarket1")
	assert.Equal(t, 150*usdc, m.TotalVolume)
	// The seller leaves with 49; the 1 USDC fee stays in the pool.
	assert.Equal(t, 100*usdc-49*usdc, m.CurrentTvl)
	assert.Equal(t, 3*usdc, m.TotalFees)
	assert.Equal(t, int64(2), m.TotalTrades)
	assert.Equal(t, int64(1), m.UniqueTraders)

	alice := getUser(t, st, "0xalice")
	assert.Equal(t, 100*usdc, alice.TotalDeposited)
	assert.Equal(t, 49*usdc, alice.TotalWithdrawn)
	assert.Equal(t, -51*usdc, alice.RealizedPnL)

	ps := getPlatformStats(t, st)
	assert.Equal(t, m.CurrentTvl, ps.TotalLiquidity)
	assert.Equal(t, m.TotalVolume, ps.TotalVolume)
}

func TestAMMTrades_MoveReserves(t *testing.T) {
	// All cases start from a 100/100 pool. A buy drains tokenAmount from the
	// chosen side's reserve and parks the gross collateral on the opposite
	// leg; a sell reverses both moves with the net payout.
	cases := []struct {
		name    string
		evt     string
		side    model.Side
		wantYes int64
		wantNo  int64
	}{
		{"buy yes drains the yes reserve", event.NameTokensBought, "yes", 5 * usdc, 200 * usdc},
		{"buy no drains the no reserve", event.NameTokensBought, "no", 200 * usdc, 5 * usdc},
		{"sell yes refills the yes reserve", event.NameTokensSold, "yes", 140 * usdc, 51 * usdc},
		{"sell no refills the no reserve", event.NameTokensSold, "no", 51 * usdc, 140 * usdc},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, st := newTestEngine(t)
			createAMMMarket(t, e, 100, "0xpoll1", "0xmarket1", "0xcreator")
			apply(t, e, mkLog(t, event.NameLiquidityAdded, 102, 0, event.LiquidityAddedArgs{
				Market:           "0xmarket1",
				Provider:         "0xlp",
				CollateralAmount: 200 * usdc,
				LpTokens:         200 * usdc,
				YesAmount:        100 * usdc,
				NoAmount:         100 * usdc,
			}))

			var lg event.Log
			switch tc.evt {
			case event.NameTokensBought:
				lg = mkLog(t, tc.evt, 103, 0, event.TokensBoughtArgs{
					Market:           "0xmarket1",
					Trader:           "0xalice",
					Side:             tc.side,
					CollateralAmount: 100 * usdc,
					FeeAmount:        2 * usdc,
					TokenAmount:      95 * usdc,
				})
			default:
				lg = mkLog(t, tc.evt, 103, 0, event.TokensSoldArgs{
					Market:           "0xmarket1",
					Trader:           "0xalice",
					Side:             tc.side,
					TokenAmount:      40 * usdc,
					CollateralAmount: 50 * usdc,
					FeeAmount:        1 * usdc,
				})
			}
			apply(t, e, lg)

			m := getMarket(t, st, "0xmarket1")
			assert.Equal(t, tc.wantYes, m.ReserveYes)
			assert.Equal(t, tc.wantNo, m.ReserveNo)
		})
	}
}

func TestPositionPurchased_SharesFromEvent(t *testing.T) {
	e, st := newTestEngine(t)

	apply(t, e, mkLog(t, event.NamePariMutuelCreated, 100, 0, event.PariMutuelCreatedArgs{
		Market:          "0xpari1",
		Poll:            "0xpoll1",
		Creator:         "0xcreator",
		CollateralToken: "0xusdc",
		CurveFlattener:  1,
		CurveOffset:     1_000_000,
		DeadlineEpoch:   testBlockTime.Add(time.Hour).Unix(),
	}))

	apply(t, e, mkLog(t, event.NamePositionPurchased, 101, 0, event.PositionPurchasedArgs{
		Market:       "0xpari1",
		Buyer:        "0xbob",
		Side:         "yes",
		CollateralIn: 10 * usdc,
		FeeAmount:    1 * usdc,
		SharesOut:    9 * usdc,
	}))

	m := getMarket(t, st, "0xpari1")
	// Fee off the top; the net stake enters the yes pool.
	assert.Equal(t, 9*usdc, m.TotalCollateralYes)
	assert.Equal(t, 9*usdc, m.TotalSharesYes)
	assert.Zero(t, m.TotalCollateralNo)
	assert.Equal(t, 10*usdc, m.TotalVolume)
	assert.Equal(t, 9*usdc, m.CurrentTvl)
	// All shares on yes means the implied yes probability collapses to zero.
	assert.Zero(t, m.YesChance)

	bob := getUser(t, st, "0xbob")
	assert.Equal(t, 10*usdc, bob.TotalDeposited)
}

func TestPositionPurchased_SharesFromCurve(t *testing.T) {
	e, st := newTestEngine(t)

	deadline := testBlockTime.Add(101 * time.Second).Add(500 * time.Second)
	apply(t, e, mkLog(t, event.NamePariMutuelCreated, 100, 0, event.PariMutuelCreatedArgs{
		Market:         "0xpari1",
		Poll:           "0xpoll1",
		Creator:        "0xcreator",
		CurveFlattener: 1_000,
		CurveOffset:    1_000_000,
		DeadlineEpoch:  deadline.Unix(),
	}))

	apply(t, e, mkLog(t, event.NamePositionPurchased, 101, 0, event.PositionPurchasedArgs{
		Market:       "0xpari1",
		Buyer:        "0xbob",
		Side:         "no",
		CollateralIn: 10 * usdc,
		FeeAmount:    0,
		SharesOut:    0,
	}))

	m := getMarket(t, st, "0xpari1")
	// multiplier = offset + flattener*secondsToDeadline = 1_000_000 + 500_000,
	// so 10 USDC stakes into 15 USDC worth of shares.
	assert.Equal(t, 15*usdc, m.TotalSharesNo)
	assert.Equal(t, 10*usdc, m.TotalCollateralNo)
	// Every share is on no, so yes is certain by the inverse pricing rule.
	assert.Equal(t, int64(1_000_000_000), m.YesChance)
}

func TestPariMarket_DefaultYesChance(t *testing.T) {
	e, st := newTestEngine(t)
	apply(t, e, mkLog(t, event.NamePariMutuelCreated, 100, 0, event.PariMutuelCreatedArgs{
		Market:  "0xpari1",
		Poll:    "0xpoll1",
		Creator: "0xcreator",
	}))
	assert.Equal(t, int64(defaultYesChance), getMarket(t, st, "0xpari1").YesChance)
}

func TestUniqueTraders_CountsDistinctAddresses(t *testing.T) {
	e, st := newTestEngine(t)
	createAMMMarket(t, e, 100, "0xpoll1", "0xmarket1", "0xcreator")

	for i, trader := range []string{"0xalice", "0xbob", "0xalice"} {
		apply(t, e, mkLog(t, event.NameTokensBought, int64(102+i), 0, event.TokensBoughtArgs{
			Market:           "0xmarket1",
			Trader:           trader,
			Side:             "yes",
			CollateralAmount: usdc,
		}))
	}

	m := getMarket(t, st, "0xmarket1")
	assert.Equal(t, int64(3), m.TotalTrades)
	assert.Equal(t, int64(2), m.UniqueTraders)
}

func TestIncompleteMarket_PlaceholderThenBackfill(t *testing.T) {
	e, st := newTestEngine(t)

	// Trade arrives before the creation event.
	apply(t, e, mkLog(t, event.NameTokensBought, 100, 0, event.TokensBoughtArgs{
		Market:           "0xmarket1",
		Trader:           "0xalice",
		Side:             "yes",
		CollateralAmount: 10 * usdc,
	}))

	m := getMarket(t, st, "0xmarket1")
	require.NotNil(t, m)
	assert.True(t, m.IsIncomplete)
	assert.Equal(t, model.MarketTypeAMM, m.MarketType)

	ps := getPlatformStats(t, st)
	assert.Equal(t, int64(1), ps.TotalMarkets)
	assert.Equal(t, int64(1), ps.TotalAmmMarkets)

	// The creation event completes the row without re-counting.
	apply(t, e, mkLog(t, event.NameMarketCreated, 101, 0, event.MarketCreatedArgs{
		Market:          "0xmarket1",
		Poll:            "0xpoll1",
		Creator:         "0xcreator",
		CollateralToken: "0xusdc",
	}))

	m = getMarket(t, st, "0xmarket1")
	assert.False(t, m.IsIncomplete)
	assert.Equal(t, "0xpoll1", m.PollAddress)
	assert.Equal(t, 10*usdc, m.TotalVolume)

	ps = getPlatformStats(t, st)
	assert.Equal(t, int64(1), ps.TotalMarkets)
	assert.Equal(t, int64(1), ps.TotalAmmMarkets)
}

func TestIncompleteMarket_TypeCorrectionOnBackfill(t *testing.T) {
	e, st := newTestEngine(t)

	// An AMM-shaped trade guessed the type wrong; creation says pari.
	apply(t, e, mkLog(t, event.NameTokensBought, 100, 0, event.TokensBoughtArgs{
		Market:           "0xmarket1",
		Trader:           "0xalice",
		Side:             "yes",
		CollateralAmount: 10 * usdc,
	}))
	apply(t, e, mkLog(t, event.NamePariMutuelCreated, 101, 0, event.PariMutuelCreatedArgs{
		Market:  "0xmarket1",
		Poll:    "0xpoll1",
		Creator: "0xcreator",
	}))

	m := getMarket(t, st, "0xmarket1")
	assert.Equal(t, model.MarketTypePari, m.MarketType)

	ps := getPlatformStats(t, st)
	assert.Equal(t, int64(1), ps.TotalMarkets)
	assert.Zero(t, ps.TotalAmmMarkets)
	assert.Equal(t, int64(1), ps.TotalPariMarkets)
}

func TestReferralCascade_OnRefereeTrade(t *testing.T) {
	e, st := newTestEngine(t)
	createAMMMarket(t, e, 100, "0xpoll1", "0xmarket1", "0xcreator")

	apply(t, e, mkLog(t, event.NameReferralCodeRegistered, 102, 0, event.ReferralCodeRegisteredArgs{
		CodeHash: "0xcode",
		Owner:    "0xref",
	}))
	apply(t, e, mkLog(t, event.NameReferralRegistered, 103, 0, event.ReferralRegisteredArgs{
		CodeHash: "0xcode",
		Referrer: "0xref",
		Referee:  "0xalice",
	}))
	apply(t, e, mkLog(t, event.NameTokensBought, 104, 0, event.TokensBoughtArgs{
		Market:           "0xmarket1",
		Trader:           "0xalice",
		Side:             "yes",
		CollateralAmount: 50 * usdc,
		FeeAmount:        1 * usdc,
	}))

	r := inTx(t, st, func(tx store.Tx) (*model.Referral, error) {
		return tx.GetReferral(context.Background(), testChain, "0xref", "0xalice")
	})
	require.NotNil(t, r)
	assert.Equal(t, model.ReferralStatusActive, r.Status)
	assert.Equal(t, 50*usdc, r.TotalVolumeGenerated)
	assert.Equal(t, 1*usdc, r.TotalFeesGenerated)
	assert.Equal(t, int64(1), r.TotalTradesCount)

	ref := getUser(t, st, "0xref")
	assert.Equal(t, 50*usdc, ref.TotalReferralVolume)
	assert.Equal(t, 1*usdc, ref.TotalReferralFees)

	code := inTx(t, st, func(tx store.Tx) (*model.ReferralCode, error) {
		return tx.GetReferralCode(context.Background(), testChain, "0xcode")
	})
	require.NotNil(t, code)
	assert.Equal(t, int64(1), code.TotalReferrals)
	assert.Equal(t, 50*usdc, code.TotalVolumeGenerated)

	rs := inTx(t, st, func(tx store.Tx) (*model.ReferralStats, error) {
		return tx.GetReferralStats(context.Background(), testChain)
	})
	require.NotNil(t, rs)
	assert.Equal(t, int64(1), rs.TotalCodes)
	assert.Equal(t, int64(1), rs.TotalReferrals)
	assert.Equal(t, 50*usdc, rs.TotalVolumeGenerated)

	alice := getUser(t, st, "0xalice")
	require.NotNil(t, alice.ReferrerAddress)
	assert.Equal(t, "0xref", *alice.ReferrerAddress)
}

func TestReferralRegistered_SecondReferrerIsAnomaly(t *testing.T) {
	e, st := newTestEngine(t)

	apply(t, e, mkLog(t, event.NameReferralCodeRegistered, 100, 0, event.ReferralCodeRegisteredArgs{
		CodeHash: "0xcode", Owner: "0xref",
	}))
	apply(t, e, mkLog(t, event.NameReferralCodeRegistered, 101, 0, event.ReferralCodeRegisteredArgs{
		CodeHash: "0xcode2", Owner: "0xother",
	}))
	apply(t, e, mkLog(t, event.NameReferralRegistered, 102, 0, event.ReferralRegisteredArgs{
		CodeHash: "0xcode", Referrer: "0xref", Referee: "0xalice",
	}))
	second := mkLog(t, event.NameReferralRegistered, 103, 0, event.ReferralRegisteredArgs{
		CodeHash: "0xcode2", Referrer: "0xother", Referee: "0xalice",
	})
	apply(t, e, second)

	assert.True(t, hasApplied(t, st, second))
	r := inTx(t, st, func(tx store.Tx) (*model.Referral, error) {
		return tx.FindReferralByReferee(context.Background(), testChain, "0xalice")
	})
	require.NotNil(t, r)
	assert.Equal(t, "0xref", r.Referrer)
}

func TestReferralRewardClaimed_Accumulates(t *testing.T) {
	e, st := newTestEngine(t)

	apply(t, e, mkLog(t, event.NameReferralCodeRegistered, 100, 0, event.ReferralCodeRegisteredArgs{
		CodeHash: "0xcode", Owner: "0xref",
	}))
	apply(t, e, mkLog(t, event.NameReferralRegistered, 101, 0, event.ReferralRegisteredArgs{
		CodeHash: "0xcode", Referrer: "0xref", Referee: "0xalice",
	}))
	for i := int64(0); i < 2; i++ {
		apply(t, e, mkLog(t, event.NameReferralRewardClaimed, 102+i, 0, event.ReferralRewardClaimedArgs{
			Referrer: "0xref", Referee: "0xalice", Amount: 3 * usdc,
		}))
	}

	r := inTx(t, st, func(tx store.Tx) (*model.Referral, error) {
		return tx.GetReferral(context.Background(), testChain, "0xref", "0xalice")
	})
	assert.Equal(t, 6*usdc, r.TotalRewardsEarned)
	assert.Equal(t, 6*usdc, getUser(t, st, "0xref").TotalReferralRewards)

	rs := inTx(t, st, func(tx store.Tx) (*model.ReferralStats, error) {
		return tx.GetReferralStats(context.Background(), testChain)
	})
	assert.Equal(t, 6*usdc, rs.TotalRewardsDistributed)
}

func TestSelfReferral_TraderIsOwnReferrer(t *testing.T) {
	e, st := newTestEngine(t)
	createAMMMarket(t, e, 100, "0xpoll1", "0xmarket1", "0xcreator")

	apply(t, e, mkLog(t, event.NameReferralCodeRegistered, 102, 0, event.ReferralCodeRegisteredArgs{
		CodeHash: "0xcode", Owner: "0xalice",
	}))
	apply(t, e, mkLog(t, event.NameReferralRegistered, 103, 0, event.ReferralRegisteredArgs{
		CodeHash: "0xcode", Referrer: "0xalice", Referee: "0xalice",
	}))
	apply(t, e, mkLog(t, event.NameTokensBought, 104, 0, event.TokensBoughtArgs{
		Market:           "0xmarket1",
		Trader:           "0xalice",
		Side:             "yes",
		CollateralAmount: 10 * usdc,
	}))

	// Trade and referral attribution land on the same row without losing
	// either update.
	alice := getUser(t, st, "0xalice")
	assert.Equal(t, 10*usdc, alice.TotalVolume)
	assert.Equal(t, 10*usdc, alice.TotalReferralVolume)
}
