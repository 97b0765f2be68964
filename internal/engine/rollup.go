package engine

import (
	"context"

	"github.com/emperorhan/prediction-indexer/internal/domain/model"
)

// rollupDelta is one event's contribution to the time-bucketed rollups.
// Handlers accumulate a single delta and apply it once, so each event touches
// each bucket row at most once.
type rollupDelta struct {
	trades         int64
	volume         int64
	fees           int64
	winningsPaid   int64
	liquidityAdded int64
	newUsers       int64
}

func (d rollupDelta) empty() bool {
	return d == rollupDelta{}
}

// addRollup folds the delta into the UTC-day and top-of-hour buckets the
// event's block time falls into. Buckets are created lazily and never
// deleted; reorg compensation restores them through the snapshot like any
// other row.
func (ap *applyCtx) addRollup(ctx context.Context, d rollupDelta) error {
	if d.empty() {
		return nil
	}

	day, err := ap.tx.GetDailyStats(ctx, ap.chainID, model.DayBucket(ap.now))
	if err != nil {
		return err
	}
	if day == nil {
		day = &model.DailyStats{ChainID: ap.chainID, BucketStart: model.DayBucket(ap.now)}
	}
	if err := applyRollupDelta(&day.Trades, &day.Volume, &day.Fees, &day.WinningsPaid, &day.LiquidityAdded, &day.NewUsers, d); err != nil {
		return err
	}
	if err := ap.putDailyStats(ctx, day); err != nil {
		return err
	}

	hour, err := ap.tx.GetHourlyStats(ctx, ap.chainID, model.HourBucket(ap.now))
	if err != nil {
		return err
	}
	if hour == nil {
		hour = &model.HourlyStats{ChainID: ap.chainID, BucketStart: model.HourBucket(ap.now)}
	}
	if err := applyRollupDelta(&hour.Trades, &hour.Volume, &hour.Fees, &hour.WinningsPaid, &hour.LiquidityAdded, &hour.NewUsers, d); err != nil {
		return err
	}
	return ap.putHourlyStats(ctx, hour)
}

func applyRollupDelta(trades, volume, fees, winningsPaid, liquidityAdded, newUsers *int64, d rollupDelta) error {
	var err error
	*trades += d.trades
	*newUsers += d.newUsers
	if *volume, err = addMoney(*volume, d.volume); err != nil {
		return err
	}
	if *fees, err = addMoney(*fees, d.fees); err != nil {
		return err
	}
	if *winningsPaid, err = addMoney(*winningsPaid, d.winningsPaid); err != nil {
		return err
	}
	*liquidityAdded, err = addMoney(*liquidityAdded, d.liquidityAdded)
	return err
}
