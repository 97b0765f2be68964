package engine

import (
	"context"

	"github.com/emperorhan/prediction-indexer/internal/domain/event"
	"github.com/emperorhan/prediction-indexer/internal/domain/model"
	"github.com/google/uuid"
)

// handleWinningsRedeemed records a redemption and settles its win/loss
// effects: a payout above zero is a win, a zero payout is a losing position
// being closed out. Streaks are signed; wins extend a positive run, losses a
// negative one.
func (e *Engine) handleWinningsRedeemed(ctx context.Context, ap *applyCtx, lg event.Log, args event.WinningsRedeemedArgs) error {
	market, err := ap.tx.GetMarket(ctx, ap.chainID, args.Market)
	if err != nil {
		return err
	}
	if market == nil {
		// Redemption carries no market type, so the placeholder pattern used
		// for trades cannot apply here.
		return anomalyf("unknown_market", "redemption on unseen market %s", args.Market)
	}

	w := &model.Winning{
		RowID:            uuid.New(),
		ChainID:          ap.chainID,
		TxHash:           lg.TxHash,
		LogIndex:         lg.LogIndex,
		User:             args.User,
		MarketAddress:    market.Address,
		CollateralAmount: args.CollateralAmount,
		FeeAmount:        args.FeeAmount,
		Outcome:          args.Outcome,
		MarketType:       market.MarketType,
		BlockNumber:      lg.BlockNumber,
		Timestamp:        ap.now,
	}
	if err := ap.putWinning(ctx, w); err != nil {
		return err
	}

	if market.CurrentTvl, err = subMoney(market.CurrentTvl, args.CollateralAmount); err != nil {
		return err
	}
	if market.TotalFees, err = addMoney(market.TotalFees, args.FeeAmount); err != nil {
		return err
	}
	if err := ap.putMarket(ctx, market); err != nil {
		return err
	}

	ps, err := ap.platformStats(ctx)
	if err != nil {
		return err
	}

	var ru rollupDelta
	ru.winningsPaid = args.CollateralAmount
	ru.fees = args.FeeAmount

	user, created, err := ap.getOrCreateUser(ctx, args.User)
	if err != nil {
		return err
	}
	if created {
		ps.TotalUsers++
		ru.newUsers++
	}
	if user.TotalWinnings, err = addMoney(user.TotalWinnings, args.CollateralAmount); err != nil {
		return err
	}
	if err := recomputePnL(user); err != nil {
		return err
	}
	if args.CollateralAmount > 0 {
		user.TotalWins++
		if user.CurrentStreak < 0 {
			user.CurrentStreak = 0
		}
		user.CurrentStreak++
		if user.CurrentStreak > user.BestStreak {
			user.BestStreak = user.CurrentStreak
		}
	} else {
		user.TotalLosses++
		if user.CurrentStreak > 0 {
			user.CurrentStreak = 0
		}
		user.CurrentStreak--
	}
	if err := ap.putUser(ctx, user); err != nil {
		return err
	}

	if ps.TotalWinningsPaid, err = addMoney(ps.TotalWinningsPaid, args.CollateralAmount); err != nil {
		return err
	}
	if ps.TotalLiquidity, err = subMoney(ps.TotalLiquidity, args.CollateralAmount); err != nil {
		return err
	}
	if ps.TotalFees, err = addMoney(ps.TotalFees, args.FeeAmount); err != nil {
		return err
	}
	if err := ap.putPlatformStats(ctx, ps); err != nil {
		return err
	}
	return ap.addRollup(ctx, ru)
}
