package engine

import (
	"context"
	"time"

	"github.com/emperorhan/prediction-indexer/internal/domain/event"
	"github.com/emperorhan/prediction-indexer/internal/domain/model"
	"github.com/google/uuid"
)

func (e *Engine) handleTokensBought(ctx context.Context, ap *applyCtx, lg event.Log, args event.TokensBoughtArgs) error {
	ps, err := ap.platformStats(ctx)
	if err != nil {
		return err
	}
	market, err := ap.ensureMarket(ctx, args.Market, model.MarketTypeAMM, ps)
	if err != nil {
		return err
	}

	t := &model.Trade{
		RowID:            uuid.New(),
		ChainID:          ap.chainID,
		TxHash:           lg.TxHash,
		LogIndex:         lg.LogIndex,
		Trader:           args.Trader,
		MarketAddress:    market.Address,
		PollAddress:      market.PollAddress,
		TradeType:        model.TradeTypeBuy,
		Side:             args.Side,
		CollateralAmount: args.CollateralAmount,
		FeeAmount:        args.FeeAmount,
		TokenAmountOut:   args.TokenAmount,
		BlockNumber:      lg.BlockNumber,
		Timestamp:        ap.now,
	}
	// The trader walks away with tokenAmount of the chosen side, drawn from
	// that reserve; the incoming collateral backs the opposite leg.
	if err := applyTradeReserves(market, args.Side, model.TradeTypeBuy, args.TokenAmount, args.CollateralAmount); err != nil {
		return err
	}

	return e.finishTrade(ctx, ap, t, market, ps, tradeEffects{
		volume:    args.CollateralAmount,
		fee:       args.FeeAmount,
		tvlDelta:  args.CollateralAmount,
		deposited: args.CollateralAmount,
	})
}

func (e *Engine) handleTokensSold(ctx context.Context, ap *applyCtx, lg event.Log, args event.TokensSoldArgs) error {
	ps, err := ap.platformStats(ctx)
	if err != nil {
		return err
	}
	market, err := ap.ensureMarket(ctx, args.Market, model.MarketTypeAMM, ps)
	if err != nil {
		return err
	}

	// The seller receives collateralAmount minus the fee; the fee stays in
	// the pool, so TVL drops by the net payout only.
	payout, err := subMoney(args.CollateralAmount, args.FeeAmount)
	if err != nil {
		return err
	}

	t := &model.Trade{
		RowID:            uuid.New(),
		ChainID:          ap.chainID,
		TxHash:           lg.TxHash,
		LogIndex:         lg.LogIndex,
		Trader:           args.Trader,
		MarketAddress:    market.Address,
		PollAddress:      market.PollAddress,
		TradeType:        model.TradeTypeSell,
		Side:             args.Side,
		CollateralAmount: args.CollateralAmount,
		TokenAmount:      args.TokenAmount,
		FeeAmount:        args.FeeAmount,
		BlockNumber:      lg.BlockNumber,
		Timestamp:        ap.now,
	}
	// Returned tokens flow back into the side's reserve; the net payout
	// leaves the opposite leg.
	if err := applyTradeReserves(market, args.Side, model.TradeTypeSell, args.TokenAmount, payout); err != nil {
		return err
	}

	return e.finishTrade(ctx, ap, t, market, ps, tradeEffects{
		volume:    args.CollateralAmount,
		fee:       args.FeeAmount,
		tvlDelta:  -payout,
		withdrawn: payout,
	})
}

func (e *Engine) handlePositionPurchased(ctx context.Context, ap *applyCtx, lg event.Log, args event.PositionPurchasedArgs) error {
	ps, err := ap.platformStats(ctx)
	if err != nil {
		return err
	}
	market, err := ap.ensureMarket(ctx, args.Market, model.MarketTypePari, ps)
	if err != nil {
		return err
	}

	// The fee is taken off the top; only the remainder enters the side pool.
	net, err := subMoney(args.CollateralIn, args.FeeAmount)
	if err != nil {
		return err
	}

	shares := args.SharesOut
	if shares <= 0 {
		// Older contract versions emit zero shares; recompute from the curve.
		shares, err = computePariShares(market, net, ap.now)
		if err != nil {
			return err
		}
	}

	switch args.Side {
	case model.SideYes:
		if market.TotalCollateralYes, err = addMoney(market.TotalCollateralYes, net); err != nil {
			return err
		}
		if market.TotalSharesYes, err = addMoney(market.TotalSharesYes, shares); err != nil {
			return err
		}
	default:
		if market.TotalCollateralNo, err = addMoney(market.TotalCollateralNo, net); err != nil {
			return err
		}
		if market.TotalSharesNo, err = addMoney(market.TotalSharesNo, shares); err != nil {
			return err
		}
	}
	if err := recomputeYesChance(market); err != nil {
		return err
	}

	t := &model.Trade{
		RowID:            uuid.New(),
		ChainID:          ap.chainID,
		TxHash:           lg.TxHash,
		LogIndex:         lg.LogIndex,
		Trader:           args.Buyer,
		MarketAddress:    market.Address,
		PollAddress:      market.PollAddress,
		TradeType:        model.TradeTypeBet,
		Side:             args.Side,
		CollateralAmount: args.CollateralIn,
		FeeAmount:        args.FeeAmount,
		TokenAmountOut:   shares,
		BlockNumber:      lg.BlockNumber,
		Timestamp:        ap.now,
	}
	return e.finishTrade(ctx, ap, t, market, ps, tradeEffects{
		volume:    args.CollateralIn,
		fee:       args.FeeAmount,
		tvlDelta:  net,
		deposited: args.CollateralIn,
	})
}

// tradeEffects is the monetary footprint of one trade, computed by the
// per-event handler and folded into every aggregate by finishTrade.
type tradeEffects struct {
	volume    int64 // gross collateral counted as trading volume
	fee       int64
	tvlDelta  int64 // signed change to market TVL and platform liquidity
	deposited int64 // collateral moved into the market by the trader
	withdrawn int64 // collateral paid out to the trader
}

// finishTrade is the shared tail of every trade handler: the trade row, the
// market aggregates, the unique-trader set, the trader's user row, the
// referral cascade, the platform singleton, and the rollup buckets. Platform
// liquidity moves in the same transaction as market TVL, so their invariant
// holds at every commit.
func (e *Engine) finishTrade(ctx context.Context, ap *applyCtx, t *model.Trade, market *model.Market, ps *model.PlatformStats, eff tradeEffects) error {
	if err := ap.putTrade(ctx, t); err != nil {
		return err
	}

	var err error
	if market.TotalVolume, err = addMoney(market.TotalVolume, eff.volume); err != nil {
		return err
	}
	if market.TotalFees, err = addMoney(market.TotalFees, eff.fee); err != nil {
		return err
	}
	if market.CurrentTvl, err = addMoney(market.CurrentTvl, eff.tvlDelta); err != nil {
		return err
	}
	market.TotalTrades++

	mu, err := ap.tx.GetMarketUser(ctx, ap.chainID, market.Address, t.Trader)
	if err != nil {
		return err
	}
	if mu == nil {
		mu = &model.MarketUser{
			ChainID:       ap.chainID,
			MarketAddress: market.Address,
			Address:       t.Trader,
		}
	}
	mu.LastTradeAt = ap.now
	if err := ap.putMarketUser(ctx, mu); err != nil {
		return err
	}
	if market.UniqueTraders, err = ap.tx.CountMarketUsers(ctx, ap.chainID, market.Address); err != nil {
		return err
	}

	if err := ap.putMarket(ctx, market); err != nil {
		return err
	}

	var ru rollupDelta
	ru.trades = 1
	ru.volume = eff.volume
	ru.fees = eff.fee

	trader, created, err := ap.getOrCreateUser(ctx, t.Trader)
	if err != nil {
		return err
	}
	if created {
		ps.TotalUsers++
		ru.newUsers++
	}
	trader.TotalTrades++
	if trader.TotalVolume, err = addMoney(trader.TotalVolume, eff.volume); err != nil {
		return err
	}
	if trader.TotalDeposited, err = addMoney(trader.TotalDeposited, eff.deposited); err != nil {
		return err
	}
	if trader.TotalWithdrawn, err = addMoney(trader.TotalWithdrawn, eff.withdrawn); err != nil {
		return err
	}
	if err := recomputePnL(trader); err != nil {
		return err
	}
	now := ap.now
	if trader.FirstTradeAt == nil {
		trader.FirstTradeAt = &now
	}
	trader.LastTradeAt = &now
	if err := ap.putUser(ctx, trader); err != nil {
		return err
	}

	if err := e.applyReferralCascade(ctx, ap, t.Trader, eff, ps, &ru); err != nil {
		return err
	}

	ps.TotalTrades++
	if ps.TotalVolume, err = addMoney(ps.TotalVolume, eff.volume); err != nil {
		return err
	}
	if ps.TotalFees, err = addMoney(ps.TotalFees, eff.fee); err != nil {
		return err
	}
	if ps.TotalLiquidity, err = addMoney(ps.TotalLiquidity, eff.tvlDelta); err != nil {
		return err
	}
	if err := ap.putPlatformStats(ctx, ps); err != nil {
		return err
	}

	return ap.addRollup(ctx, ru)
}

// applyReferralCascade attributes a referee's trade to its referrer: the
// referral link itself, the referrer's user row, the referral code, and the
// program singleton. First attributed trade flips the link to active.
func (e *Engine) applyReferralCascade(ctx context.Context, ap *applyCtx, trader string, eff tradeEffects, ps *model.PlatformStats, ru *rollupDelta) error {
	r, err := ap.tx.FindReferralByReferee(ctx, ap.chainID, trader)
	if err != nil {
		return err
	}
	if r == nil {
		return nil
	}

	r.Status = model.ReferralStatusActive
	if r.TotalVolumeGenerated, err = addMoney(r.TotalVolumeGenerated, eff.volume); err != nil {
		return err
	}
	if r.TotalFeesGenerated, err = addMoney(r.TotalFeesGenerated, eff.fee); err != nil {
		return err
	}
	r.TotalTradesCount++
	if err := ap.putReferral(ctx, r); err != nil {
		return err
	}

	referrer, created, err := ap.getOrCreateUser(ctx, r.Referrer)
	if err != nil {
		return err
	}
	if created {
		ps.TotalUsers++
		ru.newUsers++
	}
	if referrer.TotalReferralVolume, err = addMoney(referrer.TotalReferralVolume, eff.volume); err != nil {
		return err
	}
	if referrer.TotalReferralFees, err = addMoney(referrer.TotalReferralFees, eff.fee); err != nil {
		return err
	}
	if err := ap.putUser(ctx, referrer); err != nil {
		return err
	}

	code, err := ap.tx.GetReferralCode(ctx, ap.chainID, r.CodeHash)
	if err != nil {
		return err
	}
	if code != nil {
		if code.TotalVolumeGenerated, err = addMoney(code.TotalVolumeGenerated, eff.volume); err != nil {
			return err
		}
		if code.TotalFeesGenerated, err = addMoney(code.TotalFeesGenerated, eff.fee); err != nil {
			return err
		}
		if err := ap.putReferralCode(ctx, code); err != nil {
			return err
		}
	}

	rs, err := ap.referralStats(ctx)
	if err != nil {
		return err
	}
	if rs.TotalVolumeGenerated, err = addMoney(rs.TotalVolumeGenerated, eff.volume); err != nil {
		return err
	}
	if rs.TotalFeesGenerated, err = addMoney(rs.TotalFeesGenerated, eff.fee); err != nil {
		return err
	}
	return ap.putReferralStats(ctx, rs)
}

// recomputePnL maintains realizedPnL = totalWithdrawn + totalWinnings -
// totalDeposited; open positions are excluded by construction.
func recomputePnL(u *model.User) error {
	s, err := addMoney(u.TotalWithdrawn, u.TotalWinnings)
	if err != nil {
		return err
	}
	u.RealizedPnL, err = subMoney(s, u.TotalDeposited)
	return err
}

// applyTradeReserves moves AMM reserves for one trade. A buy hands the
// trader tokenAmount of the chosen side out of that reserve and parks the
// collateral on the opposite leg; a sell reverses both moves.
func applyTradeReserves(m *model.Market, side model.Side, tt model.TradeType, tokenAmount, collateral int64) error {
	tokenDelta, collateralDelta := -tokenAmount, collateral
	if tt == model.TradeTypeSell {
		tokenDelta, collateralDelta = tokenAmount, -collateral
	}
	sideReserve, otherReserve := &m.ReserveYes, &m.ReserveNo
	if side == model.SideNo {
		sideReserve, otherReserve = &m.ReserveNo, &m.ReserveYes
	}
	next, err := addMoney(*sideReserve, tokenDelta)
	if err != nil {
		return err
	}
	*sideReserve = next
	if next, err = addMoney(*otherReserve, collateralDelta); err != nil {
		return err
	}
	*otherReserve = next
	return nil
}

// computePariShares reproduces the bonding curve for contract versions that
// emit PositionPurchased without a share amount: the collateral is scaled by
// curveOffset + curveFlattener * secondsToDeadline, in millionths.
func computePariShares(m *model.Market, amount int64, now time.Time) (int64, error) {
	remaining := m.DeadlineEpoch - now.Unix()
	if remaining < 0 {
		remaining = 0
	}
	mult, err := mulMoney(m.CurveFlattener, remaining)
	if err != nil {
		return 0, err
	}
	if mult, err = addMoney(mult, m.CurveOffset); err != nil {
		return 0, err
	}
	shares, err := mulMoney(amount, mult)
	if err != nil {
		return 0, err
	}
	return shares / 1_000_000, nil
}

// recomputeYesChance derives the implied yes probability in parts per
// billion. Shares are inversely priced, so the yes chance is the no pool's
// share of the total.
func recomputeYesChance(m *model.Market) error {
	total, err := addMoney(m.TotalSharesYes, m.TotalSharesNo)
	if err != nil {
		return err
	}
	if total == 0 {
		m.YesChance = defaultYesChance
		return nil
	}
	num, err := mulMoney(m.TotalSharesNo, 1_000_000_000)
	if err != nil {
		return err
	}
	m.YesChance = num / total
	return nil
}
