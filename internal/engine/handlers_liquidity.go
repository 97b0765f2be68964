package engine

import (
	"context"

	"github.com/emperorhan/prediction-indexer/internal/domain/event"
	"github.com/emperorhan/prediction-indexer/internal/domain/model"
	"github.com/google/uuid"
)

func (e *Engine) handleLiquidityAdded(ctx context.Context, ap *applyCtx, lg event.Log, args event.LiquidityAddedArgs) error {
	ps, err := ap.platformStats(ctx)
	if err != nil {
		return err
	}
	market, err := ap.ensureMarket(ctx, args.Market, model.MarketTypeAMM, ps)
	if err != nil {
		return err
	}

	le := &model.LiquidityEvent{
		RowID:            uuid.New(),
		ChainID:          ap.chainID,
		TxHash:           lg.TxHash,
		LogIndex:         lg.LogIndex,
		Provider:         args.Provider,
		MarketAddress:    market.Address,
		PollAddress:      market.PollAddress,
		EventType:        model.LiquidityAdd,
		CollateralAmount: args.CollateralAmount,
		LpTokens:         args.LpTokens,
		YesAmount:        args.YesAmount,
		NoAmount:         args.NoAmount,
		BlockNumber:      lg.BlockNumber,
		Timestamp:        ap.now,
	}
	if err := ap.putLiquidityEvent(ctx, le); err != nil {
		return err
	}

	// LP rebalancing is not trading volume; only TVL and the reserves move.
	if market.CurrentTvl, err = addMoney(market.CurrentTvl, args.CollateralAmount); err != nil {
		return err
	}
	if market.ReserveYes, err = addMoney(market.ReserveYes, args.YesAmount); err != nil {
		return err
	}
	if market.ReserveNo, err = addMoney(market.ReserveNo, args.NoAmount); err != nil {
		return err
	}
	if err := ap.putMarket(ctx, market); err != nil {
		return err
	}

	var ru rollupDelta
	ru.liquidityAdded = args.CollateralAmount

	provider, created, err := ap.getOrCreateUser(ctx, args.Provider)
	if err != nil {
		return err
	}
	if created {
		ps.TotalUsers++
		ru.newUsers++
	}
	if provider.TotalDeposited, err = addMoney(provider.TotalDeposited, args.CollateralAmount); err != nil {
		return err
	}
	if err := recomputePnL(provider); err != nil {
		return err
	}
	if err := ap.putUser(ctx, provider); err != nil {
		return err
	}

	if ps.TotalLiquidity, err = addMoney(ps.TotalLiquidity, args.CollateralAmount); err != nil {
		return err
	}
	if err := ap.putPlatformStats(ctx, ps); err != nil {
		return err
	}
	return ap.addRollup(ctx, ru)
}

func (e *Engine) handleLiquidityRemoved(ctx context.Context, ap *applyCtx, lg event.Log, args event.LiquidityRemovedArgs) error {
	ps, err := ap.platformStats(ctx)
	if err != nil {
		return err
	}
	market, err := ap.ensureMarket(ctx, args.Market, model.MarketTypeAMM, ps)
	if err != nil {
		return err
	}

	le := &model.LiquidityEvent{
		RowID:            uuid.New(),
		ChainID:          ap.chainID,
		TxHash:           lg.TxHash,
		LogIndex:         lg.LogIndex,
		Provider:         args.Provider,
		MarketAddress:    market.Address,
		PollAddress:      market.PollAddress,
		EventType:        model.LiquidityRemove,
		CollateralAmount: args.CollateralAmount,
		LpTokens:         args.LpTokens,
		YesAmount:        args.YesAmount,
		NoAmount:         args.NoAmount,
		BlockNumber:      lg.BlockNumber,
		Timestamp:        ap.now,
	}
	if err := ap.putLiquidityEvent(ctx, le); err != nil {
		return err
	}

	if market.CurrentTvl, err = subMoney(market.CurrentTvl, args.CollateralAmount); err != nil {
		return err
	}
	if market.ReserveYes, err = subMoney(market.ReserveYes, args.YesAmount); err != nil {
		return err
	}
	if market.ReserveNo, err = subMoney(market.ReserveNo, args.NoAmount); err != nil {
		return err
	}
	if err := ap.putMarket(ctx, market); err != nil {
		return err
	}

	var ru rollupDelta

	provider, created, err := ap.getOrCreateUser(ctx, args.Provider)
	if err != nil {
		return err
	}
	if created {
		ps.TotalUsers++
		ru.newUsers++
	}
	if provider.TotalWithdrawn, err = addMoney(provider.TotalWithdrawn, args.CollateralAmount); err != nil {
		return err
	}
	if err := recomputePnL(provider); err != nil {
		return err
	}
	if err := ap.putUser(ctx, provider); err != nil {
		return err
	}

	if ps.TotalLiquidity, err = subMoney(ps.TotalLiquidity, args.CollateralAmount); err != nil {
		return err
	}
	if err := ap.putPlatformStats(ctx, ps); err != nil {
		return err
	}
	return ap.addRollup(ctx, ru)
}

// handleInitialLiquiditySeeded bootstraps a pari-mutuel market with house
// positions on both sides. The seed is counted as trading volume (it prices
// the market) and as the market's initial liquidity, but it is not a trade.
func (e *Engine) handleInitialLiquiditySeeded(ctx context.Context, ap *applyCtx, lg event.Log, args event.InitialLiquiditySeededArgs) error {
	ps, err := ap.platformStats(ctx)
	if err != nil {
		return err
	}
	market, err := ap.ensureMarket(ctx, args.Market, model.MarketTypePari, ps)
	if err != nil {
		return err
	}

	amount, err := addMoney(args.YesAmount, args.NoAmount)
	if err != nil {
		return err
	}

	le := &model.LiquidityEvent{
		RowID:            uuid.New(),
		ChainID:          ap.chainID,
		TxHash:           lg.TxHash,
		LogIndex:         lg.LogIndex,
		Provider:         args.Provider,
		MarketAddress:    market.Address,
		PollAddress:      market.PollAddress,
		EventType:        model.LiquidityAdd,
		CollateralAmount: amount,
		YesAmount:        args.YesAmount,
		NoAmount:         args.NoAmount,
		BlockNumber:      lg.BlockNumber,
		Timestamp:        ap.now,
	}
	if err := ap.putLiquidityEvent(ctx, le); err != nil {
		return err
	}

	if market.TotalVolume, err = addMoney(market.TotalVolume, amount); err != nil {
		return err
	}
	if market.CurrentTvl, err = addMoney(market.CurrentTvl, amount); err != nil {
		return err
	}
	if market.InitialLiquidity, err = addMoney(market.InitialLiquidity, amount); err != nil {
		return err
	}
	if market.TotalCollateralYes, err = addMoney(market.TotalCollateralYes, args.YesAmount); err != nil {
		return err
	}
	if market.TotalCollateralNo, err = addMoney(market.TotalCollateralNo, args.NoAmount); err != nil {
		return err
	}
	// Seed shares run through the same bonding curve as purchases so the
	// implied odds start where the house set them.
	yesShares, err := computePariShares(market, args.YesAmount, ap.now)
	if err != nil {
		return err
	}
	noShares, err := computePariShares(market, args.NoAmount, ap.now)
	if err != nil {
		return err
	}
	if market.TotalSharesYes, err = addMoney(market.TotalSharesYes, yesShares); err != nil {
		return err
	}
	if market.TotalSharesNo, err = addMoney(market.TotalSharesNo, noShares); err != nil {
		return err
	}
	if err := recomputeYesChance(market); err != nil {
		return err
	}
	if err := ap.putMarket(ctx, market); err != nil {
		return err
	}

	var ru rollupDelta
	ru.volume = amount
	ru.liquidityAdded = amount

	provider, created, err := ap.getOrCreateUser(ctx, args.Provider)
	if err != nil {
		return err
	}
	if created {
		ps.TotalUsers++
		ru.newUsers++
	}
	if provider.TotalDeposited, err = addMoney(provider.TotalDeposited, amount); err != nil {
		return err
	}
	if err := recomputePnL(provider); err != nil {
		return err
	}
	if err := ap.putUser(ctx, provider); err != nil {
		return err
	}

	// Volume invariant: the platform total moves with the market total in
	// the same transaction.
	if ps.TotalVolume, err = addMoney(ps.TotalVolume, amount); err != nil {
		return err
	}
	if ps.TotalLiquidity, err = addMoney(ps.TotalLiquidity, amount); err != nil {
		return err
	}
	if err := ap.putPlatformStats(ctx, ps); err != nil {
		return err
	}
	return ap.addRollup(ctx, ru)
}
