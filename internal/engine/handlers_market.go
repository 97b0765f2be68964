package engine

import (
	"context"

	"github.com/emperorhan/prediction-indexer/internal/domain/event"
	"github.com/emperorhan/prediction-indexer/internal/domain/model"
)

// defaultYesChance is the implied probability of a pari-mutuel market with
// empty share pools, in parts per billion.
const defaultYesChance = 500_000_000

func (e *Engine) handleMarketCreated(ctx context.Context, ap *applyCtx, lg event.Log, args event.MarketCreatedArgs) error {
	existing, err := ap.tx.GetMarket(ctx, ap.chainID, args.Market)
	if err != nil {
		return err
	}
	if existing != nil && !existing.IsIncomplete {
		return anomalyf("duplicate_creation", "market %s already exists", args.Market)
	}

	var ru rollupDelta
	ps, err := ap.platformStats(ctx)
	if err != nil {
		return err
	}

	if existing != nil {
		// Backfill a market first observed through a trade. It was already
		// counted when the placeholder was written.
		if existing.MarketType != model.MarketTypeAMM {
			ps.TotalPariMarkets--
			ps.TotalAmmMarkets++
			existing.MarketType = model.MarketTypeAMM
		}
		existing.PollAddress = args.Poll
		existing.Creator = args.Creator
		existing.CollateralToken = args.CollateralToken
		existing.YesToken = args.YesToken
		existing.NoToken = args.NoToken
		existing.FeeTier = args.FeeTier
		existing.MaxPriceImbalancePerHour = args.MaxPriceImbalancePerHour
		existing.IsIncomplete = false
		if err := ap.putMarket(ctx, existing); err != nil {
			return err
		}
	} else {
		market := &model.Market{
			ChainID:                  ap.chainID,
			Address:                  args.Market,
			PollAddress:              args.Poll,
			Creator:                  args.Creator,
			MarketType:               model.MarketTypeAMM,
			CollateralToken:          args.CollateralToken,
			YesToken:                 args.YesToken,
			NoToken:                  args.NoToken,
			FeeTier:                  args.FeeTier,
			MaxPriceImbalancePerHour: args.MaxPriceImbalancePerHour,
			CreatedAt:                ap.now,
		}
		if err := ap.putMarket(ctx, market); err != nil {
			return err
		}
		ps.TotalMarkets++
		ps.TotalAmmMarkets++
	}

	creator, created, err := ap.getOrCreateUser(ctx, args.Creator)
	if err != nil {
		return err
	}
	creator.MarketsCreated++
	if err := ap.putUser(ctx, creator); err != nil {
		return err
	}
	if created {
		ps.TotalUsers++
		ru.newUsers++
	}

	if err := ap.putPlatformStats(ctx, ps); err != nil {
		return err
	}
	return ap.addRollup(ctx, ru)
}

func (e *Engine) handlePariMutuelCreated(ctx context.Context, ap *applyCtx, lg event.Log, args event.PariMutuelCreatedArgs) error {
	existing, err := ap.tx.GetMarket(ctx, ap.chainID, args.Market)
	if err != nil {
		return err
	}
	if existing != nil && !existing.IsIncomplete {
		return anomalyf("duplicate_creation", "market %s already exists", args.Market)
	}

	var ru rollupDelta
	ps, err := ap.platformStats(ctx)
	if err != nil {
		return err
	}

	if existing != nil {
		if existing.MarketType != model.MarketTypePari {
			ps.TotalAmmMarkets--
			ps.TotalPariMarkets++
			existing.MarketType = model.MarketTypePari
		}
		existing.PollAddress = args.Poll
		existing.Creator = args.Creator
		existing.CollateralToken = args.CollateralToken
		existing.CurveFlattener = args.CurveFlattener
		existing.CurveOffset = args.CurveOffset
		existing.DeadlineEpoch = args.DeadlineEpoch
		existing.IsIncomplete = false
		if err := ap.putMarket(ctx, existing); err != nil {
			return err
		}
	} else {
		market := &model.Market{
			ChainID:         ap.chainID,
			Address:         args.Market,
			PollAddress:     args.Poll,
			Creator:         args.Creator,
			MarketType:      model.MarketTypePari,
			CollateralToken: args.CollateralToken,
			CurveFlattener:  args.CurveFlattener,
			CurveOffset:     args.CurveOffset,
			DeadlineEpoch:   args.DeadlineEpoch,
			YesChance:       defaultYesChance,
			CreatedAt:       ap.now,
		}
		if err := ap.putMarket(ctx, market); err != nil {
			return err
		}
		ps.TotalMarkets++
		ps.TotalPariMarkets++
	}

	creator, created, err := ap.getOrCreateUser(ctx, args.Creator)
	if err != nil {
		return err
	}
	creator.MarketsCreated++
	if err := ap.putUser(ctx, creator); err != nil {
		return err
	}
	if created {
		ps.TotalUsers++
		ru.newUsers++
	}

	if err := ap.putPlatformStats(ctx, ps); err != nil {
		return err
	}
	return ap.addRollup(ctx, ru)
}

// ensureMarket returns the market, writing an incomplete placeholder when a
// trade arrives before the creation event (mid-backfill, or a dropped log
// upstream). The placeholder counts toward the market totals immediately;
// the creation event later fills the descriptive fields without re-counting.
func (ap *applyCtx) ensureMarket(ctx context.Context, address string, mtype model.MarketType, ps *model.PlatformStats) (*model.Market, error) {
	market, err := ap.tx.GetMarket(ctx, ap.chainID, address)
	if err != nil {
		return nil, err
	}
	if market != nil {
		return market, nil
	}

	market = &model.Market{
		ChainID:      ap.chainID,
		Address:      address,
		MarketType:   mtype,
		IsIncomplete: true,
		CreatedAt:    ap.now,
	}
	if mtype == model.MarketTypePari {
		market.YesChance = defaultYesChance
	}
	ps.TotalMarkets++
	switch mtype {
	case model.MarketTypeAMM:
		ps.TotalAmmMarkets++
	case model.MarketTypePari:
		ps.TotalPariMarkets++
	}
	return market, nil
}
