package engine

import (
	"context"

	"github.com/emperorhan/prediction-indexer/internal/domain/event"
	"github.com/emperorhan/prediction-indexer/internal/domain/model"
)

func (e *Engine) handleReferralCodeRegistered(ctx context.Context, ap *applyCtx, lg event.Log, args event.ReferralCodeRegisteredArgs) error {
	existing, err := ap.tx.GetReferralCode(ctx, ap.chainID, args.CodeHash)
	if err != nil {
		return err
	}
	if existing != nil {
		return anomalyf("duplicate_code", "referral code %s already registered", args.CodeHash)
	}

	code := &model.ReferralCode{
		ChainID:   ap.chainID,
		CodeHash:  args.CodeHash,
		Owner:     args.Owner,
		CreatedAt: ap.now,
	}
	if err := ap.putReferralCode(ctx, code); err != nil {
		return err
	}

	var ru rollupDelta

	owner, created, err := ap.getOrCreateUser(ctx, args.Owner)
	if err != nil {
		return err
	}
	if created {
		ps, err := ap.platformStats(ctx)
		if err != nil {
			return err
		}
		ps.TotalUsers++
		ru.newUsers++
		if err := ap.putPlatformStats(ctx, ps); err != nil {
			return err
		}
		if err := ap.putUser(ctx, owner); err != nil {
			return err
		}
	}

	rs, err := ap.referralStats(ctx)
	if err != nil {
		return err
	}
	rs.TotalCodes++
	if err := ap.putReferralStats(ctx, rs); err != nil {
		return err
	}
	return ap.addRollup(ctx, ru)
}

func (e *Engine) handleReferralRegistered(ctx context.Context, ap *applyCtx, lg event.Log, args event.ReferralRegisteredArgs) error {
	code, err := ap.tx.GetReferralCode(ctx, ap.chainID, args.CodeHash)
	if err != nil {
		return err
	}
	if code == nil {
		return anomalyf("unknown_code", "referral against unseen code %s", args.CodeHash)
	}
	existing, err := ap.tx.GetReferral(ctx, ap.chainID, args.Referrer, args.Referee)
	if err != nil {
		return err
	}
	if existing != nil {
		return anomalyf("duplicate_referral", "referral %s -> %s already registered", args.Referrer, args.Referee)
	}
	prior, err := ap.tx.FindReferralByReferee(ctx, ap.chainID, args.Referee)
	if err != nil {
		return err
	}
	if prior != nil {
		return anomalyf("already_referred", "referee %s already linked to %s", args.Referee, prior.Referrer)
	}

	r := &model.Referral{
		ChainID:      ap.chainID,
		Referrer:     args.Referrer,
		Referee:      args.Referee,
		CodeHash:     args.CodeHash,
		Status:       model.ReferralStatusPending,
		RegisteredAt: ap.now,
	}
	if err := ap.putReferral(ctx, r); err != nil {
		return err
	}

	var ru rollupDelta
	ps, err := ap.platformStats(ctx)
	if err != nil {
		return err
	}

	referee, created, err := ap.getOrCreateUser(ctx, args.Referee)
	if err != nil {
		return err
	}
	if created {
		ps.TotalUsers++
		ru.newUsers++
	}
	now := ap.now
	referee.ReferrerAddress = &args.Referrer
	referee.ReferralCodeHash = &args.CodeHash
	referee.ReferredAt = &now
	if err := ap.putUser(ctx, referee); err != nil {
		return err
	}

	referrer, created, err := ap.getOrCreateUser(ctx, args.Referrer)
	if err != nil {
		return err
	}
	if created {
		ps.TotalUsers++
		ru.newUsers++
		if err := ap.putUser(ctx, referrer); err != nil {
			return err
		}
	}

	code.TotalReferrals++
	if err := ap.putReferralCode(ctx, code); err != nil {
		return err
	}

	rs, err := ap.referralStats(ctx)
	if err != nil {
		return err
	}
	rs.TotalReferrals++
	if err := ap.putReferralStats(ctx, rs); err != nil {
		return err
	}

	if err := ap.putPlatformStats(ctx, ps); err != nil {
		return err
	}
	return ap.addRollup(ctx, ru)
}

func (e *Engine) handleReferralRewardClaimed(ctx context.Context, ap *applyCtx, lg event.Log, args event.ReferralRewardClaimedArgs) error {
	r, err := ap.tx.GetReferral(ctx, ap.chainID, args.Referrer, args.Referee)
	if err != nil {
		return err
	}
	if r == nil {
		return anomalyf("unknown_referral", "reward claim for unseen referral %s -> %s", args.Referrer, args.Referee)
	}

	if r.TotalRewardsEarned, err = addMoney(r.TotalRewardsEarned, args.Amount); err != nil {
		return err
	}
	if err := ap.putReferral(ctx, r); err != nil {
		return err
	}

	var ru rollupDelta
	ps, err := ap.platformStats(ctx)
	if err != nil {
		return err
	}

	referrer, created, err := ap.getOrCreateUser(ctx, args.Referrer)
	if err != nil {
		return err
	}
	if created {
		ps.TotalUsers++
		ru.newUsers++
		if err := ap.putPlatformStats(ctx, ps); err != nil {
			return err
		}
	}
	if referrer.TotalReferralRewards, err = addMoney(referrer.TotalReferralRewards, args.Amount); err != nil {
		return err
	}
	if err := ap.putUser(ctx, referrer); err != nil {
		return err
	}

	rs, err := ap.referralStats(ctx)
	if err != nil {
		return err
	}
	if rs.TotalRewardsDistributed, err = addMoney(rs.TotalRewardsDistributed, args.Amount); err != nil {
		return err
	}
	if err := ap.putReferralStats(ctx, rs); err != nil {
		return err
	}
	return ap.addRollup(ctx, ru)
}
