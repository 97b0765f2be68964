package engine

import (
	"context"

	"github.com/emperorhan/prediction-indexer/internal/domain/event"
	"github.com/emperorhan/prediction-indexer/internal/domain/model"
)

func (e *Engine) handleCampaignCreated(ctx context.Context, ap *applyCtx, lg event.Log, args event.CampaignCreatedArgs) error {
	existing, err := ap.tx.GetCampaign(ctx, ap.chainID, args.CampaignID)
	if err != nil {
		return err
	}
	if existing != nil {
		return anomalyf("duplicate_creation", "campaign %d already exists", args.CampaignID)
	}

	c := &model.Campaign{
		ChainID:     ap.chainID,
		OnchainID:   args.CampaignID,
		Creator:     args.Creator,
		RewardKind:  args.RewardKind,
		RewardType:  args.RewardType,
		RewardToken: args.RewardToken,
		RewardPool:  args.RewardPool,
		Status:      model.CampaignStatusActive,
		CreatedAt:   ap.now,
	}
	if err := ap.putCampaign(ctx, c); err != nil {
		return err
	}

	var ru rollupDelta

	creator, created, err := ap.getOrCreateUser(ctx, args.Creator)
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
		if err := ap.putUser(ctx, creator); err != nil {
			return err
		}
	}

	cs, err := ap.campaignStats(ctx)
	if err != nil {
		return err
	}
	cs.TotalCampaigns++
	cs.ActiveCampaigns++
	if err := ap.putCampaignStats(ctx, cs); err != nil {
		return err
	}
	return ap.addRollup(ctx, ru)
}

func (e *Engine) handleCampaignStatusChanged(ctx context.Context, ap *applyCtx, lg event.Log, args event.CampaignStatusChangedArgs) error {
	c, err := ap.tx.GetCampaign(ctx, ap.chainID, args.CampaignID)
	if err != nil {
		return err
	}
	if c == nil {
		return anomalyf("unknown_campaign", "status change for unseen campaign %d", args.CampaignID)
	}
	if c.Status.Terminal() {
		return anomalyf("terminal_transition", "campaign %d is %s, cannot become %s", args.CampaignID, c.Status, args.Status)
	}
	if c.Status == args.Status {
		return anomalyf("redundant_status", "campaign %d already %s", args.CampaignID, c.Status)
	}

	cs, err := ap.campaignStats(ctx)
	if err != nil {
		return err
	}
	if c.Status == model.CampaignStatusActive && args.Status != model.CampaignStatusActive {
		cs.ActiveCampaigns--
	}
	if c.Status != model.CampaignStatusActive && args.Status == model.CampaignStatusActive {
		cs.ActiveCampaigns++
	}

	c.Status = args.Status
	if err := ap.putCampaign(ctx, c); err != nil {
		return err
	}
	return ap.putCampaignStats(ctx, cs)
}

// handleCampaignRewardClaimed accumulates a user's claims against one
// campaign. Claims against terminal campaigns are accepted (payouts can
// settle after a campaign ends); claims against unseen campaigns are not.
func (e *Engine) handleCampaignRewardClaimed(ctx context.Context, ap *applyCtx, lg event.Log, args event.CampaignRewardClaimedArgs) error {
	c, err := ap.tx.GetCampaign(ctx, ap.chainID, args.CampaignID)
	if err != nil {
		return err
	}
	if c == nil {
		return anomalyf("unknown_campaign", "claim against unseen campaign %d", args.CampaignID)
	}

	claim, err := ap.tx.GetCampaignClaim(ctx, ap.chainID, args.CampaignID, args.User)
	if err != nil {
		return err
	}

	cs, err := ap.campaignStats(ctx)
	if err != nil {
		return err
	}

	if claim == nil {
		claim = &model.CampaignClaim{
			ChainID:      ap.chainID,
			OnchainID:    args.CampaignID,
			User:         args.User,
			FirstClaimAt: ap.now,
		}
		c.ParticipantCount++
		cs.TotalParticipants++
	}
	if claim.TotalClaimed, err = addMoney(claim.TotalClaimed, args.Amount); err != nil {
		return err
	}
	claim.ClaimCount++
	claim.LastClaimAt = ap.now
	if err := ap.putCampaignClaim(ctx, claim); err != nil {
		return err
	}

	if c.RewardsPaid, err = addMoney(c.RewardsPaid, args.Amount); err != nil {
		return err
	}
	c.TotalClaims++
	if err := ap.putCampaign(ctx, c); err != nil {
		return err
	}

	cs.TotalClaims++
	if cs.TotalRewardsDistributed, err = addMoney(cs.TotalRewardsDistributed, args.Amount); err != nil {
		return err
	}
	if err := ap.putCampaignStats(ctx, cs); err != nil {
		return err
	}

	var ru rollupDelta

	user, created, err := ap.getOrCreateUser(ctx, args.User)
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
		if err := ap.putUser(ctx, user); err != nil {
			return err
		}
	}
	return ap.addRollup(ctx, ru)
}
