package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/emperorhan/prediction-indexer/internal/domain/model"
)

func (t *Tx) GetCampaign(ctx context.Context, chainID model.ChainID, onchainID int64) (*model.Campaign, error) {
	c := &model.Campaign{}
	err := t.tx.QueryRowContext(ctx, `
		SELECT chain_id, onchain_id, creator, reward_kind, reward_type, reward_token, reward_pool,
		       rewards_paid, total_claims, participant_count, status, created_at, updated_at
		FROM campaigns
		WHERE row_key = $1
		FOR UPDATE
	`, model.CampaignID(chainID, onchainID)).Scan(
		&c.ChainID, &c.OnchainID, &c.Creator, &c.RewardKind, &c.RewardType, &c.RewardToken, &c.RewardPool,
		&c.RewardsPaid, &c.TotalClaims, &c.ParticipantCount, &c.Status, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (t *Tx) PutCampaign(ctx context.Context, c *model.Campaign) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO campaigns (
			row_key, chain_id, onchain_id, creator, reward_kind, reward_type, reward_token, reward_pool,
			rewards_paid, total_claims, participant_count, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (row_key) DO UPDATE SET
			creator = EXCLUDED.creator,
			reward_kind = EXCLUDED.reward_kind,
			reward_type = EXCLUDED.reward_type,
			reward_token = EXCLUDED.reward_token,
			reward_pool = EXCLUDED.reward_pool,
			rewards_paid = EXCLUDED.rewards_paid,
			total_claims = EXCLUDED.total_claims,
			participant_count = EXCLUDED.participant_count,
			status = EXCLUDED.status,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
	`, c.ID(), c.ChainID, c.OnchainID, c.Creator, c.RewardKind, c.RewardType, c.RewardToken, c.RewardPool,
		c.RewardsPaid, c.TotalClaims, c.ParticipantCount, c.Status, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put campaign: %w", err)
	}
	return nil
}

func (t *Tx) GetCampaignClaim(ctx context.Context, chainID model.ChainID, onchainID int64, user string) (*model.CampaignClaim, error) {
	cc := &model.CampaignClaim{}
	err := t.tx.QueryRowContext(ctx, `
		SELECT chain_id, onchain_id, user_address, total_claimed, claim_count, first_claim_at, last_claim_at
		FROM campaign_claims
		WHERE row_key = $1
		FOR UPDATE
	`, model.CampaignClaimID(chainID, onchainID, user)).Scan(
		&cc.ChainID, &cc.OnchainID, &cc.User, &cc.TotalClaimed, &cc.ClaimCount, &cc.FirstClaimAt, &cc.LastClaimAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get campaign claim: %w", err)
	}
	return cc, nil
}

func (t *Tx) PutCampaignClaim(ctx context.Context, cc *model.CampaignClaim) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO campaign_claims (
			row_key, chain_id, onchain_id, user_address, total_claimed, claim_count, first_claim_at, last_claim_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (row_key) DO UPDATE SET
			total_claimed = EXCLUDED.total_claimed,
			claim_count = EXCLUDED.claim_count,
			first_claim_at = EXCLUDED.first_claim_at,
			last_claim_at = EXCLUDED.last_claim_at
	`, cc.ID(), cc.ChainID, cc.OnchainID, cc.User, cc.TotalClaimed, cc.ClaimCount, cc.FirstClaimAt, cc.LastClaimAt)
	if err != nil {
		return fmt.Errorf("put campaign claim: %w", err)
	}
	return nil
}
