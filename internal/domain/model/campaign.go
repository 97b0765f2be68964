package model

import "time"

// RewardKind is the asset class a campaign pays out in. Opaque to the engine
// beyond the discriminator itself.
type RewardKind string

const (
	RewardKindNative  RewardKind = "native"
	RewardKindERC20   RewardKind = "erc20"
	RewardKindERC721  RewardKind = "erc721"
	RewardKindERC1155 RewardKind = "erc1155"
)

// RewardType is the payout formula discriminator.
type RewardType string

const (
	RewardTypeFixed      RewardType = "fixed"
	RewardTypePercentage RewardType = "percentage"
	RewardTypeTiered     RewardType = "tiered"
	RewardTypeCustom     RewardType = "custom"
)

type CampaignStatus string

const (
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusEnded     CampaignStatus = "ended"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// Terminal reports whether no further status transitions are permitted.
func (s CampaignStatus) Terminal() bool {
	return s == CampaignStatusEnded || s == CampaignStatusCancelled
}

// Campaign is a reward campaign created by the factory contract.
type Campaign struct {
	ChainID          ChainID        `db:"chain_id"`
	OnchainID        int64          `db:"onchain_id"`
	Creator          string         `db:"creator"`
	RewardKind       RewardKind     `db:"reward_kind"`
	RewardType       RewardType     `db:"reward_type"`
	RewardToken      string         `db:"reward_token"`
	RewardPool       int64          `db:"reward_pool"`
	RewardsPaid      int64          `db:"rewards_paid"`
	TotalClaims      int64          `db:"total_claims"`
	ParticipantCount int64          `db:"participant_count"`
	Status           CampaignStatus `db:"status"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func (c *Campaign) ID() string {
	return CampaignID(c.ChainID, c.OnchainID)
}

// CampaignClaim accumulates a single user's claims against one campaign.
type CampaignClaim struct {
	ChainID      ChainID   `db:"chain_id"`
	OnchainID    int64     `db:"onchain_id"`
	User         string    `db:"user_address"`
	TotalClaimed int64     `db:"total_claimed"`
	ClaimCount   int64     `db:"claim_count"`
	FirstClaimAt time.Time `db:"first_claim_at"`
	LastClaimAt  time.Time `db:"last_claim_at"`
}

func (cc *CampaignClaim) ID() string {
	return CampaignClaimID(cc.ChainID, cc.OnchainID, cc.User)
}
