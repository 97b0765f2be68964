package model

import "time"

// PlatformStats is the per-chain singleton mirroring sums over the entity
// tables. Updated in the same transaction as every mutating event, so the
// invariants (totalVolume == sum of market volume, totalLiquidity == sum of
// market TVL, totalMarkets == amm + pari) hold at every commit boundary.
type PlatformStats struct {
	ChainID ChainID `db:"chain_id"`

	TotalPolls         int64 `db:"total_polls"`
	TotalPollsResolved int64 `db:"total_polls_resolved"`
	TotalMarkets       int64 `db:"total_markets"`
	TotalAmmMarkets    int64 `db:"total_amm_markets"`
	TotalPariMarkets   int64 `db:"total_pari_markets"`
	TotalTrades        int64 `db:"total_trades"`
	TotalVolume        int64 `db:"total_volume"`
	TotalFees          int64 `db:"total_fees"`
	TotalUsers         int64 `db:"total_users"`
	TotalLiquidity     int64 `db:"total_liquidity"`
	TotalWinningsPaid  int64 `db:"total_winnings_paid"`

	UpdatedAt time.Time `db:"updated_at"`
}

// ReferralStats is the per-chain referral program singleton.
type ReferralStats struct {
	ChainID ChainID `db:"chain_id"`

	TotalCodes              int64 `db:"total_codes"`
	TotalReferrals          int64 `db:"total_referrals"`
	TotalVolumeGenerated    int64 `db:"total_volume_generated"`
	TotalFeesGenerated      int64 `db:"total_fees_generated"`
	TotalRewardsDistributed int64 `db:"total_rewards_distributed"`

	UpdatedAt time.Time `db:"updated_at"`
}

// CampaignStats is the per-chain campaign program singleton.
type CampaignStats struct {
	ChainID ChainID `db:"chain_id"`

	TotalCampaigns          int64 `db:"total_campaigns"`
	ActiveCampaigns         int64 `db:"active_campaigns"`
	TotalClaims             int64 `db:"total_claims"`
	TotalParticipants       int64 `db:"total_participants"`
	TotalRewardsDistributed int64 `db:"total_rewards_distributed"`

	UpdatedAt time.Time `db:"updated_at"`
}

// DailyStats is a UTC-midnight-keyed rollup bucket, created lazily by the
// first event falling into it and never deleted.
type DailyStats struct {
	ChainID        ChainID   `db:"chain_id"`
	BucketStart    int64     `db:"bucket_start"`
	Trades         int64     `db:"trades"`
	Volume         int64     `db:"volume"`
	Fees           int64     `db:"fees"`
	WinningsPaid   int64     `db:"winnings_paid"`
	LiquidityAdded int64     `db:"liquidity_added"`
	NewUsers       int64     `db:"new_users"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// HourlyStats mirrors DailyStats at top-of-hour granularity.
type HourlyStats struct {
	ChainID        ChainID   `db:"chain_id"`
	BucketStart    int64     `db:"bucket_start"`
	Trades         int64     `db:"trades"`
	Volume         int64     `db:"volume"`
	Fees           int64     `db:"fees"`
	WinningsPaid   int64     `db:"winnings_paid"`
	LiquidityAdded int64     `db:"liquidity_added"`
	NewUsers       int64     `db:"new_users"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// DayBucket truncates t to UTC midnight, returned as a unix timestamp.
func DayBucket(t time.Time) int64 {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).Unix()
}

// HourBucket truncates t to the top of the hour, returned as a unix timestamp.
func HourBucket(t time.Time) int64 {
	return t.UTC().Truncate(time.Hour).Unix()
}
