package model

import "fmt"

// Table names used by the snapshot/undo machinery and the memory store.
const (
	TablePolls           = "polls"
	TableMarkets         = "markets"
	TableTrades          = "trades"
	TableUsers           = "users"
	TableMarketUsers     = "market_users"
	TableWinnings        = "winnings"
	TableLiquidityEvents = "liquidity_events"
	TableReferralCodes   = "referral_codes"
	TableReferrals       = "referrals"
	TableCampaigns       = "campaigns"
	TableCampaignClaims  = "campaign_claims"
	TablePlatformStats   = "platform_stats"
	TableReferralStats   = "referral_stats"
	TableCampaignStats   = "campaign_stats"
	TableDailyStats      = "daily_stats"
	TableHourlyStats     = "hourly_stats"
)

// EventID is the globally unique identifier of an on-chain log and the key of
// every append-only row derived from one.
func EventID(chainID ChainID, txHash string, logIndex int64) string {
	return fmt.Sprintf("%d-%s-%d", chainID, txHash, logIndex)
}

// UserID keys a user row; addresses are not unique across chains.
func UserID(chainID ChainID, address string) string {
	return fmt.Sprintf("%d-%s", chainID, address)
}

// MarketUserID keys the market/trader dedup row behind uniqueTraders.
func MarketUserID(chainID ChainID, marketAddress, address string) string {
	return fmt.Sprintf("%d-%s-%s", chainID, marketAddress, address)
}

// MarketID keys a market row.
func MarketID(chainID ChainID, address string) string {
	return fmt.Sprintf("%d-%s", chainID, address)
}

// PollID keys a poll row.
func PollID(chainID ChainID, address string) string {
	return fmt.Sprintf("%d-%s", chainID, address)
}

// ReferralID keys a referrer/referee pair.
func ReferralID(chainID ChainID, referrer, referee string) string {
	return fmt.Sprintf("%d-%s-%s", chainID, referrer, referee)
}

// ReferralCodeID keys a referral code by its hash.
func ReferralCodeID(chainID ChainID, codeHash string) string {
	return fmt.Sprintf("%d-%s", chainID, codeHash)
}

// CampaignID keys a campaign row.
func CampaignID(chainID ChainID, onchainID int64) string {
	return fmt.Sprintf("%d-%d", chainID, onchainID)
}

// CampaignClaimID keys the per-user claim accumulator of a campaign.
func CampaignClaimID(chainID ChainID, onchainID int64, user string) string {
	return fmt.Sprintf("%d-%d-%s", chainID, onchainID, user)
}

// BucketID keys a rollup row by chain and bucket start.
func BucketID(chainID ChainID, bucketStart int64) string {
	return fmt.Sprintf("%d-%d", chainID, bucketStart)
}
