package model

import "time"

// ReferralCode is an on-chain registered code, keyed by its hash.
type ReferralCode struct {
	ChainID             ChainID   `db:"chain_id"`
	CodeHash            string    `db:"code_hash"`
	Owner               string    `db:"owner"`
	TotalReferrals      int64     `db:"total_referrals"`
	TotalVolumeGenerated int64    `db:"total_volume_generated"`
	TotalFeesGenerated  int64     `db:"total_fees_generated"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
}

func (rc *ReferralCode) ID() string {
	return ReferralCodeID(rc.ChainID, rc.CodeHash)
}

type ReferralStatus string

const (
	ReferralStatusPending ReferralStatus = "pending"
	ReferralStatusActive  ReferralStatus = "active"
)

// Referral links a referrer to a referee and accumulates everything the
// referee generates. Status flips pending -> active on the referee's first
// trade after registration.
type Referral struct {
	ChainID              ChainID        `db:"chain_id"`
	Referrer             string         `db:"referrer"`
	Referee              string         `db:"referee"`
	CodeHash             string         `db:"code_hash"`
	Status               ReferralStatus `db:"status"`
	TotalVolumeGenerated int64          `db:"total_volume_generated"`
	TotalFeesGenerated   int64          `db:"total_fees_generated"`
	TotalTradesCount     int64          `db:"total_trades_count"`
	TotalRewardsEarned   int64          `db:"total_rewards_earned"`
	RegisteredAt         time.Time      `db:"registered_at"`
	UpdatedAt            time.Time      `db:"updated_at"`
}

func (r *Referral) ID() string {
	return ReferralID(r.ChainID, r.Referrer, r.Referee)
}
