package model

import "time"

// User accumulates per-address protocol activity. Created lazily on first
// interaction, monotonically mutated, never deleted.
//
// RealizedPnL is maintained as totalWithdrawn + totalWinnings - totalDeposited
// after every mutation; open positions are excluded by construction.
type User struct {
	ChainID ChainID `db:"chain_id"`
	Address string  `db:"address"`

	TotalTrades    int64 `db:"total_trades"`
	TotalVolume    int64 `db:"total_volume"`
	TotalDeposited int64 `db:"total_deposited"`
	TotalWithdrawn int64 `db:"total_withdrawn"`
	TotalWinnings  int64 `db:"total_winnings"`
	RealizedPnL    int64 `db:"realized_pnl"`

	TotalWins     int64 `db:"total_wins"`
	TotalLosses   int64 `db:"total_losses"`
	CurrentStreak int64 `db:"current_streak"`
	BestStreak    int64 `db:"best_streak"`

	MarketsCreated int64 `db:"markets_created"`
	PollsCreated   int64 `db:"polls_created"`

	// Referral linkage (set when this user is registered as a referee) and
	// referrer-side accumulators (bumped by every referee trade).
	ReferrerAddress      *string    `db:"referrer_address"`
	ReferralCodeHash     *string    `db:"referral_code_hash"`
	ReferredAt           *time.Time `db:"referred_at"`
	TotalReferralVolume  int64      `db:"total_referral_volume"`
	TotalReferralFees    int64      `db:"total_referral_fees"`
	TotalReferralRewards int64      `db:"total_referral_rewards"`

	FirstTradeAt *time.Time `db:"first_trade_at"`
	LastTradeAt  *time.Time `db:"last_trade_at"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

func (u *User) ID() string {
	return UserID(u.ChainID, u.Address)
}
