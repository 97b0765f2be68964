package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/emperorhan/prediction-indexer/internal/domain/model"
)

func (t *Tx) GetUser(ctx context.Context, chainID model.ChainID, address string) (*model.User, error) {
	u := &model.User{}
	err := t.tx.QueryRowContext(ctx, `
		SELECT chain_id, address,
		       total_trades, total_volume, total_deposited, total_withdrawn, total_winnings, realized_pnl,
		       total_wins, total_losses, current_streak, best_streak,
		       markets_created, polls_created,
		       referrer_address, referral_code_hash, referred_at,
		       total_referral_volume, total_referral_fees, total_referral_rewards,
		       first_trade_at, last_trade_at, created_at, updated_at
		FROM users
		WHERE row_key = $1
		FOR UPDATE
	`, model.UserID(chainID, address)).Scan(
		&u.ChainID, &u.Address,
		&u.TotalTrades, &u.TotalVolume, &u.TotalDeposited, &u.TotalWithdrawn, &u.TotalWinnings, &u.RealizedPnL,
		&u.TotalWins, &u.TotalLosses, &u.CurrentStreak, &u.BestStreak,
		&u.MarketsCreated, &u.PollsCreated,
		&u.ReferrerAddress, &u.ReferralCodeHash, &u.ReferredAt,
		&u.TotalReferralVolume, &u.TotalReferralFees, &u.TotalReferralRewards,
		&u.FirstTradeAt, &u.LastTradeAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (t *Tx) PutUser(ctx context.Context, u *model.User) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO users (
			row_key, chain_id, address,
			total_trades, total_volume, total_deposited, total_withdrawn, total_winnings, realized_pnl,
			total_wins, total_losses, current_streak, best_streak,
			markets_created, polls_created,
			referrer_address, referral_code_hash, referred_at,
			total_referral_volume, total_referral_fees, total_referral_rewards,
			first_trade_at, last_trade_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		          $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
		ON CONFLICT (row_key) DO UPDATE SET
			total_trades = EXCLUDED.total_trades,
			total_volume = EXCLUDED.total_volume,
			total_deposited = EXCLUDED.total_deposited,
			total_withdrawn = EXCLUDED.total_withdrawn,
			total_winnings = EXCLUDED.total_winnings,
			realized_pnl = EXCLUDED.realized_pnl,
			total_wins = EXCLUDED.total_wins,
			total_losses = EXCLUDED.total_losses,
			current_streak = EXCLUDED.current_streak,
			best_streak = EXCLUDED.best_streak,
			markets_created = EXCLUDED.markets_created,
			polls_created = EXCLUDED.polls_created,
			referrer_address = EXCLUDED.referrer_address,
			referral_code_hash = EXCLUDED.referral_code_hash,
			referred_at = EXCLUDED.referred_at,
			total_referral_volume = EXCLUDED.total_referral_volume,
			total_referral_fees = EXCLUDED.total_referral_fees,
			total_referral_rewards = EXCLUDED.total_referral_rewards,
			first_trade_at = EXCLUDED.first_trade_at,
			last_trade_at = EXCLUDED.last_trade_at,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
	`, u.ID(), u.ChainID, u.Address,
		u.TotalTrades, u.TotalVolume, u.TotalDeposited, u.TotalWithdrawn, u.TotalWinnings, u.RealizedPnL,
		u.TotalWins, u.TotalLosses, u.CurrentStreak, u.BestStreak,
		u.MarketsCreated, u.PollsCreated,
		u.ReferrerAddress, u.ReferralCodeHash, u.ReferredAt,
		u.TotalReferralVolume, u.TotalReferralFees, u.TotalReferralRewards,
		u.FirstTradeAt, u.LastTradeAt, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}
