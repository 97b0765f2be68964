package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/emperorhan/prediction-indexer/internal/domain/model"
)

func (t *Tx) GetReferralCode(ctx context.Context, chainID model.ChainID, codeHash string) (*model.ReferralCode, error) {
	rc := &model.ReferralCode{}
	err := t.tx.QueryRowContext(ctx, `
		SELECT chain_id, code_hash, owner, total_referrals, total_volume_generated, total_fees_generated,
		       created_at, updated_at
		FROM referral_codes
		WHERE row_key = $1
		FOR UPDATE
	`, model.ReferralCodeID(chainID, codeHash)).Scan(
		&rc.ChainID, &rc.CodeHash, &rc.Owner, &rc.TotalReferrals, &rc.TotalVolumeGenerated, &rc.TotalFeesGenerated,
		&rc.CreatedAt, &rc.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get referral code: %w", err)
	}
	return rc, nil
}

func (t *Tx) PutReferralCode(ctx context.Context, rc *model.ReferralCode) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO referral_codes (
			row_key, chain_id, code_hash, owner, total_referrals,
			total_volume_generated, total_fees_generated, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (row_key) DO UPDATE SET
			owner = EXCLUDED.owner,
			total_referrals = EXCLUDED.total_referrals,
			total_volume_generated = EXCLUDED.total_volume_generated,
			total_fees_generated = EXCLUDED.total_fees_generated,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
	`, rc.ID(), rc.ChainID, rc.CodeHash, rc.Owner, rc.TotalReferrals,
		rc.TotalVolumeGenerated, rc.TotalFeesGenerated, rc.CreatedAt, rc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put referral code: %w", err)
	}
	return nil
}

func (t *Tx) GetReferral(ctx context.Context, chainID model.ChainID, referrer, referee string) (*model.Referral, error) {
	return t.scanReferral(t.tx.QueryRowContext(ctx, `
		SELECT chain_id, referrer, referee, code_hash, status,
		       total_volume_generated, total_fees_generated, total_trades_count, total_rewards_earned,
		       registered_at, updated_at
		FROM referrals
		WHERE row_key = $1
		FOR UPDATE
	`, model.ReferralID(chainID, referrer, referee)))
}

// FindReferralByReferee resolves the referee-side link used by the trade
// cascade. The unique index on (chain_id, referee) enforces at most one
// referrer per referee.
func (t *Tx) FindReferralByReferee(ctx context.Context, chainID model.ChainID, referee string) (*model.Referral, error) {
	return t.scanReferral(t.tx.QueryRowContext(ctx, `
		SELECT chain_id, referrer, referee, code_hash, status,
		       total_volume_generated, total_fees_generated, total_trades_count, total_rewards_earned,
		       registered_at, updated_at
		FROM referrals
		WHERE chain_id = $1 AND referee = $2
		FOR UPDATE
	`, chainID, referee))
}

func (t *Tx) scanReferral(row *sql.Row) (*model.Referral, error) {
	r := &model.Referral{}
	err := row.Scan(
		&r.ChainID, &r.Referrer, &r.Referee, &r.CodeHash, &r.Status,
		&r.TotalVolumeGenerated, &r.TotalFeesGenerated, &r.TotalTradesCount, &r.TotalRewardsEarned,
		&r.RegisteredAt, &r.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan referral: %w", err)
	}
	return r, nil
}

func (t *Tx) PutReferral(ctx context.Context, r *model.Referral) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO referrals (
			row_key, chain_id, referrer, referee, code_hash, status,
			total_volume_generated, total_fees_generated, total_trades_count, total_rewards_earned,
			registered_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (row_key) DO UPDATE SET
			code_hash = EXCLUDED.code_hash,
			status = EXCLUDED.status,
			total_volume_generated = EXCLUDED.total_volume_generated,
			total_fees_generated = EXCLUDED.total_fees_generated,
			total_trades_count = EXCLUDED.total_trades_count,
			total_rewards_earned = EXCLUDED.total_rewards_earned,
			registered_at = EXCLUDED.registered_at,
			updated_at = EXCLUDED.updated_at
	`, r.ID(), r.ChainID, r.Referrer, r.Referee, r.CodeHash, r.Status,
		r.TotalVolumeGenerated, r.TotalFeesGenerated, r.TotalTradesCount, r.TotalRewardsEarned,
		r.RegisteredAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put referral: %w", err)
	}
	return nil
}
