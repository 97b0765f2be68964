package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/emperorhan/prediction-indexer/internal/domain/model"
)

func (t *Tx) GetPlatformStats(ctx context.Context, chainID model.ChainID) (*model.PlatformStats, error) {
	ps := &model.PlatformStats{}
	err := t.tx.QueryRowContext(ctx, `
		SELECT chain_id, total_polls, total_polls_resolved, total_markets, total_amm_markets, total_pari_markets,
		       total_trades, total_volume, total_fees, total_users, total_liquidity, total_winnings_paid, updated_at
		FROM platform_stats
		WHERE row_key = $1
		FOR UPDATE
	`, chainID.String()).Scan(
		&ps.ChainID, &ps.TotalPolls, &ps.TotalPollsResolved, &ps.TotalMarkets, &ps.TotalAmmMarkets, &ps.TotalPariMarkets,
		&ps.TotalTrades, &ps.TotalVolume, &ps.TotalFees, &ps.TotalUsers, &ps.TotalLiquidity, &ps.TotalWinningsPaid, &ps.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get platform stats: %w", err)
	}
	return ps, nil
}

func (t *Tx) PutPlatformStats(ctx context.Context, ps *model.PlatformStats) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO platform_stats (
			row_key, chain_id, total_polls, total_polls_resolved, total_markets, total_amm_markets, total_pari_markets,
			total_trades, total_volume, total_fees, total_users, total_liquidity, total_winnings_paid, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (row_key) DO UPDATE SET
			total_polls = EXCLUDED.total_polls,
			total_polls_resolved = EXCLUDED.total_polls_resolved,
			total_markets = EXCLUDED.total_markets,
			total_amm_markets = EXCLUDED.total_amm_markets,
			total_pari_markets = EXCLUDED.total_pari_markets,
			total_trades = EXCLUDED.total_trades,
			total_volume = EXCLUDED.total_volume,
			total_fees = EXCLUDED.total_fees,
			total_users = EXCLUDED.total_users,
			total_liquidity = EXCLUDED.total_liquidity,
			total_winnings_paid = EXCLUDED.total_winnings_paid,
			updated_at = EXCLUDED.updated_at
	`, ps.ChainID.String(), ps.ChainID, ps.TotalPolls, ps.TotalPollsResolved, ps.TotalMarkets, ps.TotalAmmMarkets, ps.TotalPariMarkets,
		ps.TotalTrades, ps.TotalVolume, ps.TotalFees, ps.TotalUsers, ps.TotalLiquidity, ps.TotalWinningsPaid, ps.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put platform stats: %w", err)
	}
	return nil
}

func (t *Tx) GetReferralStats(ctx context.Context, chainID model.ChainID) (*model.ReferralStats, error) {
	rs := &model.ReferralStats{}
	err := t.tx.QueryRowContext(ctx, `
		SELECT chain_id, total_codes, total_referrals, total_volume_generated, total_fees_generated,
		       total_rewards_distributed, updated_at
		FROM referral_stats
		WHERE row_key = $1
		FOR UPDATE
	`, chainID.String()).Scan(
		&rs.ChainID, &rs.TotalCodes, &rs.TotalReferrals, &rs.TotalVolumeGenerated, &rs.TotalFeesGenerated,
		&rs.TotalRewardsDistributed, &rs.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get referral stats: %w", err)
	}
	return rs, nil
}

func (t *Tx) PutReferralStats(ctx context.Context, rs *model.ReferralStats) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO referral_stats (
			row_key, chain_id, total_codes, total_referrals, total_volume_generated, total_fees_generated,
			total_rewards_distributed, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (row_key) DO UPDATE SET
			total_codes = EXCLUDED.total_codes,
			total_referrals = EXCLUDED.total_referrals,
			total_volume_generated = EXCLUDED.total_volume_generated,
			total_fees_generated = EXCLUDED.total_fees_generated,
			total_rewards_distributed = EXCLUDED.total_rewards_distributed,
			updated_at = EXCLUDED.updated_at
	`, rs.ChainID.String(), rs.ChainID, rs.TotalCodes, rs.TotalReferrals, rs.TotalVolumeGenerated, rs.TotalFeesGenerated,
		rs.TotalRewardsDistributed, rs.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put referral stats: %w", err)
	}
	return nil
}

func (t *Tx) GetCampaignStats(ctx context.Context, chainID model.ChainID) (*model.CampaignStats, error) {
	cs := &model.CampaignStats{}
	err := t.tx.QueryRowContext(ctx, `
		SELECT chain_id, total_campaigns, active_campaigns, total_claims, total_participants,
		       total_rewards_distributed, updated_at
		FROM campaign_stats
		WHERE row_key = $1
		FOR UPDATE
	`, chainID.String()).Scan(
		&cs.ChainID, &cs.TotalCampaigns, &cs.ActiveCampaigns, &cs.TotalClaims, &cs.TotalParticipants,
		&cs.TotalRewardsDistributed, &cs.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get campaign stats: %w", err)
	}
	return cs, nil
}

func (t *Tx) PutCampaignStats(ctx context.Context, cs *model.CampaignStats) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO campaign_stats (
			row_key, chain_id, total_campaigns, active_campaigns, total_claims, total_participants,
			total_rewards_distributed, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (row_key) DO UPDATE SET
			total_campaigns = EXCLUDED.total_campaigns,
			active_campaigns = EXCLUDED.active_campaigns,
			total_claims = EXCLUDED.total_claims,
			total_participants = EXCLUDED.total_participants,
			total_rewards_distributed = EXCLUDED.total_rewards_distributed,
			updated_at = EXCLUDED.updated_at
	`, cs.ChainID.String(), cs.ChainID, cs.TotalCampaigns, cs.ActiveCampaigns, cs.TotalClaims, cs.TotalParticipants,
		cs.TotalRewardsDistributed, cs.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put campaign stats: %w", err)
	}
	return nil
}

func (t *Tx) GetDailyStats(ctx context.Context, chainID model.ChainID, bucketStart int64) (*model.DailyStats, error) {
	ds := &model.DailyStats{}
	err := t.tx.QueryRowContext(ctx, `
		SELECT chain_id, bucket_start, trades, volume, fees, winnings_paid, liquidity_added, new_users, updated_at
		FROM daily_stats
		WHERE row_key = $1
		FOR UPDATE
	`, model.BucketID(chainID, bucketStart)).Scan(
		&ds.ChainID, &ds.BucketStart, &ds.Trades, &ds.Volume, &ds.Fees, &ds.WinningsPaid, &ds.LiquidityAdded, &ds.NewUsers, &ds.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get daily stats: %w", err)
	}
	return ds, nil
}

func (t *Tx) PutDailyStats(ctx context.Context, ds *model.DailyStats) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO daily_stats (
			row_key, chain_id, bucket_start, trades, volume, fees, winnings_paid, liquidity_added, new_users, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (row_key) DO UPDATE SET
			trades = EXCLUDED.trades,
			volume = EXCLUDED.volume,
			fees = EXCLUDED.fees,
			winnings_paid = EXCLUDED.winnings_paid,
			liquidity_added = EXCLUDED.liquidity_added,
			new_users = EXCLUDED.new_users,
			updated_at = EXCLUDED.updated_at
	`, model.BucketID(ds.ChainID, ds.BucketStart), ds.ChainID, ds.BucketStart,
		ds.Trades, ds.Volume, ds.Fees, ds.WinningsPaid, ds.LiquidityAdded, ds.NewUsers, ds.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put daily stats: %w", err)
	}
	return nil
}

func (t *Tx) GetHourlyStats(ctx context.Context, chainID model.ChainID, bucketStart int64) (*model.HourlyStats, error) {
	hs := &model.HourlyStats{}
	err := t.tx.QueryRowContext(ctx, `
		SELECT chain_id, bucket_start, trades, volume, fees, winnings_paid, liquidity_added, new_users, updated_at
		FROM hourly_stats
		WHERE row_key = $1
		FOR UPDATE
	`, model.BucketID(chainID, bucketStart)).Scan(
		&hs.ChainID, &hs.BucketStart, &hs.Trades, &hs.Volume, &hs.Fees, &hs.WinningsPaid, &hs.LiquidityAdded, &hs.NewUsers, &hs.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get hourly stats: %w", err)
	}
	return hs, nil
}

func (t *Tx) PutHourlyStats(ctx context.Context, hs *model.HourlyStats) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO hourly_stats (
			row_key, chain_id, bucket_start, trades, volume, fees, winnings_paid, liquidity_added, new_users, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (row_key) DO UPDATE SET
			trades = EXCLUDED.trades,
			volume = EXCLUDED.volume,
			fees = EXCLUDED.fees,
			winnings_paid = EXCLUDED.winnings_paid,
			liquidity_added = EXCLUDED.liquidity_added,
			new_users = EXCLUDED.new_users,
			updated_at = EXCLUDED.updated_at
	`, model.BucketID(hs.ChainID, hs.BucketStart), hs.ChainID, hs.BucketStart,
		hs.Trades, hs.Volume, hs.Fees, hs.WinningsPaid, hs.LiquidityAdded, hs.NewUsers, hs.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put hourly stats: %w", err)
	}
	return nil
}
