package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/emperorhan/prediction-indexer/internal/domain/model"
)

// Reader implements store.Reader for reconciliation. Queries run outside any
// event transaction and observe whatever the engine committed last.
type Reader struct {
	db *DB
}

func NewReader(db *DB) *Reader {
	return &Reader{db: db}
}

func (r *Reader) SumMarketVolume(ctx context.Context, chainID model.ChainID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, LongQueryTimeout)
	defer cancel()
	var sum int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_volume), 0) FROM markets WHERE chain_id = $1
	`, chainID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum market volume: %w", err)
	}
	return sum, nil
}

func (r *Reader) SumMarketTvl(ctx context.Context, chainID model.ChainID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, LongQueryTimeout)
	defer cancel()
	var sum int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(current_tvl), 0) FROM markets WHERE chain_id = $1
	`, chainID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum market tvl: %w", err)
	}
	return sum, nil
}

func (r *Reader) CountMarketsByType(ctx context.Context, chainID model.ChainID) (amm int64, pari int64, err error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE market_type = 'amm'),
		       COUNT(*) FILTER (WHERE market_type = 'pari')
		FROM markets WHERE chain_id = $1
	`, chainID).Scan(&amm, &pari)
	if err != nil {
		return 0, 0, fmt.Errorf("count markets by type: %w", err)
	}
	return amm, pari, nil
}

func (r *Reader) ReadPlatformStats(ctx context.Context, chainID model.ChainID) (*model.PlatformStats, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()
	ps := &model.PlatformStats{}
	err := r.db.QueryRowContext(ctx, `
		SELECT chain_id, total_polls, total_polls_resolved, total_markets, total_amm_markets, total_pari_markets,
		       total_trades, total_volume, total_fees, total_users, total_liquidity, total_winnings_paid, updated_at
		FROM platform_stats
		WHERE row_key = $1
	`, chainID.String()).Scan(
		&ps.ChainID, &ps.TotalPolls, &ps.TotalPollsResolved, &ps.TotalMarkets, &ps.TotalAmmMarkets, &ps.TotalPariMarkets,
		&ps.TotalTrades, &ps.TotalVolume, &ps.TotalFees, &ps.TotalUsers, &ps.TotalLiquidity, &ps.TotalWinningsPaid, &ps.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("read platform stats: %w", err)
	}
	return ps, nil
}

func (r *Reader) ListUsers(ctx context.Context, chainID model.ChainID, fn func(*model.User) error) error {
	ctx, cancel := context.WithTimeout(ctx, LongQueryTimeout)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
		SELECT chain_id, address,
		       total_trades, total_volume, total_deposited, total_withdrawn, total_winnings, realized_pnl,
		       total_wins, total_losses, current_streak, best_streak,
		       markets_created, polls_created,
		       referrer_address, referral_code_hash, referred_at,
		       total_referral_volume, total_referral_fees, total_referral_rewards,
		       first_trade_at, last_trade_at, created_at, updated_at
		FROM users WHERE chain_id = $1
	`, chainID)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u := &model.User{}
		if err := rows.Scan(
			&u.ChainID, &u.Address,
			&u.TotalTrades, &u.TotalVolume, &u.TotalDeposited, &u.TotalWithdrawn, &u.TotalWinnings, &u.RealizedPnL,
			&u.TotalWins, &u.TotalLosses, &u.CurrentStreak, &u.BestStreak,
			&u.MarketsCreated, &u.PollsCreated,
			&u.ReferrerAddress, &u.ReferralCodeHash, &u.ReferredAt,
			&u.TotalReferralVolume, &u.TotalReferralFees, &u.TotalReferralRewards,
			&u.FirstTradeAt, &u.LastTradeAt, &u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return fmt.Errorf("scan user: %w", err)
		}
		if err := fn(u); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *Reader) MarketTraderCounts(ctx context.Context, chainID model.ChainID) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, LongQueryTimeout)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
		SELECT market_address, COUNT(*) FROM market_users WHERE chain_id = $1 GROUP BY market_address
	`, chainID)
	if err != nil {
		return nil, fmt.Errorf("market trader counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var addr string
		var n int64
		if err := rows.Scan(&addr, &n); err != nil {
			return nil, fmt.Errorf("scan trader count: %w", err)
		}
		counts[addr] = n
	}
	return counts, rows.Err()
}

func (r *Reader) ListMarkets(ctx context.Context, chainID model.ChainID, fn func(*model.Market) error) error {
	ctx, cancel := context.WithTimeout(ctx, LongQueryTimeout)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
		SELECT chain_id, address, poll_address, creator, market_type, collateral_token, is_incomplete,
		       yes_token, no_token, fee_tier, max_price_imbalance_per_hour, reserve_yes, reserve_no,
		       curve_flattener, curve_offset, deadline_epoch,
		       total_collateral_yes, total_collateral_no, total_shares_yes, total_shares_no, yes_chance,
		       total_volume, total_fees, total_trades, current_tvl, unique_traders, initial_liquidity,
		       created_at, updated_at
		FROM markets WHERE chain_id = $1
	`, chainID)
	if err != nil {
		return fmt.Errorf("list markets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m := &model.Market{}
		if err := rows.Scan(
			&m.ChainID, &m.Address, &m.PollAddress, &m.Creator, &m.MarketType, &m.CollateralToken, &m.IsIncomplete,
			&m.YesToken, &m.NoToken, &m.FeeTier, &m.MaxPriceImbalancePerHour, &m.ReserveYes, &m.ReserveNo,
			&m.CurveFlattener, &m.CurveOffset, &m.DeadlineEpoch,
			&m.TotalCollateralYes, &m.TotalCollateralNo, &m.TotalSharesYes, &m.TotalSharesNo, &m.YesChance,
			&m.TotalVolume, &m.TotalFees, &m.TotalTrades, &m.CurrentTvl, &m.UniqueTraders, &m.InitialLiquidity,
			&m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return fmt.Errorf("scan market: %w", err)
		}
		if err := fn(m); err != nil {
			return err
		}
	}
	return rows.Err()
}
