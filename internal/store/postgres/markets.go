package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/emperorhan/prediction-indexer/internal/domain/model"
)

func (t *Tx) GetMarket(ctx context.Context, chainID model.ChainID, address string) (*model.Market, error) {
	m := &model.Market{}
	err := t.tx.QueryRowContext(ctx, `
		SELECT chain_id, address, poll_address, creator, market_type, collateral_token, is_incomplete,
		       yes_token, no_token, fee_tier, max_price_imbalance_per_hour, reserve_yes, reserve_no,
		       curve_flattener, curve_offset, deadline_epoch,
		       total_collateral_yes, total_collateral_no, total_shares_yes, total_shares_no, yes_chance,
		       total_volume, total_fees, total_trades, current_tvl, unique_traders, initial_liquidity,
		       created_at, updated_at
		FROM markets
		WHERE row_key = $1
		FOR UPDATE
	`, model.MarketID(chainID, address)).Scan(
		&m.ChainID, &m.Address, &m.PollAddress, &m.Creator, &m.MarketType, &m.CollateralToken, &m.IsIncomplete,
		&m.YesToken, &m.NoToken, &m.FeeTier, &m.MaxPriceImbalancePerHour, &m.ReserveYes, &m.ReserveNo,
		&m.CurveFlattener, &m.CurveOffset, &m.DeadlineEpoch,
		&m.TotalCollateralYes, &m.TotalCollateralNo, &m.TotalSharesYes, &m.TotalSharesNo, &m.YesChance,
		&m.TotalVolume, &m.TotalFees, &m.TotalTrades, &m.CurrentTvl, &m.UniqueTraders, &m.InitialLiquidity,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get market: %w", err)
	}
	return m, nil
}

func (t *Tx) PutMarket(ctx context.Context, m *model.Market) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO markets (
			row_key, chain_id, address, poll_address, creator, market_type, collateral_token, is_incomplete,
			yes_token, no_token, fee_tier, max_price_imbalance_per_hour, reserve_yes, reserve_no,
			curve_flattener, curve_offset, deadline_epoch,
			total_collateral_yes, total_collateral_no, total_shares_yes, total_shares_no, yes_chance,
			total_volume, total_fees, total_trades, current_tvl, unique_traders, initial_liquidity,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
		          $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30)
		ON CONFLICT (row_key) DO UPDATE SET
			poll_address = EXCLUDED.poll_address,
			creator = EXCLUDED.creator,
			market_type = EXCLUDED.market_type,
			collateral_token = EXCLUDED.collateral_token,
			is_incomplete = EXCLUDED.is_incomplete,
			yes_token = EXCLUDED.yes_token,
			no_token = EXCLUDED.no_token,
			fee_tier = EXCLUDED.fee_tier,
			max_price_imbalance_per_hour = EXCLUDED.max_price_imbalance_per_hour,
			reserve_yes = EXCLUDED.reserve_yes,
			reserve_no = EXCLUDED.reserve_no,
			curve_flattener = EXCLUDED.curve_flattener,
			curve_offset = EXCLUDED.curve_offset,
			deadline_epoch = EXCLUDED.deadline_epoch,
			total_collateral_yes = EXCLUDED.total_collateral_yes,
			total_collateral_no = EXCLUDED.total_collateral_no,
			total_shares_yes = EXCLUDED.total_shares_yes,
			total_shares_no = EXCLUDED.total_shares_no,
			yes_chance = EXCLUDED.yes_chance,
			total_volume = EXCLUDED.total_volume,
			total_fees = EXCLUDED.total_fees,
			total_trades = EXCLUDED.total_trades,
			current_tvl = EXCLUDED.current_tvl,
			unique_traders = EXCLUDED.unique_traders,
			initial_liquidity = EXCLUDED.initial_liquidity,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
	`, m.ID(), m.ChainID, m.Address, m.PollAddress, m.Creator, m.MarketType, m.CollateralToken, m.IsIncomplete,
		m.YesToken, m.NoToken, m.FeeTier, m.MaxPriceImbalancePerHour, m.ReserveYes, m.ReserveNo,
		m.CurveFlattener, m.CurveOffset, m.DeadlineEpoch,
		m.TotalCollateralYes, m.TotalCollateralNo, m.TotalSharesYes, m.TotalSharesNo, m.YesChance,
		m.TotalVolume, m.TotalFees, m.TotalTrades, m.CurrentTvl, m.UniqueTraders, m.InitialLiquidity,
		m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put market: %w", err)
	}
	return nil
}

func (t *Tx) GetMarketUser(ctx context.Context, chainID model.ChainID, marketAddress, address string) (*model.MarketUser, error) {
	mu := &model.MarketUser{}
	err := t.tx.QueryRowContext(ctx, `
		SELECT chain_id, market_address, address, last_trade_at
		FROM market_users
		WHERE row_key = $1
		FOR UPDATE
	`, model.MarketUserID(chainID, marketAddress, address)).Scan(
		&mu.ChainID, &mu.MarketAddress, &mu.Address, &mu.LastTradeAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get market user: %w", err)
	}
	return mu, nil
}

func (t *Tx) PutMarketUser(ctx context.Context, mu *model.MarketUser) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO market_users (row_key, chain_id, market_address, address, last_trade_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (row_key) DO UPDATE SET
			last_trade_at = EXCLUDED.last_trade_at
	`, mu.ID(), mu.ChainID, mu.MarketAddress, mu.Address, mu.LastTradeAt)
	if err != nil {
		return fmt.Errorf("put market user: %w", err)
	}
	return nil
}

func (t *Tx) CountMarketUsers(ctx context.Context, chainID model.ChainID, marketAddress string) (int64, error) {
	var n int64
	err := t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM market_users WHERE chain_id = $1 AND market_address = $2
	`, chainID, marketAddress).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count market users: %w", err)
	}
	return n, nil
}
