package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/emperorhan/prediction-indexer/internal/domain/model"
)

func (t *Tx) GetTrade(ctx context.Context, chainID model.ChainID, txHash string, logIndex int64) (*model.Trade, error) {
	tr := &model.Trade{}
	err := t.tx.QueryRowContext(ctx, `
		SELECT row_id, chain_id, tx_hash, log_index, trader, market_address, poll_address,
		       trade_type, side, collateral_amount, token_amount, fee_amount, token_amount_out,
		       block_number, timestamp
		FROM trades
		WHERE row_key = $1
		FOR UPDATE
	`, model.EventID(chainID, txHash, logIndex)).Scan(
		&tr.RowID, &tr.ChainID, &tr.TxHash, &tr.LogIndex, &tr.Trader, &tr.MarketAddress, &tr.PollAddress,
		&tr.TradeType, &tr.Side, &tr.CollateralAmount, &tr.TokenAmount, &tr.FeeAmount, &tr.TokenAmountOut,
		&tr.BlockNumber, &tr.Timestamp,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get trade: %w", err)
	}
	return tr, nil
}

func (t *Tx) PutTrade(ctx context.Context, tr *model.Trade) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO trades (
			row_key, row_id, chain_id, tx_hash, log_index, trader, market_address, poll_address,
			trade_type, side, collateral_amount, token_amount, fee_amount, token_amount_out,
			block_number, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (row_key) DO UPDATE SET
			trader = EXCLUDED.trader,
			market_address = EXCLUDED.market_address,
			poll_address = EXCLUDED.poll_address,
			trade_type = EXCLUDED.trade_type,
			side = EXCLUDED.side,
			collateral_amount = EXCLUDED.collateral_amount,
			token_amount = EXCLUDED.token_amount,
			fee_amount = EXCLUDED.fee_amount,
			token_amount_out = EXCLUDED.token_amount_out,
			block_number = EXCLUDED.block_number,
			timestamp = EXCLUDED.timestamp
	`, tr.ID(), tr.RowID, tr.ChainID, tr.TxHash, tr.LogIndex, tr.Trader, tr.MarketAddress, tr.PollAddress,
		tr.TradeType, tr.Side, tr.CollateralAmount, tr.TokenAmount, tr.FeeAmount, tr.TokenAmountOut,
		tr.BlockNumber, tr.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("put trade: %w", err)
	}
	return nil
}

func (t *Tx) GetWinning(ctx context.Context, chainID model.ChainID, txHash string, logIndex int64) (*model.Winning, error) {
	w := &model.Winning{}
	err := t.tx.QueryRowContext(ctx, `
		SELECT row_id, chain_id, tx_hash, log_index, user_address, market_address,
		       collateral_amount, fee_amount, outcome, market_type, block_number, timestamp
		FROM winnings
		WHERE row_key = $1
		FOR UPDATE
	`, model.EventID(chainID, txHash, logIndex)).Scan(
		&w.RowID, &w.ChainID, &w.TxHash, &w.LogIndex, &w.User, &w.MarketAddress,
		&w.CollateralAmount, &w.FeeAmount, &w.Outcome, &w.MarketType, &w.BlockNumber, &w.Timestamp,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get winning: %w", err)
	}
	return w, nil
}

func (t *Tx) PutWinning(ctx context.Context, w *model.Winning) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO winnings (
			row_key, row_id, chain_id, tx_hash, log_index, user_address, market_address,
			collateral_amount, fee_amount, outcome, market_type, block_number, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (row_key) DO UPDATE SET
			user_address = EXCLUDED.user_address,
			market_address = EXCLUDED.market_address,
			collateral_amount = EXCLUDED.collateral_amount,
			fee_amount = EXCLUDED.fee_amount,
			outcome = EXCLUDED.outcome,
			market_type = EXCLUDED.market_type,
			block_number = EXCLUDED.block_number,
			timestamp = EXCLUDED.timestamp
	`, w.ID(), w.RowID, w.ChainID, w.TxHash, w.LogIndex, w.User, w.MarketAddress,
		w.CollateralAmount, w.FeeAmount, w.Outcome, w.MarketType, w.BlockNumber, w.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("put winning: %w", err)
	}
	return nil
}

func (t *Tx) GetLiquidityEvent(ctx context.Context, chainID model.ChainID, txHash string, logIndex int64) (*model.LiquidityEvent, error) {
	le := &model.LiquidityEvent{}
	err := t.tx.QueryRowContext(ctx, `
		SELECT row_id, chain_id, tx_hash, log_index, provider, market_address, poll_address,
		       event_type, collateral_amount, lp_tokens, yes_amount, no_amount, block_number, timestamp
		FROM liquidity_events
		WHERE row_key = $1
		FOR UPDATE
	`, model.EventID(chainID, txHash, logIndex)).Scan(
		&le.RowID, &le.ChainID, &le.TxHash, &le.LogIndex, &le.Provider, &le.MarketAddress, &le.PollAddress,
		&le.EventType, &le.CollateralAmount, &le.LpTokens, &le.YesAmount, &le.NoAmount, &le.BlockNumber, &le.Timestamp,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get liquidity event: %w", err)
	}
	return le, nil
}

func (t *Tx) PutLiquidityEvent(ctx context.Context, le *model.LiquidityEvent) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO liquidity_events (
			row_key, row_id, chain_id, tx_hash, log_index, provider, market_address, poll_address,
			event_type, collateral_amount, lp_tokens, yes_amount, no_amount, block_number, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (row_key) DO UPDATE SET
			provider = EXCLUDED.provider,
			market_address = EXCLUDED.market_address,
			poll_address = EXCLUDED.poll_address,
			event_type = EXCLUDED.event_type,
			collateral_amount = EXCLUDED.collateral_amount,
			lp_tokens = EXCLUDED.lp_tokens,
			yes_amount = EXCLUDED.yes_amount,
			no_amount = EXCLUDED.no_amount,
			block_number = EXCLUDED.block_number,
			timestamp = EXCLUDED.timestamp
	`, le.ID(), le.RowID, le.ChainID, le.TxHash, le.LogIndex, le.Provider, le.MarketAddress, le.PollAddress,
		le.EventType, le.CollateralAmount, le.LpTokens, le.YesAmount, le.NoAmount, le.BlockNumber, le.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("put liquidity event: %w", err)
	}
	return nil
}
