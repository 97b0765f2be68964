package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/emperorhan/prediction-indexer/internal/domain/model"
	"github.com/emperorhan/prediction-indexer/internal/store"
)

func (t *Tx) HasApplied(ctx context.Context, chainID model.ChainID, txHash string, logIndex int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM applied_events
			WHERE chain_id = $1 AND tx_hash = $2 AND log_index = $3
		)
	`, chainID, txHash, logIndex).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ledger lookup: %w", err)
	}
	return exists, nil
}

func (t *Tx) MarkApplied(ctx context.Context, ev *store.AppliedEvent) error {
	snapshot, err := json.Marshal(ev.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO applied_events (chain_id, tx_hash, log_index, tx_index, block_number, event_name, snapshot, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, ev.ChainID, ev.TxHash, ev.LogIndex, ev.TxIndex, ev.BlockNumber, ev.EventName, snapshot, ev.AppliedAt)
	if err != nil {
		return fmt.Errorf("mark applied: %w", err)
	}
	return nil
}

// ListAppliedFrom returns ledger rows at or above fromBlock in reverse
// canonical order, which is the order reorg compensation must undo them in.
func (t *Tx) ListAppliedFrom(ctx context.Context, chainID model.ChainID, fromBlock int64) ([]store.AppliedEvent, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT chain_id, tx_hash, log_index, tx_index, block_number, event_name, snapshot, applied_at
		FROM applied_events
		WHERE chain_id = $1 AND block_number >= $2
		ORDER BY block_number DESC, tx_index DESC, log_index DESC
		FOR UPDATE
	`, chainID, fromBlock)
	if err != nil {
		return nil, fmt.Errorf("list applied: %w", err)
	}
	defer rows.Close()

	var out []store.AppliedEvent
	for rows.Next() {
		var ev store.AppliedEvent
		var snapshot []byte
		if err := rows.Scan(&ev.ChainID, &ev.TxHash, &ev.LogIndex, &ev.TxIndex, &ev.BlockNumber, &ev.EventName, &snapshot, &ev.AppliedAt); err != nil {
			return nil, fmt.Errorf("scan applied event: %w", err)
		}
		if len(snapshot) > 0 {
			if err := json.Unmarshal(snapshot, &ev.Snapshot); err != nil {
				return nil, fmt.Errorf("unmarshal snapshot for %s-%d: %w", ev.TxHash, ev.LogIndex, err)
			}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied events: %w", err)
	}
	return out, nil
}

func (t *Tx) DeleteAppliedFrom(ctx context.Context, chainID model.ChainID, fromBlock int64) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		DELETE FROM applied_events WHERE chain_id = $1 AND block_number >= $2
	`, chainID, fromBlock)
	if err != nil {
		return 0, fmt.Errorf("delete applied: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
