package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/emperorhan/prediction-indexer/internal/domain/model"
	"github.com/lib/pq"
)

func (t *Tx) GetPoll(ctx context.Context, chainID model.ChainID, address string) (*model.Poll, error) {
	p := &model.Poll{}
	err := t.tx.QueryRowContext(ctx, `
		SELECT chain_id, address, creator, question, rules, sources, category,
		       deadline_epoch, finalization_epoch, check_epoch, status,
		       arbitration_started, disputed_by, dispute_reason, dispute_stake, disputed_at,
		       setter, resolution_reason, resolved_at, created_at, updated_at
		FROM polls
		WHERE row_key = $1
		FOR UPDATE
	`, model.PollID(chainID, address)).Scan(
		&p.ChainID, &p.Address, &p.Creator, &p.Question, &p.Rules, pq.Array(&p.Sources), &p.Category,
		&p.DeadlineEpoch, &p.FinalizationEpoch, &p.CheckEpoch, &p.Status,
		&p.ArbitrationStarted, &p.DisputedBy, &p.DisputeReason, &p.DisputeStake, &p.DisputedAt,
		&p.Setter, &p.ResolutionReason, &p.ResolvedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get poll: %w", err)
	}
	return p, nil
}

func (t *Tx) PutPoll(ctx context.Context, p *model.Poll) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO polls (
			row_key, chain_id, address, creator, question, rules, sources, category,
			deadline_epoch, finalization_epoch, check_epoch, status,
			arbitration_started, disputed_by, dispute_reason, dispute_stake, disputed_at,
			setter, resolution_reason, resolved_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (row_key) DO UPDATE SET
			creator = EXCLUDED.creator,
			question = EXCLUDED.question,
			rules = EXCLUDED.rules,
			sources = EXCLUDED.sources,
			category = EXCLUDED.category,
			deadline_epoch = EXCLUDED.deadline_epoch,
			finalization_epoch = EXCLUDED.finalization_epoch,
			check_epoch = EXCLUDED.check_epoch,
			status = EXCLUDED.status,
			arbitration_started = EXCLUDED.arbitration_started,
			disputed_by = EXCLUDED.disputed_by,
			dispute_reason = EXCLUDED.dispute_reason,
			dispute_stake = EXCLUDED.dispute_stake,
			disputed_at = EXCLUDED.disputed_at,
			setter = EXCLUDED.setter,
			resolution_reason = EXCLUDED.resolution_reason,
			resolved_at = EXCLUDED.resolved_at,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
	`, p.ID(), p.ChainID, p.Address, p.Creator, p.Question, p.Rules, pq.Array(p.Sources), p.Category,
		p.DeadlineEpoch, p.FinalizationEpoch, p.CheckEpoch, p.Status,
		p.ArbitrationStarted, p.DisputedBy, p.DisputeReason, p.DisputeStake, p.DisputedAt,
		p.Setter, p.ResolutionReason, p.ResolvedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put poll: %w", err)
	}
	return nil
}
