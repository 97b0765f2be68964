package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/emperorhan/prediction-indexer/internal/alert"
	"github.com/emperorhan/prediction-indexer/internal/domain/event"
	"github.com/emperorhan/prediction-indexer/internal/metrics"
	"github.com/emperorhan/prediction-indexer/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// handleRevert compensates every applied event at or above the revert block
// in one transaction: ledger rows are walked in reverse canonical order and
// each event's snapshot entries are restored newest-first, which returns the
// store to the exact state it had before the first reverted event. The
// replacement branch then re-applies through the normal path.
func (e *Engine) handleRevert(ctx context.Context, rev event.Revert) error {
	if rev.ChainID != e.chainID {
		e.logger.Error("revert routed to wrong engine", "revert_chain", rev.ChainID.String())
		return nil
	}

	ctx, span := tracing.Tracer("engine").Start(ctx, "engine.handleRevert")
	span.SetAttributes(
		attribute.String("chain", e.chainID.String()),
		attribute.Int64("from_block", rev.FromBlock),
	)
	defer span.End()

	start := time.Now()
	metrics.ReorgsTotal.WithLabelValues(e.chainID.String()).Inc()

	tx, err := e.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	undone, err := tx.ListAppliedFrom(ctx, e.chainID, rev.FromBlock)
	if err != nil {
		return fmt.Errorf("list applied from %d: %w", rev.FromBlock, err)
	}

	for _, ev := range undone {
		for i := len(ev.Snapshot) - 1; i >= 0; i-- {
			entry := ev.Snapshot[i]
			if entry.Before == nil {
				if err := tx.DeleteRaw(ctx, entry.Table, entry.Key); err != nil {
					return fmt.Errorf("undo %s at %s-%d: delete %s/%s: %w", ev.EventName, ev.TxHash, ev.LogIndex, entry.Table, entry.Key, err)
				}
			} else {
				if err := tx.RestoreRaw(ctx, entry.Table, entry.Key, entry.Before); err != nil {
					return fmt.Errorf("undo %s at %s-%d: restore %s/%s: %w", ev.EventName, ev.TxHash, ev.LogIndex, entry.Table, entry.Key, err)
				}
			}
		}
	}

	deleted, err := tx.DeleteAppliedFrom(ctx, e.chainID, rev.FromBlock)
	if err != nil {
		return fmt.Errorf("delete applied from %d: %w", rev.FromBlock, err)
	}
	if deleted != int64(len(undone)) {
		return fmt.Errorf("ledger drift during revert: restored %d events, deleted %d rows", len(undone), deleted)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit revert: %w", err)
	}

	// The in-process dedupe set may remember event ids whose ledger rows were
	// just removed; the replacement branch must not be mistaken for
	// duplicates. Ordering restarts from the fork point too.
	e.seen.Reset()
	e.haveLast = false

	metrics.ReorgEventsUndone.WithLabelValues(e.chainID.String()).Add(float64(len(undone)))
	metrics.ReorgRevertLatency.WithLabelValues(e.chainID.String()).Observe(time.Since(start).Seconds())

	e.logger.Info("reorg compensated",
		"from_block", rev.FromBlock,
		"events_undone", len(undone),
		"duration", time.Since(start),
	)

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := e.alerter.Send(sendCtx, alert.Alert{
		Type:    alert.AlertTypeReorg,
		Chain:   e.chainID.String(),
		Title:   "chain reorganization compensated",
		Message: fmt.Sprintf("undid %d events from block %d", len(undone), rev.FromBlock),
		Fields: map[string]string{
			"from_block":    fmt.Sprintf("%d", rev.FromBlock),
			"events_undone": fmt.Sprintf("%d", len(undone)),
		},
	}); err != nil {
		e.logger.Warn("reorg alert failed", "error", err)
	}
	return nil
}
