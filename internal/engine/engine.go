// Package engine applies decoded contract events to the entity store. One
// Engine instance is the single logical writer for its chain: every event
// runs in its own store transaction, guarded by the idempotency ledger, and
// captures before-state snapshots so revert notifications can be compensated
// exactly.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/emperorhan/prediction-indexer/internal/alert"
	"github.com/emperorhan/prediction-indexer/internal/dedupe"
	"github.com/emperorhan/prediction-indexer/internal/domain/event"
	"github.com/emperorhan/prediction-indexer/internal/domain/model"
	"github.com/emperorhan/prediction-indexer/internal/metrics"
	"github.com/emperorhan/prediction-indexer/internal/publish"
	"github.com/emperorhan/prediction-indexer/internal/retry"
	"github.com/emperorhan/prediction-indexer/internal/store"
	"github.com/emperorhan/prediction-indexer/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelTrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	defaultRetryMaxAttempts = 3
	defaultRetryDelayStart  = 100 * time.Millisecond
	defaultRetryDelayMax    = 1 * time.Second
	defaultDedupeCapacity   = 100_000
)

// Engine is the single writer for one chain.
type Engine struct {
	chainID   model.ChainID
	db        store.Store
	logsCh    <-chan event.Log
	revertCh  <-chan event.Revert
	logger    *slog.Logger
	publisher publish.Publisher
	alerter   alert.Alerter

	seen       *dedupe.Set
	anomalyLog *rate.Limiter

	retryMaxAttempts int
	retryDelayStart  time.Duration
	retryDelayMax    time.Duration
	sleepFn          func(context.Context, time.Duration) error

	// Ordering sanity state. The upstream follower guarantees canonical
	// order per chain; a violation is logged loudly but not fatal, since the
	// ledger keeps reprocessing safe.
	haveLast     bool
	lastBlock    int64
	lastTxIndex  int64
	lastLogIndex int64
}

type Option func(*Engine)

func WithPublisher(p publish.Publisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

func WithAlerter(a alert.Alerter) Option {
	return func(e *Engine) {
		e.alerter = a
	}
}

func WithRetryConfig(maxAttempts int, delayStart, delayMax time.Duration) Option {
	return func(e *Engine) {
		e.retryMaxAttempts = maxAttempts
		e.retryDelayStart = delayStart
		e.retryDelayMax = delayMax
	}
}

func WithDedupeCapacity(capacity int) Option {
	return func(e *Engine) {
		e.seen = dedupe.New(capacity)
	}
}

// WithAnomalyLogLimit caps anomaly log lines per second; anomalies are
// always counted in metrics regardless.
func WithAnomalyLogLimit(perSecond float64, burst int) Option {
	return func(e *Engine) {
		e.anomalyLog = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func New(
	chainID model.ChainID,
	db store.Store,
	logsCh <-chan event.Log,
	revertCh <-chan event.Revert,
	logger *slog.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		chainID:          chainID,
		db:               db,
		logsCh:           logsCh,
		revertCh:         revertCh,
		logger:           logger.With("component", "engine", "chain", chainID.String()),
		publisher:        publish.Noop{},
		alerter:          &alert.NoopAlerter{},
		seen:             dedupe.New(defaultDedupeCapacity),
		anomalyLog:       rate.NewLimiter(rate.Limit(1), 10),
		retryMaxAttempts: defaultRetryMaxAttempts,
		retryDelayStart:  defaultRetryDelayStart,
		retryDelayMax:    defaultRetryDelayMax,
		sleepFn:          sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run consumes logs and revert notifications until ctx is cancelled or a
// terminal error occurs. Terminal errors halt this chain only; the caller's
// errgroup decides whether to take the process down.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine started")

	revertCh := e.revertCh

	for {
		// Pending reverts outrank queued logs. The replacement branch can
		// already be sitting in logsCh behind a revert notification, and
		// applying it first would let the compensation delete rows the new
		// canonical events just wrote. Blocks >= fromBlock are undone before
		// any further log is accepted.
		if revertCh != nil {
			select {
			case rev, ok := <-revertCh:
				if !ok {
					revertCh = nil
					continue
				}
				if err := e.consumeRevert(ctx, rev); err != nil {
					return err
				}
				continue
			default:
			}
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping")
			return ctx.Err()
		case lg, ok := <-e.logsCh:
			if !ok {
				return nil
			}
			if err := e.consumeLog(ctx, lg); err != nil {
				return err
			}
		case rev, ok := <-revertCh:
			if !ok {
				revertCh = nil
				continue
			}
			if err := e.consumeRevert(ctx, rev); err != nil {
				return err
			}
		}
	}
}

func (e *Engine) consumeLog(ctx context.Context, lg event.Log) error {
	if lg.ChainID != e.chainID {
		e.logger.Error("log routed to wrong engine", "log_chain", lg.ChainID.String())
		return nil
	}
	spanCtx, span := tracing.Tracer("engine").Start(ctx, "engine.applyLog",
		otelTrace.WithAttributes(
			attribute.String("chain", lg.ChainID.String()),
			attribute.String("event", lg.Name),
			attribute.Int64("block", lg.BlockNumber),
		),
	)
	start := time.Now()
	if err := e.applyLogWithRetry(spanCtx, lg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		metrics.EngineErrors.WithLabelValues(e.chainID.String()).Inc()
		e.logger.Error("apply log failed",
			"event", lg.Name,
			"tx_hash", lg.TxHash,
			"log_index", lg.LogIndex,
			"block", lg.BlockNumber,
			"error", err,
		)
		e.alertHalt(ctx, lg, err)
		// Fail-fast: the chain must not advance past an event it could
		// not apply. Restart resumes from the ledger.
		return fmt.Errorf("engine apply %s at %s-%d: %w", lg.Name, lg.TxHash, lg.LogIndex, err)
	}
	span.End()
	metrics.EngineApplyLatency.WithLabelValues(e.chainID.String()).Observe(time.Since(start).Seconds())
	return nil
}

func (e *Engine) consumeRevert(ctx context.Context, rev event.Revert) error {
	if err := e.handleRevert(ctx, rev); err != nil {
		e.logger.Error("handle revert failed",
			"from_block", rev.FromBlock,
			"error", err,
		)
		return fmt.Errorf("engine revert from block %d: %w", rev.FromBlock, err)
	}
	return nil
}

func (e *Engine) applyLogWithRetry(ctx context.Context, lg event.Log) error {
	const stage = "engine.apply_log"

	var lastErr error
	lastDecision := retry.Decision{Class: retry.ClassTerminal, Reason: "unset"}

	for attempt := 1; attempt <= e.retryMaxAttempts; attempt++ {
		if err := e.applyLog(ctx, lg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			lastDecision = retry.Classify(err)
			if !lastDecision.IsTransient() {
				return fmt.Errorf("terminal_failure stage=%s attempt=%d reason=%s: %w", stage, attempt, lastDecision.Reason, err)
			}
			if attempt == e.retryMaxAttempts {
				break
			}

			e.logger.Warn("apply log attempt failed; retrying",
				"stage", stage,
				"classification", lastDecision.Class,
				"classification_reason", lastDecision.Reason,
				"event", lg.Name,
				"tx_hash", lg.TxHash,
				"attempt", attempt,
				"max_attempts", e.retryMaxAttempts,
				"error", err,
			)
			if err := e.sleepFn(ctx, e.retryDelay(attempt)); err != nil {
				return err
			}
			continue
		}
		return nil
	}

	return fmt.Errorf("transient_recovery_exhausted stage=%s attempts=%d reason=%s: %w", stage, e.retryMaxAttempts, lastDecision.Reason, lastErr)
}

// applyLog runs one event through its own store transaction. Exactly one of
// three things happens: the event mutates entities and lands in the ledger,
// the event is recognized as a duplicate and skipped, or the event is an
// anomaly and lands in the ledger without mutating anything.
func (e *Engine) applyLog(ctx context.Context, lg event.Log) error {
	eventID := lg.EventID()

	if e.seen.Has(eventID) {
		metrics.EngineDuplicatesSkipped.WithLabelValues(e.chainID.String()).Inc()
		return nil
	}

	e.checkOrdering(lg)

	tx, err := e.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	applied, err := tx.HasApplied(ctx, lg.ChainID, lg.TxHash, lg.LogIndex)
	if err != nil {
		return fmt.Errorf("ledger lookup: %w", err)
	}
	if applied {
		e.seen.Add(eventID)
		metrics.EngineDuplicatesSkipped.WithLabelValues(e.chainID.String()).Inc()
		return nil
	}

	ap := newApplyCtx(tx, e.chainID, lg.BlockTime)

	dispatchErr := e.dispatch(ctx, ap, lg)
	if dispatchErr != nil {
		a, ok := asAnomaly(dispatchErr)
		if !ok {
			return dispatchErr
		}
		// Anomalies are detected before any write, so the transaction holds
		// nothing but the ledger row; the snapshot stays empty.
		metrics.EngineAnomalies.WithLabelValues(e.chainID.String(), a.kind).Inc()
		if e.anomalyLog.Allow() {
			e.logger.Warn("anomalous event ignored",
				"kind", a.kind,
				"event", lg.Name,
				"tx_hash", lg.TxHash,
				"log_index", lg.LogIndex,
				"detail", a.msg,
			)
		}
		ap.snapshot = nil
	}

	if err := tx.MarkApplied(ctx, &store.AppliedEvent{
		ChainID:     lg.ChainID,
		TxHash:      lg.TxHash,
		LogIndex:    lg.LogIndex,
		TxIndex:     lg.TxIndex,
		BlockNumber: lg.BlockNumber,
		EventName:   lg.Name,
		Snapshot:    ap.snapshot,
		AppliedAt:   time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("mark applied: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	e.seen.Add(eventID)
	metrics.EngineHeadBlock.WithLabelValues(e.chainID.String()).Set(float64(lg.BlockNumber))

	if dispatchErr != nil {
		return nil // anomaly, recorded and skipped
	}

	metrics.EngineEventsApplied.WithLabelValues(e.chainID.String(), lg.Name).Inc()
	e.publishApplied(ctx, lg, ap)
	return nil
}

// dispatch decodes the payload and routes to the event handler. Handlers
// must surface anomalies before their first write.
func (e *Engine) dispatch(ctx context.Context, ap *applyCtx, lg event.Log) error {
	switch lg.Name {
	case event.NamePollCreated:
		var args event.PollCreatedArgs
		if err := decodeArgs(lg, &args); err != nil {
			return err
		}
		return e.handlePollCreated(ctx, ap, lg, args)
	case event.NamePollDisputed:
		var args event.PollDisputedArgs
		if err := decodeArgs(lg, &args); err != nil {
			return err
		}
		return e.handlePollDisputed(ctx, ap, lg, args)
	case event.NamePollResolved:
		var args event.PollResolvedArgs
		if err := decodeArgs(lg, &args); err != nil {
			return err
		}
		return e.handlePollResolved(ctx, ap, lg, args)
	case event.NameMarketCreated:
		var args event.MarketCreatedArgs
		if err := decodeArgs(lg, &args); err != nil {
			return err
		}
		return e.handleMarketCreated(ctx, ap, lg, args)
	case event.NamePariMutuelCreated:
		var args event.PariMutuelCreatedArgs
		if err := decodeArgs(lg, &args); err != nil {
			return err
		}
		return e.handlePariMutuelCreated(ctx, ap, lg, args)
	case event.NameTokensBought:
		var args event.TokensBoughtArgs
		if err := decodeArgs(lg, &args); err != nil {
			return err
		}
		return e.handleTokensBought(ctx, ap, lg, args)
	case event.NameTokensSold:
		var args event.TokensSoldArgs
		if err := decodeArgs(lg, &args); err != nil {
			return err
		}
		return e.handleTokensSold(ctx, ap, lg, args)
	case event.NameLiquidityAdded:
		var args event.LiquidityAddedArgs
		if err := decodeArgs(lg, &args); err != nil {
			return err
		}
		return e.handleLiquidityAdded(ctx, ap, lg, args)
	case event.NameLiquidityRemoved:
		var args event.LiquidityRemovedArgs
		if err := decodeArgs(lg, &args); err != nil {
			return err
		}
		return e.handleLiquidityRemoved(ctx, ap, lg, args)
	case event.NameInitialLiquiditySeeded:
		var args event.InitialLiquiditySeededArgs
		if err := decodeArgs(lg, &args); err != nil {
			return err
		}
		return e.handleInitialLiquiditySeeded(ctx, ap, lg, args)
	case event.NamePositionPurchased:
		var args event.PositionPurchasedArgs
		if err := decodeArgs(lg, &args); err != nil {
			return err
		}
		return e.handlePositionPurchased(ctx, ap, lg, args)
	case event.NameWinningsRedeemed:
		var args event.WinningsRedeemedArgs
		if err := decodeArgs(lg, &args); err != nil {
			return err
		}
		return e.handleWinningsRedeemed(ctx, ap, lg, args)
	case event.NameReferralCodeRegistered:
		var args event.ReferralCodeRegisteredArgs
		if err := decodeArgs(lg, &args); err != nil {
			return err
		}
		return e.handleReferralCodeRegistered(ctx, ap, lg, args)
	case event.NameReferralRegistered:
		var args event.ReferralRegisteredArgs
		if err := decodeArgs(lg, &args); err != nil {
			return err
		}
		return e.handleReferralRegistered(ctx, ap, lg, args)
	case event.NameReferralRewardClaimed:
		var args event.ReferralRewardClaimedArgs
		if err := decodeArgs(lg, &args); err != nil {
			return err
		}
		return e.handleReferralRewardClaimed(ctx, ap, lg, args)
	case event.NameCampaignCreated:
		var args event.CampaignCreatedArgs
		if err := decodeArgs(lg, &args); err != nil {
			return err
		}
		return e.handleCampaignCreated(ctx, ap, lg, args)
	case event.NameCampaignStatusChanged:
		var args event.CampaignStatusChangedArgs
		if err := decodeArgs(lg, &args); err != nil {
			return err
		}
		return e.handleCampaignStatusChanged(ctx, ap, lg, args)
	case event.NameCampaignRewardClaimed:
		var args event.CampaignRewardClaimedArgs
		if err := decodeArgs(lg, &args); err != nil {
			return err
		}
		return e.handleCampaignRewardClaimed(ctx, ap, lg, args)
	default:
		return anomalyf("unknown_event", "event %q at %s-%d", lg.Name, lg.TxHash, lg.LogIndex)
	}
}

func decodeArgs(lg event.Log, dst any) error {
	if err := json.Unmarshal(lg.Args, dst); err != nil {
		metrics.SourceDecodeErrors.WithLabelValues(lg.ChainID.String()).Inc()
		return anomalyf("decode", "event %s at %s-%d: %v", lg.Name, lg.TxHash, lg.LogIndex, err)
	}
	return nil
}

// checkOrdering verifies the canonical (block, txIndex, logIndex) ordering
// the upstream follower promises. Violations are survivable (the ledger keeps
// application idempotent) but indicate an upstream bug worth knowing about.
func (e *Engine) checkOrdering(lg event.Log) {
	defer func() {
		e.haveLast = true
		e.lastBlock = lg.BlockNumber
		e.lastTxIndex = lg.TxIndex
		e.lastLogIndex = lg.LogIndex
	}()

	if !e.haveLast {
		return
	}
	if lg.BlockNumber > e.lastBlock {
		return
	}
	if lg.BlockNumber == e.lastBlock {
		if lg.TxIndex > e.lastTxIndex {
			return
		}
		if lg.TxIndex == e.lastTxIndex && lg.LogIndex > e.lastLogIndex {
			return
		}
	}
	e.logger.Warn("out-of-order log delivery",
		"block", lg.BlockNumber,
		"tx_index", lg.TxIndex,
		"log_index", lg.LogIndex,
		"last_block", e.lastBlock,
		"last_tx_index", e.lastTxIndex,
		"last_log_index", e.lastLogIndex,
	)
}

func (e *Engine) publishApplied(ctx context.Context, lg event.Log, ap *applyCtx) {
	tables := make([]string, 0, 4)
	seen := make(map[string]struct{}, 4)
	for _, entry := range ap.snapshot {
		if _, ok := seen[entry.Table]; ok {
			continue
		}
		seen[entry.Table] = struct{}{}
		tables = append(tables, entry.Table)
	}
	if err := e.publisher.Publish(ctx, publish.Notification{
		ChainID:     lg.ChainID,
		BlockNumber: lg.BlockNumber,
		TxHash:      lg.TxHash,
		LogIndex:    lg.LogIndex,
		EventName:   lg.Name,
		Tables:      tables,
		AppliedAt:   time.Now().UTC(),
	}); err != nil {
		// Best effort; the store is the source of truth.
		e.logger.Warn("publish applied notification failed", "error", err)
	}
}

func (e *Engine) alertHalt(ctx context.Context, lg event.Log, err error) {
	alertType := alert.AlertTypeEngineHalt
	if decision := retry.Classify(err); decision.Reason == "message_terminal" {
		alertType = alert.AlertTypeOverflowHalt
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if sendErr := e.alerter.Send(sendCtx, alert.Alert{
		Type:    alertType,
		Chain:   e.chainID.String(),
		Title:   "engine halted",
		Message: err.Error(),
		Fields: map[string]string{
			"event":     lg.Name,
			"tx_hash":   lg.TxHash,
			"log_index": fmt.Sprintf("%d", lg.LogIndex),
			"block":     fmt.Sprintf("%d", lg.BlockNumber),
		},
	}); sendErr != nil {
		e.logger.Warn("halt alert failed", "error", sendErr)
	}
}

func (e *Engine) retryDelay(attempt int) time.Duration {
	delay := e.retryDelayStart
	if delay <= 0 {
		return 0
	}
	for i := 1; i < attempt; i++ {
		delay *= 2
		if e.retryDelayMax > 0 && delay >= e.retryDelayMax {
			delay = e.retryDelayMax
			break
		}
	}

	// Add 0-25% random jitter to avoid thundering herd.
	if delay > 0 {
		delay += time.Duration(rand.Int64N(int64(delay) / 4))
	}
	return delay
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
