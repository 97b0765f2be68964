package engine

import (
	"context"

	"github.com/emperorhan/prediction-indexer/internal/domain/event"
	"github.com/emperorhan/prediction-indexer/internal/domain/model"
)

func (e *Engine) handlePollCreated(ctx context.Context, ap *applyCtx, lg event.Log, args event.PollCreatedArgs) error {
	existing, err := ap.tx.GetPoll(ctx, ap.chainID, args.Poll)
	if err != nil {
		return err
	}
	if existing != nil {
		return anomalyf("duplicate_creation", "poll %s already exists", args.Poll)
	}

	poll := &model.Poll{
		ChainID:           ap.chainID,
		Address:           args.Poll,
		Creator:           args.Creator,
		Question:          args.Question,
		Rules:             args.Rules,
		Sources:           args.Sources,
		Category:          args.Category,
		DeadlineEpoch:     args.DeadlineEpoch,
		FinalizationEpoch: args.FinalizationEpoch,
		CheckEpoch:        args.CheckEpoch,
		Status:            model.PollStatusPending,
		CreatedAt:         ap.now,
	}
	if err := ap.putPoll(ctx, poll); err != nil {
		return err
	}

	var ru rollupDelta

	creator, created, err := ap.getOrCreateUser(ctx, args.Creator)
	if err != nil {
		return err
	}
	creator.PollsCreated++
	if err := ap.putUser(ctx, creator); err != nil {
		return err
	}

	ps, err := ap.platformStats(ctx)
	if err != nil {
		return err
	}
	ps.TotalPolls++
	if created {
		ps.TotalUsers++
		ru.newUsers++
	}
	if err := ap.putPlatformStats(ctx, ps); err != nil {
		return err
	}

	return ap.addRollup(ctx, ru)
}

func (e *Engine) handlePollDisputed(ctx context.Context, ap *applyCtx, lg event.Log, args event.PollDisputedArgs) error {
	poll, err := ap.tx.GetPoll(ctx, ap.chainID, args.Poll)
	if err != nil {
		return err
	}
	if poll == nil {
		return anomalyf("unknown_poll", "dispute of unseen poll %s", args.Poll)
	}
	if poll.Status.Terminal() {
		return anomalyf("dispute_after_resolution", "poll %s already resolved as %s", args.Poll, poll.Status)
	}

	now := ap.now
	poll.ArbitrationStarted = true
	poll.DisputedBy = &args.DisputedBy
	poll.DisputeReason = &args.Reason
	poll.DisputeStake = args.Stake
	poll.DisputedAt = &now
	return ap.putPoll(ctx, poll)
}

func (e *Engine) handlePollResolved(ctx context.Context, ap *applyCtx, lg event.Log, args event.PollResolvedArgs) error {
	poll, err := ap.tx.GetPoll(ctx, ap.chainID, args.Poll)
	if err != nil {
		return err
	}
	if poll == nil {
		return anomalyf("unknown_poll", "resolution of unseen poll %s", args.Poll)
	}
	if poll.Status.Terminal() {
		return anomalyf("double_resolution", "poll %s already resolved as %s", args.Poll, poll.Status)
	}
	if !args.Status.Terminal() {
		return anomalyf("invalid_status", "poll %s resolved to non-terminal status %d", args.Poll, args.Status)
	}

	now := ap.now
	poll.Status = args.Status
	poll.Setter = &args.Setter
	poll.ResolutionReason = &args.Reason
	poll.ResolvedAt = &now
	if err := ap.putPoll(ctx, poll); err != nil {
		return err
	}

	// Counted exactly once; the double-resolution guard above makes re-entry
	// impossible.
	ps, err := ap.platformStats(ctx)
	if err != nil {
		return err
	}
	ps.TotalPollsResolved++
	return ap.putPlatformStats(ctx, ps)
}
