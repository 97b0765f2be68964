// Package source consumes decoded contract logs and revert notifications
// from the upstream chain follower over Redis streams. One consumer runs per
// chain; entries are acknowledged only after the engine channel accepted
// them, so a crash between read and handoff redelivers (the idempotency
// ledger absorbs the duplicate).
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/emperorhan/prediction-indexer/internal/domain/event"
	"github.com/emperorhan/prediction-indexer/internal/domain/model"
	"github.com/emperorhan/prediction-indexer/internal/metrics"
	"github.com/redis/go-redis/v9"
)

const (
	defaultBlock     = 5 * time.Second
	defaultBatchSize = 100
	consumerGroup    = "predict-indexer"
)

// LogStream is the per-chain stream of decoded logs.
func LogStream(chainID model.ChainID) string {
	return "predict:logs:" + chainID.String()
}

// RevertStream is the per-chain stream of reorg notifications.
func RevertStream(chainID model.ChainID) string {
	return "predict:reverts:" + chainID.String()
}

// Consumer reads one chain's streams and feeds the engine channels.
type Consumer struct {
	client    *redis.Client
	chainID   model.ChainID
	consumer  string
	logsCh    chan<- event.Log
	revertCh  chan<- event.Revert
	logger    *slog.Logger
	block     time.Duration
	batchSize int64
}

type Option func(*Consumer)

func WithBlockTimeout(d time.Duration) Option {
	return func(c *Consumer) {
		c.block = d
	}
}

func WithBatchSize(n int64) Option {
	return func(c *Consumer) {
		c.batchSize = n
	}
}

func New(
	client *redis.Client,
	chainID model.ChainID,
	consumerName string,
	logsCh chan<- event.Log,
	revertCh chan<- event.Revert,
	logger *slog.Logger,
	opts ...Option,
) *Consumer {
	c := &Consumer{
		client:    client,
		chainID:   chainID,
		consumer:  consumerName,
		logsCh:    logsCh,
		revertCh:  revertCh,
		logger:    logger.With("component", "source", "chain", chainID.String()),
		block:     defaultBlock,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run consumes both streams until ctx is cancelled. The consumer group is
// created on first use; BUSYGROUP on restart is expected.
func (c *Consumer) Run(ctx context.Context) error {
	for _, stream := range []string{LogStream(c.chainID), RevertStream(c.chainID)} {
		if err := c.client.XGroupCreateMkStream(ctx, stream, consumerGroup, "0").Err(); err != nil && !isBusyGroup(err) {
			return fmt.Errorf("create consumer group on %s: %w", stream, err)
		}
	}
	c.logger.Info("source started")

	for {
		if ctx.Err() != nil {
			c.logger.Info("source stopping")
			return ctx.Err()
		}

		res, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    consumerGroup,
			Consumer: c.consumer,
			Streams:  []string{LogStream(c.chainID), RevertStream(c.chainID), ">", ">"},
			Count:    c.batchSize,
			Block:    c.block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("stream read failed", "error", err)
			continue
		}

		// Reverts read in the same batch are handed to the engine before any
		// logs. The follower emits the revert ahead of the replacement
		// branch, and that ordering must survive the handoff.
		revertStream := RevertStream(c.chainID)
		for _, stream := range res {
			if stream.Stream != revertStream {
				continue
			}
			for _, msg := range stream.Messages {
				if err := c.handleMessage(ctx, stream.Stream, msg); err != nil {
					return err
				}
			}
		}
		for _, stream := range res {
			if stream.Stream == revertStream {
				continue
			}
			for _, msg := range stream.Messages {
				if err := c.handleMessage(ctx, stream.Stream, msg); err != nil {
					return err
				}
			}
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, stream string, msg redis.XMessage) error {
	payload, ok := msg.Values["payload"].(string)
	if !ok {
		metrics.SourceDecodeErrors.WithLabelValues(c.chainID.String()).Inc()
		c.logger.Warn("stream entry without payload", "stream", stream, "id", msg.ID)
		return c.ack(ctx, stream, msg.ID)
	}

	switch stream {
	case RevertStream(c.chainID):
		rev, err := ParseRevert([]byte(payload))
		if err != nil {
			metrics.SourceDecodeErrors.WithLabelValues(c.chainID.String()).Inc()
			c.logger.Warn("undecodable revert entry", "id", msg.ID, "error", err)
			return c.ack(ctx, stream, msg.ID)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c.revertCh <- rev:
		}
	default:
		lg, err := ParseLog([]byte(payload))
		if err != nil {
			metrics.SourceDecodeErrors.WithLabelValues(c.chainID.String()).Inc()
			c.logger.Warn("undecodable log entry", "id", msg.ID, "error", err)
			return c.ack(ctx, stream, msg.ID)
		}
		metrics.SourceLogsReceived.WithLabelValues(c.chainID.String()).Inc()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c.logsCh <- lg:
		}
	}
	return c.ack(ctx, stream, msg.ID)
}

func (c *Consumer) ack(ctx context.Context, stream, id string) error {
	if err := c.client.XAck(ctx, stream, consumerGroup, id).Err(); err != nil {
		return fmt.Errorf("ack %s on %s: %w", id, stream, err)
	}
	return nil
}

// ParseLog decodes one stream payload into a Log. Field-level validation is
// the engine's business; this only rejects structurally broken entries.
func ParseLog(payload []byte) (event.Log, error) {
	var lg event.Log
	if err := json.Unmarshal(payload, &lg); err != nil {
		return event.Log{}, fmt.Errorf("unmarshal log: %w", err)
	}
	if lg.TxHash == "" || lg.Name == "" {
		return event.Log{}, fmt.Errorf("log entry missing txHash or eventName")
	}
	return lg, nil
}

// ParseRevert decodes one revert stream payload.
func ParseRevert(payload []byte) (event.Revert, error) {
	var rev event.Revert
	if err := json.Unmarshal(payload, &rev); err != nil {
		return event.Revert{}, fmt.Errorf("unmarshal revert: %w", err)
	}
	if rev.FromBlock < 0 {
		return event.Revert{}, fmt.Errorf("negative revert block %d", rev.FromBlock)
	}
	return rev, nil
}

func isBusyGroup(err error) bool {
	return err != nil && len(err.Error()) >= 9 && err.Error()[:9] == "BUSYGROUP"
}
