// Package publish notifies downstream consumers (read-API cache
// invalidation, analytics) about committed event applications. Delivery is
// best effort and strictly after commit; the entity store is the source of
// truth.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/emperorhan/prediction-indexer/internal/domain/model"
	"github.com/redis/go-redis/v9"
)

// Notification describes one committed event application.
type Notification struct {
	ChainID     model.ChainID `json:"chainId"`
	BlockNumber int64         `json:"blockNumber"`
	TxHash      string        `json:"txHash"`
	LogIndex    int64         `json:"logIndex"`
	EventName   string        `json:"eventName"`
	Tables      []string      `json:"tables"`
	AppliedAt   time.Time     `json:"appliedAt"`
}

type Publisher interface {
	Publish(ctx context.Context, n Notification) error
	Close() error
}

// RedisPublisher XAdds notifications to predict:applied:<chainID>, capped so
// slow consumers cannot grow the stream unboundedly.
type RedisPublisher struct {
	client *redis.Client
	maxLen int64
}

func NewRedisPublisher(url string, maxLen int64) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if maxLen <= 0 {
		maxLen = 100_000
	}
	return &RedisPublisher{client: client, maxLen: maxLen}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamName(n.ChainID),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{"payload": payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd applied notification: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// StreamName is the per-chain applied-event stream key.
func StreamName(chainID model.ChainID) string {
	return "predict:applied:" + chainID.String()
}

// Noop discards notifications. Used when Redis is not configured.
type Noop struct{}

func (Noop) Publish(context.Context, Notification) error { return nil }
func (Noop) Close() error                                { return nil }
