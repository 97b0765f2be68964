package model

import (
	"time"

	"github.com/google/uuid"
)

// Winning is an append-only redemption record, keyed by chainId-txHash-logIndex.
type Winning struct {
	RowID            uuid.UUID  `db:"row_id"`
	ChainID          ChainID    `db:"chain_id"`
	TxHash           string     `db:"tx_hash"`
	LogIndex         int64      `db:"log_index"`
	User             string     `db:"user_address"`
	MarketAddress    string     `db:"market_address"`
	CollateralAmount int64      `db:"collateral_amount"`
	FeeAmount        int64      `db:"fee_amount"`
	Outcome          Side       `db:"outcome"`
	MarketType       MarketType `db:"market_type"`
	BlockNumber      int64      `db:"block_number"`
	Timestamp        time.Time  `db:"timestamp"`
}

func (w *Winning) ID() string {
	return EventID(w.ChainID, w.TxHash, w.LogIndex)
}

// LiquidityEvent is an append-only LP action record. LP rebalancing on AMM
// markets is deliberately not counted as trading volume; the aggregation
// rules live in the engine, this is the raw record.
type LiquidityEvent struct {
	RowID            uuid.UUID          `db:"row_id"`
	ChainID          ChainID            `db:"chain_id"`
	TxHash           string             `db:"tx_hash"`
	LogIndex         int64              `db:"log_index"`
	Provider         string             `db:"provider"`
	MarketAddress    string             `db:"market_address"`
	PollAddress      string             `db:"poll_address"`
	EventType        LiquidityEventType `db:"event_type"`
	CollateralAmount int64              `db:"collateral_amount"`
	LpTokens         int64              `db:"lp_tokens"`
	YesAmount        int64              `db:"yes_amount"`
	NoAmount         int64              `db:"no_amount"`
	BlockNumber      int64              `db:"block_number"`
	Timestamp        time.Time          `db:"timestamp"`
}

func (le *LiquidityEvent) ID() string {
	return EventID(le.ChainID, le.TxHash, le.LogIndex)
}
