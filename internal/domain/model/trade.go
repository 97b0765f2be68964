package model

import (
	"time"

	"github.com/google/uuid"
)

// Trade is an append-only record of a single trading event, keyed by
// chainId-txHash-logIndex. Immutable once written.
type Trade struct {
	RowID            uuid.UUID `db:"row_id"`
	ChainID          ChainID   `db:"chain_id"`
	TxHash           string    `db:"tx_hash"`
	LogIndex         int64     `db:"log_index"`
	Trader           string    `db:"trader"`
	MarketAddress    string    `db:"market_address"`
	PollAddress      string    `db:"poll_address"`
	TradeType        TradeType `db:"trade_type"`
	Side             Side      `db:"side"`
	CollateralAmount int64     `db:"collateral_amount"`
	TokenAmount      int64     `db:"token_amount"`
	FeeAmount        int64     `db:"fee_amount"`
	TokenAmountOut   int64     `db:"token_amount_out"`
	BlockNumber      int64     `db:"block_number"`
	Timestamp        time.Time `db:"timestamp"`
}

func (t *Trade) ID() string {
	return EventID(t.ChainID, t.TxHash, t.LogIndex)
}
