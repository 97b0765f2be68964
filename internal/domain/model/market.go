package model

import "time"

// Market aggregates all trading activity on a single market contract.
// AMM and pari-mutuel markets share the row shape; variant-specific fields are
// zero for the other variant.
//
// A market first observed through a trade (creation event not yet ingested,
// e.g. mid-backfill) is written with IsIncomplete=true and backfilled when the
// creation event arrives.
type Market struct {
	ChainID         ChainID    `db:"chain_id"`
	Address         string     `db:"address"`
	PollAddress     string     `db:"poll_address"`
	Creator         string     `db:"creator"`
	MarketType      MarketType `db:"market_type"`
	CollateralToken string     `db:"collateral_token"`
	IsIncomplete    bool       `db:"is_incomplete"`

	// AMM variant.
	YesToken                 string `db:"yes_token"`
	NoToken                  string `db:"no_token"`
	FeeTier                  int64  `db:"fee_tier"`
	MaxPriceImbalancePerHour int64  `db:"max_price_imbalance_per_hour"`
	ReserveYes               int64  `db:"reserve_yes"`
	ReserveNo                int64  `db:"reserve_no"`

	// Pari-mutuel variant.
	CurveFlattener     int64 `db:"curve_flattener"`
	CurveOffset        int64 `db:"curve_offset"`
	DeadlineEpoch      int64 `db:"deadline_epoch"`
	TotalCollateralYes int64 `db:"total_collateral_yes"`
	TotalCollateralNo  int64 `db:"total_collateral_no"`
	TotalSharesYes     int64 `db:"total_shares_yes"`
	TotalSharesNo      int64 `db:"total_shares_no"`
	// YesChance is totalSharesNo * 1e9 / (totalSharesYes + totalSharesNo),
	// i.e. parts-per-billion probability implied by the share pools.
	YesChance int64 `db:"yes_chance"`

	TotalVolume      int64 `db:"total_volume"`
	TotalFees        int64 `db:"total_fees"`
	TotalTrades      int64 `db:"total_trades"`
	CurrentTvl       int64 `db:"current_tvl"`
	UniqueTraders    int64 `db:"unique_traders"`
	InitialLiquidity int64 `db:"initial_liquidity"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (m *Market) ID() string {
	return MarketID(m.ChainID, m.Address)
}

// MarketUser is the dedup row behind market.uniqueTraders; one per
// (market, trader) pair that has ever traded.
type MarketUser struct {
	ChainID       ChainID   `db:"chain_id"`
	MarketAddress string    `db:"market_address"`
	Address       string    `db:"address"`
	LastTradeAt   time.Time `db:"last_trade_at"`
}

func (mu *MarketUser) ID() string {
	return MarketUserID(mu.ChainID, mu.MarketAddress, mu.Address)
}
