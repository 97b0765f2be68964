package model

import "strconv"

// ChainID is the numeric EVM chain identifier. Every entity in the store is
// scoped by it; two chains never share mutable state.
type ChainID int64

func (c ChainID) String() string {
	return strconv.FormatInt(int64(c), 10)
}

// MarketType discriminates the two market variants the protocol deploys.
type MarketType string

const (
	MarketTypeAMM  MarketType = "amm"
	MarketTypePari MarketType = "pari"
)

// PollStatus is the resolution state machine of a poll.
// Pending is the only non-terminal state.
type PollStatus int16

const (
	PollStatusPending PollStatus = 0
	PollStatusYes     PollStatus = 1
	PollStatusNo      PollStatus = 2
	PollStatusUnknown PollStatus = 3
)

func (s PollStatus) Terminal() bool {
	return s != PollStatusPending
}

func (s PollStatus) String() string {
	switch s {
	case PollStatusPending:
		return "pending"
	case PollStatusYes:
		return "yes"
	case PollStatusNo:
		return "no"
	case PollStatusUnknown:
		return "unknown"
	}
	return "invalid"
}

// Side is the outcome side of a trade or position.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// TradeType classifies how collateral moved.
type TradeType string

const (
	TradeTypeBuy  TradeType = "buy"
	TradeTypeSell TradeType = "sell"
	TradeTypeSwap TradeType = "swap"
	TradeTypeBet  TradeType = "bet"
)

// LiquidityEventType distinguishes adds from removes.
type LiquidityEventType string

const (
	LiquidityAdd    LiquidityEventType = "add"
	LiquidityRemove LiquidityEventType = "remove"
)
