package event

import (
	"encoding/json"
	"time"

	"github.com/emperorhan/prediction-indexer/internal/domain/model"
)

// Log is one decoded contract event as delivered by the upstream chain
// follower. ABI decoding already happened upstream; Args carries the decoded
// payload for the named event.
//
// Logs for one chain arrive strictly ordered by (BlockNumber, TxIndex,
// LogIndex); the engine relies on that ordering and only sanity-checks it.
type Log struct {
	ChainID     model.ChainID   `json:"chainId"`
	BlockNumber int64           `json:"blockNumber"`
	TxIndex     int64           `json:"transactionIndex"`
	LogIndex    int64           `json:"logIndex"`
	TxHash      string          `json:"txHash"`
	BlockTime   time.Time       `json:"timestamp"`
	Name        string          `json:"eventName"`
	Args        json.RawMessage `json:"args"`
}

// EventID returns the idempotency-ledger key of the log.
func (l Log) EventID() string {
	return model.EventID(l.ChainID, l.TxHash, l.LogIndex)
}

// Revert notifies the engine that blocks >= FromBlock were replaced by a
// competing branch. Chain-scoped; other chains are unaffected.
type Revert struct {
	ChainID   model.ChainID `json:"chainId"`
	FromBlock int64         `json:"revertFromBlock"`
}

// Protocol event names, fixed by the contracts.
const (
	NamePollCreated            = "PollCreated"
	NamePollDisputed           = "PollDisputed"
	NamePollResolved           = "PollResolved"
	NameMarketCreated          = "MarketCreated"
	NamePariMutuelCreated      = "PariMutuelCreated"
	NameTokensBought           = "TokensBought"
	NameTokensSold             = "TokensSold"
	NameLiquidityAdded         = "LiquidityAdded"
	NameLiquidityRemoved       = "LiquidityRemoved"
	NameInitialLiquiditySeeded = "InitialLiquiditySeeded"
	NamePositionPurchased      = "PositionPurchased"
	NameWinningsRedeemed       = "WinningsRedeemed"
	NameReferralCodeRegistered = "ReferralCodeRegistered"
	NameReferralRegistered     = "ReferralRegistered"
	NameReferralRewardClaimed  = "ReferralRewardClaimed"
	NameCampaignCreated        = "CampaignCreated"
	NameCampaignStatusChanged  = "CampaignStatusChanged"
	NameCampaignRewardClaimed  = "CampaignRewardClaimed"
)
