package event

import "github.com/emperorhan/prediction-indexer/internal/domain/model"

// Decoded argument payloads, one struct per protocol event. Monetary values
// are fixed-point integers with 6 implied decimals, exactly as emitted.

type PollCreatedArgs struct {
	Poll              string   `json:"poll"`
	Creator           string   `json:"creator"`
	Question          string   `json:"question"`
	Rules             string   `json:"rules"`
	Sources           []string `json:"sources"`
	Category          string   `json:"category"`
	DeadlineEpoch     int64    `json:"deadlineEpoch"`
	FinalizationEpoch int64    `json:"finalizationEpoch"`
	CheckEpoch        int64    `json:"checkEpoch"`
}

type PollDisputedArgs struct {
	Poll       string `json:"poll"`
	DisputedBy string `json:"disputedBy"`
	Reason     string `json:"reason"`
	Stake      int64  `json:"stake"`
}

type PollResolvedArgs struct {
	Poll   string           `json:"poll"`
	Setter string           `json:"setter"`
	Status model.PollStatus `json:"status"`
	Reason string           `json:"reason"`
}

type MarketCreatedArgs struct {
	Market                   string `json:"market"`
	Poll                     string `json:"poll"`
	Creator                  string `json:"creator"`
	CollateralToken          string `json:"collateralToken"`
	YesToken                 string `json:"yesToken"`
	NoToken                  string `json:"noToken"`
	FeeTier                  int64  `json:"feeTier"`
	MaxPriceImbalancePerHour int64  `json:"maxPriceImbalancePerHour"`
}

type PariMutuelCreatedArgs struct {
	Market          string `json:"market"`
	Poll            string `json:"poll"`
	Creator         string `json:"creator"`
	CollateralToken string `json:"collateralToken"`
	CurveFlattener  int64  `json:"curveFlattener"`
	CurveOffset     int64  `json:"curveOffset"`
	DeadlineEpoch   int64  `json:"deadlineEpoch"`
}

type TokensBoughtArgs struct {
	Market           string     `json:"market"`
	Trader           string     `json:"trader"`
	Side             model.Side `json:"side"`
	CollateralAmount int64      `json:"collateralAmount"`
	FeeAmount        int64      `json:"feeAmount"`
	TokenAmount      int64      `json:"tokenAmount"`
}

type TokensSoldArgs struct {
	Market           string     `json:"market"`
	Trader           string     `json:"trader"`
	Side             model.Side `json:"side"`
	TokenAmount      int64      `json:"tokenAmount"`
	CollateralAmount int64      `json:"collateralAmount"`
	FeeAmount        int64      `json:"feeAmount"`
}

type LiquidityAddedArgs struct {
	Market           string `json:"market"`
	Provider         string `json:"provider"`
	CollateralAmount int64  `json:"collateralAmount"`
	LpTokens         int64  `json:"lpTokens"`
	YesAmount        int64  `json:"yesAmount"`
	NoAmount         int64  `json:"noAmount"`
}

type LiquidityRemovedArgs struct {
	Market           string `json:"market"`
	Provider         string `json:"provider"`
	CollateralAmount int64  `json:"collateralAmount"`
	LpTokens         int64  `json:"lpTokens"`
	YesAmount        int64  `json:"yesAmount"`
	NoAmount         int64  `json:"noAmount"`
}

type InitialLiquiditySeededArgs struct {
	Market    string `json:"market"`
	Provider  string `json:"provider"`
	YesAmount int64  `json:"yesAmount"`
	NoAmount  int64  `json:"noAmount"`
}

type PositionPurchasedArgs struct {
	Market       string     `json:"market"`
	Buyer        string     `json:"buyer"`
	Side         model.Side `json:"side"`
	CollateralIn int64      `json:"collateralIn"`
	FeeAmount    int64      `json:"feeAmount"`
	SharesOut    int64      `json:"sharesOut"`
}

type WinningsRedeemedArgs struct {
	Market           string     `json:"market"`
	User             string     `json:"user"`
	CollateralAmount int64      `json:"collateralAmount"`
	FeeAmount        int64      `json:"feeAmount"`
	Outcome          model.Side `json:"outcome"`
}

type ReferralCodeRegisteredArgs struct {
	CodeHash string `json:"codeHash"`
	Owner    string `json:"owner"`
}

type ReferralRegisteredArgs struct {
	CodeHash string `json:"codeHash"`
	Referrer string `json:"referrer"`
	Referee  string `json:"referee"`
}

type ReferralRewardClaimedArgs struct {
	Referrer string `json:"referrer"`
	Referee  string `json:"referee"`
	Amount   int64  `json:"amount"`
}

type CampaignCreatedArgs struct {
	CampaignID  int64            `json:"campaignId"`
	Creator     string           `json:"creator"`
	RewardKind  model.RewardKind `json:"rewardKind"`
	RewardType  model.RewardType `json:"rewardType"`
	RewardToken string           `json:"rewardToken"`
	RewardPool  int64            `json:"rewardPool"`
}

type CampaignStatusChangedArgs struct {
	CampaignID int64                `json:"campaignId"`
	Status     model.CampaignStatus `json:"status"`
}

type CampaignRewardClaimedArgs struct {
	CampaignID int64  `json:"campaignId"`
	User       string `json:"user"`
	Amount     int64  `json:"amount"`
}
