package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/emperorhan/prediction-indexer/internal/domain/model"
)

// ErrUnknownTable is returned by RestoreRaw/DeleteRaw for a table name the
// store does not recognize. It indicates a corrupt ledger snapshot.
var ErrUnknownTable = errors.New("store: unknown table")

// Store opens per-event transactions against the entity tables.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// SnapshotEntry records the state of one entity before an event first touched
// it. Before is nil when the entity did not exist; undo then deletes it.
// Entries are captured in touch order and restored in reverse.
type SnapshotEntry struct {
	Table  string          `json:"table"`
	Key    string          `json:"key"`
	Before json.RawMessage `json:"before,omitempty"`
}

// AppliedEvent is one idempotency-ledger row.
type AppliedEvent struct {
	ChainID     model.ChainID
	TxHash      string
	LogIndex    int64
	TxIndex     int64
	BlockNumber int64
	EventName   string
	Snapshot    []SnapshotEntry
	AppliedAt   time.Time
}

// Tx is a single transaction spanning every entity an event touches. Getters
// return nil (no error) when the row does not exist; Put is a full-row upsert.
// All writes for one event commit atomically or not at all.
type Tx interface {
	Commit() error
	Rollback() error

	GetPoll(ctx context.Context, chainID model.ChainID, address string) (*model.Poll, error)
	PutPoll(ctx context.Context, p *model.Poll) error

	GetMarket(ctx context.Context, chainID model.ChainID, address string) (*model.Market, error)
	PutMarket(ctx context.Context, m *model.Market) error

	GetTrade(ctx context.Context, chainID model.ChainID, txHash string, logIndex int64) (*model.Trade, error)
	PutTrade(ctx context.Context, t *model.Trade) error

	GetUser(ctx context.Context, chainID model.ChainID, address string) (*model.User, error)
	PutUser(ctx context.Context, u *model.User) error

	GetMarketUser(ctx context.Context, chainID model.ChainID, marketAddress, address string) (*model.MarketUser, error)
	PutMarketUser(ctx context.Context, mu *model.MarketUser) error
	// CountMarketUsers is the source of truth for market.uniqueTraders.
	CountMarketUsers(ctx context.Context, chainID model.ChainID, marketAddress string) (int64, error)

	GetWinning(ctx context.Context, chainID model.ChainID, txHash string, logIndex int64) (*model.Winning, error)
	PutWinning(ctx context.Context, w *model.Winning) error

	GetLiquidityEvent(ctx context.Context, chainID model.ChainID, txHash string, logIndex int64) (*model.LiquidityEvent, error)
	PutLiquidityEvent(ctx context.Context, le *model.LiquidityEvent) error

	GetReferralCode(ctx context.Context, chainID model.ChainID, codeHash string) (*model.ReferralCode, error)
	PutReferralCode(ctx context.Context, rc *model.ReferralCode) error

	GetReferral(ctx context.Context, chainID model.ChainID, referrer, referee string) (*model.Referral, error)
	PutReferral(ctx context.Context, r *model.Referral) error
	// FindReferralByReferee resolves the referee-side link used by the trade
	// cascade; a referee has at most one referrer.
	FindReferralByReferee(ctx context.Context, chainID model.ChainID, referee string) (*model.Referral, error)

	GetCampaign(ctx context.Context, chainID model.ChainID, onchainID int64) (*model.Campaign, error)
	PutCampaign(ctx context.Context, c *model.Campaign) error

	GetCampaignClaim(ctx context.Context, chainID model.ChainID, onchainID int64, user string) (*model.CampaignClaim, error)
	PutCampaignClaim(ctx context.Context, cc *model.CampaignClaim) error

	GetPlatformStats(ctx context.Context, chainID model.ChainID) (*model.PlatformStats, error)
	PutPlatformStats(ctx context.Context, ps *model.PlatformStats) error

	GetReferralStats(ctx context.Context, chainID model.ChainID) (*model.ReferralStats, error)
	PutReferralStats(ctx context.Context, rs *model.ReferralStats) error

	GetCampaignStats(ctx context.Context, chainID model.ChainID) (*model.CampaignStats, error)
	PutCampaignStats(ctx context.Context, cs *model.CampaignStats) error

	GetDailyStats(ctx context.Context, chainID model.ChainID, bucketStart int64) (*model.DailyStats, error)
	PutDailyStats(ctx context.Context, ds *model.DailyStats) error

	GetHourlyStats(ctx context.Context, chainID model.ChainID, bucketStart int64) (*model.HourlyStats, error)
	PutHourlyStats(ctx context.Context, hs *model.HourlyStats) error

	// RestoreRaw writes a snapshot entry's before-state back into its table;
	// DeleteRaw removes an entity created by the undone event. Both dispatch
	// on the table name and are only used by reorg compensation.
	RestoreRaw(ctx context.Context, table, key string, data json.RawMessage) error
	DeleteRaw(ctx context.Context, table, key string) error

	// Idempotency ledger.
	HasApplied(ctx context.Context, chainID model.ChainID, txHash string, logIndex int64) (bool, error)
	MarkApplied(ctx context.Context, ev *AppliedEvent) error
	// ListAppliedFrom returns ledger rows with blockNumber >= fromBlock in
	// reverse canonical order (block desc, txIndex desc, logIndex desc).
	ListAppliedFrom(ctx context.Context, chainID model.ChainID, fromBlock int64) ([]AppliedEvent, error)
	DeleteAppliedFrom(ctx context.Context, chainID model.ChainID, fromBlock int64) (int64, error)
}

// Reader is the read-only aggregate surface used by reconciliation. Queries
// run outside any event transaction.
type Reader interface {
	SumMarketVolume(ctx context.Context, chainID model.ChainID) (int64, error)
	SumMarketTvl(ctx context.Context, chainID model.ChainID) (int64, error)
	CountMarketsByType(ctx context.Context, chainID model.ChainID) (amm int64, pari int64, err error)
	ReadPlatformStats(ctx context.Context, chainID model.ChainID) (*model.PlatformStats, error)
	// ListUsers streams every user row on a chain through fn; used for the
	// PnL and streak identities.
	ListUsers(ctx context.Context, chainID model.ChainID, fn func(*model.User) error) error
	// MarketTraderCounts returns marketAddress -> distinct trader count.
	MarketTraderCounts(ctx context.Context, chainID model.ChainID) (map[string]int64, error)
	ListMarkets(ctx context.Context, chainID model.ChainID, fn func(*model.Market) error) error
}
