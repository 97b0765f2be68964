package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/emperorhan/prediction-indexer/internal/domain/model"
	"github.com/emperorhan/prediction-indexer/internal/store"
)

// applyCtx wraps the store transaction of one event application. Every write
// goes through it so the before-state of each touched entity is captured
// exactly once, in touch order; the resulting snapshot is persisted with the
// ledger row and drives reorg compensation.
type applyCtx struct {
	tx      store.Tx
	chainID model.ChainID
	now     time.Time

	snapshot []store.SnapshotEntry
	touched  map[string]struct{}
}

func newApplyCtx(tx store.Tx, chainID model.ChainID, blockTime time.Time) *applyCtx {
	return &applyCtx{
		tx:      tx,
		chainID: chainID,
		now:     blockTime,
		touched: map[string]struct{}{},
	}
}

// captureOnce records the pre-write state of (table, key) the first time the
// event touches it. load must return the current row or nil.
func (ap *applyCtx) captureOnce(table, key string, load func() (any, bool, error)) error {
	tk := table + "\x00" + key
	if _, ok := ap.touched[tk]; ok {
		return nil
	}
	cur, exists, err := load()
	if err != nil {
		return err
	}
	entry := store.SnapshotEntry{Table: table, Key: key}
	if exists {
		data, err := json.Marshal(cur)
		if err != nil {
			return fmt.Errorf("snapshot %s/%s: %w", table, key, err)
		}
		entry.Before = data
	}
	ap.touched[tk] = struct{}{}
	ap.snapshot = append(ap.snapshot, entry)
	return nil
}

func (ap *applyCtx) putPoll(ctx context.Context, p *model.Poll) error {
	if err := ap.captureOnce(model.TablePolls, p.ID(), func() (any, bool, error) {
		cur, err := ap.tx.GetPoll(ctx, p.ChainID, p.Address)
		return cur, cur != nil, err
	}); err != nil {
		return err
	}
	p.UpdatedAt = ap.now
	return ap.tx.PutPoll(ctx, p)
}

func (ap *applyCtx) putMarket(ctx context.Context, m *model.Market) error {
	if err := ap.captureOnce(model.TableMarkets, m.ID(), func() (any, bool, error) {
		cur, err := ap.tx.GetMarket(ctx, m.ChainID, m.Address)
		return cur, cur != nil, err
	}); err != nil {
		return err
	}
	m.UpdatedAt = ap.now
	return ap.tx.PutMarket(ctx, m)
}

func (ap *applyCtx) putTrade(ctx context.Context, t *model.Trade) error {
	if err := ap.captureOnce(model.TableTrades, t.ID(), func() (any, bool, error) {
		cur, err := ap.tx.GetTrade(ctx, t.ChainID, t.TxHash, t.LogIndex)
		return cur, cur != nil, err
	}); err != nil {
		return err
	}
	return ap.tx.PutTrade(ctx, t)
}

func (ap *applyCtx) putUser(ctx context.Context, u *model.User) error {
	if err := ap.captureOnce(model.TableUsers, u.ID(), func() (any, bool, error) {
		cur, err := ap.tx.GetUser(ctx, u.ChainID, u.Address)
		return cur, cur != nil, err
	}); err != nil {
		return err
	}
	u.UpdatedAt = ap.now
	return ap.tx.PutUser(ctx, u)
}

func (ap *applyCtx) putMarketUser(ctx context.Context, mu *model.MarketUser) error {
	if err := ap.captureOnce(model.TableMarketUsers, mu.ID(), func() (any, bool, error) {
		cur, err := ap.tx.GetMarketUser(ctx, mu.ChainID, mu.MarketAddress, mu.Address)
		return cur, cur != nil, err
	}); err != nil {
		return err
	}
	return ap.tx.PutMarketUser(ctx, mu)
}

func (ap *applyCtx) putWinning(ctx context.Context, w *model.Winning) error {
	if err := ap.captureOnce(model.TableWinnings, w.ID(), func() (any, bool, error) {
		cur, err := ap.tx.GetWinning(ctx, w.ChainID, w.TxHash, w.LogIndex)
		return cur, cur != nil, err
	}); err != nil {
		return err
	}
	return ap.tx.PutWinning(ctx, w)
}

func (ap *applyCtx) putLiquidityEvent(ctx context.Context, le *model.LiquidityEvent) error {
	if err := ap.captureOnce(model.TableLiquidityEvents, le.ID(), func() (any, bool, error) {
		cur, err := ap.tx.GetLiquidityEvent(ctx, le.ChainID, le.TxHash, le.LogIndex)
		return cur, cur != nil, err
	}); err != nil {
		return err
	}
	return ap.tx.PutLiquidityEvent(ctx, le)
}

func (ap *applyCtx) putReferralCode(ctx context.Context, rc *model.ReferralCode) error {
	if err := ap.captureOnce(model.TableReferralCodes, rc.ID(), func() (any, bool, error) {
		cur, err := ap.tx.GetReferralCode(ctx, rc.ChainID, rc.CodeHash)
		return cur, cur != nil, err
	}); err != nil {
		return err
	}
	rc.UpdatedAt = ap.now
	return ap.tx.PutReferralCode(ctx, rc)
}

func (ap *applyCtx) putReferral(ctx context.Context, r *model.Referral) error {
	if err := ap.captureOnce(model.TableReferrals, r.ID(), func() (any, bool, error) {
		cur, err := ap.tx.GetReferral(ctx, r.ChainID, r.Referrer, r.Referee)
		return cur, cur != nil, err
	}); err != nil {
		return err
	}
	r.UpdatedAt = ap.now
	return ap.tx.PutReferral(ctx, r)
}

func (ap *applyCtx) putCampaign(ctx context.Context, c *model.Campaign) error {
	if err := ap.captureOnce(model.TableCampaigns, c.ID(), func() (any, bool, error) {
		cur, err := ap.tx.GetCampaign(ctx, c.ChainID, c.OnchainID)
		return cur, cur != nil, err
	}); err != nil {
		return err
	}
	c.UpdatedAt = ap.now
	return ap.tx.PutCampaign(ctx, c)
}

func (ap *applyCtx) putCampaignClaim(ctx context.Context, cc *model.CampaignClaim) error {
	if err := ap.captureOnce(model.TableCampaignClaims, cc.ID(), func() (any, bool, error) {
		cur, err := ap.tx.GetCampaignClaim(ctx, cc.ChainID, cc.OnchainID, cc.User)
		return cur, cur != nil, err
	}); err != nil {
		return err
	}
	return ap.tx.PutCampaignClaim(ctx, cc)
}

func (ap *applyCtx) putPlatformStats(ctx context.Context, ps *model.PlatformStats) error {
	if err := ap.captureOnce(model.TablePlatformStats, ps.ChainID.String(), func() (any, bool, error) {
		cur, err := ap.tx.GetPlatformStats(ctx, ps.ChainID)
		return cur, cur != nil, err
	}); err != nil {
		return err
	}
	ps.UpdatedAt = ap.now
	return ap.tx.PutPlatformStats(ctx, ps)
}

func (ap *applyCtx) putReferralStats(ctx context.Context, rs *model.ReferralStats) error {
	if err := ap.captureOnce(model.TableReferralStats, rs.ChainID.String(), func() (any, bool, error) {
		cur, err := ap.tx.GetReferralStats(ctx, rs.ChainID)
		return cur, cur != nil, err
	}); err != nil {
		return err
	}
	rs.UpdatedAt = ap.now
	return ap.tx.PutReferralStats(ctx, rs)
}

func (ap *applyCtx) putCampaignStats(ctx context.Context, cs *model.CampaignStats) error {
	if err := ap.captureOnce(model.TableCampaignStats, cs.ChainID.String(), func() (any, bool, error) {
		cur, err := ap.tx.GetCampaignStats(ctx, cs.ChainID)
		return cur, cur != nil, err
	}); err != nil {
		return err
	}
	cs.UpdatedAt = ap.now
	return ap.tx.PutCampaignStats(ctx, cs)
}

func (ap *applyCtx) putDailyStats(ctx context.Context, ds *model.DailyStats) error {
	if err := ap.captureOnce(model.TableDailyStats, model.BucketID(ds.ChainID, ds.BucketStart), func() (any, bool, error) {
		cur, err := ap.tx.GetDailyStats(ctx, ds.ChainID, ds.BucketStart)
		return cur, cur != nil, err
	}); err != nil {
		return err
	}
	ds.UpdatedAt = ap.now
	return ap.tx.PutDailyStats(ctx, ds)
}

func (ap *applyCtx) putHourlyStats(ctx context.Context, hs *model.HourlyStats) error {
	if err := ap.captureOnce(model.TableHourlyStats, model.BucketID(hs.ChainID, hs.BucketStart), func() (any, bool, error) {
		cur, err := ap.tx.GetHourlyStats(ctx, hs.ChainID, hs.BucketStart)
		return cur, cur != nil, err
	}); err != nil {
		return err
	}
	hs.UpdatedAt = ap.now
	return ap.tx.PutHourlyStats(ctx, hs)
}

// platformStats loads the per-chain singleton, creating the zero row on first
// reference.
func (ap *applyCtx) platformStats(ctx context.Context) (*model.PlatformStats, error) {
	ps, err := ap.tx.GetPlatformStats(ctx, ap.chainID)
	if err != nil {
		return nil, err
	}
	if ps == nil {
		ps = &model.PlatformStats{ChainID: ap.chainID}
	}
	return ps, nil
}

func (ap *applyCtx) referralStats(ctx context.Context) (*model.ReferralStats, error) {
	rs, err := ap.tx.GetReferralStats(ctx, ap.chainID)
	if err != nil {
		return nil, err
	}
	if rs == nil {
		rs = &model.ReferralStats{ChainID: ap.chainID}
	}
	return rs, nil
}

func (ap *applyCtx) campaignStats(ctx context.Context) (*model.CampaignStats, error) {
	cs, err := ap.tx.GetCampaignStats(ctx, ap.chainID)
	if err != nil {
		return nil, err
	}
	if cs == nil {
		cs = &model.CampaignStats{ChainID: ap.chainID}
	}
	return cs, nil
}

// getOrCreateUser returns the user row, creating it lazily on first
// interaction. The caller is responsible for bumping platformStats.totalUsers
// and the new-user rollup dimension when created is true.
func (ap *applyCtx) getOrCreateUser(ctx context.Context, address string) (u *model.User, created bool, err error) {
	u, err = ap.tx.GetUser(ctx, ap.chainID, address)
	if err != nil {
		return nil, false, err
	}
	if u != nil {
		return u, false, nil
	}
	u = &model.User{
		ChainID:   ap.chainID,
		Address:   address,
		CreatedAt: ap.now,
	}
	return u, true, nil
}
