package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/emperorhan/prediction-indexer/internal/domain/model"
	"github.com/emperorhan/prediction-indexer/internal/store"
)

var knownTables = map[string]struct{}{
	model.TablePolls:           {},
	model.TableMarkets:         {},
	model.TableTrades:          {},
	model.TableUsers:           {},
	model.TableMarketUsers:     {},
	model.TableWinnings:        {},
	model.TableLiquidityEvents: {},
	model.TableReferralCodes:   {},
	model.TableReferrals:       {},
	model.TableCampaigns:       {},
	model.TableCampaignClaims:  {},
	model.TablePlatformStats:   {},
	model.TableReferralStats:   {},
	model.TableCampaignStats:   {},
	model.TableDailyStats:      {},
	model.TableHourlyStats:     {},
}

// RestoreRaw writes a snapshot entry's before-state back by dispatching to
// the table's upsert. Snapshots are the JSON encoding of the model structs,
// so the round trip is lossless.
func (t *Tx) RestoreRaw(ctx context.Context, table, key string, data json.RawMessage) error {
	restore := func(dst any, put func() error) error {
		if err := json.Unmarshal(data, dst); err != nil {
			return fmt.Errorf("restore %s/%s: unmarshal: %w", table, key, err)
		}
		return put()
	}

	switch table {
	case model.TablePolls:
		p := &model.Poll{}
		return restore(p, func() error { return t.PutPoll(ctx, p) })
	case model.TableMarkets:
		m := &model.Market{}
		return restore(m, func() error { return t.PutMarket(ctx, m) })
	case model.TableTrades:
		tr := &model.Trade{}
		return restore(tr, func() error { return t.PutTrade(ctx, tr) })
	case model.TableUsers:
		u := &model.User{}
		return restore(u, func() error { return t.PutUser(ctx, u) })
	case model.TableMarketUsers:
		mu := &model.MarketUser{}
		return restore(mu, func() error { return t.PutMarketUser(ctx, mu) })
	case model.TableWinnings:
		w := &model.Winning{}
		return restore(w, func() error { return t.PutWinning(ctx, w) })
	case model.TableLiquidityEvents:
		le := &model.LiquidityEvent{}
		return restore(le, func() error { return t.PutLiquidityEvent(ctx, le) })
	case model.TableReferralCodes:
		rc := &model.ReferralCode{}
		return restore(rc, func() error { return t.PutReferralCode(ctx, rc) })
	case model.TableReferrals:
		r := &model.Referral{}
		return restore(r, func() error { return t.PutReferral(ctx, r) })
	case model.TableCampaigns:
		c := &model.Campaign{}
		return restore(c, func() error { return t.PutCampaign(ctx, c) })
	case model.TableCampaignClaims:
		cc := &model.CampaignClaim{}
		return restore(cc, func() error { return t.PutCampaignClaim(ctx, cc) })
	case model.TablePlatformStats:
		ps := &model.PlatformStats{}
		return restore(ps, func() error { return t.PutPlatformStats(ctx, ps) })
	case model.TableReferralStats:
		rs := &model.ReferralStats{}
		return restore(rs, func() error { return t.PutReferralStats(ctx, rs) })
	case model.TableCampaignStats:
		cs := &model.CampaignStats{}
		return restore(cs, func() error { return t.PutCampaignStats(ctx, cs) })
	case model.TableDailyStats:
		ds := &model.DailyStats{}
		return restore(ds, func() error { return t.PutDailyStats(ctx, ds) })
	case model.TableHourlyStats:
		hs := &model.HourlyStats{}
		return restore(hs, func() error { return t.PutHourlyStats(ctx, hs) })
	default:
		return fmt.Errorf("restore %s/%s: %w", table, key, store.ErrUnknownTable)
	}
}

// DeleteRaw removes an entity created by an undone event. The table name is
// validated against the schema before interpolation.
func (t *Tx) DeleteRaw(ctx context.Context, table, key string) error {
	if _, ok := knownTables[table]; !ok {
		return fmt.Errorf("delete %s/%s: %w", table, key, store.ErrUnknownTable)
	}
	if _, err := t.tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE row_key = $1", table), key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", table, key, err)
	}
	return nil
}
