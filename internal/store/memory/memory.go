// Package memory implements store.Store over process memory. It is the test
// double for the engine and mirrors the postgres implementation's semantics:
// full-row upserts, snapshot/restore by table name, and a per-chain
// idempotency ledger.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

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

// Store is an in-memory entity store. Safe for one writer per chain plus
// concurrent readers, same as the production store.
type Store struct {
	mu     sync.RWMutex
	tables map[string]map[string][]byte
	ledger map[string]store.AppliedEvent // keyed by event id
}

func New() *Store {
	tables := make(map[string]map[string][]byte, len(knownTables))
	for t := range knownTables {
		tables[t] = make(map[string][]byte)
	}
	return &Store{
		tables: tables,
		ledger: make(map[string]store.AppliedEvent),
	}
}

func (s *Store) Begin(_ context.Context) (store.Tx, error) {
	return &Tx{
		s:       s,
		pending: make(map[string]map[string]pendingWrite),
	}, nil
}

type pendingWrite struct {
	data    []byte
	deleted bool
}

type ledgerOp struct {
	put       *store.AppliedEvent
	deleteKey string
}

// Tx buffers writes and applies them atomically on Commit.
type Tx struct {
	s         *Store
	pending   map[string]map[string]pendingWrite
	ledgerOps []ledgerOp
	done      bool
}

func (tx *Tx) Commit() error {
	if tx.done {
		return fmt.Errorf("memory: tx already finished")
	}
	tx.done = true

	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	for table, writes := range tx.pending {
		for key, w := range writes {
			if w.deleted {
				delete(tx.s.tables[table], key)
			} else {
				tx.s.tables[table][key] = w.data
			}
		}
	}
	for _, op := range tx.ledgerOps {
		if op.put != nil {
			tx.s.ledger[model.EventID(op.put.ChainID, op.put.TxHash, op.put.LogIndex)] = *op.put
		} else {
			delete(tx.s.ledger, op.deleteKey)
		}
	}
	return nil
}

func (tx *Tx) Rollback() error {
	tx.done = true
	tx.pending = nil
	tx.ledgerOps = nil
	return nil
}

func (tx *Tx) raw(table, key string) ([]byte, bool) {
	if writes, ok := tx.pending[table]; ok {
		if w, ok := writes[key]; ok {
			if w.deleted {
				return nil, false
			}
			return w.data, true
		}
	}
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	data, ok := tx.s.tables[table][key]
	return data, ok
}

func (tx *Tx) write(table, key string, w pendingWrite) {
	writes, ok := tx.pending[table]
	if !ok {
		writes = make(map[string]pendingWrite)
		tx.pending[table] = writes
	}
	writes[key] = w
}

func get[T any](tx *Tx, table, key string) (*T, error) {
	data, ok := tx.raw(table, key)
	if !ok {
		return nil, nil
	}
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("memory: unmarshal %s/%s: %w", table, key, err)
	}
	return v, nil
}

func put(tx *Tx, table, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("memory: marshal %s/%s: %w", table, key, err)
	}
	tx.write(table, key, pendingWrite{data: data})
	return nil
}

// scan visits every live row of a table, pending writes included.
func scan[T any](tx *Tx, table string, fn func(key string, v *T) error) error {
	seen := make(map[string]struct{})
	visit := func(key string, data []byte) error {
		v := new(T)
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("memory: unmarshal %s/%s: %w", table, key, err)
		}
		return fn(key, v)
	}
	for key, w := range tx.pending[table] {
		seen[key] = struct{}{}
		if w.deleted {
			continue
		}
		if err := visit(key, w.data); err != nil {
			return err
		}
	}
	tx.s.mu.RLock()
	snapshot := make(map[string][]byte, len(tx.s.tables[table]))
	for key, data := range tx.s.tables[table] {
		if _, ok := seen[key]; ok {
			continue
		}
		snapshot[key] = data
	}
	tx.s.mu.RUnlock()
	for key, data := range snapshot {
		if err := visit(key, data); err != nil {
			return err
		}
	}
	return nil
}

func (tx *Tx) GetPoll(_ context.Context, chainID model.ChainID, address string) (*model.Poll, error) {
	return get[model.Poll](tx, model.TablePolls, model.PollID(chainID, address))
}

func (tx *Tx) PutPoll(_ context.Context, p *model.Poll) error {
	return put(tx, model.TablePolls, p.ID(), p)
}

func (tx *Tx) GetMarket(_ context.Context, chainID model.ChainID, address string) (*model.Market, error) {
	return get[model.Market](tx, model.TableMarkets, model.MarketID(chainID, address))
}

func (tx *Tx) PutMarket(_ context.Context, m *model.Market) error {
	return put(tx, model.TableMarkets, m.ID(), m)
}

func (tx *Tx) GetTrade(_ context.Context, chainID model.ChainID, txHash string, logIndex int64) (*model.Trade, error) {
	return get[model.Trade](tx, model.TableTrades, model.EventID(chainID, txHash, logIndex))
}

func (tx *Tx) PutTrade(_ context.Context, t *model.Trade) error {
	return put(tx, model.TableTrades, t.ID(), t)
}

func (tx *Tx) GetUser(_ context.Context, chainID model.ChainID, address string) (*model.User, error) {
	return get[model.User](tx, model.TableUsers, model.UserID(chainID, address))
}

func (tx *Tx) PutUser(_ context.Context, u *model.User) error {
	return put(tx, model.TableUsers, u.ID(), u)
}

func (tx *Tx) GetMarketUser(_ context.Context, chainID model.ChainID, marketAddress, address string) (*model.MarketUser, error) {
	return get[model.MarketUser](tx, model.TableMarketUsers, model.MarketUserID(chainID, marketAddress, address))
}

func (tx *Tx) PutMarketUser(_ context.Context, mu *model.MarketUser) error {
	return put(tx, model.TableMarketUsers, mu.ID(), mu)
}

func (tx *Tx) CountMarketUsers(_ context.Context, chainID model.ChainID, marketAddress string) (int64, error) {
	var n int64
	err := scan(tx, model.TableMarketUsers, func(_ string, mu *model.MarketUser) error {
		if mu.ChainID == chainID && mu.MarketAddress == marketAddress {
			n++
		}
		return nil
	})
	return n, err
}

func (tx *Tx) GetWinning(_ context.Context, chainID model.ChainID, txHash string, logIndex int64) (*model.Winning, error) {
	return get[model.Winning](tx, model.TableWinnings, model.EventID(chainID, txHash, logIndex))
}

func (tx *Tx) PutWinning(_ context.Context, w *model.Winning) error {
	return put(tx, model.TableWinnings, w.ID(), w)
}

func (tx *Tx) GetLiquidityEvent(_ context.Context, chainID model.ChainID, txHash string, logIndex int64) (*model.LiquidityEvent, error) {
	return get[model.LiquidityEvent](tx, model.TableLiquidityEvents, model.EventID(chainID, txHash, logIndex))
}

func (tx *Tx) PutLiquidityEvent(_ context.Context, le *model.LiquidityEvent) error {
	return put(tx, model.TableLiquidityEvents, le.ID(), le)
}

func (tx *Tx) GetReferralCode(_ context.Context, chainID model.ChainID, codeHash string) (*model.ReferralCode, error) {
	return get[model.ReferralCode](tx, model.TableReferralCodes, model.ReferralCodeID(chainID, codeHash))
}

func (tx *Tx) PutReferralCode(_ context.Context, rc *model.ReferralCode) error {
	return put(tx, model.TableReferralCodes, rc.ID(), rc)
}

func (tx *Tx) GetReferral(_ context.Context, chainID model.ChainID, referrer, referee string) (*model.Referral, error) {
	return get[model.Referral](tx, model.TableReferrals, model.ReferralID(chainID, referrer, referee))
}

func (tx *Tx) PutReferral(_ context.Context, r *model.Referral) error {
	return put(tx, model.TableReferrals, r.ID(), r)
}

func (tx *Tx) FindReferralByReferee(_ context.Context, chainID model.ChainID, referee string) (*model.Referral, error) {
	var found *model.Referral
	err := scan(tx, model.TableReferrals, func(_ string, r *model.Referral) error {
		if r.ChainID == chainID && r.Referee == referee {
			found = r
		}
		return nil
	})
	return found, err
}

func (tx *Tx) GetCampaign(_ context.Context, chainID model.ChainID, onchainID int64) (*model.Campaign, error) {
	return get[model.Campaign](tx, model.TableCampaigns, model.CampaignID(chainID, onchainID))
}

func (tx *Tx) PutCampaign(_ context.Context, c *model.Campaign) error {
	return put(tx, model.TableCampaigns, c.ID(), c)
}

func (tx *Tx) GetCampaignClaim(_ context.Context, chainID model.ChainID, onchainID int64, user string) (*model.CampaignClaim, error) {
	return get[model.CampaignClaim](tx, model.TableCampaignClaims, model.CampaignClaimID(chainID, onchainID, user))
}

func (tx *Tx) PutCampaignClaim(_ context.Context, cc *model.CampaignClaim) error {
	return put(tx, model.TableCampaignClaims, cc.ID(), cc)
}

func (tx *Tx) GetPlatformStats(_ context.Context, chainID model.ChainID) (*model.PlatformStats, error) {
	return get[model.PlatformStats](tx, model.TablePlatformStats, chainID.String())
}

func (tx *Tx) PutPlatformStats(_ context.Context, ps *model.PlatformStats) error {
	return put(tx, model.TablePlatformStats, ps.ChainID.String(), ps)
}

func (tx *Tx) GetReferralStats(_ context.Context, chainID model.ChainID) (*model.ReferralStats, error) {
	return get[model.ReferralStats](tx, model.TableReferralStats, chainID.String())
}

func (tx *Tx) PutReferralStats(_ context.Context, rs *model.ReferralStats) error {
	return put(tx, model.TableReferralStats, rs.ChainID.String(), rs)
}

func (tx *Tx) GetCampaignStats(_ context.Context, chainID model.ChainID) (*model.CampaignStats, error) {
	return get[model.CampaignStats](tx, model.TableCampaignStats, chainID.String())
}

func (tx *Tx) PutCampaignStats(_ context.Context, cs *model.CampaignStats) error {
	return put(tx, model.TableCampaignStats, cs.ChainID.String(), cs)
}

func (tx *Tx) GetDailyStats(_ context.Context, chainID model.ChainID, bucketStart int64) (*model.DailyStats, error) {
	return get[model.DailyStats](tx, model.TableDailyStats, model.BucketID(chainID, bucketStart))
}

func (tx *Tx) PutDailyStats(_ context.Context, ds *model.DailyStats) error {
	return put(tx, model.TableDailyStats, model.BucketID(ds.ChainID, ds.BucketStart), ds)
}

func (tx *Tx) GetHourlyStats(_ context.Context, chainID model.ChainID, bucketStart int64) (*model.HourlyStats, error) {
	return get[model.HourlyStats](tx, model.TableHourlyStats, model.BucketID(chainID, bucketStart))
}

func (tx *Tx) PutHourlyStats(_ context.Context, hs *model.HourlyStats) error {
	return put(tx, model.TableHourlyStats, model.BucketID(hs.ChainID, hs.BucketStart), hs)
}

func (tx *Tx) RestoreRaw(_ context.Context, table, key string, data json.RawMessage) error {
	if _, ok := knownTables[table]; !ok {
		return fmt.Errorf("%w: %s", store.ErrUnknownTable, table)
	}
	tx.write(table, key, pendingWrite{data: append([]byte(nil), data...)})
	return nil
}

func (tx *Tx) DeleteRaw(_ context.Context, table, key string) error {
	if _, ok := knownTables[table]; !ok {
		return fmt.Errorf("%w: %s", store.ErrUnknownTable, table)
	}
	tx.write(table, key, pendingWrite{deleted: true})
	return nil
}

func (tx *Tx) HasApplied(_ context.Context, chainID model.ChainID, txHash string, logIndex int64) (bool, error) {
	id := model.EventID(chainID, txHash, logIndex)
	for _, op := range tx.ledgerOps {
		if op.put != nil && model.EventID(op.put.ChainID, op.put.TxHash, op.put.LogIndex) == id {
			return true, nil
		}
		if op.deleteKey == id {
			return false, nil
		}
	}
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	_, ok := tx.s.ledger[id]
	return ok, nil
}

func (tx *Tx) MarkApplied(_ context.Context, ev *store.AppliedEvent) error {
	cp := *ev
	cp.Snapshot = append([]store.SnapshotEntry(nil), ev.Snapshot...)
	tx.ledgerOps = append(tx.ledgerOps, ledgerOp{put: &cp})
	return nil
}

func (tx *Tx) ListAppliedFrom(_ context.Context, chainID model.ChainID, fromBlock int64) ([]store.AppliedEvent, error) {
	tx.s.mu.RLock()
	var out []store.AppliedEvent
	for _, ev := range tx.s.ledger {
		if ev.ChainID == chainID && ev.BlockNumber >= fromBlock {
			out = append(out, ev)
		}
	}
	tx.s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.BlockNumber != b.BlockNumber {
			return a.BlockNumber > b.BlockNumber
		}
		if a.TxIndex != b.TxIndex {
			return a.TxIndex > b.TxIndex
		}
		return a.LogIndex > b.LogIndex
	})
	return out, nil
}

func (tx *Tx) DeleteAppliedFrom(ctx context.Context, chainID model.ChainID, fromBlock int64) (int64, error) {
	evs, err := tx.ListAppliedFrom(ctx, chainID, fromBlock)
	if err != nil {
		return 0, err
	}
	for _, ev := range evs {
		tx.ledgerOps = append(tx.ledgerOps, ledgerOp{
			deleteKey: model.EventID(ev.ChainID, ev.TxHash, ev.LogIndex),
		})
	}
	return int64(len(evs)), nil
}
