package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/emperorhan/prediction-indexer/internal/domain/model"
)

// Reader-side aggregate queries over committed state only, mirroring the
// postgres reader used by reconciliation.

func (s *Store) scanCommitted(table string, fn func(key string, data []byte) error) error {
	s.mu.RLock()
	snapshot := make(map[string][]byte, len(s.tables[table]))
	for k, v := range s.tables[table] {
		snapshot[k] = v
	}
	s.mu.RUnlock()
	for k, v := range snapshot {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListMarkets(_ context.Context, chainID model.ChainID, fn func(*model.Market) error) error {
	return s.scanCommitted(model.TableMarkets, func(key string, data []byte) error {
		var m model.Market
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("memory: unmarshal market %s: %w", key, err)
		}
		if m.ChainID != chainID {
			return nil
		}
		return fn(&m)
	})
}

func (s *Store) SumMarketVolume(ctx context.Context, chainID model.ChainID) (int64, error) {
	var sum int64
	err := s.ListMarkets(ctx, chainID, func(m *model.Market) error {
		sum += m.TotalVolume
		return nil
	})
	return sum, err
}

func (s *Store) SumMarketTvl(ctx context.Context, chainID model.ChainID) (int64, error) {
	var sum int64
	err := s.ListMarkets(ctx, chainID, func(m *model.Market) error {
		sum += m.CurrentTvl
		return nil
	})
	return sum, err
}

func (s *Store) CountMarketsByType(ctx context.Context, chainID model.ChainID) (int64, int64, error) {
	var amm, pari int64
	err := s.ListMarkets(ctx, chainID, func(m *model.Market) error {
		switch m.MarketType {
		case model.MarketTypeAMM:
			amm++
		case model.MarketTypePari:
			pari++
		}
		return nil
	})
	return amm, pari, err
}

func (s *Store) ReadPlatformStats(_ context.Context, chainID model.ChainID) (*model.PlatformStats, error) {
	s.mu.RLock()
	data, ok := s.tables[model.TablePlatformStats][chainID.String()]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var ps model.PlatformStats
	if err := json.Unmarshal(data, &ps); err != nil {
		return nil, fmt.Errorf("memory: unmarshal platform stats: %w", err)
	}
	return &ps, nil
}

func (s *Store) ListUsers(_ context.Context, chainID model.ChainID, fn func(*model.User) error) error {
	return s.scanCommitted(model.TableUsers, func(key string, data []byte) error {
		var u model.User
		if err := json.Unmarshal(data, &u); err != nil {
			return fmt.Errorf("memory: unmarshal user %s: %w", key, err)
		}
		if u.ChainID != chainID {
			return nil
		}
		return fn(&u)
	})
}

func (s *Store) MarketTraderCounts(_ context.Context, chainID model.ChainID) (map[string]int64, error) {
	counts := make(map[string]int64)
	err := s.scanCommitted(model.TableMarketUsers, func(key string, data []byte) error {
		var mu model.MarketUser
		if err := json.Unmarshal(data, &mu); err != nil {
			return fmt.Errorf("memory: unmarshal market user %s: %w", key, err)
		}
		if mu.ChainID == chainID {
			counts[mu.MarketAddress]++
		}
		return nil
	})
	return counts, err
}
