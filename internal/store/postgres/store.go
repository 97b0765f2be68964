package postgres

import (
	"context"
	"fmt"

	"github.com/emperorhan/prediction-indexer/internal/store"
)

// Store adapts DB to the store.Store interface.
type Store struct {
	db *DB
}

func NewStore(db *DB) *Store {
	return &Store{db: db}
}

func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &Tx{tx: sqlTx}, nil
}
