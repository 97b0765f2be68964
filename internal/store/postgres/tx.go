package postgres

import (
	"database/sql"
)

// Tx implements store.Tx over one *sql.Tx. The engine is the single writer
// per chain, so reads inside the transaction use FOR UPDATE only to fence
// against the reconciliation reader and operator tooling.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) Commit() error {
	return t.tx.Commit()
}

func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}
