package store

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// Gateway is the transactional executor every multi-statement write goes through.
type Gateway struct {
	db *sqlx.DB
}

func NewGateway(db *sqlx.DB) *Gateway {
	return &Gateway{db: db}
}

// WithTx runs fn inside one transaction. The transaction commits when fn returns nil
// and rolls back on error or panic; the panic is re-raised after rollback.
func (g *Gateway) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return withTx(ctx, g.db, fn)
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	tx, err := db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	err = fn(tx)

	return err
}
