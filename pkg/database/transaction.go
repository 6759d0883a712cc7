package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
)

type txKeyType struct{}

var txKey txKeyType

// Tx is the transactional counterpart of DB. A Tx stored in the context is
// reused by nested calls, so a multi-repository write sequence shares one
// transaction without every call site knowing about it.
type Tx interface {
	Execer
	IsOpen() bool
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type txn struct {
	*sqlx.Tx
	logger ectologger.Logger
	closed bool
}

// GetTx returns the open transaction carried by ctx, starting a new one when
// there is none. The returned context carries the transaction for nested
// calls.
func GetTx(ctx context.Context, logger ectologger.Logger, db DB, opts *sql.TxOptions) (context.Context, Tx, error) {
	if tx := openTx(ctx); tx != nil {
		return ctx, tx, nil
	}

	sqlxTx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		logger.WithContext(ctx).WithError(err).Error("Failed to begin transaction")
		return ctx, nil, fmt.Errorf("begin transaction: %w", err)
	}

	tx := &txn{Tx: sqlxTx, logger: logger}
	return context.WithValue(ctx, txKey, Tx(tx)), tx, nil
}

func (t *txn) IsOpen() bool {
	return !t.closed
}

func (t *txn) Commit(ctx context.Context) error {
	if t.closed {
		return nil
	}
	if err := t.Tx.Commit(); err != nil {
		t.logger.WithContext(ctx).WithError(err).Error("Failed to commit transaction")
		return fmt.Errorf("commit transaction: %w", err)
	}
	t.closed = true
	return nil
}

func (t *txn) Rollback(ctx context.Context) error {
	if t.closed {
		return nil
	}
	if err := t.Tx.Rollback(); err != nil {
		t.logger.WithContext(ctx).WithError(err).Error("Failed to roll back transaction")
		return fmt.Errorf("rollback transaction: %w", err)
	}
	t.closed = true
	return nil
}
