package database

import (
	"context"
	"database/sql"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
)

// Execer is the statement surface shared by DB and Tx. Repositories resolve
// one per call so they transparently join an ambient transaction.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
}

// FromContext returns the open transaction carried by ctx, or db when there
// is none.
func FromContext(ctx context.Context, db DB) Execer {
	if tx := openTx(ctx); tx != nil {
		return tx
	}
	return db
}

func openTx(ctx context.Context) Tx {
	tx, ok := ctx.Value(txKey).(Tx)
	if !ok || tx == nil || !tx.IsOpen() {
		return nil
	}
	return tx
}

// TxRunner runs a function inside a transaction boundary.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

func (db *DatabaseInstance) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return RunInTx(ctx, db.logger, db, fn)
}

// RunInTx runs fn inside a transaction. When ctx already carries an open
// transaction, fn joins it and commit/rollback stays with the outer owner.
func RunInTx(ctx context.Context, logger ectologger.Logger, db DB, fn func(ctx context.Context) error) error {
	owned := openTx(ctx) == nil

	ctx, tx, err := GetTx(ctx, logger, db, nil)
	if err != nil {
		return err
	}

	if err := fn(ctx); err != nil {
		if owned {
			_ = tx.Rollback(ctx)
		}
		return err
	}

	if owned {
		return tx.Commit(ctx)
	}
	return nil
}
