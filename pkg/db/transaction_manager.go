// pkg/db/transaction_manager.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// TxController defines methods for controlling a database transaction.
// *sqlx.Tx implicitly implements this interface.
type TxController interface {
	Commit() error
	Rollback() error
}

// DBTxBeginner defines the interface for beginning transactions.
// *sqlx.DB implements this.
type DBTxBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// Function types let callers swap transaction handling in tests.
type (
	BeginTxFunc    func(ctx context.Context, dbConn DBTxBeginner, opts *sql.TxOptions) (*sqlx.Tx, error)
	CommitTxFunc   func(tx TxController) error
	RollbackTxFunc func(tx TxController)
)

// ReadCommitted is used for every balance-mutating unit of work.
var ReadCommitted = &sql.TxOptions{Isolation: sql.LevelReadCommitted}

// ReadOnly is used for listings and lookups.
var ReadOnly = &sql.TxOptions{Isolation: sql.LevelReadCommitted, ReadOnly: true}

// BeginTx starts a new database transaction.
func BeginTx(ctx context.Context, dbConn DBTxBeginner, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return dbConn.BeginTxx(ctx, opts)
}

// CommitTx commits the transaction.
func CommitTx(tx TxController) error {
	return tx.Commit()
}

// RollbackTx rolls back the transaction. It is safe to defer after a commit.
func RollbackTx(tx TxController) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		slog.Default().Error("Error rolling back transaction", "error", err)
	}
}
