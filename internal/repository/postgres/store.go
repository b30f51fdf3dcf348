// internal/repository/postgres/store.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"bankcards/internal/repository"
	"bankcards/internal/util"
	"bankcards/pkg/db"
)

// Store implements repository.Store on PostgreSQL.
type Store struct {
	dbBeginner db.DBTxBeginner
	beginTx    db.BeginTxFunc
	commitTx   db.CommitTxFunc
	rollbackTx db.RollbackTxFunc
}

// NewStore creates a Store using the pkg/db transaction helpers.
func NewStore(conn db.DBTxBeginner) *Store {
	return &Store{
		dbBeginner: conn,
		beginTx:    db.BeginTx,
		commitTx:   db.CommitTx,
		rollbackTx: db.RollbackTx,
	}
}

func (s *Store) Read(ctx context.Context, fn func(tx repository.Tx) error) error {
	return s.run(ctx, db.ReadOnly, fn)
}

func (s *Store) Write(ctx context.Context, fn func(tx repository.Tx) error) error {
	return s.run(ctx, db.ReadCommitted, fn)
}

func (s *Store) run(ctx context.Context, opts *sql.TxOptions, fn func(tx repository.Tx) error) error {
	tx, err := s.beginTx(ctx, s.dbBeginner, opts)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %w", util.ErrPersistence, err)
	}
	defer s.rollbackTx(tx)

	if err := fn(NewTx(tx)); err != nil {
		return err
	}

	if err := s.commitTx(tx); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %w", util.ErrPersistence, err)
	}
	return nil
}

// txRepos binds every repository to one executor.
type txRepos struct {
	q repository.DBExecutor
}

// NewTx exposes the repositories over q, which may be a *sqlx.DB or a *sqlx.Tx.
func NewTx(q repository.DBExecutor) repository.Tx {
	return &txRepos{q: q}
}

func (t *txRepos) Users() repository.UserRepository { return &UserRepository{q: t.q} }

func (t *txRepos) Cards() repository.CardRepository { return &CardRepository{q: t.q} }

func (t *txRepos) Transfers() repository.TransferRepository { return &TransferRepository{q: t.q} }

func (t *txRepos) BlockRequests() repository.BlockRequestRepository {
	return &BlockRequestRepository{q: t.q}
}

const (
	foreignKeyViolation = "23503"
	uniqueViolation     = "23505"
)

// mapError translates driver errors into the application error taxonomy.
func mapError(err error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", msg, util.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%s: %w: %s", msg, util.ErrConflict, pqErr.Constraint)
		case foreignKeyViolation:
			return fmt.Errorf("%s: %w: still referenced by %s", msg, util.ErrInvalidState, pqErr.Constraint)
		}
	}
	return fmt.Errorf("%s: %w: %w", msg, util.ErrPersistence, err)
}

// expectOneRow turns a zero rows-affected result into ErrNotFound.
func expectOneRow(result sql.Result, format string, args ...interface{}) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return mapError(err, format, args...)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), util.ErrNotFound)
	}
	return nil
}

// conditions collects WHERE clauses written with '?' placeholders.
type conditions struct {
	clauses []string
	args    []interface{}
}

func (c *conditions) add(clause string, args ...interface{}) {
	c.clauses = append(c.clauses, clause)
	c.args = append(c.args, args...)
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// rebind converts '?' placeholders to PostgreSQL's $n form.
func rebind(query string) string {
	return sqlx.Rebind(sqlx.DOLLAR, query)
}
