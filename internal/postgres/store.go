// Package postgres is the domain.Store backed by PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-shop-consistency/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// SQLSTATE codes the store translates into domain errors.
const (
	codeSerialization  = "40001"
	codeDeadlock       = "40P01"
	codeLockNotAvail   = "55P03"
	codeUnique         = "23505"
	codeForeignKey     = "23503"
	codeCheck          = "23514"
	codeInvalidText    = "22P02"
	codeNumericRange   = "22003"
	hierarchyFKName    = "products_hierarchy_fkey"
	defaultLockTimeout = 5 * time.Second
)

type Store struct {
	DB *pgxpool.Pool
	// TxTimeout bounds each transaction; 0 leaves it to the caller's ctx.
	TxTimeout time.Duration
	// LockTimeout is set per transaction so waiting on a row lock fails fast
	// instead of piling up. 0 means defaultLockTimeout.
	LockTimeout time.Duration
}

var _ domain.Store = (*Store)(nil)

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if s.TxTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.TxTimeout)
		defer cancel()
	}
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return abortErr(ctx, fmt.Errorf("begin: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lt := s.LockTimeout
	if lt <= 0 {
		lt = defaultLockTimeout
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", lt.Milliseconds())); err != nil {
		return abortErr(ctx, err)
	}

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return abortErr(ctx, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return abortErr(ctx, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// abortErr marks errors that mean the database gave up on the transaction.
func abortErr(ctx context.Context, err error) error {
	if errors.Is(err, domain.ErrConcurrencyConflict) {
		return err
	}
	switch pgCode(err) {
	case codeSerialization, codeDeadlock, codeLockNotAvail:
		return fmt.Errorf("%w: %w", domain.ErrConcurrencyConflict, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return fmt.Errorf("%w: %w", domain.ErrConcurrencyConflict, err)
	}
	return err
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func pgConstraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

// writeErr maps constraint violations of an INSERT or UPDATE.
func writeErr(err error) error {
	switch pgCode(err) {
	case codeUnique:
		return fmt.Errorf("%w: %w", domain.ErrDuplicate, err)
	case codeForeignKey:
		if pgConstraint(err) == hierarchyFKName {
			return fmt.Errorf("%w: %w", domain.ErrHierarchyMismatch, err)
		}
		return fmt.Errorf("%w: %w", domain.ErrParentNotFound, err)
	case codeCheck, codeNumericRange:
		return &domain.ValidationError{Field: pgConstraint(err), Reason: "violates a storage constraint"}
	}
	return err
}

// readErr turns "no row" and malformed keys into ErrNotFound.
func readErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) || pgCode(err) == codeInvalidText {
		return domain.ErrNotFound
	}
	return err
}

func lockClause(lock domain.LockMode, of string) string {
	suffix := ""
	if of != "" {
		suffix = " OF " + of
	}
	switch lock {
	case domain.ForShare:
		return " FOR SHARE" + suffix
	case domain.ForUpdate:
		return " FOR UPDATE" + suffix
	}
	return ""
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("numeric %q: %w", s, err)
	}
	return d, nil
}

// pgTx implements domain.Tx on top of one pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

var _ domain.Tx = (*pgTx)(nil)

// affected reports ErrNotFound when a keyed write touched no row.
func affected(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
