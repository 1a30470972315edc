// Package database implements the Postgres-backed store behind the payment
// ingestion service and the reduction workflow. Every ledger-mutating method
// runs as a single transaction that locks the target notice row with
// SELECT ... FOR UPDATE, so concurrent writers against the same notice are
// serialized and each invariant check sees the latest committed state.
package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jamilsaadou/naneye-sub000/internal/config/connections/postgres"
)

type Store struct {
	pg *postgres.Postgres
}

func NewStore(pg *postgres.Postgres) *Store {
	return &Store{pg: pg}
}

// withTx runs fn inside one transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pg.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const uniqueViolation = "23505"

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
