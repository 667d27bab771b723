package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"tradeledger/internal/core/apperror"
)

// PostgreSQL error codes the ledger reacts to.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgQueryCanceled        = "57014"
)

// MapError turns driver errors into application errors. Errors that are already
// application errors, and nil, pass through unchanged.
func MapError(err error) error {
	if err == nil || apperror.IsAppError(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
			return apperror.NewTransient("database unavailable", err)
		}
		return err
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		return apperror.NewConflict("record already exists").
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	case pgForeignKeyViolation:
		return apperror.NewValidation("referenced record does not exist").
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	case pgCheckViolation:
		return apperror.NewValidation("value violates a ledger constraint").
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable, pgQueryCanceled:
		return apperror.NewTransient("database contention", err)
	default:
		return err
	}
}
