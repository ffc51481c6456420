package services

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/laureon/slm-backend/internal/pkg/apperr"
)

// Postgres SQLSTATE classes for constraint violations that mean a concurrent
// writer beat us despite validation having passed.
const (
	pgUniqueViolation = "23505"
	pgFKViolation     = "23503"
	pgCheckViolation  = "23514"
)

// classifyConstraint turns database-level unique/check/FK violations into
// StorageConstraintError so callers can re-validate and retry once. Anything
// else passes through untouched.
func classifyConstraint(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgFKViolation, pgCheckViolation:
			return &apperr.StorageConstraintError{Constraint: pgErr.ConstraintName, Err: err}
		}
	}
	return err
}

// runWrite runs fn in a transaction. A constraint violation means a
// concurrent writer invalidated our in-transaction validation after it
// passed, so the whole transaction reruns once against the new state; the
// rerun either fails validation cleanly or succeeds. A second violation
// surfaces as StorageConstraintError.
func runWrite(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	err := classifyConstraint(db.Transaction(fn))
	if apperr.IsStorageConstraint(err) {
		err = classifyConstraint(db.Transaction(fn))
	}
	return err
}
