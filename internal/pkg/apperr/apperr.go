package apperr

import (
	"errors"
	"fmt"
)

// ValidationError reports a recoverable input problem. Field is empty for
// form-level failures.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func Validation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func Validationf(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IntegrityBlockedError refuses a destructive operation on an in-use entity.
// Nothing has been deleted or changed when it is returned.
type IntegrityBlockedError struct {
	Entity string
	Name   string
	Reason string
}

func (e *IntegrityBlockedError) Error() string {
	return fmt.Sprintf("cannot modify %s %q: %s", e.Entity, e.Name, e.Reason)
}

func IntegrityBlocked(entity, name, reason string) *IntegrityBlockedError {
	return &IntegrityBlockedError{Entity: entity, Name: name, Reason: reason}
}

// NotFoundError reports a missing entity id.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func NotFound(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// StorageConstraintError marks a uniqueness or exclusivity violation raised
// by the database after application validation had already passed, i.e. a
// lost race against a concurrent writer.
type StorageConstraintError struct {
	Constraint string
	Err        error
}

func (e *StorageConstraintError) Error() string {
	return fmt.Sprintf("storage constraint %s violated: %v", e.Constraint, e.Err)
}

func (e *StorageConstraintError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsIntegrityBlocked(err error) bool {
	var ie *IntegrityBlockedError
	return errors.As(err, &ie)
}

func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

func IsStorageConstraint(err error) bool {
	var se *StorageConstraintError
	return errors.As(err, &se)
}
