package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

func conflict(format string, args ...any) error {
	return &ConflictError{Msg: fmt.Sprintf(format, args...)}
}

// PersistenceError wraps a failed database call.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// dbErr classifies err from a gorm call. Typed service errors pass through
// untouched so they survive a db.Transaction callback.
func dbErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		verr *ValidationError
		nerr *NotFoundError
		cerr *ConflictError
		perr *PersistenceError
	)
	if errors.As(err, &verr) || errors.As(err, &nerr) || errors.As(err, &cerr) || errors.As(err, &perr) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// lookupErr is dbErr for single-record reads.
func lookupErr(resource string, id uuid.UUID, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &NotFoundError{Resource: resource, ID: id.String()}
	}
	return dbErr("load "+resource, err)
}

// saveVersioned applies values to the row only if it still carries the
// expected version, bumping the version on success.
func saveVersioned(tx *gorm.DB, model any, id uuid.UUID, version int, values map[string]any) error {
	values["version"] = gorm.Expr("version + 1")
	res := tx.Model(model).Where("id = ? AND version = ?", id, version).Updates(values)
	if res.Error != nil {
		return dbErr("update", res.Error)
	}
	if res.RowsAffected == 0 {
		return conflict("record %s was modified by someone else (version %d is stale)", id, version)
	}
	return nil
}
