package database

import (
	"errors"
	"fmt"
)

var (
	ErrSessionClosed = errors.New("session is closed")
	ErrNoScope       = errors.New("no session scope in context")
)

// PersistenceError is returned when the storage target cannot be reached or
// written: a malformed target, a missing directory, a read-only file, or a
// failed statement.
type PersistenceError struct {
	Op     string
	Target string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s %s: %v", e.Op, e.Target, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// SchemaConflictError is returned by InitDB when a table already exists but
// its shape cannot hold rows written through the registered model.
type SchemaConflictError struct {
	Table  string
	Column string
	Reason string
}

func (e *SchemaConflictError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("schema conflict on table %q: %s", e.Table, e.Reason)
	}
	return fmt.Sprintf("schema conflict on table %q column %q: %s", e.Table, e.Column, e.Reason)
}

// ResolutionError is returned when a model the application requires has
// not been registered.
type ResolutionError struct {
	Name string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("model %q is not registered", e.Name)
}

func persistenceErr(op, target string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Target: target, Err: err}
}
