package entity

import (
	"errors"
	"fmt"
)

// ErrEmptyPayload is returned when an entity is constructed from an
// empty mapping, or inserted with no fields at all.
var ErrEmptyPayload = errors.New("entity payload is empty")

// PersistenceError wraps a failure reported by the executor during a
// write or fetch. The executor's own message is preserved through
// Unwrap and the error text.
type PersistenceError struct {
	Op    string
	Table string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// UsageError reports a malformed call: an unknown finder or relation
// name, or a wrong argument count. It names the method and the entity
// type so the call site is identifiable from the message alone.
type UsageError struct {
	Method string
	Type   string
	Reason string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("%s on %s: %s", e.Method, e.Type, e.Reason)
}

func persistErr(op, table string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Table: table, Err: err}
}

func usageErr(method, typeName, format string, args ...any) *UsageError {
	return &UsageError{Method: method, Type: typeName, Reason: fmt.Sprintf(format, args...)}
}
