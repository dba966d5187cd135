package sova

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is to test for them; most are returned wrapped
// in one of the typed errors below with extra context.
var (
	// ErrNotFound is returned by indexed reads when the key is absent.
	ErrNotFound = errors.New("key not found")

	// ErrConflict is returned by Txn.Commit when an overlapping write has been
	// committed by another transaction since this one began.
	ErrConflict = errors.New("transaction conflict")

	// ErrInvalidState is returned when an operation is attempted on a terminal
	// transaction, a closed view, or an environment in the wrong state.
	ErrInvalidState = errors.New("invalid state")
)

// NotFoundError reports an absent key on an indexed read.
type NotFoundError struct {
	Database string
	Key      any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Database, e.Key, ErrNotFound)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func notFoundErr(db string, key any) error {
	return &NotFoundError{Database: db, Key: key}
}

// CodecError reports malformed bytes encountered while decoding a key or
// a value. The byte run is included in the message, abbreviated when long.
type CodecError struct {
	Data []byte
	Msg  string
	Err  error
}

func codecErrf(data []byte, err error, format string, args ...any) error {
	return &CodecError{Data: data, Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *CodecError) Unwrap() error { return e.Err }

func (e *CodecError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x", e.Msg, e.Err, n, e.Data)
		}
		return fmt.Sprintf("%s: (%d) %x", e.Msg, n, e.Data)
	}
	p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: (%d) %x...%x", e.Msg, e.Err, n, p, s)
	}
	return fmt.Sprintf("%s: (%d) %x...%x", e.Msg, n, p, s)
}

// TypeMismatchError reports a value whose Go type does not match the declared
// index variant it is being encoded with.
type TypeMismatchError struct {
	Field string
	Kind  IndexKind
	Value any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: cannot encode %T as %v", e.Field, e.Value, e.Kind)
}

func typeMismatchErr(field string, kind IndexKind, value any) error {
	return &TypeMismatchError{Field: field, Kind: kind, Value: value}
}

// ArityError reports a key or value tuple whose length does not match the
// number of parts declared by the schema.
type ArityError struct {
	Got, Want int
	IsKey     bool
}

func (e *ArityError) Error() string {
	what := "value"
	if e.IsKey {
		what = "key"
	}
	return fmt.Sprintf("%s tuple has %d parts, schema declares %d", what, e.Got, e.Want)
}

// ConflictError reports an optimistic commit that lost the race to another
// transaction. Key holds the first conflicting encoded key.
type ConflictError struct {
	Key []byte
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%v: overlapping committed write on %x", ErrConflict, e.Key)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// InvalidStateError reports an operation attempted in a state that does not
// permit it (terminal transaction, closed view, open environment, etc.).
type InvalidStateError struct {
	Op    string
	State string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%v: %s while %s", ErrInvalidState, e.Op, e.State)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

func invalidStateErr(op, state string) error {
	return &InvalidStateError{Op: op, State: state}
}

// EngineError wraps an opaque failure surfaced by the underlying store.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine: %s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

func engineErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &EngineError{Op: op, Err: err}
}
