// Package apperr holds the error taxonomy shared by the store and its surfaces.
package apperr

import "errors"

var (
	// ErrInvalidArgument reports a nil record, a nil record list or a malformed kind.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound reports an identifier lookup with no match.
	ErrNotFound = errors.New("not found")
	// ErrCorruptData reports collection content that is not a JSON array of records.
	ErrCorruptData = errors.New("corrupt data")
	// ErrIO reports a directory or file operation failure.
	ErrIO = errors.New("io error")
)
