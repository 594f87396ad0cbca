package jsondb

import "github.com/starford/jsondb/internal/apperr"

// Errors returned by the store. Match them with errors.Is.
var (
	ErrInvalidArgument = apperr.ErrInvalidArgument
	ErrNotFound        = apperr.ErrNotFound
	ErrCorruptData     = apperr.ErrCorruptData
	ErrIO              = apperr.ErrIO
)
