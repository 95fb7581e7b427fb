package transform

import "errors"

var (
	// ErrUnknownOp is returned for an operation outside Rename, Cast and Join.
	ErrUnknownOp = errors.New("unknown transform operation")

	// ErrUnknownKind is returned for a cast target other than string, int64 or float64.
	ErrUnknownKind = errors.New("unknown cast type")

	// ErrMissingJoinKey is returned when a join key column is absent from either side.
	ErrMissingJoinKey = errors.New("join key column missing")
)
