package meta

import "errors"

var (
	// ErrNotFound is returned when a path does not exist on the queried side.
	ErrNotFound = errors.New("not found")

	// ErrStoreNotFound is returned when the metadata store itself (its table
	// or database) does not exist.
	ErrStoreNotFound = errors.New("metadata store does not exist")

	// ErrInvalidArgument marks malformed input, usually a caller bug.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUsage marks a command invoked with options that cannot be honoured.
	ErrUsage = errors.New("usage error")

	// ErrBadState marks a bucket or store in a state other than required.
	ErrBadState = errors.New("bad state")
)
