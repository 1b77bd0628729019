package main

import (
	"errors"
	"fmt"

	"github.com/openmined/metaguard/internal/meta"
	"github.com/openmined/metaguard/internal/metastore"
	"github.com/openmined/metaguard/internal/utils"
)

const (
	exitSuccess         = 0
	exitFailure         = 1
	exitInvalidArgument = 40
	exitUsage           = 42
	exitNotFound        = 44
	exitBadState        = 46
)

// exitError carries an explicit exit status out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func usageError(format string, args ...any) error {
	return &exitError{code: exitUsage, err: fmt.Errorf(format, args...)}
}

func badState(format string, args ...any) error {
	return &exitError{code: exitBadState, err: fmt.Errorf(format, args...)}
}

// exitCode maps an error returned by a command onto the process exit status.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}

	var ve *utils.ValidationError
	switch {
	case errors.Is(err, meta.ErrUsage):
		return exitUsage
	case errors.Is(err, meta.ErrNotFound), errors.Is(err, meta.ErrStoreNotFound):
		return exitNotFound
	case errors.Is(err, meta.ErrBadState), errors.Is(err, metastore.ErrStoreLocked):
		return exitBadState
	case errors.Is(err, meta.ErrInvalidArgument),
		errors.Is(err, metastore.ErrUnsupportedScheme),
		errors.Is(err, metastore.ErrInvalidTable),
		errors.As(err, &ve):
		return exitInvalidArgument
	default:
		return exitFailure
	}
}
