package store

import (
	"errors"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrValidation marks input rejected before it reached the database.
	ErrValidation = errors.New("validation error")
	// ErrStorage marks a failure of the underlying database.
	ErrStorage = errors.New("storage error")
	// ErrNotFound is returned when a memory id does not exist.
	ErrNotFound = errors.New("memory not found")
)

func validationError(msg string, opts ...goerr.Option) error {
	return goerr.Wrap(ErrValidation, msg, opts...)
}

// storageError keeps both ErrStorage and the driver error in the chain.
func storageError(err error, msg string, opts ...goerr.Option) error {
	return goerr.Wrap(fmt.Errorf("%w: %w", ErrStorage, err), msg, opts...)
}
