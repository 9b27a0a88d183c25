package store

import (
	"fmt"

	"appletree/internal/backend"
)

var (
	ErrNotFound  = backend.ErrNotFound
	ErrCorrupt   = backend.ErrCorrupt
	ErrIO        = backend.ErrIO
	ErrInvalidID = backend.ErrInvalidID
)

// ioFail logs an I/O failure at the store boundary and returns it as an ErrIO-kind error.
func (s Store) ioFail(op string, err error, args ...any) error {
	s.log().Error(op, append(args, "error", err)...)
	return fmt.Errorf("%s: %w: %w", op, ErrIO, err)
}
