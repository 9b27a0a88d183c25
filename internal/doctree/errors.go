package doctree

import (
	"errors"
	"fmt"
)

var (
	ErrNotReady    = errors.New("document tree not ready")
	ErrInvalidTree = errors.New("invalid tree")
	ErrCancelled   = errors.New("cancelled")
	ErrNotFound    = errors.New("document not found")
)

// InvalidTreeError reports a structural violation (duplicate id, empty id, cycle).
type InvalidTreeError struct {
	ID     string
	Reason string
}

func (e InvalidTreeError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("invalid tree: %s", e.Reason)
	}
	return fmt.Sprintf("invalid tree: %s: %s", e.ID, e.Reason)
}

func (e InvalidTreeError) Unwrap() error { return ErrInvalidTree }

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}
