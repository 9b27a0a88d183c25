package cli

import "fmt"

type notFoundError struct {
	kind string
	id   string
}

func (e notFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.kind, e.id)
}

func errNotFound(kind, id string) error {
	return notFoundError{kind: kind, id: id}
}

type unknownTypeError struct {
	docType string
	known   []string
}

func (e unknownTypeError) Error() string {
	return fmt.Sprintf("unknown document type %q (want one of %v)", e.docType, e.known)
}
