// Package backend defines the document store contract and the registry of store
// implementations a project can select by name.
package backend

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"appletree/internal/model"
)

// Error kinds shared by every backend. Implementations wrap them with %w.
var (
	ErrNotFound  = errors.New("not found")
	ErrCorrupt   = errors.New("corrupt data")
	ErrIO        = errors.New("i/o failure")
	ErrInvalidID = errors.New("invalid id")
)

// Documents is the persistence contract for one project's documents.
//
// Failures are returned as errors and never panic; callers treat them as soft failures and
// leave their in-memory state unchanged.
type Documents interface {
	DocumentsTree() (model.Forest, error)
	SetDocumentsTree(tree model.Forest) error

	DocumentMeta(id string) (model.Meta, error)
	PutDocumentMeta(id string, meta model.Meta) error
	UpdateDocumentMeta(id string, partial model.Meta) error

	CreateDocument(id string) error
	HasDocument(id string) bool
	DocumentBody(id string) (string, error)
	PutDocumentBody(id string, body string, dropDraft bool) error

	DocumentBodyDraft(id string) (string, bool, error)
	PutDocumentBodyDraft(id string, body string) error
	DropDocumentBodyDraft(id string) error

	Images(id string) ([]string, error)
	Image(id string, name string) (image.Image, error)
	ImageRaw(id string, name string) ([]byte, error)
	PutImage(id string, ref string, img image.Image) (string, error)
	PutImageRaw(id string, name string, data []byte) error
	ClearImagesOld(id string, keep []string) ([]string, error)

	RemoveDocument(id string) error
}

// Factory opens the store rooted at a project directory.
type Factory func(projectDir string, logger *slog.Logger) (Documents, error)

// Registry maps backend names ("local", ...) to factories. It is built once at startup and
// handed to the project registry.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

func (r *Registry) Register(name string, f Factory) {
	name = strings.TrimSpace(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[strings.TrimSpace(name)]
	return ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Open instantiates the named backend for a project directory.
func (r *Registry) Open(name string, projectDir string, logger *slog.Logger) (Documents, error) {
	r.mu.RLock()
	f, ok := r.factories[strings.TrimSpace(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown backend: %q", name)
	}
	return f(projectDir, logger)
}
