package editor

import (
	"errors"
	"log/slog"
	"sync"
)

// OpenDocuments tracks the bindings currently open, in the order they were opened. It closes
// editors on behalf of the document tree before documents are removed.
type OpenDocuments struct {
	mu       sync.Mutex
	log      *slog.Logger
	order    []string
	bindings map[string]*Binding
	current  string
}

func NewOpenDocuments(logger *slog.Logger) *OpenDocuments {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenDocuments{log: logger, bindings: map[string]*Binding{}}
}

// Add registers b and makes it current. Adding an id that is already open replaces the old
// binding.
func (o *OpenDocuments) Add(b *Binding) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.bindings[b.ID()]; !ok {
		o.order = append(o.order, b.ID())
	}
	o.bindings[b.ID()] = b
	o.current = b.ID()
}

func (o *OpenDocuments) Get(id string) (*Binding, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	b, ok := o.bindings[id]
	return b, ok
}

// IDs lists open document ids in open order.
func (o *OpenDocuments) IDs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.order...)
}

func (o *OpenDocuments) Current() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

func (o *OpenDocuments) SetCurrent(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.bindings[id]; ok {
		o.current = id
	}
}

// CloseDocuments closes the bindings for ids, saving drafts of unsaved edits. Ids that are not
// open are ignored.
func (o *OpenDocuments) CloseDocuments(ids []string) {
	for _, id := range ids {
		if err := o.Close(id); err != nil {
			o.log.Warn("close document", "doc", id, "error", err)
		}
	}
}

func (o *OpenDocuments) Close(id string) error {
	o.mu.Lock()
	b, ok := o.bindings[id]
	if ok {
		delete(o.bindings, id)
		o.order = without(o.order, id)
		if o.current == id {
			o.current = ""
			if n := len(o.order); n > 0 {
				o.current = o.order[n-1]
			}
		}
	}
	o.mu.Unlock()
	if !ok {
		return nil
	}
	return b.Close()
}

// CloseAll closes every binding and returns the joined errors.
func (o *OpenDocuments) CloseAll() error {
	var errs []error
	for _, id := range o.IDs() {
		if err := o.Close(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Modified lists open documents with unsaved edits.
func (o *OpenDocuments) Modified() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []string
	for _, id := range o.order {
		if o.bindings[id].Modified() {
			out = append(out, id)
		}
	}
	return out
}

func without(xs []string, id string) []string {
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
