// Package editor binds an editable surface to a stored document: modified tracking, draft
// autosave, committed saves and image reconciliation.
package editor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"strings"

	"appletree/internal/backend"
)

// Surface is the editable content of one open document.
type Surface interface {
	Body() string
	SetBody(body string)
	ImageRefs() []string
	ResolveImage(ref string) ([]byte, error)
}

type State int

const (
	Clean State = iota
	Dirty
)

func (s State) String() string {
	if s == Dirty {
		return "dirty"
	}
	return "clean"
}

type Option func(*Binding)

func WithLogger(l *slog.Logger) Option {
	return func(b *Binding) {
		if l != nil {
			b.log = l
		}
	}
}

// WithOnStateChange is called whenever the binding switches between Clean and Dirty.
func WithOnStateChange(fn func(State)) Option {
	return func(b *Binding) { b.onState = fn }
}

// Binding ties one surface to one document of a store.
type Binding struct {
	docs    backend.Documents
	id      string
	surface Surface
	kind    Kind
	log     *slog.Logger
	onState func(State)
	state   State
}

func Bind(docs backend.Documents, docID string, surface Surface, kind Kind, opts ...Option) *Binding {
	b := &Binding{
		docs:    docs,
		id:      docID,
		surface: surface,
		kind:    kind,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Binding) ID() string       { return b.id }
func (b *Binding) Kind() Kind       { return b.kind }
func (b *Binding) Surface() Surface { return b.surface }
func (b *Binding) State() State     { return b.state }
func (b *Binding) Modified() bool   { return b.state == Dirty }

func (b *Binding) setState(s State) {
	if b.state == s {
		return
	}
	b.state = s
	if b.onState != nil {
		b.onState(s)
	}
}

// Open loads the document into the surface. A pending draft wins over the committed body and
// leaves the binding Dirty.
func (b *Binding) Open() error {
	draft, ok, err := b.docs.DocumentBodyDraft(b.id)
	if err != nil {
		return err
	}
	if ok {
		b.surface.SetBody(draft)
		b.setState(Dirty)
		return nil
	}
	body, err := b.docs.DocumentBody(b.id)
	if err != nil && !errors.Is(err, backend.ErrNotFound) {
		return err
	}
	b.surface.SetBody(body)
	b.setState(Clean)
	return nil
}

// MarkEdited records a content change made on the surface.
func (b *Binding) MarkEdited() {
	b.setState(Dirty)
}

// Save commits the surface content.
//
// Resolvable image references are stored and rewritten to their local names; inline data
// images stay in the body. The body is committed with its draft dropped, then every stored image
// the saved body no longer references is deleted. On error nothing changes state.
func (b *Binding) Save() error {
	body := b.surface.Body()

	stored := map[string]bool{}
	names, err := b.docs.Images(b.id)
	if err != nil {
		return err
	}
	for _, n := range names {
		stored[n] = true
	}

	mapping := map[string]string{}
	for _, ref := range b.surface.ImageRefs() {
		if isInlineImage(ref) || stored[ref] {
			continue
		}
		data, err := b.surface.ResolveImage(ref)
		if err != nil {
			b.log.Warn("unresolvable image reference", "doc", b.id, "ref", ref, "error", err)
			continue
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			b.log.Warn("undecodable image", "doc", b.id, "ref", ref, "error", err)
			continue
		}
		name, err := b.docs.PutImage(b.id, ref, img)
		if err != nil {
			return fmt.Errorf("store image %s: %w", ref, err)
		}
		stored[name] = true
		if name != ref {
			mapping[ref] = name
		}
	}

	body, err = b.kind.RewriteImageRefs(body, mapping)
	if err != nil {
		return fmt.Errorf("rewrite image references: %w", err)
	}
	body = b.kind.Normalize(body)
	if err := b.docs.PutDocumentBody(b.id, body, true); err != nil {
		return err
	}

	var keep []string
	for _, ref := range b.kind.ImageRefs(body) {
		if stored[ref] {
			keep = append(keep, ref)
		}
	}
	if _, err := b.docs.ClearImagesOld(b.id, keep); err != nil {
		b.log.Warn("clear orphaned images", "doc", b.id, "error", err)
	}

	if body != b.surface.Body() {
		b.surface.SetBody(body)
	}
	b.setState(Clean)
	return nil
}

// SaveDraft writes the surface content to the draft channel only. The binding stays Dirty:
// the committed body still differs from what the user sees.
func (b *Binding) SaveDraft() error {
	return b.docs.PutDocumentBodyDraft(b.id, b.surface.Body())
}

// Close autosaves a draft when there are unsaved edits.
func (b *Binding) Close() error {
	if b.state != Dirty {
		return nil
	}
	return b.SaveDraft()
}

// Discard drops the draft and reloads the committed body.
func (b *Binding) Discard() error {
	if err := b.docs.DropDocumentBodyDraft(b.id); err != nil {
		return err
	}
	return b.Open()
}

func isInlineImage(ref string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(ref)), "data:image/")
}
