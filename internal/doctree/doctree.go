// Package doctree holds the in-memory document tree of one project and reconciles it with the
// persisted forest of a backend.Documents store.
//
// Nodes live in an arena keyed by id with explicit parent and child links. UIs render from the
// tree and write back through its methods; nothing here knows about widgets.
package doctree

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"appletree/internal/backend"
	"appletree/internal/model"
)

type State int

const (
	NotReady State = iota
	Loading
	Ready
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "not-ready"
	}
}

// IDGenerator returns a fresh, collision resistant document id.
type IDGenerator func() string

// Confirmer asks the user before destructive operations.
type Confirmer interface {
	Confirm(title, message, detail string) bool
}

// Closer closes any open editors bound to the given documents.
type Closer interface {
	CloseDocuments(ids []string)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(title, message, detail string) bool

func (f ConfirmFunc) Confirm(title, message, detail string) bool { return f(title, message, detail) }

// Node is a read-only view of one document in the tree.
type Node struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Tags     []string `json:"tags"`
	Parent   string   `json:"parent,omitempty"`
	Children []string `json:"children"`
}

type node struct {
	id       string
	name     string
	docType  string
	tags     []string
	parent   string
	children []string
}

func (n *node) view() Node {
	return Node{
		ID:       n.id,
		Name:     n.name,
		Type:     n.docType,
		Tags:     append([]string(nil), n.tags...),
		Parent:   n.parent,
		Children: append([]string(nil), n.children...),
	}
}

type Option func(*Tree)

func WithLogger(l *slog.Logger) Option {
	return func(t *Tree) {
		if l != nil {
			t.log = l
		}
	}
}

func WithIDGenerator(g IDGenerator) Option {
	return func(t *Tree) {
		if g != nil {
			t.newID = g
		}
	}
}

func WithCloser(c Closer) Option {
	return func(t *Tree) { t.closer = c }
}

func WithConfirmer(c Confirmer) Option {
	return func(t *Tree) { t.confirm = c }
}

// WithOnChange registers a hook fired after every structural mutation of a Ready tree.
func WithOnChange(fn func()) Option {
	return func(t *Tree) { t.onChange = fn }
}

type Tree struct {
	docs     backend.Documents
	log      *slog.Logger
	newID    IDGenerator
	closer   Closer
	confirm  Confirmer
	onChange func()
	now      func() time.Time

	state State
	nodes map[string]*node
	roots []string
}

func New(docs backend.Documents, opts ...Option) *Tree {
	t := &Tree{
		docs:  docs,
		log:   slog.Default(),
		newID: uuid.NewString,
		now:   time.Now,
		nodes: map[string]*node{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tree) State() State { return t.state }

// Docs returns the store backing the tree.
func (t *Tree) Docs() backend.Documents { return t.docs }

// Load replaces the in-memory tree with the persisted forest.
//
// A missing forest yields an empty Ready tree, as does a corrupt one (the store keeps a copy of
// the damaged file). Duplicate or empty ids fail with ErrInvalidTree and leave the tree NotReady
// so a later Save cannot overwrite the store.
func (t *Tree) Load() error {
	t.state = Loading
	t.nodes = map[string]*node{}
	t.roots = nil

	f, err := t.docs.DocumentsTree()
	if err != nil {
		if !errors.Is(err, backend.ErrCorrupt) {
			t.state = NotReady
			return err
		}
		t.log.Warn("documents tree is corrupt, starting empty", "error", err)
		f = model.Forest{}
	}
	if err := f.Validate(); err != nil {
		t.state = NotReady
		return InvalidTreeError{Reason: err.Error()}
	}
	var build func(parent string, xs model.Forest)
	build = func(parent string, xs model.Forest) {
		for _, e := range xs {
			t.insert(t.materialize(e.ID, e.Name, parent), -1)
			build(e.ID, e.Children)
		}
	}
	build("", f)
	t.state = Ready
	t.log.Debug("loaded documents tree", "count", len(t.nodes))
	return nil
}

// materialize builds a node, reading its metadata for type and tags.
func (t *Tree) materialize(id, name, parent string) *node {
	n := &node{id: id, name: name, parent: parent, docType: model.DefaultType}
	meta, err := t.docs.DocumentMeta(id)
	if err != nil {
		t.log.Warn("read document meta", "doc", id, "error", err)
		return n
	}
	n.docType = meta.Type()
	n.tags = meta.Tags()
	return n
}

// Save writes the current tree as the persisted forest. It is a no-op until the tree is Ready.
func (t *Tree) Save() (bool, error) {
	if t.state != Ready {
		return false, nil
	}
	if err := t.docs.SetDocumentsTree(t.Forest()); err != nil {
		return false, err
	}
	return true, nil
}

func (t *Tree) ready() error {
	if t.state != Ready {
		return ErrNotReady
	}
	return nil
}

func (t *Tree) changed() {
	if t.state == Ready && t.onChange != nil {
		t.onChange()
	}
}

// Forest returns the whole tree as a persisted forest, depth first.
func (t *Tree) Forest() model.Forest {
	return t.forestOf(t.roots)
}

func (t *Tree) forestOf(ids []string) model.Forest {
	out := make(model.Forest, 0, len(ids))
	for _, id := range ids {
		n := t.nodes[id]
		if n == nil {
			continue
		}
		out = append(out, model.Entry{ID: n.id, Name: n.name, Children: t.forestOf(n.children)})
	}
	return out
}

// Subtree returns the forest of rootID's children and the number of nodes in the subtree,
// the root included.
func (t *Tree) Subtree(rootID string) (model.Forest, int, error) {
	n := t.nodes[rootID]
	if n == nil {
		return nil, 0, notFound(rootID)
	}
	f := t.forestOf(n.children)
	return f, 1 + f.Count(), nil
}

func (t *Tree) Len() int { return len(t.nodes) }

func (t *Tree) Has(id string) bool {
	_, ok := t.nodes[id]
	return ok
}

func (t *Tree) Node(id string) (Node, bool) {
	n := t.nodes[id]
	if n == nil {
		return Node{}, false
	}
	return n.view(), true
}

func (t *Tree) Roots() []Node {
	return t.views(t.roots)
}

// Children lists the direct children of id, or the roots when id is empty.
func (t *Tree) Children(id string) []Node {
	if id == "" {
		return t.Roots()
	}
	n := t.nodes[id]
	if n == nil {
		return nil
	}
	return t.views(n.children)
}

func (t *Tree) views(ids []string) []Node {
	out := make([]Node, 0, len(ids))
	for _, id := range ids {
		if n := t.nodes[id]; n != nil {
			out = append(out, n.view())
		}
	}
	return out
}

// Walk visits every node depth first, pre-order.
func (t *Tree) Walk(fn func(n Node, depth int)) {
	var walk func(ids []string, depth int)
	walk = func(ids []string, depth int) {
		for _, id := range ids {
			n := t.nodes[id]
			if n == nil {
				continue
			}
			fn(n.view(), depth)
			walk(n.children, depth+1)
		}
	}
	walk(t.roots, 0)
}

// IDs returns rootID and all its descendants in pre-order. An empty rootID means the whole tree.
func (t *Tree) IDs(rootID string) []string {
	var out []string
	var walk func(ids []string)
	walk = func(ids []string) {
		for _, id := range ids {
			n := t.nodes[id]
			if n == nil {
				continue
			}
			out = append(out, id)
			walk(n.children)
		}
	}
	if rootID == "" {
		walk(t.roots)
	} else {
		walk([]string{rootID})
	}
	return out
}

// Path returns the names from the root down to id.
func (t *Tree) Path(id string) []string {
	var out []string
	for n := t.nodes[id]; n != nil; n = t.nodes[n.parent] {
		out = append([]string{n.name}, out...)
		if n.parent == "" {
			break
		}
	}
	return out
}

// insert links n under its parent (or at the roots) at index; index < 0 appends.
func (t *Tree) insert(n *node, index int) {
	t.nodes[n.id] = n
	if n.parent == "" {
		t.roots = insertAt(t.roots, n.id, index)
		return
	}
	p := t.nodes[n.parent]
	p.children = insertAt(p.children, n.id, index)
}

// detach unlinks id from its parent and from the arena.
func (t *Tree) detach(id string) {
	n := t.nodes[id]
	if n == nil {
		return
	}
	t.unlink(n)
	delete(t.nodes, id)
}

func (t *Tree) unlink(n *node) {
	if n.parent == "" {
		t.roots = without(t.roots, n.id)
		return
	}
	if p := t.nodes[n.parent]; p != nil {
		p.children = without(p.children, n.id)
	}
}

func insertAt(xs []string, id string, index int) []string {
	if index < 0 || index >= len(xs) {
		return append(xs, id)
	}
	xs = append(xs, "")
	copy(xs[index+1:], xs[index:])
	xs[index] = id
	return xs
}

func without(xs []string, id string) []string {
	out := xs[:0]
	for _, x := range xs {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
