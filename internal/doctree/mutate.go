package doctree

import (
	"fmt"
	"strings"
	"time"

	"appletree/internal/model"
)

// AddNode inserts a leaf under parentID, or at the roots when parentID is empty. It does not
// persist; call Save.
func (t *Tree) AddNode(id, name, parentID string) error {
	if err := t.ready(); err != nil {
		return err
	}
	n, err := t.newNode(id, name, parentID)
	if err != nil {
		return err
	}
	t.insert(n, -1)
	t.changed()
	return nil
}

func (t *Tree) newNode(id, name, parentID string) (*node, error) {
	if strings.TrimSpace(id) == "" {
		return nil, InvalidTreeError{Reason: "empty id"}
	}
	if _, ok := t.nodes[id]; ok {
		return nil, InvalidTreeError{ID: id, Reason: "duplicate id"}
	}
	if parentID != "" {
		if _, ok := t.nodes[parentID]; !ok {
			return nil, notFound(parentID)
		}
	}
	return &node{id: id, name: name, parent: parentID, docType: model.DefaultType}, nil
}

// CreateDocument allocates an id, creates the document in the store with an empty body and its
// type metadata, adds it to the tree and saves the forest.
func (t *Tree) CreateDocument(name, parentID, docType string) (string, error) {
	if err := t.ready(); err != nil {
		return "", err
	}
	if strings.TrimSpace(docType) == "" {
		docType = model.DefaultType
	}
	id, err := t.freshID(nil)
	if err != nil {
		return "", err
	}
	n, err := t.newNode(id, name, parentID)
	if err != nil {
		return "", err
	}
	if err := t.docs.CreateDocument(id); err != nil {
		return "", err
	}
	meta := model.Meta{
		model.MetaType:    docType,
		model.MetaCreated: t.now().UTC().Format(time.RFC3339),
	}
	if err := t.docs.PutDocumentMeta(id, meta); err != nil {
		_ = t.docs.RemoveDocument(id)
		return "", err
	}
	n.docType = docType
	t.insert(n, -1)
	if _, err := t.Save(); err != nil {
		return id, fmt.Errorf("save tree after adding %s: %w", id, err)
	}
	t.changed()
	return id, nil
}

// maxIDAttempts bounds freshID against a generator that keeps repeating itself.
const maxIDAttempts = 100

// freshID draws ids until one is unused in this tree and absent from avoid.
func (t *Tree) freshID(avoid map[string]bool) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := t.newID()
		if strings.TrimSpace(id) == "" {
			continue
		}
		if _, used := t.nodes[id]; used || avoid[id] {
			continue
		}
		return id, nil
	}
	return "", InvalidTreeError{Reason: fmt.Sprintf("no unused id after %d attempts", maxIDAttempts)}
}

func (t *Tree) Rename(id, name string) error {
	if err := t.ready(); err != nil {
		return err
	}
	n := t.nodes[id]
	if n == nil {
		return notFound(id)
	}
	n.name = name
	t.changed()
	return nil
}

// Move re-parents id under newParentID (roots when empty) at index; index < 0 appends.
// Moving a node under itself or one of its descendants fails with ErrInvalidTree.
func (t *Tree) Move(id, newParentID string, index int) error {
	if err := t.ready(); err != nil {
		return err
	}
	n := t.nodes[id]
	if n == nil {
		return notFound(id)
	}
	if newParentID != "" {
		if _, ok := t.nodes[newParentID]; !ok {
			return notFound(newParentID)
		}
		for p := newParentID; p != ""; p = t.nodes[p].parent {
			if p == id {
				return InvalidTreeError{ID: id, Reason: "cannot move a document under itself"}
			}
		}
	}
	t.unlink(n)
	n.parent = newParentID
	t.insert(n, index)
	t.changed()
	return nil
}

// ToggleTags flips each tag in the document's tag set and persists the result to its metadata
// right away. The in-memory tags change only if the write succeeds.
func (t *Tree) ToggleTags(id string, tags ...string) ([]string, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	n := t.nodes[id]
	if n == nil {
		return nil, notFound(id)
	}
	next := model.ToggleTags(n.tags, tags...)
	if err := t.docs.UpdateDocumentMeta(id, model.Meta{model.MetaTags: model.JoinTags(next)}); err != nil {
		return nil, err
	}
	n.tags = next
	return append([]string(nil), next...), nil
}

// SetType records a document type in both the store and the tree.
func (t *Tree) SetType(id, docType string) error {
	if err := t.ready(); err != nil {
		return err
	}
	n := t.nodes[id]
	if n == nil {
		return notFound(id)
	}
	if err := t.docs.UpdateDocumentMeta(id, model.Meta{model.MetaType: docType}); err != nil {
		return err
	}
	n.docType = docType
	return nil
}
