package doctree

import (
	"errors"
	"fmt"

	"appletree/internal/backend"
	"appletree/internal/model"
)

// CloneSubtree deep-copies srcRootID and its descendants from src (which may be this tree or
// another project's) under destParentID, or at the roots when destParentID is empty.
//
// Every copy gets a fresh id that is neither used here nor by any source node. Metadata, body,
// draft and images are copied verbatim. On failure the partial copy is removed again. Returns
// the id of the copied root.
func (t *Tree) CloneSubtree(src *Tree, srcRootID, destParentID string) (string, error) {
	if err := t.ready(); err != nil {
		return "", err
	}
	if src == nil {
		src = t
	}
	root, ok := src.nodes[srcRootID]
	if !ok {
		return "", notFound(srcRootID)
	}
	if destParentID != "" {
		if _, ok := t.nodes[destParentID]; !ok {
			return "", notFound(destParentID)
		}
	}

	// Snapshot before mutating; src may be t.
	snapshot := model.Entry{ID: root.id, Name: root.name, Children: src.forestOf(root.children)}
	avoid := map[string]bool{}
	for _, id := range src.IDs(srcRootID) {
		avoid[id] = true
	}

	var created []string
	var clone func(e model.Entry, parent string) (string, error)
	clone = func(e model.Entry, parent string) (string, error) {
		id, err := t.freshID(avoid)
		if err != nil {
			return "", err
		}
		avoid[id] = true
		if err := copyDocument(src.docs, e.ID, t.docs, id); err != nil {
			_ = t.docs.RemoveDocument(id)
			return "", err
		}
		n := &node{id: id, name: e.Name, parent: parent, docType: model.DefaultType}
		if sn := src.nodes[e.ID]; sn != nil {
			n.docType = sn.docType
			n.tags = append([]string(nil), sn.tags...)
		}
		t.insert(n, -1)
		created = append(created, id)
		for _, c := range e.Children {
			if _, err := clone(c, id); err != nil {
				return "", err
			}
		}
		return id, nil
	}

	newRoot, err := clone(snapshot, destParentID)
	if err != nil {
		for i := len(created) - 1; i >= 0; i-- {
			_ = t.docs.RemoveDocument(created[i])
			t.detach(created[i])
		}
		return "", fmt.Errorf("clone %s: %w", srcRootID, err)
	}
	if _, err := t.Save(); err != nil {
		return newRoot, err
	}
	t.log.Info("cloned documents", "source", srcRootID, "root", newRoot, "count", len(created))
	t.changed()
	return newRoot, nil
}

// copyDocument copies metadata, body, draft and every image of one document between stores.
func copyDocument(from backend.Documents, srcID string, to backend.Documents, destID string) error {
	meta, err := from.DocumentMeta(srcID)
	if err != nil {
		return err
	}
	body, err := from.DocumentBody(srcID)
	switch {
	case errors.Is(err, backend.ErrNotFound):
		if err := to.CreateDocument(destID); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if err := to.PutDocumentBody(destID, body, false); err != nil {
			return err
		}
	}
	if len(meta) > 0 {
		if err := to.PutDocumentMeta(destID, meta); err != nil {
			return err
		}
	}
	draft, ok, err := from.DocumentBodyDraft(srcID)
	if err != nil {
		return err
	}
	if ok {
		if err := to.PutDocumentBodyDraft(destID, draft); err != nil {
			return err
		}
	}
	names, err := from.Images(srcID)
	if err != nil {
		return err
	}
	for _, name := range names {
		data, err := from.ImageRaw(srcID, name)
		if err != nil {
			return err
		}
		if err := to.PutImageRaw(destID, name, data); err != nil {
			return err
		}
	}
	return nil
}
