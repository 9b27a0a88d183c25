package doctree

import (
	"fmt"
)

// RemoveSubtree deletes rootID and all its descendants.
//
// Open editors for the whole subtree are closed first. Documents are then deleted from the
// store bottom-up, each detached from the tree only after its files are gone, and the forest is
// saved last. A declined confirmation returns ErrCancelled with nothing changed.
func (t *Tree) RemoveSubtree(rootID string) (int, error) {
	if err := t.ready(); err != nil {
		return 0, err
	}
	root := t.nodes[rootID]
	if root == nil {
		return 0, notFound(rootID)
	}
	ids := t.IDs(rootID)

	if t.confirm != nil {
		msg := fmt.Sprintf("Remove %d document(s)?", len(ids))
		if !t.confirm.Confirm("Remove documents", msg, root.name) {
			return 0, ErrCancelled
		}
	}

	if t.closer != nil {
		t.closer.CloseDocuments(ids)
	}

	removed := 0
	var firstErr error
	for i := len(ids) - 1; i >= 0; i-- {
		id := ids[i]
		if err := t.docs.RemoveDocument(id); err != nil {
			firstErr = fmt.Errorf("remove %s: %w", id, err)
			break
		}
		t.detach(id)
		removed++
	}
	if _, err := t.Save(); err != nil && firstErr == nil {
		firstErr = err
	}
	t.log.Info("removed documents", "root", rootID, "count", removed)
	t.changed()
	return removed, firstErr
}
