package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"appletree/internal/model"
)

// DocumentsTree reads documents/applenote.doctree.
//
// A missing file is an empty forest. A file that does not parse is copied aside to
// applenote.doctree.corrupt and reported as ErrCorrupt; the original is left in place.
func (s Store) DocumentsTree() (model.Forest, error) {
	path := s.treePath()
	b, ok, err := readFileIfExists(path)
	if err != nil {
		return nil, s.ioFail("read documents tree", err, "path", path)
	}
	if !ok || len(bytes.TrimSpace(b)) == 0 {
		return model.Forest{}, nil
	}
	var f model.Forest
	if err := json.Unmarshal(b, &f); err != nil {
		backup := path + ".corrupt"
		if cerr := CopyFile(path, backup); cerr != nil {
			s.log().Warn("backup corrupt documents tree", "path", path, "error", cerr)
		}
		s.log().Error("parse documents tree", "path", path, "backup", backup, "error", err)
		return nil, fmt.Errorf("documents tree %s: %w: %v", path, ErrCorrupt, err)
	}
	if f == nil {
		f = model.Forest{}
	}
	return f, nil
}

// SetDocumentsTree persists the whole forest, replacing the previous file atomically.
func (s Store) SetDocumentsTree(tree model.Forest) error {
	if tree == nil {
		tree = model.Forest{}
	}
	b, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("encode documents tree: %w", err)
	}
	path := s.treePath()
	if err := AtomicWriteFile(path, b, 0o600); err != nil {
		return s.ioFail("write documents tree", err, "path", path)
	}
	return nil
}
