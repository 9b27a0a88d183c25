package store

import (
	"fmt"
	"os"
)

// CreateDocument creates the folder structure of a document and an empty body if none exists.
func (s Store) CreateDocument(id string) error {
	if err := validID(id); err != nil {
		return err
	}
	if err := s.ensureDocumentFolder(id); err != nil {
		return err
	}
	path := s.bodyPath(id)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := AtomicWriteFile(path, nil, 0o600); err != nil {
		return s.ioFail("create document body", err, "doc", id, "path", path)
	}
	return nil
}

func (s Store) HasDocument(id string) bool {
	if validID(id) != nil {
		return false
	}
	st, err := os.Stat(s.documentDir(id))
	return err == nil && st.IsDir()
}

// DocumentBody returns the saved body, or ErrNotFound when none was ever written.
func (s Store) DocumentBody(id string) (string, error) {
	if err := validID(id); err != nil {
		return "", err
	}
	path := s.bodyPath(id)
	b, ok, err := readFileIfExists(path)
	if err != nil {
		return "", s.ioFail("read document body", err, "doc", id, "path", path)
	}
	if !ok {
		return "", fmt.Errorf("document body %s: %w", id, ErrNotFound)
	}
	return string(b), nil
}

// PutDocumentBody saves the body, creating the document folder when needed. With dropDraft
// any pending draft is discarded once the body is on disk.
func (s Store) PutDocumentBody(id string, body string, dropDraft bool) error {
	if err := validID(id); err != nil {
		return err
	}
	if err := s.ensureDocumentFolder(id); err != nil {
		return err
	}
	path := s.bodyPath(id)
	if err := AtomicWriteFile(path, []byte(body), 0o600); err != nil {
		return s.ioFail("write document body", err, "doc", id, "path", path)
	}
	if dropDraft {
		return s.DropDocumentBodyDraft(id)
	}
	return nil
}

// DocumentBodyDraft returns the draft body and whether one exists.
func (s Store) DocumentBodyDraft(id string) (string, bool, error) {
	if err := validID(id); err != nil {
		return "", false, err
	}
	path := s.draftPath(id)
	b, ok, err := readFileIfExists(path)
	if err != nil {
		return "", false, s.ioFail("read document draft", err, "doc", id, "path", path)
	}
	if !ok {
		return "", false, nil
	}
	return string(b), true, nil
}

func (s Store) PutDocumentBodyDraft(id string, body string) error {
	if err := validID(id); err != nil {
		return err
	}
	if err := s.ensureDocumentFolder(id); err != nil {
		return err
	}
	path := s.draftPath(id)
	if err := AtomicWriteFile(path, []byte(body), 0o600); err != nil {
		return s.ioFail("write document draft", err, "doc", id, "path", path)
	}
	return nil
}

func (s Store) DropDocumentBodyDraft(id string) error {
	if err := validID(id); err != nil {
		return err
	}
	path := s.draftPath(id)
	if err := RemoveIfExists(path); err != nil {
		return s.ioFail("drop document draft", err, "doc", id, "path", path)
	}
	return nil
}

// RemoveDocument deletes the document folder with everything inside. Removing a document
// that does not exist succeeds.
func (s Store) RemoveDocument(id string) error {
	if err := validID(id); err != nil {
		return err
	}
	dir := s.documentDir(id)
	if err := os.RemoveAll(dir); err != nil {
		return s.ioFail("remove document", err, "doc", id, "path", dir)
	}
	s.log().Debug("removed document", "doc", id)
	return nil
}
