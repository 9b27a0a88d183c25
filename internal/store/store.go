// Package store is the local filesystem document store: one Store per project directory.
//
// Layout under the project directory:
//
//	documents/applenote.doctree
//	documents/<id>/document.atdoc
//	documents/<id>/document.draft.atdoc
//	documents/<id>/document.meta.atdoc
//	documents/<id>/resources/images/<name>
package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"appletree/internal/backend"
)

// BackendName is the name the local store registers under.
const BackendName = "local"

const (
	documentsDirName = "documents"
	treeFileName     = "applenote.doctree"
	bodyFileName     = "document.atdoc"
	draftFileName    = "document.draft.atdoc"
	metaFileName     = "document.meta.atdoc"
	metaSection      = "document"
)

type Store struct {
	Dir    string
	Logger *slog.Logger
}

var _ backend.Documents = Store{}

// Open returns the store for a project directory, creating documents/ if needed.
func Open(projectDir string, logger *slog.Logger) (Store, error) {
	projectDir = strings.TrimSpace(projectDir)
	if projectDir == "" {
		return Store{}, fmt.Errorf("open store: %w: empty project dir", ErrIO)
	}
	s := Store{Dir: filepath.Clean(projectDir), Logger: logger}
	if err := s.Ensure(); err != nil {
		return Store{}, err
	}
	return s, nil
}

// Factory adapts Open to backend.Factory.
func Factory(projectDir string, logger *slog.Logger) (backend.Documents, error) {
	s, err := Open(projectDir, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Register adds the local store to a backend registry.
func Register(r *backend.Registry) {
	r.Register(BackendName, Factory)
}

func (s Store) Ensure() error {
	if err := os.MkdirAll(s.documentsDir(), 0o700); err != nil {
		return s.ioFail("ensure documents dir", err, "path", s.documentsDir())
	}
	return nil
}

func (s Store) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s Store) documentsDir() string {
	return filepath.Join(s.Dir, documentsDirName)
}

func (s Store) treePath() string {
	return filepath.Join(s.documentsDir(), treeFileName)
}

func (s Store) documentDir(id string) string {
	return filepath.Join(s.documentsDir(), id)
}

func (s Store) bodyPath(id string) string {
	return filepath.Join(s.documentDir(id), bodyFileName)
}

func (s Store) draftPath(id string) string {
	return filepath.Join(s.documentDir(id), draftFileName)
}

func (s Store) metaPath(id string) string {
	return filepath.Join(s.documentDir(id), metaFileName)
}

func (s Store) imagesDir(id string) string {
	return filepath.Join(s.documentDir(id), "resources", "images")
}

// DocumentPath returns the directory holding a document's files.
func (s Store) DocumentPath(id string) string {
	return s.documentDir(id)
}

// ensureDocumentFolder creates <id>/ and <id>/resources/images when missing.
func (s Store) ensureDocumentFolder(id string) error {
	dir := s.imagesDir(id)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return s.ioFail("create document folder", err, "doc", id, "path", dir)
	}
	return nil
}

// validID rejects ids that would escape the documents directory.
func validID(id string) error {
	return validName("document id", id)
}

func validName(kind, name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty %s", ErrInvalidID, kind)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %s %q", ErrInvalidID, kind, name)
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, os.PathSeparator):
		return fmt.Errorf("%w: %s %q contains a path separator", ErrInvalidID, kind, name)
	}
	return nil
}
