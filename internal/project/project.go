package project

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"appletree/internal/backend"
	"appletree/internal/doctree"
	"appletree/internal/gitsync"
	"appletree/internal/index"
	"appletree/internal/model"
)

// Project is one open project. It owns its document store for as long as it is open.
type Project struct {
	ID   string
	Dir  string
	Meta model.ProjectMeta
	Docs backend.Documents

	log      *slog.Logger
	lockPath string
	tree     *doctree.Tree
	idx      *index.Index
}

// Tree returns the project's document tree, loading it on first use. opts apply only to that
// first call.
func (p *Project) Tree(opts ...doctree.Option) (*doctree.Tree, error) {
	if p.tree != nil {
		return p.tree, nil
	}
	t := doctree.New(p.Docs, append([]doctree.Option{doctree.WithLogger(p.log)}, opts...)...)
	if err := t.Load(); err != nil {
		return nil, err
	}
	p.tree = t
	return t, nil
}

// Index opens the derived search index kept under .appletree/.
func (p *Project) Index(ctx context.Context) (*index.Index, error) {
	if p.idx != nil {
		return p.idx, nil
	}
	ix, err := index.Open(ctx, filepath.Join(p.Dir, localDirName, "index.sqlite"))
	if err != nil {
		return nil, err
	}
	p.idx = ix
	return ix, nil
}

// Sync records the current state with the project's sync backend. Projects without one
// return (false, nil).
func (p *Project) Sync(ctx context.Context, message string) (bool, error) {
	if p.Meta.Sync != model.SyncGit {
		return false, nil
	}
	if !gitsync.Available() {
		p.log.Warn("git sync configured but git is not installed")
		return false, nil
	}
	if err := gitsync.EnsureRepo(ctx, p.Dir); err != nil {
		return false, err
	}
	committed, err := gitsync.Commit(ctx, p.Dir, message)
	if err != nil {
		p.log.Error("git sync", "error", err)
		return false, err
	}
	if committed {
		p.log.Debug("git sync committed", "message", message)
	}
	return committed, nil
}

func (p *Project) close() error {
	var errs []error
	if p.idx != nil {
		errs = append(errs, p.idx.Close())
		p.idx = nil
	}
	releaseLock(p.lockPath)
	return errors.Join(errs...)
}
