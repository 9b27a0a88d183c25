// Package project manages the projects under a data directory: creation, metadata, the
// registry of known ids, and the open (locked, cached) project instances.
package project

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"appletree/internal/backend"
	"appletree/internal/model"
	"appletree/internal/store"
)

var (
	ErrExists         = errors.New("project already exists")
	ErrNotFound       = errors.New("project not found")
	ErrUnknownBackend = errors.New("unknown backend")
	ErrLocked         = errors.New("project is open in another process")
)

const (
	projectsDirName  = "projects"
	registryFileName = "projects.conf"
	registrySection  = "projects"
	metaFileName     = "project.conf"
	metaSection      = "project"
	localDirName     = ".appletree"

	maxProjectNameLength = 200
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

type Option func(*Registry)

func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// Registry owns every project below dataDir/projects and caches the open ones.
type Registry struct {
	dataDir  string
	backends *backend.Registry
	log      *slog.Logger
	newID    func() string

	mu   sync.Mutex
	open map[string]*Project
}

func NewRegistry(dataDir string, backends *backend.Registry, opts ...Option) *Registry {
	r := &Registry{
		dataDir:  filepath.Clean(dataDir),
		backends: backends,
		log:      slog.Default(),
		newID:    uuid.NewString,
		open:     map[string]*Project{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) DataDir() string { return r.dataDir }

// Dir returns the directory of a project.
func (r *Registry) Dir(id string) string {
	return filepath.Join(r.dataDir, projectsDirName, id)
}

func (r *Registry) registryPath() string {
	return filepath.Join(r.dataDir, registryFileName)
}

// CreateRequest describes a new project.
type CreateRequest struct {
	Name    string
	Backend string
	Sync    string
	ID      string
}

func (r *Registry) validateCreate(req *CreateRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.Name,
			validation.Required,
			validation.Length(1, maxProjectNameLength),
		),
		validation.Field(&req.Backend, validation.Required),
		validation.Field(&req.Sync, validation.In(model.SyncNone, model.SyncGit)),
		validation.Field(&req.ID, validation.Match(idPattern)),
	)
}

// Create allocates a project directory and writes its metadata. It never overwrites an
// existing project: an id whose directory already exists fails with ErrExists.
func (r *Registry) Create(name, backendKind, syncKind, id string) (string, error) {
	req := CreateRequest{
		Name:    strings.TrimSpace(name),
		Backend: strings.TrimSpace(backendKind),
		Sync:    strings.TrimSpace(syncKind),
		ID:      strings.TrimSpace(id),
	}
	if req.Backend == "" {
		req.Backend = model.DefaultBackend
	}
	if err := r.validateCreate(&req); err != nil {
		return "", err
	}
	if !r.backends.Has(req.Backend) {
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, req.Backend)
	}
	if req.ID == "" {
		req.ID = r.newID()
	}

	if err := os.MkdirAll(filepath.Join(r.dataDir, projectsDirName), 0o700); err != nil {
		return "", err
	}
	dir := r.Dir(req.ID)
	if err := os.Mkdir(dir, 0o700); err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrExists, req.ID)
		}
		return "", err
	}
	if err := r.initProject(dir, model.ProjectMeta{ID: req.ID, Name: req.Name, Backend: req.Backend, Sync: req.Sync}); err != nil {
		if rerr := os.RemoveAll(dir); rerr != nil {
			r.log.Error("remove half-created project", "project", req.ID, "error", rerr)
		}
		return "", err
	}
	r.log.Info("created project", "project", req.ID, "name", req.Name, "backend", req.Backend)
	return req.ID, nil
}

// initProject fills a freshly created project dir and registers it.
func (r *Registry) initProject(dir string, meta model.ProjectMeta) error {
	for _, sub := range []string{"documents", localDirName} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o700); err != nil {
			return err
		}
	}
	if err := r.writeMeta(meta); err != nil {
		return err
	}
	return r.register(meta.ID)
}

// Meta reads a project's metadata, defaulting missing fields.
func (r *Registry) Meta(id string) (model.ProjectMeta, error) {
	if !idPattern.MatchString(id) {
		return model.ProjectMeta{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	values, ok, err := store.ReadConf(filepath.Join(r.Dir(id), metaFileName), metaSection)
	if err != nil {
		return model.ProjectMeta{}, fmt.Errorf("project %s: %w", id, err)
	}
	if !ok {
		return model.ProjectMeta{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	meta := model.ProjectMeta{
		ID:      id,
		Name:    values["name"],
		Backend: values["backend"],
		Sync:    values["sync"],
		Active:  values["active"] == "true",
	}
	if strings.TrimSpace(meta.Name) == "" {
		meta.Name = model.DefaultProjectName
	}
	if strings.TrimSpace(meta.Backend) == "" {
		meta.Backend = model.DefaultBackend
	}
	return meta, nil
}

func (r *Registry) writeMeta(meta model.ProjectMeta) error {
	active := "false"
	if meta.Active {
		active = "true"
	}
	values := map[string]string{
		"name":    meta.Name,
		"backend": meta.Backend,
		"sync":    meta.Sync,
		"active":  active,
	}
	return store.WriteConf(filepath.Join(r.Dir(meta.ID), metaFileName), metaSection,
		[]string{"name", "backend", "sync", "active"}, values)
}

// Rename changes the display name of a project.
func (r *Registry) Rename(id, name string) error {
	name = strings.TrimSpace(name)
	if err := validation.Validate(name, validation.Required, validation.Length(1, maxProjectNameLength)); err != nil {
		return err
	}
	meta, err := r.Meta(id)
	if err != nil {
		return err
	}
	meta.Name = name
	if err := r.writeMeta(meta); err != nil {
		return err
	}
	r.mu.Lock()
	if p := r.open[id]; p != nil {
		p.Meta.Name = name
	}
	r.mu.Unlock()
	return nil
}

// SetActive records whether a project should be reopened on the next session.
func (r *Registry) SetActive(id string, active bool) error {
	meta, err := r.Meta(id)
	if err != nil {
		return err
	}
	if meta.Active == active {
		return nil
	}
	meta.Active = active
	if err := r.writeMeta(meta); err != nil {
		return err
	}
	r.mu.Lock()
	if p := r.open[id]; p != nil {
		p.Meta.Active = active
	}
	r.mu.Unlock()
	return nil
}

// List returns the registered project ids in registration order.
func (r *Registry) List() ([]string, error) {
	values, _, err := store.ReadConf(r.registryPath(), registrySection)
	if err != nil {
		if errors.Is(err, store.ErrCorrupt) {
			r.log.Warn("projects registry is corrupt, treating as empty", "path", r.registryPath(), "error", err)
			return []string{}, nil
		}
		return nil, err
	}
	out := []string{}
	seen := map[string]bool{}
	for _, id := range strings.Split(values["ids"], ",") {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}

// Metas returns the metadata of every registered project that can still be read.
func (r *Registry) Metas() ([]model.ProjectMeta, error) {
	ids, err := r.List()
	if err != nil {
		return nil, err
	}
	out := make([]model.ProjectMeta, 0, len(ids))
	for _, id := range ids {
		m, err := r.Meta(id)
		if err != nil {
			r.log.Warn("skip unreadable project", "project", id, "error", err)
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// ActiveIDs returns the registered projects flagged active.
func (r *Registry) ActiveIDs() ([]string, error) {
	metas, err := r.Metas()
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, m := range metas {
		if m.Active {
			out = append(out, m.ID)
		}
	}
	return out, nil
}

func (r *Registry) register(id string) error {
	ids, err := r.List()
	if err != nil {
		return err
	}
	for _, x := range ids {
		if x == id {
			return nil
		}
	}
	return r.writeRegistry(append(ids, id))
}

func (r *Registry) writeRegistry(ids []string) error {
	if err := os.MkdirAll(r.dataDir, 0o700); err != nil {
		return err
	}
	return store.WriteConf(r.registryPath(), registrySection, []string{"ids"},
		map[string]string{"ids": strings.Join(ids, ",")})
}

// Forget removes a project from the registry without deleting its directory.
func (r *Registry) Forget(id string) error {
	if err := r.Close(id); err != nil {
		return err
	}
	ids, err := r.List()
	if err != nil {
		return err
	}
	kept := ids[:0]
	for _, x := range ids {
		if x != id {
			kept = append(kept, x)
		}
	}
	return r.writeRegistry(kept)
}

// Open returns the project instance for id, opening its backend and taking the project lock on
// first use. Later calls return the cached instance.
func (r *Registry) Open(id string) (*Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p := r.open[id]; p != nil {
		return p, nil
	}

	meta, err := r.Meta(id)
	if err != nil {
		return nil, err
	}
	if !r.backends.Has(meta.Backend) {
		return nil, fmt.Errorf("%w: %q (project %s)", ErrUnknownBackend, meta.Backend, id)
	}
	dir := r.Dir(id)
	lockPath := filepath.Join(dir, localDirName, "lock")
	if err := acquireLock(lockPath); err != nil {
		return nil, err
	}
	logger := r.log.With("project", id)
	docs, err := r.backends.Open(meta.Backend, dir, logger)
	if err != nil {
		releaseLock(lockPath)
		return nil, err
	}
	p := &Project{
		ID:       id,
		Dir:      dir,
		Meta:     meta,
		Docs:     docs,
		log:      logger,
		lockPath: lockPath,
	}
	r.open[id] = p
	r.log.Debug("opened project", "project", id, "backend", meta.Backend)
	return p, nil
}

// Close releases an open project. Closing a project that is not open is a no-op.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	p := r.open[id]
	delete(r.open, id)
	r.mu.Unlock()
	if p == nil {
		return nil
	}
	return p.close()
}

// CloseAll releases every open project.
func (r *Registry) CloseAll() error {
	var errs []error
	for _, id := range r.Opened() {
		if err := r.Close(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Opened lists the ids of projects open in this process, sorted.
func (r *Registry) Opened() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.open))
	for id := range r.open {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
