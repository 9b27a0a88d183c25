// Package plugin hosts statically linked toolbar plugins. Which plugins run is decided by an
// explicit manifest (plugins.yaml in the config dir); each plugin gets its own INI config file
// layered over its defaults.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"appletree/internal/backend"
	"appletree/internal/editor"
)

var (
	ErrUnknownPlugin = errors.New("unknown plugin")
	ErrUnknownAction = errors.New("unknown action")
	ErrNoEditor      = errors.New("action needs an open document")
	ErrUnsupported   = errors.New("not supported for this document type")
	ErrImageFormat   = errors.New("image format not recognized")
)

// Scope is the toolbar an action is offered on.
type Scope string

const (
	ScopeApplication Scope = "application"
	ScopeProject     Scope = "project"
	ScopeEditor      Scope = "editor"
)

func (s Scope) Valid() bool {
	switch s {
	case ScopeApplication, ScopeProject, ScopeEditor:
		return true
	}
	return false
}

// Target is what an action operates on. Editor actions get the open surface and its document;
// project actions only the project's documents.
type Target struct {
	ProjectID string
	Docs      backend.Documents
	DocID     string
	DocType   string
	Surface   editor.Surface
}

// Action is one toolbar entry. Run returns a short status message for the host to show.
type Action struct {
	Name        string
	Description string
	Shortcut    string
	Run         func(ctx context.Context, t Target) (string, error)
}

// Host is handed to a plugin on Init.
type Host struct {
	Log    *slog.Logger
	Config *Config
	Now    func() time.Time
}

type Plugin interface {
	Name() string
	FriendlyName() string
	// Defaults lists every config key the plugin reads. Keys not listed are ignored on load.
	Defaults() map[string]string
	Init(h Host) error
	ToolbarActions(scope Scope, t Target) []Action
}

type Factory func() Plugin

type entry struct {
	factory Factory
	enabled bool
}

type loaded struct {
	plugin Plugin
	config *Config
}

type Option func(*Registry)

func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// Registry knows the available plugins and, after Load, the running ones.
type Registry struct {
	configDir string
	log       *slog.Logger
	now       func() time.Time
	entries   map[string]entry
	order     []string
	loaded    []loaded
}

func NewRegistry(configDir string, opts ...Option) *Registry {
	r := &Registry{
		configDir: configDir,
		log:       slog.Default(),
		now:       time.Now,
		entries:   map[string]entry{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a plugin factory. enabled is the default used when the manifest does not
// mention the plugin.
func (r *Registry) Register(name string, f Factory, enabled bool) {
	if _, ok := r.entries[name]; !ok {
		r.order = append(r.order, name)
	}
	r.entries[name] = entry{factory: f, enabled: enabled}
}

// Available lists registered plugin names in registration order.
func (r *Registry) Available() []string {
	return append([]string(nil), r.order...)
}

func (r *Registry) ManifestPath() string {
	return filepath.Join(r.configDir, ManifestFile)
}

func (r *Registry) configPath(name string) string {
	return filepath.Join(r.configDir, "plugins", name+".conf")
}

// Load reads the manifest and initialises every enabled plugin. A plugin whose Init fails is
// logged and left out; only an unreadable or invalid manifest is an error.
func (r *Registry) Load() error {
	m, _, err := ReadManifest(r.ManifestPath())
	if err != nil {
		return err
	}
	enabled := map[string]bool{}
	for name, e := range r.entries {
		enabled[name] = e.enabled
	}
	for _, me := range m.Plugins {
		if _, ok := r.entries[me.Name]; !ok {
			r.log.Warn("manifest names unknown plugin", "plugin", me.Name)
			continue
		}
		enabled[me.Name] = me.IsEnabled()
	}

	r.loaded = nil
	for _, name := range r.order {
		if !enabled[name] {
			continue
		}
		p := r.entries[name].factory()
		cfg := LoadConfig(r.configPath(name), name, p.Defaults(), r.log)
		if err := p.Init(Host{Log: r.log.With("plugin", name), Config: cfg, Now: r.now}); err != nil {
			r.log.Error("plugin init failed", "plugin", name, "error", err)
			continue
		}
		r.loaded = append(r.loaded, loaded{plugin: p, config: cfg})
		r.log.Debug("plugin ready", "plugin", name, "friendly_name", p.FriendlyName())
	}
	return nil
}

// SetEnabled records the choice in the manifest. It takes effect on the next Load.
func (r *Registry) SetEnabled(name string, enabled bool) error {
	if _, ok := r.entries[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlugin, name)
	}
	path := r.ManifestPath()
	m, _, err := ReadManifest(path)
	if err != nil {
		return err
	}
	m.Set(name, enabled)
	return WriteManifest(path, m)
}

func (r *Registry) Plugins() []Plugin {
	out := make([]Plugin, 0, len(r.loaded))
	for _, l := range r.loaded {
		out = append(out, l.plugin)
	}
	return out
}

func (r *Registry) lookup(name string) (loaded, bool) {
	for _, l := range r.loaded {
		if l.plugin.Name() == name {
			return l, true
		}
	}
	return loaded{}, false
}

func (r *Registry) Get(name string) (Plugin, bool) {
	l, ok := r.lookup(name)
	return l.plugin, ok
}

// Config returns the live config of a loaded plugin.
func (r *Registry) Config(name string) (*Config, error) {
	l, ok := r.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlugin, name)
	}
	return l.config, nil
}

// BoundAction is an action together with the plugin offering it.
type BoundAction struct {
	Plugin string
	Action
}

// Actions collects the toolbar actions every loaded plugin offers for scope.
func (r *Registry) Actions(scope Scope, t Target) []BoundAction {
	var out []BoundAction
	for _, l := range r.loaded {
		for _, a := range l.plugin.ToolbarActions(scope, t) {
			out = append(out, BoundAction{Plugin: l.plugin.Name(), Action: a})
		}
	}
	return out
}

// Run executes one action of one plugin.
func (r *Registry) Run(ctx context.Context, scope Scope, pluginName, actionName string, t Target) (string, error) {
	l, ok := r.lookup(pluginName)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownPlugin, pluginName)
	}
	var names []string
	for _, a := range l.plugin.ToolbarActions(scope, t) {
		if a.Name == actionName {
			return a.Run(ctx, t)
		}
		names = append(names, a.Name)
	}
	sort.Strings(names)
	return "", fmt.Errorf("%w: %s/%s (have %v)", ErrUnknownAction, pluginName, actionName, names)
}

// SaveConfigs writes every loaded plugin's config back to disk.
func (r *Registry) SaveConfigs() error {
	var errs []error
	for _, l := range r.loaded {
		if err := l.config.Save(); err != nil {
			r.log.Error("plugin config write failed", "plugin", l.plugin.Name(), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Builtins registers the plugins shipped with appletree.
func Builtins(r *Registry) {
	r.Register(timestampName, newTimestamp, true)
	r.Register(wordcountName, newWordcount, true)
	r.Register(screenshotName, newScreenshot, false)
}
