package plugin

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"appletree/internal/store"
)

const ManifestFile = "plugins.yaml"

var pluginNameRe = regexp.MustCompile(`^[a-z0-9_]+$`)

// Manifest is plugins.yaml:
//
//	plugins:
//	  - name: screenshot
//	    enabled: true
type Manifest struct {
	Plugins []ManifestEntry `yaml:"plugins"`
}

type ManifestEntry struct {
	Name    string `yaml:"name"`
	Enabled *bool  `yaml:"enabled,omitempty"`
}

// IsEnabled treats an entry without an explicit flag as enabled.
func (e ManifestEntry) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

func (e ManifestEntry) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Name, validation.Required, validation.Match(pluginNameRe)),
	)
}

func (m Manifest) Validate() error {
	if err := validation.ValidateStruct(&m, validation.Field(&m.Plugins)); err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, e := range m.Plugins {
		if seen[e.Name] {
			return fmt.Errorf("plugin %q listed twice", e.Name)
		}
		seen[e.Name] = true
	}
	return nil
}

// Set updates or appends the entry for name.
func (m *Manifest) Set(name string, enabled bool) {
	v := enabled
	for i := range m.Plugins {
		if m.Plugins[i].Name == name {
			m.Plugins[i].Enabled = &v
			return
		}
	}
	m.Plugins = append(m.Plugins, ManifestEntry{Name: name, Enabled: &v})
}

// ReadManifest returns ok=false for a missing file.
func ReadManifest(path string) (Manifest, bool, error) {
	var m Manifest
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return m, false, nil
		}
		return m, false, err
	}
	if err := yaml.Unmarshal(b, &m); err != nil {
		return Manifest{}, false, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, false, fmt.Errorf("invalid %s: %w", path, err)
	}
	return m, true, nil
}

func WriteManifest(path string, m Manifest) error {
	if err := m.Validate(); err != nil {
		return err
	}
	b, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return store.AtomicWriteFile(path, b, 0o600)
}
