package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Document types understood by the editor kinds.
const (
	TypeRichText  = "richtext"
	TypePlainText = "plaintext"
	TypeMarkdown  = "markdown"
	TypeTable     = "table"
)

// DefaultType is used for documents whose metadata carries no type.
const DefaultType = TypeRichText

// Metadata keys persisted in document.meta.atdoc. Anything else is dropped on write.
const (
	MetaType     = "type"
	MetaTags     = "tags"
	MetaName     = "name"
	MetaCreated  = "created"
	MetaModified = "modified"
)

var metaKeys = []string{MetaType, MetaTags, MetaName, MetaCreated, MetaModified}

// MetaKeys returns the allow-listed document metadata keys.
func MetaKeys() []string {
	out := make([]string, len(metaKeys))
	copy(out, metaKeys)
	return out
}

func IsMetaKey(k string) bool {
	for _, mk := range metaKeys {
		if mk == k {
			return true
		}
	}
	return false
}

// Entry is one persisted tree node: (id, name, children).
//
// On disk it is the JSON triple [id, name, [children...]].
type Entry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Children Forest `json:"children"`
}

// Forest is an ordered list of root entries.
type Forest []Entry

func (e Entry) MarshalJSON() ([]byte, error) {
	children := e.Children
	if children == nil {
		children = Forest{}
	}
	return json.Marshal([]any{e.ID, e.Name, children})
}

func (e *Entry) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("tree entry: expected 3 fields, got %d", len(raw))
	}
	var out Entry
	if err := json.Unmarshal(raw[0], &out.ID); err != nil {
		return fmt.Errorf("tree entry id: %w", err)
	}
	if err := json.Unmarshal(raw[1], &out.Name); err != nil {
		return fmt.Errorf("tree entry name: %w", err)
	}
	if err := json.Unmarshal(raw[2], &out.Children); err != nil {
		return fmt.Errorf("tree entry %s children: %w", out.ID, err)
	}
	*e = out
	return nil
}

// Count returns the number of entries in the forest, descendants included.
func (f Forest) Count() int {
	n := 0
	for _, e := range f {
		n += 1 + e.Children.Count()
	}
	return n
}

// IDs returns every id in the forest in depth-first pre-order.
func (f Forest) IDs() []string {
	var out []string
	var walk func(Forest)
	walk = func(xs Forest) {
		for _, e := range xs {
			out = append(out, e.ID)
			walk(e.Children)
		}
	}
	walk(f)
	return out
}

// Find returns the entry with the given id anywhere in the forest.
func (f Forest) Find(id string) (Entry, bool) {
	for _, e := range f {
		if e.ID == id {
			return e, true
		}
		if found, ok := e.Children.Find(id); ok {
			return found, true
		}
	}
	return Entry{}, false
}

var ErrDuplicateID = errors.New("duplicate id")

// Validate reports empty or repeated ids.
func (f Forest) Validate() error {
	seen := map[string]bool{}
	for _, id := range f.IDs() {
		if strings.TrimSpace(id) == "" {
			return errors.New("empty id")
		}
		if seen[id] {
			return fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		seen[id] = true
	}
	return nil
}

// Meta is the allow-listed document metadata.
type Meta map[string]string

// Get returns the value and whether the key is present.
func (m Meta) Get(k string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m[k]
	return v, ok
}

func (m Meta) Type() string {
	if v, ok := m.Get(MetaType); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return DefaultType
}

func (m Meta) Tags() []string {
	v, _ := m.Get(MetaTags)
	return ParseTags(v)
}

// Filtered returns a copy holding only allow-listed keys.
func (m Meta) Filtered() Meta {
	out := Meta{}
	for k, v := range m {
		if IsMetaKey(k) {
			out[k] = v
		}
	}
	return out
}

func (m Meta) Clone() Meta {
	out := make(Meta, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ParseTags splits a comma-joined tag list into a sorted, deduplicated set.
func ParseTags(s string) []string {
	return NormalizeTags(strings.Split(s, ","))
}

// NormalizeTags trims, deduplicates and sorts tags. A comma is the stored separator, so an
// entry holding commas counts as several tags.
func NormalizeTags(tags []string) []string {
	set := map[string]struct{}{}
	for _, entry := range tags {
		for _, t := range strings.Split(entry, ",") {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			set[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func JoinTags(tags []string) string {
	return strings.Join(NormalizeTags(tags), ",")
}

// ToggleTags returns the symmetric difference of current and toggle.
func ToggleTags(current []string, toggle ...string) []string {
	set := map[string]bool{}
	for _, t := range NormalizeTags(current) {
		set[t] = true
	}
	for _, t := range NormalizeTags(toggle) {
		if set[t] {
			delete(set, t)
		} else {
			set[t] = true
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	return NormalizeTags(out)
}

// Project defaults applied to missing fields of older project.conf files.
const (
	DefaultProjectName = "Unknown"
	DefaultBackend     = "local"
)

// Sync backends.
const (
	SyncNone = ""
	SyncGit  = "git"
)

type ProjectMeta struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Backend string `json:"backend"`
	Sync    string `json:"sync,omitempty"`
	Active  bool   `json:"active"`
}
