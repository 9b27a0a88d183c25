// Package session persists last-session UI state in appletree.conf: the active project and,
// per project, the open documents and the current one.
package session

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/ini.v1"

	"appletree/internal/store"
)

const (
	FileName       = "appletree.conf"
	mainSection    = "session"
	projectSection = "project "
)

type ProjectState struct {
	Open    []string `json:"open"`
	Current string   `json:"current,omitempty"`
}

type State struct {
	ActiveProject string                  `json:"activeProject,omitempty"`
	Projects      map[string]ProjectState `json:"projects"`
}

func Path(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

// Load reads the session file. A missing or unreadable file is an empty session; session state
// is a convenience and never blocks startup.
func Load(path string) (State, error) {
	st := State{Projects: map[string]ProjectState{}}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return st, nil
		}
		return st, err
	}
	cfg, err := ini.Load(b)
	if err != nil {
		return st, nil
	}
	if sec, err := cfg.GetSection(mainSection); err == nil {
		st.ActiveProject = strings.TrimSpace(sec.Key("active_project").String())
	}
	for _, sec := range cfg.Sections() {
		name := sec.Name()
		if !strings.HasPrefix(name, projectSection) {
			continue
		}
		id := strings.TrimSpace(strings.TrimPrefix(name, projectSection))
		if id == "" {
			continue
		}
		ps := ProjectState{
			Open:    splitIDs(sec.Key("open").String()),
			Current: strings.TrimSpace(sec.Key("current").String()),
		}
		st.Projects[id] = ps
	}
	return st, nil
}

func Save(path string, st State) error {
	cfg := ini.Empty()
	main, err := cfg.NewSection(mainSection)
	if err != nil {
		return err
	}
	if _, err := main.NewKey("active_project", st.ActiveProject); err != nil {
		return err
	}
	ids := make([]string, 0, len(st.Projects))
	for id := range st.Projects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		ps := st.Projects[id]
		sec, err := cfg.NewSection(projectSection + id)
		if err != nil {
			return err
		}
		if _, err := sec.NewKey("open", strings.Join(ps.Open, ",")); err != nil {
			return err
		}
		if _, err := sec.NewKey("current", ps.Current); err != nil {
			return err
		}
	}
	var buf bytes.Buffer
	if _, err := cfg.WriteTo(&buf); err != nil {
		return err
	}
	return store.AtomicWriteFile(path, buf.Bytes(), 0o600)
}

// Remember records the open documents of a project. current must be one of open, otherwise it
// falls back to the last open document.
func (s *State) Remember(projectID string, open []string, current string) {
	if s.Projects == nil {
		s.Projects = map[string]ProjectState{}
	}
	open = append([]string(nil), open...)
	found := false
	for _, id := range open {
		if id == current {
			found = true
			break
		}
	}
	if !found {
		current = ""
		if len(open) > 0 {
			current = open[len(open)-1]
		}
	}
	s.Projects[projectID] = ProjectState{Open: open, Current: current}
}

func (s *State) Forget(projectID string) {
	delete(s.Projects, projectID)
	if s.ActiveProject == projectID {
		s.ActiveProject = ""
	}
}

// Prune drops documents that no longer exist according to exists.
func (s *State) Prune(projectID string, exists func(docID string) bool) {
	ps, ok := s.Projects[projectID]
	if !ok {
		return
	}
	var kept []string
	for _, id := range ps.Open {
		if exists(id) {
			kept = append(kept, id)
		}
	}
	s.Remember(projectID, kept, ps.Current)
}

func splitIDs(s string) []string {
	var out []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
