package tui

import (
	"appletree/internal/session"
)

// restoreSession reopens the last active project and its open documents.
func (m *appModel) restoreSession() {
	st, err := session.Load(m.opts.SessionPath)
	if err != nil {
		m.log.Warn("load session", "error", err)
	}
	id := m.opts.ProjectID
	if id == "" {
		id = st.ActiveProject
	}
	if id == "" {
		return
	}
	if err := m.enterProject(id); err != nil {
		m.showError(err)
		return
	}
	ps := st.Projects[id]
	for _, docID := range ps.Open {
		if !m.tree.Has(docID) {
			continue
		}
		if err := m.openDocument(docID); err != nil {
			m.log.Warn("reopen document", "doc", docID, "error", err)
		}
	}
	if ps.Current != "" && m.tree.Has(ps.Current) {
		m.revealInTree(ps.Current)
	}
	// Start in the tree; the reopened documents are one enter away.
	m.view = viewTree
	m.textarea.Blur()
	m.refreshTree()
}

func (m *appModel) saveSession() {
	if m.opts.SessionPath == "" || m.project == nil {
		return
	}
	st, err := session.Load(m.opts.SessionPath)
	if err != nil {
		m.log.Warn("load session", "error", err)
	}
	st.ActiveProject = m.project.ID
	open := m.st.openDocs(m.project.ID, m.log)
	st.Remember(m.project.ID, open.IDs(), open.Current())
	if err := session.Save(m.opts.SessionPath, st); err != nil {
		m.log.Warn("save session", "error", err)
	}
}

// shutdown records the session and closes every open editor, keeping unsaved edits as drafts.
func (m *appModel) shutdown() {
	m.saveSession()
	for id, open := range m.st.open {
		if err := open.CloseAll(); err != nil {
			m.log.Warn("close documents", "project", id, "error", err)
		}
	}
}
