package tui

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"appletree/internal/editor"
	"appletree/internal/model"
	"appletree/internal/plugin"
)

type actionDoneMsg struct {
	docID   string
	before  string
	body    string
	message string
	err     error
}

// binding returns the open editor of the current document.
func (m appModel) binding() (*editor.Binding, bool) {
	if m.project == nil || m.docID == "" {
		return nil, false
	}
	return m.st.openDocs(m.project.ID, m.log).Get(m.docID)
}

// openDocument binds id (reusing an editor that is already open) and shows it.
func (m *appModel) openDocument(id string) error {
	open := m.st.openDocs(m.project.ID, m.log)
	b, ok := open.Get(id)
	if !ok {
		n, ok := m.tree.Node(id)
		if !ok {
			return fmt.Errorf("document not found: %s", id)
		}
		kind, ok := m.kinds.Lookup(n.Type)
		if !ok {
			return fmt.Errorf("no editor for document type %q", n.Type)
		}
		cwd, _ := os.Getwd()
		buf := editor.NewBuffer(kind, editor.FileResolver{BaseDir: cwd, Docs: m.project.Docs, DocID: id})
		b = editor.Bind(m.project.Docs, id, buf, kind, editor.WithLogger(m.log))
		if err := b.Open(); err != nil {
			return err
		}
	}
	open.Add(b)
	m.docID = id
	m.view = viewDocument
	m.textarea.SetValue(b.Surface().Body())
	m.textarea.Focus()
	m.saveSession()
	return nil
}

func (m appModel) updateDocument(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	b, ok := m.binding()
	if !ok {
		m.view = viewTree
		m.refreshTree()
		return m, nil
	}
	if m.busy != "" {
		return m, nil
	}
	m.minibuffer = ""

	switch msg.String() {
	case "esc":
		m.syncSurface(b)
		m.textarea.Blur()
		m.view = viewTree
		m.refreshTree()
		return m, nil
	case "ctrl+s":
		cmd := m.saveDocument(b)
		return m, cmd
	case "ctrl+d":
		m.syncSurface(b)
		if err := b.SaveDraft(); err != nil {
			m.showError(err)
		} else {
			m.showMinibuffer("Draft saved")
		}
		return m, nil
	case "ctrl+r":
		if err := b.Discard(); err != nil {
			m.showError(err)
			return m, nil
		}
		m.textarea.SetValue(b.Surface().Body())
		m.showMinibuffer("Reverted to the saved version")
		return m, nil
	case "ctrl+w":
		m.syncSurface(b)
		if err := m.st.openDocs(m.project.ID, m.log).Close(m.docID); err != nil {
			m.showError(err)
		}
		m.docID = ""
		m.view = viewTree
		m.refreshTree()
		m.saveSession()
		return m, nil
	case "ctrl+e":
		m.syncSurface(b)
		cmd, err := m.openExternalEditor(b)
		if err != nil {
			m.showError(err)
			return m, nil
		}
		return m, cmd
	case "ctrl+o":
		m.syncSurface(b)
		n, _ := m.tree.Node(m.docID)
		m.openActions(plugin.ScopeEditor, plugin.Target{
			ProjectID: m.project.ID,
			Docs:      m.project.Docs,
			DocID:     n.ID,
			DocType:   n.Type,
			Surface:   b.Surface(),
		})
		return m, nil
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	m.syncSurface(b)
	return m, cmd
}

// syncSurface copies the textarea into the editor surface, marking the binding edited when the
// content differs.
func (m *appModel) syncSurface(b *editor.Binding) {
	v := m.textarea.Value()
	if v == b.Surface().Body() {
		return
	}
	b.Surface().SetBody(v)
	b.MarkEdited()
}

func (m *appModel) saveDocument(b *editor.Binding) tea.Cmd {
	m.syncSurface(b)
	if err := b.Save(); err != nil {
		m.showError(err)
		return nil
	}
	if err := m.project.Docs.UpdateDocumentMeta(b.ID(), model.Meta{model.MetaModified: time.Now().UTC().Format(time.RFC3339)}); err != nil {
		m.log.Warn("record modified time", "doc", b.ID(), "error", err)
	}
	m.textarea.SetValue(b.Surface().Body())
	m.st.previewKey = ""
	m.showMinibuffer("Saved")
	return m.requestSync("edit document " + b.ID())
}

func (m appModel) viewDocument() string {
	return m.textarea.View()
}

func (m *appModel) openActions(scope plugin.Scope, t plugin.Target) {
	if m.opts.Plugins == nil {
		m.showMinibuffer("No plugins loaded")
		return
	}
	m.actions = m.opts.Plugins.Actions(scope, t)
	m.pickLabels, m.pickKeys, m.pickIndex = nil, nil, 0
	for _, a := range m.actions {
		label := a.Plugin + ": " + a.Description
		if a.Description == "" {
			label = a.Plugin + ": " + a.Name
		}
		m.pickLabels = append(m.pickLabels, label)
		m.pickKeys = append(m.pickKeys, a.Plugin+"/"+a.Name)
	}
	m.modal = modalActions
}

// runAction runs a plugin action off the UI goroutine. Editor actions work on a copy of the
// surface that is applied when the action finishes.
func (m *appModel) runAction(a plugin.BoundAction) tea.Cmd {
	target := plugin.Target{ProjectID: m.project.ID, Docs: m.project.Docs}
	var before string
	if b, ok := m.binding(); ok && m.view == viewDocument {
		n, _ := m.tree.Node(m.docID)
		before = b.Surface().Body()
		buf := editor.NewBuffer(b.Kind(), editor.ResolverFunc(b.Surface().ResolveImage))
		buf.SetBody(before)
		target.DocID, target.DocType, target.Surface = n.ID, n.Type, buf
	}
	m.busy = a.Plugin + ": " + a.Name
	run := a.Run
	return func() tea.Msg {
		msg, err := run(context.Background(), target)
		out := actionDoneMsg{docID: target.DocID, before: before, message: msg, err: err}
		if target.Surface != nil {
			out.body = target.Surface.Body()
		}
		return out
	}
}

func (m *appModel) applyActionResult(msg actionDoneMsg) {
	m.busy = ""
	if msg.err != nil {
		m.showError(msg.err)
		return
	}
	if msg.docID != "" && msg.docID == m.docID && msg.body != msg.before {
		if b, ok := m.binding(); ok {
			m.textarea.SetValue(msg.body)
			m.syncSurface(b)
		}
	}
	m.refreshTree()
	if msg.message != "" {
		m.showMinibuffer(msg.message)
	}
}
