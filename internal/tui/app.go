package tui

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"appletree/internal/doctree"
	"appletree/internal/editor"
	"appletree/internal/plugin"
	"appletree/internal/project"
)

type view int

const (
	viewProjects view = iota
	viewTree
	viewDocument
)

// shared is the mutable state every copy of appModel points at: bubbletea passes the model by
// value, but open editors and the removal gate must survive those copies.
type shared struct {
	open    map[string]*editor.OpenDocuments
	allow   bool
	syncing bool
	// pendingSync holds the message of a sync requested while another was running.
	pendingSync string
	previewKey  string
	preview     string
}

func (s *shared) openDocs(projectID string, log *slog.Logger) *editor.OpenDocuments {
	o := s.open[projectID]
	if o == nil {
		o = editor.NewOpenDocuments(log)
		s.open[projectID] = o
	}
	return o
}

type appModel struct {
	opts  Options
	log   *slog.Logger
	kinds *editor.Kinds
	st    *shared

	width  int
	height int
	view   view

	projectsList list.Model
	treeList     list.Model
	textarea     textarea.Model

	project   *project.Project
	tree      *doctree.Tree
	collapsed map[string]bool
	docID     string

	modal        modalKind
	input        textinput.Model
	confirmFocus confirmModalFocus
	pickLabels   []string
	pickKeys     []string
	pickIndex    int
	actions      []plugin.BoundAction
	busy         string

	externalEditorPath   string
	externalEditorBefore string

	minibuffer    string
	minibufferErr bool
}

func newAppModel(opts Options) appModel {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	m := appModel{
		opts:      opts,
		log:       log,
		kinds:     editor.DefaultKinds(),
		st:        &shared{open: map[string]*editor.OpenDocuments{}},
		view:      viewProjects,
		collapsed: map[string]bool{},
	}
	m.projectsList = newList(nil)
	m.treeList = newList(nil)
	m.textarea = textarea.New()
	m.textarea.ShowLineNumbers = false
	m.textarea.CharLimit = 0
	m.input = textinput.New()
	m.input.Prompt = ""

	m.refreshProjects()
	m.restoreSession()
	return m
}

func (m appModel) Init() tea.Cmd { return nil }

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case externalEditorDoneMsg:
		m.applyExternalEditorResult(msg)
		return m, nil

	case syncDoneMsg:
		cmd := m.handleSyncDone(msg)
		return m, cmd

	case actionDoneMsg:
		m.applyActionResult(msg)
		return m, nil

	case tea.KeyMsg:
		if m.modal != modalNone {
			return m.updateModal(msg)
		}
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.view {
		case viewProjects:
			return m.updateProjects(msg)
		case viewTree:
			return m.updateTree(msg)
		case viewDocument:
			return m.updateDocument(msg)
		}
	}
	return m, nil
}

func (m appModel) View() string {
	if m.width == 0 {
		return ""
	}
	var body string
	switch m.view {
	case viewProjects:
		body = m.projectsList.View()
	case viewTree:
		body = m.viewTree()
	case viewDocument:
		body = m.viewDocument()
	}
	body = normalizePane(body, m.width, m.bodyHeight())

	if box := m.viewModal(); box != "" {
		body = lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center, box,
			lipgloss.WithWhitespaceChars(" "))
	}
	return strings.Join([]string{m.viewHeader(), body, m.viewFooter()}, "\n")
}

func (m appModel) bodyHeight() int {
	return max(m.height-3, 4)
}

func (m *appModel) resize() {
	h := m.bodyHeight()
	m.projectsList.SetSize(m.width, h)
	m.treeList.SetSize(m.treePaneWidth(), h)
	m.textarea.SetWidth(max(m.width-2, 10))
	m.textarea.SetHeight(max(h-1, 3))
	m.input.Width = max(modalBodyWidth(m.width)-2, 10)
}

func (m appModel) treePaneWidth() int {
	return max(m.width*2/5, 24)
}

func (m appModel) viewHeader() string {
	parts := []string{"appletree"}
	if m.project != nil {
		parts = append(parts, m.project.Meta.Name)
	}
	if m.view == viewDocument && m.tree != nil {
		parts = append(parts, strings.Join(m.tree.Path(m.docID), glyphSeparator()))
		if b, ok := m.binding(); ok && b.Modified() {
			parts[len(parts)-1] += " " + lipgloss.NewStyle().Foreground(colorDraft).Render(glyphDraft())
		}
	}
	return fitLine(styleHeader().Render(strings.Join(parts, glyphSeparator())), m.width)
}

func (m appModel) viewFooter() string {
	if m.busy != "" {
		return fitLine(styleMuted().Render(m.busy+"…"), m.width)
	}
	if m.minibuffer != "" {
		st := lipgloss.NewStyle()
		if m.minibufferErr {
			st = st.Foreground(colorError)
		}
		return fitLine(st.Render(m.minibuffer), m.width)
	}
	var help string
	switch m.view {
	case viewProjects:
		help = "enter: open  n: new project  /: filter  q: quit"
	case viewTree:
		help = "enter: edit  a/A: add sibling/child  r: rename  t: tags  d: remove  c: clone  K/J: move  H/L: out/indent  f: jump  y: copy id  s: sync  esc: projects"
	case viewDocument:
		help = "ctrl+s: save  ctrl+d: draft  ctrl+r: revert  ctrl+e: $EDITOR  ctrl+o: actions  ctrl+w: close  esc: tree"
	}
	return fitLine(styleMuted().Render(help), m.width)
}

func (m *appModel) showMinibuffer(s string) {
	m.minibuffer, m.minibufferErr = s, false
}

func (m *appModel) showError(err error) {
	m.minibuffer, m.minibufferErr = "Error: "+err.Error(), true
	m.log.Warn("tui", "error", err)
}

func (m appModel) updateProjects(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.projectsList.SettingFilter() {
		var cmd tea.Cmd
		m.projectsList, cmd = m.projectsList.Update(msg)
		return m, cmd
	}
	m.minibuffer = ""
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "n":
		m.openInput(modalNewProject, "")
		return m, textinput.Blink
	case "enter":
		if it, ok := m.projectsList.SelectedItem().(projectItem); ok {
			if err := m.enterProject(it.meta.ID); err != nil {
				m.showError(err)
			}
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.projectsList, cmd = m.projectsList.Update(msg)
	return m, cmd
}

func (m *appModel) refreshProjects() {
	metas, err := m.opts.Projects.Metas()
	if err != nil {
		m.showError(err)
		return
	}
	cur := ""
	if m.project != nil {
		cur = m.project.ID
	}
	items := make([]list.Item, 0, len(metas))
	for _, meta := range metas {
		items = append(items, projectItem{meta: meta, current: meta.ID == cur})
	}
	m.projectsList.SetItems(items)
	if cur != "" {
		selectListItemByID(&m.projectsList, cur)
	}
}

// enterProject opens a project and shows its tree.
func (m *appModel) enterProject(id string) error {
	p, err := m.opts.Projects.Open(id)
	if err != nil {
		return err
	}
	open := m.st.openDocs(id, m.log)
	st := m.st
	t, err := p.Tree(
		doctree.WithCloser(open),
		doctree.WithConfirmer(doctree.ConfirmFunc(func(string, string, string) bool { return st.allow })),
	)
	if err != nil {
		return fmt.Errorf("load project %s: %w", id, err)
	}
	if err := m.opts.Projects.SetActive(id, true); err != nil {
		m.log.Warn("mark project active", "project", id, "error", err)
	}
	m.project, m.tree = p, t
	m.collapsed = map[string]bool{}
	m.view = viewTree
	m.refreshTree()
	m.saveSession()
	return nil
}

func (m appModel) viewModal() string {
	switch m.modal {
	case modalNewSibling:
		return renderInputModal(m.width, "New document", "Name (type with \"name :markdown\")", m.input)
	case modalNewChild:
		return renderInputModal(m.width, "New child document", "Name (type with \"name :markdown\")", m.input)
	case modalNewProject:
		return renderInputModal(m.width, "New project", "Name", m.input)
	case modalRename:
		return renderInputModal(m.width, "Rename", "Name", m.input)
	case modalTags:
		return renderInputModal(m.width, "Toggle tags", "Tags to toggle, separated by spaces or commas", m.input)
	case modalConfirmRemove:
		n, _ := m.tree.Node(m.selectedID())
		count := len(m.tree.IDs(n.ID))
		body := fmt.Sprintf("Remove %q and everything below it (%d document(s))?", n.Name, count)
		return renderConfirmModal(m.width, "Remove documents", body, "Remove", "Cancel", m.confirmFocus)
	case modalActions:
		return renderPickModal(m.width, "Actions", nil, m.pickLabels, m.pickIndex)
	case modalJump:
		return renderPickModal(m.width, "Jump to document", &m.input, m.pickLabels, m.pickIndex)
	}
	return ""
}

func (m *appModel) openInput(kind modalKind, value string) {
	m.modal = kind
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Focus()
}

func (m *appModel) closeModal() {
	m.modal = modalNone
	m.input.Blur()
	m.input.SetValue("")
	m.pickLabels, m.pickKeys, m.pickIndex = nil, nil, 0
	m.actions = nil
}

func (m appModel) updateModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "esc" || key == "ctrl+g" {
		m.closeModal()
		return m, nil
	}

	switch m.modal {
	case modalConfirmRemove:
		switch key {
		case "tab", "shift+tab", "left", "right", "h", "l":
			if m.confirmFocus == confirmFocusConfirm {
				m.confirmFocus = confirmFocusCancel
			} else {
				m.confirmFocus = confirmFocusConfirm
			}
		case "y":
			m.confirmFocus = confirmFocusConfirm
			fallthrough
		case "enter":
			confirmed := m.confirmFocus == confirmFocusConfirm
			m.closeModal()
			if confirmed {
				cmd := m.removeSelected()
				return m, cmd
			}
		case "n":
			m.closeModal()
		}
		return m, nil

	case modalActions, modalJump:
		switch key {
		case "up", "ctrl+p":
			m.pickIndex = max(m.pickIndex-1, 0)
			return m, nil
		case "down", "ctrl+n":
			m.pickIndex = min(m.pickIndex+1, max(len(m.pickLabels)-1, 0))
			return m, nil
		case "enter":
			cmd := m.submitPick()
			return m, cmd
		}
		if m.modal == modalActions {
			return m, nil
		}
	}

	if key == "enter" {
		cmd := m.submitInput()
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.modal == modalJump {
		m.refreshJump()
	}
	return m, cmd
}

func (m *appModel) submitInput() tea.Cmd {
	kind, value := m.modal, strings.TrimSpace(m.input.Value())
	m.closeModal()
	if value == "" && kind != modalTags {
		return nil
	}
	switch kind {
	case modalNewProject:
		id, err := m.opts.Projects.Create(value, "local", "", "")
		if err != nil {
			m.showError(err)
			return nil
		}
		m.refreshProjects()
		selectListItemByID(&m.projectsList, id)
		m.showMinibuffer("Created project " + value)
	case modalNewSibling, modalNewChild:
		return m.addDocument(value, kind == modalNewChild)
	case modalRename:
		return m.renameSelected(value)
	case modalTags:
		m.toggleTags(value)
	}
	return nil
}

func (m *appModel) submitPick() tea.Cmd {
	if m.pickIndex < 0 || m.pickIndex >= len(m.pickKeys) {
		m.closeModal()
		return nil
	}
	kind, key := m.modal, m.pickKeys[m.pickIndex]
	var action plugin.BoundAction
	if kind == modalActions {
		action = m.actions[m.pickIndex]
	}
	m.closeModal()
	switch kind {
	case modalJump:
		m.revealInTree(key)
	case modalActions:
		return m.runAction(action)
	}
	return nil
}
