package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"appletree/internal/backend"
	"appletree/internal/doctree"
	"appletree/internal/model"
	"appletree/internal/plugin"
	"appletree/internal/render"
)

func (m appModel) updateTree(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.treeList.SettingFilter() {
		var cmd tea.Cmd
		m.treeList, cmd = m.treeList.Update(msg)
		return m, cmd
	}
	m.minibuffer = ""
	id := m.selectedID()

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc", "backspace":
		if m.treeList.IsFiltered() {
			m.treeList.ResetFilter()
			return m, nil
		}
		m.view = viewProjects
		m.refreshProjects()
		return m, nil
	case "a":
		m.openInput(modalNewSibling, "")
		return m, textinput.Blink
	case "A":
		if id == "" {
			return m, nil
		}
		m.openInput(modalNewChild, "")
		return m, textinput.Blink
	case "f":
		m.openInput(modalJump, "")
		m.refreshJump()
		return m, textinput.Blink
	case "s":
		cmd := m.requestSync("sync")
		return m, cmd
	case "p":
		m.openActions(plugin.ScopeProject, plugin.Target{ProjectID: m.project.ID, Docs: m.project.Docs})
		return m, nil
	}

	if id == "" {
		var cmd tea.Cmd
		m.treeList, cmd = m.treeList.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "enter", "e":
		if err := m.openDocument(id); err != nil {
			m.showError(err)
		}
		return m, nil
	case " ", "tab":
		if n, ok := m.tree.Node(id); ok && len(n.Children) > 0 {
			m.collapsed[id] = !m.collapsed[id]
			m.refreshTree()
		}
		return m, nil
	case "r":
		n, _ := m.tree.Node(id)
		m.openInput(modalRename, n.Name)
		return m, textinput.Blink
	case "t":
		m.openInput(modalTags, "")
		return m, textinput.Blink
	case "d", "delete":
		m.modal = modalConfirmRemove
		m.confirmFocus = confirmFocusCancel
		return m, nil
	case "c":
		n, _ := m.tree.Node(id)
		newID, err := m.tree.CloneSubtree(nil, id, n.Parent)
		if err != nil {
			m.showError(err)
			return m, nil
		}
		m.refreshTree()
		selectListItemByID(&m.treeList, newID)
		m.showMinibuffer("Cloned " + n.Name)
		cmd := m.requestSync("clone " + id)
		return m, cmd
	case "K", "shift+up":
		cmd := m.moveSibling(id, -1)
		return m, cmd
	case "J", "shift+down":
		cmd := m.moveSibling(id, 1)
		return m, cmd
	case "H", "shift+left":
		cmd := m.outdent(id)
		return m, cmd
	case "L", "shift+right":
		cmd := m.indent(id)
		return m, cmd
	case "y":
		if err := copyToClipboard(id); err != nil {
			m.showError(err)
		} else {
			m.showMinibuffer("Copied " + id)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.treeList, cmd = m.treeList.Update(msg)
	return m, cmd
}

func (m appModel) selectedID() string {
	if it, ok := m.treeList.SelectedItem().(treeRowItem); ok {
		return it.row.node.ID
	}
	return ""
}

// refreshTree rebuilds the visible rows, keeping the selection when possible.
func (m *appModel) refreshTree() {
	if m.tree == nil {
		return
	}
	cur := m.selectedID()
	docs := m.project.Docs
	rows := flattenTree(m.tree, m.collapsed, func(id string) bool {
		_, ok, _ := docs.DocumentBodyDraft(id)
		return ok
	})
	items := make([]list.Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, treeRowItem{row: r})
	}
	m.treeList.SetItems(items)
	if cur != "" {
		selectListItemByID(&m.treeList, cur)
	}
	m.st.previewKey = ""
}

// revealInTree expands the ancestors of id and selects it.
func (m *appModel) revealInTree(id string) {
	n, ok := m.tree.Node(id)
	if !ok {
		return
	}
	for p := n.Parent; p != ""; {
		delete(m.collapsed, p)
		pn, ok := m.tree.Node(p)
		if !ok {
			break
		}
		p = pn.Parent
	}
	m.refreshTree()
	selectListItemByID(&m.treeList, id)
}

// commitTree persists a structural change and schedules a sync.
func (m *appModel) commitTree(message string) tea.Cmd {
	if _, err := m.tree.Save(); err != nil {
		m.showError(err)
		return nil
	}
	m.refreshTree()
	return m.requestSync(message)
}

// parseNewDocument splits "Name :type" into a name and a document type.
func parseNewDocument(s string, kinds interface{ Names() []string }) (name, docType string) {
	name, docType = s, model.DefaultType
	i := strings.LastIndex(s, " :")
	if i < 0 {
		return name, docType
	}
	want := strings.TrimSpace(s[i+2:])
	for _, k := range kinds.Names() {
		if k == want {
			return strings.TrimSpace(s[:i]), k
		}
	}
	return name, docType
}

func (m *appModel) addDocument(value string, child bool) tea.Cmd {
	name, docType := parseNewDocument(value, m.kinds)
	parent := ""
	if id := m.selectedID(); id != "" {
		if child {
			parent = id
			delete(m.collapsed, id)
		} else if n, ok := m.tree.Node(id); ok {
			parent = n.Parent
		}
	}
	id, err := m.tree.CreateDocument(name, parent, docType)
	if err != nil {
		m.showError(err)
		return nil
	}
	m.refreshTree()
	selectListItemByID(&m.treeList, id)
	return m.requestSync("add document " + id)
}

func (m *appModel) renameSelected(name string) tea.Cmd {
	id := m.selectedID()
	if err := m.tree.Rename(id, name); err != nil {
		m.showError(err)
		return nil
	}
	if err := m.project.Docs.UpdateDocumentMeta(id, model.Meta{model.MetaName: name}); err != nil {
		m.log.Warn("record document name", "doc", id, "error", err)
	}
	return m.commitTree("rename document " + id)
}

func (m *appModel) toggleTags(value string) {
	tags := model.ParseTags(strings.ReplaceAll(value, " ", ","))
	if len(tags) == 0 {
		return
	}
	next, err := m.tree.ToggleTags(m.selectedID(), tags...)
	if err != nil {
		m.showError(err)
		return
	}
	m.refreshTree()
	if len(next) == 0 {
		m.showMinibuffer("No tags")
		return
	}
	m.showMinibuffer("Tags: " + strings.Join(next, ", "))
}

func (m *appModel) removeSelected() tea.Cmd {
	id := m.selectedID()
	m.st.allow = true
	n, err := m.tree.RemoveSubtree(id)
	m.st.allow = false
	if err != nil && !errors.Is(err, doctree.ErrCancelled) {
		m.showError(err)
	} else if err == nil {
		m.showMinibuffer(fmt.Sprintf("Removed %d document(s)", n))
	}
	m.refreshTree()
	m.saveSession()
	return m.requestSync("remove document " + id)
}

func (m *appModel) siblings(id string) (parent string, ids []string, index int) {
	n, _ := m.tree.Node(id)
	index = -1
	for i, s := range m.tree.Children(n.Parent) {
		ids = append(ids, s.ID)
		if s.ID == id {
			index = i
		}
	}
	return n.Parent, ids, index
}

func (m *appModel) moveSibling(id string, delta int) tea.Cmd {
	parent, ids, i := m.siblings(id)
	j := i + delta
	if i < 0 || j < 0 || j >= len(ids) {
		return nil
	}
	if err := m.tree.Move(id, parent, j); err != nil {
		m.showError(err)
		return nil
	}
	return m.commitTree("move document " + id)
}

func (m *appModel) outdent(id string) tea.Cmd {
	n, _ := m.tree.Node(id)
	if n.Parent == "" {
		return nil
	}
	grand, _, pi := m.siblings(n.Parent)
	if err := m.tree.Move(id, grand, pi+1); err != nil {
		m.showError(err)
		return nil
	}
	return m.commitTree("move document " + id)
}

func (m *appModel) indent(id string) tea.Cmd {
	_, ids, i := m.siblings(id)
	if i <= 0 {
		return nil
	}
	prev := ids[i-1]
	if err := m.tree.Move(id, prev, -1); err != nil {
		m.showError(err)
		return nil
	}
	delete(m.collapsed, prev)
	return m.commitTree("move document " + id)
}

type pathSource []string

func (s pathSource) String(i int) string { return s[i] }
func (s pathSource) Len() int            { return len(s) }

// refreshJump matches the jump query against every document path.
func (m *appModel) refreshJump() {
	var ids []string
	var paths pathSource
	m.tree.Walk(func(n doctree.Node, _ int) {
		ids = append(ids, n.ID)
		paths = append(paths, strings.Join(m.tree.Path(n.ID), " / "))
	})
	m.pickLabels, m.pickKeys, m.pickIndex = nil, nil, 0
	q := strings.TrimSpace(m.input.Value())
	if q == "" {
		for i := 0; i < len(ids) && i < 10; i++ {
			m.pickLabels = append(m.pickLabels, paths[i])
			m.pickKeys = append(m.pickKeys, ids[i])
		}
		return
	}
	for i, match := range fuzzy.FindFrom(q, paths) {
		if i == 10 {
			break
		}
		m.pickLabels = append(m.pickLabels, paths[match.Index])
		m.pickKeys = append(m.pickKeys, ids[match.Index])
	}
}

func (m *appModel) viewTree() string {
	h := m.bodyHeight()
	leftW := m.treePaneWidth()
	rightW := max(m.width-leftW-1, 10)
	m.treeList.SetSize(leftW, h)

	var left string
	if len(m.treeList.Items()) == 0 {
		left = styleMuted().Render("No documents yet. Press a to add one.")
	} else {
		left = m.treeList.View()
	}
	left = normalizePane(left, leftW, h)
	sep := normalizePane(strings.TrimRight(strings.Repeat("│\n", h), "\n"), 1, h)
	right := normalizePane(m.previewFor(m.selectedID(), rightW), rightW, h)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, styleMuted().Render(sep), right)
}

// previewFor renders a document for the preview pane, using the open editor's content when the
// document is open.
func (m *appModel) previewFor(id string, width int) string {
	if id == "" {
		return ""
	}
	key := fmt.Sprintf("%s:%d", id, width)
	if key == m.st.previewKey {
		return m.st.preview
	}
	n, _ := m.tree.Node(id)
	body, err := m.project.Docs.DocumentBody(id)
	if err != nil && !errors.Is(err, backend.ErrNotFound) {
		return styleMuted().Render(err.Error())
	}
	if b, ok := m.st.openDocs(m.project.ID, m.log).Get(id); ok {
		body = b.Surface().Body()
	}
	out, err := render.Terminal(n.Type, body, width-1, glamourStyle())
	if err != nil {
		out = render.Text(n.Type, body)
	}
	if strings.TrimSpace(out) == "" {
		out = styleMuted().Render("(empty)")
	}
	m.st.previewKey, m.st.preview = key, out
	return out
}
