package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"appletree/internal/doctree"
	"appletree/internal/model"
)

type treeRow struct {
	node        doctree.Node
	depth       int
	hasChildren bool
	collapsed   bool
	draft       bool
}

// flattenTree lists the visible rows of t in pre-order, skipping the descendants of collapsed
// nodes. hasDraft may be nil.
func flattenTree(t *doctree.Tree, collapsed map[string]bool, hasDraft func(id string) bool) []treeRow {
	var out []treeRow
	var walk func(nodes []doctree.Node, depth int)
	walk = func(nodes []doctree.Node, depth int) {
		for _, n := range nodes {
			row := treeRow{
				node:        n,
				depth:       depth,
				hasChildren: len(n.Children) > 0,
				collapsed:   collapsed[n.ID],
			}
			if hasDraft != nil {
				row.draft = hasDraft(n.ID)
			}
			out = append(out, row)
			if row.hasChildren && !row.collapsed {
				walk(t.Children(n.ID), depth+1)
			}
		}
	}
	walk(t.Roots(), 0)
	return out
}

type treeRowItem struct {
	row treeRow
}

func (i treeRowItem) FilterValue() string { return i.row.node.Name }

func (i treeRowItem) Title() string {
	r := i.row
	twisty := glyphLeaf()
	if r.hasChildren {
		twisty = glyphTwistyExpanded()
		if r.collapsed {
			twisty = glyphTwistyCollapsed()
		}
	}
	var b strings.Builder
	b.WriteString(strings.Repeat("  ", r.depth))
	b.WriteString(twisty)
	b.WriteString(" ")
	b.WriteString(r.node.Name)
	if r.node.Type != model.DefaultType {
		b.WriteString(" [" + r.node.Type + "]")
	}
	if r.draft {
		b.WriteString(" " + glyphDraft())
	}
	if len(r.node.Tags) > 0 {
		b.WriteString("  #" + strings.Join(r.node.Tags, " #"))
	}
	return b.String()
}

type projectItem struct {
	meta    model.ProjectMeta
	current bool
}

func (i projectItem) FilterValue() string { return i.meta.Name }
func (i projectItem) Title() string {
	t := i.meta.Name
	if i.current {
		t += " " + glyphBullet()
	}
	if i.meta.Sync != "" {
		t += "  (" + i.meta.Sync + ")"
	}
	return t
}

type compactItemDelegate struct {
	normal   lipgloss.Style
	selected lipgloss.Style
}

func newCompactItemDelegate() compactItemDelegate {
	return compactItemDelegate{
		normal: lipgloss.NewStyle(),
		selected: lipgloss.NewStyle().
			Foreground(colorSelectedFg).
			Background(colorSelectedBg).
			Bold(true),
	}
}

func (d compactItemDelegate) Height() int                             { return 1 }
func (d compactItemDelegate) Spacing() int                            { return 0 }
func (d compactItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d compactItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	width := m.Width()
	if width < 4 {
		return
	}
	txt := fmt.Sprint(item)
	if t, ok := item.(interface{ Title() string }); ok {
		txt = t.Title()
	}
	style := d.normal
	if index == m.Index() {
		style = d.selected
	}
	fmt.Fprint(w, style.Render(fitLine(txt, width)))
}

func newList(items []list.Item) list.Model {
	l := list.New(items, newCompactItemDelegate(), 0, 0)
	// The app renders its own header and footer.
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetShowPagination(false)
	l.SetFilteringEnabled(true)
	// esc is "back" here, not quit.
	l.KeyMap.Quit.SetKeys("q")
	l.KeyMap.CursorUp.SetKeys(append(l.KeyMap.CursorUp.Keys(), "ctrl+p")...)
	l.KeyMap.CursorDown.SetKeys(append(l.KeyMap.CursorDown.Keys(), "ctrl+n")...)
	return l
}

func selectListItemByID(l *list.Model, id string) {
	for i, it := range l.Items() {
		switch it := it.(type) {
		case projectItem:
			if it.meta.ID == id {
				l.Select(i)
				return
			}
		case treeRowItem:
			if it.row.node.ID == id {
				l.Select(i)
				return
			}
		}
	}
}
