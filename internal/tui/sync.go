package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"appletree/internal/project"
)

type syncDoneMsg struct {
	committed bool
	err       error
}

func syncCmd(p *project.Project, message string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		committed, err := p.Sync(ctx, message)
		return syncDoneMsg{committed: committed, err: err}
	}
}

// requestSync starts a sync of the current project, or queues one when a sync is already
// running. Only the latest queued message is kept.
func (m *appModel) requestSync(message string) tea.Cmd {
	if m.project == nil || m.project.Meta.Sync == "" {
		return nil
	}
	if m.st.syncing {
		m.st.pendingSync = message
		return nil
	}
	m.st.syncing = true
	return syncCmd(m.project, message)
}

func (m *appModel) handleSyncDone(msg syncDoneMsg) tea.Cmd {
	m.st.syncing = false
	if msg.err != nil {
		m.showError(msg.err)
	}
	if next := m.st.pendingSync; next != "" {
		m.st.pendingSync = ""
		return m.requestSync(next)
	}
	return nil
}
