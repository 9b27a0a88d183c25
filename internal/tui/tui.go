// Package tui is the interactive terminal browser: projects, the document tree with a rendered
// preview, and a document editor.
package tui

import (
	"context"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"appletree/internal/plugin"
	"appletree/internal/project"
)

type Options struct {
	Projects *project.Registry
	Plugins  *plugin.Registry
	// SessionPath is the appletree.conf that remembers the active project and open documents.
	SessionPath string
	// ProjectID opens straight into a project's tree when set.
	ProjectID string
	Log       *slog.Logger
}

func Run(ctx context.Context, opts Options) error {
	applyThemePreference()
	applyColorProfilePreference()
	applyGlyphPreference()

	final, err := tea.NewProgram(newAppModel(opts), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if m, ok := final.(appModel); ok {
		m.shutdown()
	}
	return err
}
