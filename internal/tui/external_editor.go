package tui

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"appletree/internal/editor"
	"appletree/internal/model"
	"appletree/internal/shellwords"
)

type externalEditorDoneMsg struct {
	err error
}

func externalEditorName() string {
	if v := strings.TrimSpace(os.Getenv("VISUAL")); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv("EDITOR")); v != "" {
		return v
	}
	return "vi"
}

func tempExt(docType string) string {
	switch docType {
	case model.TypeRichText:
		return ".html"
	case model.TypeMarkdown:
		return ".md"
	case model.TypeTable:
		return ".csv"
	}
	return ".txt"
}

func (m *appModel) openExternalEditor(b *editor.Binding) (tea.Cmd, error) {
	args := shellwords.Split(externalEditorName())
	if len(args) == 0 {
		args = []string{"vi"}
	}

	f, err := os.CreateTemp("", "appletree-*"+tempExt(b.Kind().Name()))
	if err != nil {
		return nil, err
	}
	path := f.Name()
	if _, err := f.WriteString(m.textarea.Value()); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, err
	}
	_ = f.Close()

	m.externalEditorPath = path
	m.externalEditorBefore = m.textarea.Value()

	cmd := exec.Command(args[0], append(args[1:], path)...)
	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		return externalEditorDoneMsg{err: err}
	}), nil
}

func (m *appModel) applyExternalEditorResult(msg externalEditorDoneMsg) {
	path, before := m.externalEditorPath, m.externalEditorBefore
	m.externalEditorPath, m.externalEditorBefore = "", ""
	if strings.TrimSpace(path) == "" {
		return
	}
	defer func() { _ = os.Remove(path) }()

	if msg.err != nil {
		m.showError(fmt.Errorf("editor failed: %w", msg.err))
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		m.showError(fmt.Errorf("editor read failed: %w", err))
		return
	}
	after := string(data)
	if after == before {
		m.showMinibuffer(fmt.Sprintf("No changes from %s", externalEditorName()))
		return
	}
	m.textarea.SetValue(after)
	if b, ok := m.binding(); ok {
		m.syncSurface(b)
	}
	m.showMinibuffer(fmt.Sprintf("Updated from %s (ctrl+s to save)", externalEditorName()))
}
