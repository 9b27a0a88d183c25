package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

type modalKind int

const (
	modalNone modalKind = iota
	modalNewSibling
	modalNewChild
	modalNewProject
	modalRename
	modalTags
	modalConfirmRemove
	modalActions
	modalJump
)

type confirmModalFocus int

const (
	confirmFocusConfirm confirmModalFocus = iota
	confirmFocusCancel
)

func modalWidth(width int) int {
	w := width * 2 / 3
	return min(max(w, 40), 90)
}

func modalBodyWidth(width int) int {
	return modalWidth(width) - 4
}

func renderModalBox(width int, title, content string) string {
	w := modalWidth(width)
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorSurfaceFg).
		Background(colorControlBg).
		Width(w - 2).
		Padding(0, 1).
		Render(title)
	body := lipgloss.NewStyle().
		Foreground(colorSurfaceFg).
		Background(colorSurfaceBg).
		Width(w - 2).
		Padding(1, 1).
		Render(content)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Render(lipgloss.JoinVertical(lipgloss.Left, head, body))
}

func renderInputLine(bodyW int, inputView string) string {
	bodyW = max(bodyW, 10)
	// A newline in the input view would wrap the modal.
	inputView = strings.NewReplacer("\n", " ", "\r", " ").Replace(inputView)
	line := lipgloss.PlaceHorizontal(
		bodyW,
		lipgloss.Left,
		" "+inputView+" ",
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceBackground(colorInputBg),
	)
	if xansi.StringWidth(line) > bodyW {
		line = xansi.Cut(line, 0, bodyW) + "\x1b[0m"
	}
	return line
}

func renderInputModal(width int, title, label string, in textinput.Model) string {
	bodyW := modalBodyWidth(width)
	content := strings.Join([]string{
		label,
		renderInputLine(bodyW, in.View()),
		"",
		styleMuted().Width(bodyW).Render("enter: save   esc: cancel"),
	}, "\n")
	return renderModalBox(width, title, content)
}

func renderConfirmModal(width int, title, body, confirmLabel, cancelLabel string, focus confirmModalFocus) string {
	btnBase := lipgloss.NewStyle().
		Padding(0, 1).
		Foreground(colorSurfaceFg).
		Background(colorControlBg)
	btnActive := btnBase.
		Foreground(colorSelectedFg).
		Background(colorSelectedBg).
		Bold(true)

	confirm := btnBase.Render(confirmLabel)
	cancel := btnBase.Render(cancelLabel)
	if focus == confirmFocusConfirm {
		confirm = btnActive.Render(confirmLabel)
	} else {
		cancel = btnActive.Render(cancelLabel)
	}
	controls := lipgloss.JoinHorizontal(lipgloss.Top, confirm, " ", cancel)

	bodyW := modalBodyWidth(width)
	content := strings.Join([]string{
		body,
		"",
		controls,
		"",
		styleMuted().Width(bodyW).Render("tab: focus   enter: select   esc: cancel"),
	}, "\n")
	return renderModalBox(width, title, content)
}

// renderPickModal shows a query line (when in is non-nil) above a list of choices.
func renderPickModal(width int, title string, in *textinput.Model, choices []string, selected int) string {
	bodyW := modalBodyWidth(width)
	var lines []string
	if in != nil {
		lines = append(lines, renderInputLine(bodyW, in.View()), "")
	}
	if len(choices) == 0 {
		lines = append(lines, styleMuted().Render("(nothing)"))
	}
	sel := lipgloss.NewStyle().Foreground(colorSelectedFg).Background(colorSelectedBg).Bold(true)
	for i, c := range choices {
		c = fitLine(c, bodyW)
		if i == selected {
			c = sel.Render(c)
		}
		lines = append(lines, c)
	}
	lines = append(lines, "", styleMuted().Width(bodyW).Render("up/down: move   enter: select   esc: cancel"))
	return renderModalBox(width, title, strings.Join(lines, "\n"))
}
