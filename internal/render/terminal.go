package render

import (
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

var (
	termMu sync.Mutex
	// Renderers are cached per style and width; WithAutoStyle is avoided because it can block on
	// terminal queries.
	termRenderers = map[string]*glamour.TermRenderer{}
)

// Terminal renders a body for a terminal of the given width. style is a glamour standard style
// ("dark", "light", "notty"); empty means "dark".
func Terminal(docType, body string, width int, style string) (string, error) {
	src, err := Markdown(docType, body)
	if err != nil {
		return "", err
	}
	src = strings.TrimSpace(src)
	if src == "" {
		return "", nil
	}
	if width < 10 {
		width = 10
	}
	if style == "" {
		style = "dark"
	}

	key := style + ":" + strconv.Itoa(width)
	termMu.Lock()
	r := termRenderers[key]
	termMu.Unlock()
	if r == nil {
		rr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return src, err
		}
		termMu.Lock()
		if existing := termRenderers[key]; existing != nil {
			r = existing
		} else {
			termRenderers[key] = rr
			r = rr
		}
		termMu.Unlock()
	}
	out, err := r.Render(src)
	if err != nil {
		return src, err
	}
	return strings.TrimRight(out, "\n"), nil
}
