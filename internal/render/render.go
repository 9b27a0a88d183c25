// Package render converts document bodies between their stored format and the forms the CLI and
// TUI show: markdown, plain text, terminal output and standalone HTML.
package render

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"appletree/internal/editor"
	"appletree/internal/model"
)

var (
	htmlToMarkdown = md.NewConverter("", true, nil)
	sanitizer      = newSanitizer()

	markdownRenderer = goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			emoji.Emoji,
		),
		goldmark.WithRendererOptions(
			gmhtml.WithHardWraps(),
		),
	)
)

func newSanitizer() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowDataURIImages()
	return p
}

// Markdown renders a body as markdown.
func Markdown(docType, body string) (string, error) {
	switch normType(docType) {
	case model.TypeRichText:
		if strings.TrimSpace(body) == "" {
			return "", nil
		}
		out, err := htmlToMarkdown.ConvertString(sanitizer.Sanitize(body))
		if err != nil {
			return "", fmt.Errorf("convert html to markdown: %w", err)
		}
		return out, nil
	case model.TypeTable:
		return tableMarkdown(body), nil
	case model.TypePlainText:
		if strings.TrimSpace(body) == "" {
			return "", nil
		}
		return "```\n" + strings.TrimRight(body, "\n") + "\n```\n", nil
	default:
		return body, nil
	}
}

// Text flattens a body to plain text for search and previews.
func Text(docType, body string) string {
	switch normType(docType) {
	case model.TypeRichText:
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
		if err != nil {
			return body
		}
		return strings.Join(strings.Fields(doc.Text()), " ")
	case model.TypeTable:
		rows, err := editor.Rows(body)
		if err != nil {
			return body
		}
		lines := make([]string, 0, len(rows))
		for _, r := range rows {
			lines = append(lines, strings.Join(r, " "))
		}
		return strings.Join(lines, "\n")
	default:
		return body
	}
}

// HTML renders a body as an HTML fragment.
func HTML(docType, body string) (string, error) {
	switch normType(docType) {
	case model.TypeRichText:
		return sanitizer.Sanitize(body), nil
	case model.TypePlainText:
		return "<pre>" + html.EscapeString(body) + "</pre>", nil
	default:
		src := body
		if normType(docType) == model.TypeTable {
			src = tableMarkdown(body)
		}
		var b bytes.Buffer
		if err := markdownRenderer.Convert([]byte(src), &b); err != nil {
			return "", fmt.Errorf("render markdown: %w", err)
		}
		return b.String(), nil
	}
}

func normType(docType string) string {
	docType = strings.TrimSpace(docType)
	if docType == "" {
		return model.DefaultType
	}
	return docType
}

// tableMarkdown renders a CSV body as a GFM table, the first row being the header.
func tableMarkdown(body string) string {
	rows, err := editor.Rows(body)
	if err != nil || len(rows) == 0 {
		return body
	}
	cols := 0
	for _, r := range rows {
		if len(r) > cols {
			cols = len(r)
		}
	}
	var b strings.Builder
	writeRow := func(r []string) {
		b.WriteString("|")
		for i := 0; i < cols; i++ {
			cell := ""
			if i < len(r) {
				cell = strings.ReplaceAll(strings.TrimSpace(r[i]), "|", `\|`)
			}
			b.WriteString(" " + cell + " |")
		}
		b.WriteString("\n")
	}
	writeRow(rows[0])
	b.WriteString("|" + strings.Repeat(" --- |", cols) + "\n")
	for _, r := range rows[1:] {
		writeRow(r)
	}
	return b.String()
}
