package plugin

import (
	"fmt"
	"html"
	"strings"

	"appletree/internal/model"
)

// InsertText appends text to the target surface in the document's own markup.
func InsertText(t Target, text string) error {
	if t.Surface == nil {
		return ErrNoEditor
	}
	body := t.Surface.Body()
	switch docType(t) {
	case model.TypeRichText:
		body += "<p>" + html.EscapeString(text) + "</p>"
	case model.TypeTable:
		return fmt.Errorf("insert text: %w: %s", ErrUnsupported, model.TypeTable)
	default:
		if body != "" && !strings.HasSuffix(body, "\n") {
			body += "\n"
		}
		body += text
	}
	t.Surface.SetBody(body)
	return nil
}

// InsertImage appends an image reference. Only richtext and markdown carry images.
func InsertImage(t Target, ref, alt string) error {
	if t.Surface == nil {
		return ErrNoEditor
	}
	body := t.Surface.Body()
	switch docType(t) {
	case model.TypeRichText:
		body += fmt.Sprintf(`<p><img src="%s" alt="%s"/></p>`, html.EscapeString(ref), html.EscapeString(alt))
	case model.TypeMarkdown:
		if body != "" && !strings.HasSuffix(body, "\n") {
			body += "\n"
		}
		body += fmt.Sprintf("![%s](%s)\n", alt, ref)
	default:
		return fmt.Errorf("insert image: %w: %s", ErrUnsupported, docType(t))
	}
	t.Surface.SetBody(body)
	return nil
}

func hasImages(t Target) bool {
	switch docType(t) {
	case model.TypeRichText, model.TypeMarkdown:
		return true
	}
	return false
}

func docType(t Target) string {
	if t.DocType == "" {
		return model.DefaultType
	}
	return t.DocType
}
