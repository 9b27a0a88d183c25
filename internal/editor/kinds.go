package editor

import (
	"sort"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"appletree/internal/model"
)

// Kind knows the body format of one document type.
type Kind interface {
	Name() string
	// ImageRefs lists image references in body order, duplicates removed.
	ImageRefs(body string) []string
	// RewriteImageRefs replaces references found in mapping with their new value.
	RewriteImageRefs(body string, mapping map[string]string) (string, error)
	// Normalize is applied to a body right before it is committed.
	Normalize(body string) string
}

// Kinds is the registry of editor kinds, keyed by document type.
type Kinds struct {
	mu    sync.RWMutex
	kinds map[string]Kind
}

func NewKinds() *Kinds {
	return &Kinds{kinds: map[string]Kind{}}
}

// DefaultKinds registers richtext, markdown, plaintext and table.
func DefaultKinds() *Kinds {
	k := NewKinds()
	k.Register(RichText())
	k.Register(Markdown())
	k.Register(PlainText())
	k.Register(Table())
	return k
}

func (k *Kinds) Register(kind Kind) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.kinds[kind.Name()] = kind
}

// Lookup returns the kind for a document type; an empty type means model.DefaultType.
func (k *Kinds) Lookup(docType string) (Kind, bool) {
	docType = strings.TrimSpace(docType)
	if docType == "" {
		docType = model.DefaultType
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	kind, ok := k.kinds[docType]
	return kind, ok
}

func (k *Kinds) Names() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]string, 0, len(k.kinds))
	for name := range k.kinds {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func dedupe(xs []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		if x == "" || seen[x] {
			continue
		}
		seen[x] = true
		out = append(out, x)
	}
	return out
}

// Rich text (HTML).

type richText struct{}

func RichText() Kind { return richText{} }

func (richText) Name() string { return model.TypeRichText }

func (richText) ImageRefs(body string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil
	}
	var refs []string
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		refs = append(refs, strings.TrimSpace(src))
	})
	return dedupe(refs)
}

func (richText) RewriteImageRefs(body string, mapping map[string]string) (string, error) {
	if len(mapping) == 0 {
		return body, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", err
	}
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if to, ok := mapping[strings.TrimSpace(src)]; ok {
			s.SetAttr("src", to)
		}
	})
	if strings.Contains(strings.ToLower(body), "<html") {
		return doc.Html()
	}
	return doc.Find("body").Html()
}

// Normalize keeps rich text verbatim; sanitising happens when a body is rendered for output.
func (richText) Normalize(body string) string { return body }

// Markdown.

type markdown struct {
	md goldmark.Markdown
}

func Markdown() Kind {
	return markdown{md: goldmark.New()}
}

func (markdown) Name() string { return model.TypeMarkdown }

func (k markdown) ImageRefs(body string) []string {
	src := []byte(body)
	root := k.md.Parser().Parse(text.NewReader(src))
	var refs []string
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if img, ok := n.(*ast.Image); ok && entering {
			refs = append(refs, string(img.Destination))
		}
		return ast.WalkContinue, nil
	})
	return dedupe(refs)
}

func (markdown) RewriteImageRefs(body string, mapping map[string]string) (string, error) {
	for from, to := range mapping {
		body = strings.ReplaceAll(body, "]("+from+")", "]("+to+")")
		body = strings.ReplaceAll(body, "]("+from+" ", "]("+to+" ")
		body = strings.ReplaceAll(body, "](<"+from+">", "](<"+to+">")
	}
	return body, nil
}

func (markdown) Normalize(body string) string { return body }

// Plain text.

type plainText struct{}

func PlainText() Kind { return plainText{} }

func (plainText) Name() string                 { return model.TypePlainText }
func (plainText) ImageRefs(string) []string    { return nil }
func (plainText) Normalize(body string) string { return body }

func (plainText) RewriteImageRefs(body string, _ map[string]string) (string, error) {
	return body, nil
}
