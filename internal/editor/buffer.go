package editor

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"appletree/internal/backend"
)

var ErrUnresolvable = errors.New("image reference cannot be resolved")

// Resolver turns an image reference into encoded image bytes.
type Resolver interface {
	Resolve(ref string) ([]byte, error)
}

type ResolverFunc func(ref string) ([]byte, error)

func (f ResolverFunc) Resolve(ref string) ([]byte, error) { return f(ref) }

// Buffer is an in-memory Surface for headless use.
type Buffer struct {
	body     string
	kind     Kind
	resolver Resolver
}

func NewBuffer(kind Kind, resolver Resolver) *Buffer {
	return &Buffer{kind: kind, resolver: resolver}
}

func (b *Buffer) Body() string        { return b.body }
func (b *Buffer) SetBody(body string) { b.body = body }

func (b *Buffer) ImageRefs() []string {
	if b.kind == nil {
		return nil
	}
	return b.kind.ImageRefs(b.body)
}

func (b *Buffer) ResolveImage(ref string) ([]byte, error) {
	if b.resolver == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnresolvable, ref)
	}
	return b.resolver.Resolve(ref)
}

// FileResolver reads file:// references and local paths (relative ones against BaseDir). Names
// that are not on disk are looked up among the images already stored for DocID.
type FileResolver struct {
	BaseDir string
	Docs    backend.Documents
	DocID   string
}

func (r FileResolver) Resolve(ref string) ([]byte, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrUnresolvable)
	}
	path := ref
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" {
		if u.Scheme != "file" {
			return nil, fmt.Errorf("%w: %s", ErrUnresolvable, ref)
		}
		path = u.Path
	}
	if !filepath.IsAbs(path) && r.BaseDir != "" {
		path = filepath.Join(r.BaseDir, path)
	}
	b, err := os.ReadFile(path)
	if err == nil {
		return b, nil
	}
	if r.Docs != nil && r.DocID != "" {
		if data, serr := r.Docs.ImageRaw(r.DocID, filepath.Base(ref)); serr == nil {
			return data, nil
		}
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrUnresolvable, ref, err)
}
