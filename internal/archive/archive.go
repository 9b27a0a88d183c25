// Package archive writes and reads appletree archives: a zip holding one or more projects'
// document trees, committed bodies, metadata and images, plus an appletree.archive manifest.
// Pending drafts stay with the working copy and are not archived.
//
//	appletree.archive
//	projects/<pid>/documents/applenote.doctree
//	projects/<pid>/documents/<id>/document.meta.atdoc      (JSON)
//	projects/<pid>/documents/<id>/document.atdoc
//	projects/<pid>/documents/<id>/resources/images/<name>
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"appletree/internal/backend"
	"appletree/internal/model"
)

const (
	ManifestName = "appletree.archive"
	treeName     = "applenote.doctree"
	bodyName     = "document.atdoc"
	metaName     = "document.meta.atdoc"
)

// Manifest is the appletree.archive entry.
type Manifest struct {
	Projects  map[string]string `json:"projects"`
	Timestamp float64           `json:"timestamp"`
}

func (m Manifest) Time() time.Time {
	sec := int64(m.Timestamp)
	nsec := int64((m.Timestamp - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

// Source is one project to export.
type Source struct {
	ID   string
	Name string
	Docs backend.Documents
}

// Stats summarises an export.
type Stats struct {
	Projects  int `json:"projects"`
	Documents int `json:"documents"`
	Images    int `json:"images"`
}

type Option func(*options)

type options struct {
	log *slog.Logger
	now func() time.Time
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{log: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Export writes every source project into a zip on w.
func Export(ctx context.Context, w io.Writer, sources []Source, opts ...Option) (Stats, error) {
	o := buildOptions(opts)
	zw := zip.NewWriter(w)
	manifest := Manifest{Projects: map[string]string{}}
	var stats Stats

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			_ = zw.Close()
			return stats, err
		}
		n, imgs, err := exportProject(ctx, zw, src, o)
		if err != nil {
			_ = zw.Close()
			return stats, fmt.Errorf("export project %s: %w", src.ID, err)
		}
		manifest.Projects[src.ID] = src.Name
		stats.Projects++
		stats.Documents += n
		stats.Images += imgs
	}

	now := o.now()
	manifest.Timestamp = float64(now.UnixNano()) / 1e9
	b, err := json.Marshal(manifest)
	if err != nil {
		_ = zw.Close()
		return stats, err
	}
	if err := writeEntry(zw, ManifestName, b, now); err != nil {
		_ = zw.Close()
		return stats, err
	}
	if err := zw.Close(); err != nil {
		return stats, err
	}
	o.log.Info("exported archive", "projects", stats.Projects, "documents", stats.Documents, "images", stats.Images)
	return stats, nil
}

func exportProject(ctx context.Context, zw *zip.Writer, src Source, o options) (docs int, images int, err error) {
	now := o.now()
	forest, err := src.Docs.DocumentsTree()
	if err != nil {
		return 0, 0, err
	}
	base := path.Join("projects", src.ID, "documents")
	b, err := json.Marshal(forest)
	if err != nil {
		return 0, 0, err
	}
	if err := writeEntry(zw, path.Join(base, treeName), b, now); err != nil {
		return 0, 0, err
	}

	for _, id := range forest.IDs() {
		if err := ctx.Err(); err != nil {
			return docs, images, err
		}
		dir := path.Join(base, id)
		meta, err := src.Docs.DocumentMeta(id)
		if err != nil {
			return docs, images, err
		}
		mb, err := json.Marshal(meta)
		if err != nil {
			return docs, images, err
		}
		if err := writeEntry(zw, path.Join(dir, metaName), mb, now); err != nil {
			return docs, images, err
		}
		body, err := src.Docs.DocumentBody(id)
		if err != nil && !errors.Is(err, backend.ErrNotFound) {
			return docs, images, err
		}
		if err := writeEntry(zw, path.Join(dir, bodyName), []byte(body), now); err != nil {
			return docs, images, err
		}
		names, err := src.Docs.Images(id)
		if err != nil {
			return docs, images, err
		}
		for _, name := range names {
			data, err := src.Docs.ImageRaw(id, name)
			if err != nil {
				return docs, images, err
			}
			if err := writeStored(zw, path.Join(dir, "resources", "images", name), data, now); err != nil {
				return docs, images, err
			}
			images++
		}
		docs++
	}
	return docs, images, nil
}

func writeEntry(zw *zip.Writer, name string, data []byte, mod time.Time) error {
	return writeFile(zw, &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: mod}, data)
}

// writeStored adds already-compressed data (PNG) without deflating it again.
func writeStored(zw *zip.Writer, name string, data []byte, mod time.Time) error {
	return writeFile(zw, &zip.FileHeader{Name: name, Method: zip.Store, Modified: mod}, data)
}

func writeFile(zw *zip.Writer, hdr *zip.FileHeader, data []byte) error {
	fw, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = fw.Write(data)
	return err
}

// Contents describes an archive without extracting it.
type Contents struct {
	Manifest  Manifest                `json:"manifest"`
	Documents map[string][]string     `json:"documents"`
	Trees     map[string]model.Forest `json:"-"`
}

// Inspect reads the manifest and the per-project trees of an archive.
func Inspect(r io.ReaderAt, size int64) (Contents, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return Contents{}, err
	}
	c := Contents{Documents: map[string][]string{}, Trees: map[string]model.Forest{}}
	files := map[string]*zip.File{}
	for _, f := range zr.File {
		files[f.Name] = f
	}
	mf, ok := files[ManifestName]
	if !ok {
		return Contents{}, fmt.Errorf("not an appletree archive: missing %s", ManifestName)
	}
	if err := readJSON(mf, &c.Manifest); err != nil {
		return Contents{}, fmt.Errorf("read manifest: %w", err)
	}
	ids := make([]string, 0, len(c.Manifest.Projects))
	for id := range c.Manifest.Projects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, pid := range ids {
		tf, ok := files[path.Join("projects", pid, "documents", treeName)]
		if !ok {
			return Contents{}, fmt.Errorf("archive project %s: missing tree", pid)
		}
		var forest model.Forest
		if err := readJSON(tf, &forest); err != nil {
			return Contents{}, fmt.Errorf("archive project %s tree: %w", pid, err)
		}
		c.Trees[pid] = forest
		c.Documents[pid] = forest.IDs()
	}
	return c, nil
}

// Restore copies one archived project into dest, replacing dest's tree. Documents keep their
// archived ids.
func Restore(ctx context.Context, r io.ReaderAt, size int64, projectID string, dest backend.Documents) (int, error) {
	c, err := Inspect(r, size)
	if err != nil {
		return 0, err
	}
	forest, ok := c.Trees[projectID]
	if !ok {
		return 0, fmt.Errorf("archive has no project %s", projectID)
	}
	if err := forest.Validate(); err != nil {
		return 0, fmt.Errorf("archive project %s: %w", projectID, err)
	}
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return 0, err
	}
	prefix := path.Join("projects", projectID, "documents") + "/"

	n := 0
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if !strings.HasPrefix(f.Name, prefix) || strings.HasSuffix(f.Name, "/") {
			continue
		}
		rel := strings.TrimPrefix(f.Name, prefix)
		docID, rest, ok := strings.Cut(rel, "/")
		if !ok {
			continue
		}
		data, err := readAll(f)
		if err != nil {
			return n, err
		}
		switch {
		case rest == bodyName:
			if err := dest.PutDocumentBody(docID, string(data), false); err != nil {
				return n, err
			}
			n++
		case rest == metaName:
			var meta model.Meta
			if err := json.Unmarshal(data, &meta); err != nil {
				return n, fmt.Errorf("document %s meta: %w", docID, err)
			}
			if err := dest.PutDocumentMeta(docID, meta); err != nil {
				return n, err
			}
		case strings.HasPrefix(rest, "resources/images/"):
			name := strings.TrimPrefix(rest, "resources/images/")
			if err := dest.PutImageRaw(docID, name, data); err != nil {
				return n, err
			}
		}
	}
	if err := dest.SetDocumentsTree(forest); err != nil {
		return n, err
	}
	return n, nil
}

func readAll(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func readJSON(f *zip.File, v any) error {
	b, err := readAll(f)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
