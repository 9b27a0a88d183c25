// Package index maintains a derived, local-only SQLite index of a project's documents for
// search and tag queries. It can always be rebuilt from the store.
package index

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"appletree/internal/backend"
	"appletree/internal/doctree"
	"appletree/internal/model"
	"appletree/internal/render"
)

type Index struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the index database at path.
func Open(ctx context.Context, path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Index{db: db, path: path}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS index_meta (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS docs (
			id TEXT PRIMARY KEY,
			ord INTEGER NOT NULL,
			parent_id TEXT NOT NULL,
			depth INTEGER NOT NULL,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			path TEXT NOT NULL,
			text TEXT NOT NULL,
			has_draft INTEGER NOT NULL,
			images INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS doc_tags (
			doc_id TEXT NOT NULL REFERENCES docs(id) ON DELETE CASCADE,
			tag TEXT NOT NULL,
			PRIMARY KEY (doc_id, tag)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_doc_tags_tag ON doc_tags(tag);`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (ix *Index) Close() error {
	if ix == nil || ix.db == nil {
		return nil
	}
	return ix.db.Close()
}

func (ix *Index) Path() string { return ix.path }

// Rebuild replaces the whole index with the current tree and the committed document bodies.
func (ix *Index) Rebuild(ctx context.Context, tree *doctree.Tree) (int, error) {
	docs := tree.Docs()
	type row struct {
		n        doctree.Node
		depth    int
		text     string
		hasDraft bool
		images   int
	}
	var rows []row
	var walkErr error
	tree.Walk(func(n doctree.Node, depth int) {
		if walkErr != nil {
			return
		}
		body, err := docs.DocumentBody(n.ID)
		if err != nil && !errors.Is(err, backend.ErrNotFound) {
			walkErr = err
			return
		}
		_, hasDraft, err := docs.DocumentBodyDraft(n.ID)
		if err != nil {
			walkErr = err
			return
		}
		imgs, err := docs.Images(n.ID)
		if err != nil {
			walkErr = err
			return
		}
		rows = append(rows, row{n: n, depth: depth, text: render.Text(n.Type, body), hasDraft: hasDraft, images: len(imgs)})
	})
	if walkErr != nil {
		return 0, walkErr
	}

	tx, err := ix.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range []string{"doc_tags", "docs"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+t); err != nil {
			return 0, err
		}
	}
	for i, r := range rows {
		path := strings.Join(tree.Path(r.n.ID), " / ")
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO docs(id, ord, parent_id, depth, name, type, path, text, has_draft, images) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.n.ID, i, r.n.Parent, r.depth, r.n.Name, r.n.Type, path, r.text, boolToInt(r.hasDraft), r.images); err != nil {
			return 0, err
		}
		for _, tag := range r.n.Tags {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO doc_tags(doc_id, tag) VALUES(?, ?)`, r.n.ID, tag); err != nil {
				return 0, err
			}
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO index_meta(k, v) VALUES(?, ?)`,
		"rebuilt_at", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// RebuiltAt reports when the index was last rebuilt. ok is false for an index never built.
func (ix *Index) RebuiltAt(ctx context.Context) (at time.Time, ok bool, err error) {
	var v string
	err = ix.db.QueryRowContext(ctx, `SELECT v FROM index_meta WHERE k = ?`, "rebuilt_at").Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	at, err = time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false, err
	}
	return at, true, nil
}

// Hit is one search result.
type Hit struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Path     string   `json:"path"`
	Tags     []string `json:"tags,omitempty"`
	Snippet  string   `json:"snippet,omitempty"`
	InName   bool     `json:"inName"`
	HasDraft bool     `json:"hasDraft"`
}

// Search matches q case-insensitively against names and body text. Name matches come first,
// then tree order.
func (ix *Index) Search(ctx context.Context, q string, limit int) ([]Hit, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return []Hit{}, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := ix.db.QueryContext(ctx, `
		SELECT id, name, type, path, text, has_draft, instr(lower(name), ?) > 0 AS in_name
		FROM docs
		WHERE instr(lower(name), ?) > 0 OR instr(lower(text), ?) > 0
		ORDER BY in_name DESC, ord
		LIMIT ?`, q, q, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Hit{}
	for rows.Next() {
		var h Hit
		var text string
		var hasDraft, inName int
		if err := rows.Scan(&h.ID, &h.Name, &h.Type, &h.Path, &text, &hasDraft, &inName); err != nil {
			return nil, err
		}
		h.HasDraft = hasDraft != 0
		h.InName = inName != 0
		h.Snippet = snippet(text, q, 40)
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, ix.attachTags(ctx, out)
}

// ByTag lists documents carrying tag, in tree order.
func (ix *Index) ByTag(ctx context.Context, tag string) ([]Hit, error) {
	rows, err := ix.db.QueryContext(ctx, `
		SELECT d.id, d.name, d.type, d.path, d.has_draft
		FROM docs d JOIN doc_tags t ON t.doc_id = d.id
		WHERE t.tag = ?
		ORDER BY d.ord`, strings.TrimSpace(tag))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Hit{}
	for rows.Next() {
		var h Hit
		var hasDraft int
		if err := rows.Scan(&h.ID, &h.Name, &h.Type, &h.Path, &hasDraft); err != nil {
			return nil, err
		}
		h.HasDraft = hasDraft != 0
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, ix.attachTags(ctx, out)
}

// Tags lists every tag with its document count.
func (ix *Index) Tags(ctx context.Context) (map[string]int, error) {
	rows, err := ix.db.QueryContext(ctx, `SELECT tag, COUNT(*) FROM doc_tags GROUP BY tag`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var tag string
		var n int
		if err := rows.Scan(&tag, &n); err != nil {
			return nil, err
		}
		out[tag] = n
	}
	return out, rows.Err()
}

func (ix *Index) attachTags(ctx context.Context, hits []Hit) error {
	for i := range hits {
		rows, err := ix.db.QueryContext(ctx, `SELECT tag FROM doc_tags WHERE doc_id = ? ORDER BY tag`, hits[i].ID)
		if err != nil {
			return err
		}
		var tags []string
		for rows.Next() {
			var tag string
			if err := rows.Scan(&tag); err != nil {
				rows.Close()
				return err
			}
			tags = append(tags, tag)
		}
		rows.Close()
		hits[i].Tags = model.NormalizeTags(tags)
	}
	return nil
}

// snippet returns up to radius runes around the first match of q in text.
func snippet(text, q string, radius int) string {
	runes := []rune(text)
	lower := []rune(strings.ToLower(text))
	if len(lower) != len(runes) {
		runes = lower
	}
	idx := indexRunes(lower, []rune(q))
	if idx < 0 {
		if len(runes) > 2*radius {
			return string(runes[:2*radius]) + "…"
		}
		return text
	}
	start := idx - radius
	prefix := "…"
	if start <= 0 {
		start, prefix = 0, ""
	}
	end := idx + len([]rune(q)) + radius
	suffix := "…"
	if end >= len(runes) {
		end, suffix = len(runes), ""
	}
	return prefix + string(runes[start:end]) + suffix
}

func indexRunes(s, sub []rune) int {
	if len(sub) == 0 {
		return 0
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		match := true
		for j := range sub {
			if s[i+j] != sub[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
