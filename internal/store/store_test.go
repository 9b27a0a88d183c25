package store

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"appletree/internal/model"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestDocumentsTree_MissingIsEmpty(t *testing.T) {
	s := newTestStore(t)
	f, err := s.DocumentsTree()
	if err != nil {
		t.Fatalf("DocumentsTree: %v", err)
	}
	if f == nil || len(f) != 0 {
		t.Fatalf("expected empty forest, got %#v", f)
	}
}

func TestDocumentsTree_RoundTripKeepsOrder(t *testing.T) {
	s := newTestStore(t)
	in := model.Forest{
		{ID: "b", Name: "B", Children: model.Forest{
			{ID: "b2", Name: "B2"},
			{ID: "b1", Name: "B1", Children: model.Forest{{ID: "b1a", Name: "deep"}}},
		}},
		{ID: "a", Name: "A"},
	}
	if err := s.SetDocumentsTree(in); err != nil {
		t.Fatalf("SetDocumentsTree: %v", err)
	}
	out, err := s.DocumentsTree()
	if err != nil {
		t.Fatalf("DocumentsTree: %v", err)
	}
	if got, want := out.IDs(), []string{"b", "b2", "b1", "b1a", "a"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ids: got %v want %v", got, want)
	}
	raw, err := os.ReadFile(filepath.Join(s.Dir, "documents", "applenote.doctree"))
	if err != nil {
		t.Fatalf("read tree file: %v", err)
	}
	if !strings.HasPrefix(string(raw), `[["b","B",[["b2","B2",[]]`) {
		t.Fatalf("unexpected on-disk format: %s", raw)
	}
}

func TestDocumentsTree_CorruptKeepsBackup(t *testing.T) {
	s := newTestStore(t)
	path := filepath.Join(s.Dir, "documents", "applenote.doctree")
	if err := os.WriteFile(path, []byte(`[["a","A"`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := s.DocumentsTree()
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	if _, err := os.Stat(path + ".corrupt"); err != nil {
		t.Fatalf("expected backup file: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("original should be left in place: %v", err)
	}
}

func TestDocumentMeta_AllowListAndAbsent(t *testing.T) {
	s := newTestStore(t)
	m, err := s.DocumentMeta("doc1")
	if err != nil {
		t.Fatalf("DocumentMeta(absent): %v", err)
	}
	if len(m) != 0 {
		t.Fatalf("expected empty meta, got %v", m)
	}

	if err := s.PutDocumentMeta("doc1", model.Meta{"type": "markdown", "tags": "x,y", "color": "red"}); err != nil {
		t.Fatalf("PutDocumentMeta: %v", err)
	}
	m, err = s.DocumentMeta("doc1")
	if err != nil {
		t.Fatalf("DocumentMeta: %v", err)
	}
	want := model.Meta{"type": "markdown", "tags": "x,y"}
	if !reflect.DeepEqual(m, want) {
		t.Fatalf("meta: got %v want %v", m, want)
	}

	if err := s.UpdateDocumentMeta("doc1", model.Meta{"tags": "z"}); err != nil {
		t.Fatalf("UpdateDocumentMeta: %v", err)
	}
	m, _ = s.DocumentMeta("doc1")
	if m["type"] != "markdown" || m["tags"] != "z" {
		t.Fatalf("merged meta: %v", m)
	}
}

func TestDocumentMeta_MalformedIsEmpty(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateDocument("doc1"); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	path := filepath.Join(s.Dir, "documents", "doc1", "document.meta.atdoc")
	if err := os.WriteFile(path, []byte("[document\ntype"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	m, err := s.DocumentMeta("doc1")
	if err != nil {
		t.Fatalf("DocumentMeta: %v", err)
	}
	if len(m) != 0 {
		t.Fatalf("expected empty meta, got %v", m)
	}
}

func TestDocumentBody_HelloRoundTrip(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.DocumentBody("d1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before write, got %v", err)
	}
	if err := s.PutDocumentBody("d1", "<p>hello</p>", false); err != nil {
		t.Fatalf("PutDocumentBody: %v", err)
	}
	got, err := s.DocumentBody("d1")
	if err != nil {
		t.Fatalf("DocumentBody: %v", err)
	}
	if got != "<p>hello</p>" {
		t.Fatalf("body: got %q", got)
	}
	if _, err := os.Stat(filepath.Join(s.Dir, "documents", "d1", "resources", "images")); err != nil {
		t.Fatalf("expected images dir to be created: %v", err)
	}
}

func TestDocumentBodyDraft_DropOnSave(t *testing.T) {
	s := newTestStore(t)
	if _, ok, err := s.DocumentBodyDraft("d1"); err != nil || ok {
		t.Fatalf("DocumentBodyDraft(absent): ok=%v err=%v", ok, err)
	}
	if err := s.PutDocumentBodyDraft("d1", "draft"); err != nil {
		t.Fatalf("PutDocumentBodyDraft: %v", err)
	}
	d, ok, err := s.DocumentBodyDraft("d1")
	if err != nil || !ok || d != "draft" {
		t.Fatalf("DocumentBodyDraft: %q ok=%v err=%v", d, ok, err)
	}

	// Keeping the draft.
	if err := s.PutDocumentBody("d1", "saved", false); err != nil {
		t.Fatalf("PutDocumentBody: %v", err)
	}
	if _, ok, _ := s.DocumentBodyDraft("d1"); !ok {
		t.Fatalf("draft should survive a save without dropDraft")
	}

	if err := s.PutDocumentBody("d1", "saved", true); err != nil {
		t.Fatalf("PutDocumentBody(drop): %v", err)
	}
	if _, ok, _ := s.DocumentBodyDraft("d1"); ok {
		t.Fatalf("draft should be gone after save with dropDraft")
	}
	if err := s.DropDocumentBodyDraft("d1"); err != nil {
		t.Fatalf("DropDocumentBodyDraft(absent): %v", err)
	}
}

func TestCreateAndRemoveDocument(t *testing.T) {
	s := newTestStore(t)
	if s.HasDocument("d1") {
		t.Fatalf("unexpected document")
	}
	if err := s.CreateDocument("d1"); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if !s.HasDocument("d1") {
		t.Fatalf("expected document")
	}
	body, err := s.DocumentBody("d1")
	if err != nil || body != "" {
		t.Fatalf("new body: %q err=%v", body, err)
	}

	if err := s.PutDocumentBody("d1", "keep", false); err != nil {
		t.Fatalf("PutDocumentBody: %v", err)
	}
	if err := s.CreateDocument("d1"); err != nil {
		t.Fatalf("CreateDocument again: %v", err)
	}
	if body, _ := s.DocumentBody("d1"); body != "keep" {
		t.Fatalf("CreateDocument must not clobber an existing body, got %q", body)
	}

	if err := s.RemoveDocument("d1"); err != nil {
		t.Fatalf("RemoveDocument: %v", err)
	}
	if s.HasDocument("d1") {
		t.Fatalf("document should be gone")
	}
	if err := s.RemoveDocument("d1"); err != nil {
		t.Fatalf("RemoveDocument(absent): %v", err)
	}
}

func TestInvalidIDs(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"", " ", "..", "a/b", `a\b`} {
		if err := s.PutDocumentBody(id, "x", false); !errors.Is(err, ErrInvalidID) {
			t.Fatalf("PutDocumentBody(%q): expected ErrInvalidID, got %v", id, err)
		}
	}
	if _, err := s.ImageRaw("d1", "../escape.png"); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("ImageRaw traversal: expected ErrInvalidID, got %v", err)
	}
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	return img
}

func TestPutImageAndClearImagesOld(t *testing.T) {
	s := newTestStore(t)
	a, err := s.PutImage("d1", "https://example.com/a.png", testImage())
	if err != nil {
		t.Fatalf("PutImage a: %v", err)
	}
	b, err := s.PutImage("d1", "b.png", testImage())
	if err != nil {
		t.Fatalf("PutImage b: %v", err)
	}
	if b != "b.png" {
		t.Fatalf("local ref name: got %q", b)
	}

	img, err := s.Image("d1", a)
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	if img.Bounds().Dx() != 2 {
		t.Fatalf("decoded bounds: %v", img.Bounds())
	}

	names, _ := s.Images("d1")
	if !reflect.DeepEqual(names, sortedPair(a, b)) {
		t.Fatalf("Images: %v", names)
	}

	removed, err := s.ClearImagesOld("d1", []string{a})
	if err != nil {
		t.Fatalf("ClearImagesOld: %v", err)
	}
	if !reflect.DeepEqual(removed, []string{"b.png"}) {
		t.Fatalf("removed: %v", removed)
	}
	removed, err = s.ClearImagesOld("d1", []string{a})
	if err != nil {
		t.Fatalf("ClearImagesOld again: %v", err)
	}
	if len(removed) != 0 {
		t.Fatalf("second clear should remove nothing, got %v", removed)
	}
	names, _ = s.Images("d1")
	if !reflect.DeepEqual(names, []string{a}) {
		t.Fatalf("Images after clear: %v", names)
	}
}

func sortedPair(a, b string) []string {
	if a < b {
		return []string{a, b}
	}
	return []string{b, a}
}

func TestLocalImageName(t *testing.T) {
	url := "https://example.com/pic.png"
	hashed := LocalImageName(url)
	if len(hashed) != 40+len(".png") || !strings.HasSuffix(hashed, ".png") {
		t.Fatalf("hashed name: %q", hashed)
	}
	if LocalImageName(url) != hashed {
		t.Fatalf("hash must be stable")
	}
	if LocalImageName("file:///tmp/pic.png") == LocalImageName("file:///tmp/other.png") {
		t.Fatalf("different refs must hash differently")
	}
	cases := map[string]string{
		"pic.png":             "pic.png",
		"resources/a/pic.png": "pic.png",
		`dir\pic.png`:         "dir_pic.png",
		"a..b.png":            "a__b.png",
	}
	for in, want := range cases {
		if got := LocalImageName(in); got != want {
			t.Fatalf("LocalImageName(%q) = %q, want %q", in, got, want)
		}
	}
	if got := LocalImageName("data:image/png;base64,AAAA"); !strings.HasSuffix(got, ".png") || strings.Contains(got, "/") {
		t.Fatalf("data uri name: %q", got)
	}
	if LocalImageName("") != "" {
		t.Fatalf("empty ref should map to empty name")
	}
}
