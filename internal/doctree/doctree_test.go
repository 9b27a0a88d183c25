package doctree

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appletree/internal/model"
	"appletree/internal/store"
)

func seqIDs(prefix string) IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

func openStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir(), nil)
	require.NoError(t, err)
	return s
}

func loadedTree(t *testing.T, s store.Store, opts ...Option) *Tree {
	t.Helper()
	tr := New(s, opts...)
	require.NoError(t, tr.Load())
	require.Equal(t, Ready, tr.State())
	return tr
}

// recordingCloser records closed ids. With stored set, it also notes ids whose files were
// already gone when their editors were closed.
type recordingCloser struct {
	closed []string
	stored func(id string) bool
	gone   []string
}

func (c *recordingCloser) CloseDocuments(ids []string) {
	c.closed = append(c.closed, ids...)
	for _, id := range ids {
		if c.stored != nil && !c.stored(id) {
			c.gone = append(c.gone, id)
		}
	}
}

func TestNotesScenario_SurvivesRestart(t *testing.T) {
	s := openStore(t)
	tr := loadedTree(t, s)

	id, err := tr.CreateDocument("A", "", model.TypePlainText)
	require.NoError(t, err)
	saved, err := tr.Save()
	require.NoError(t, err)
	require.True(t, saved)

	reopened, err := store.Open(s.Dir, nil)
	require.NoError(t, err)
	f, err := reopened.DocumentsTree()
	require.NoError(t, err)
	assert.Equal(t, model.Forest{{ID: id, Name: "A", Children: model.Forest{}}}, f)

	fresh := loadedTree(t, reopened)
	n, ok := fresh.Node(id)
	require.True(t, ok)
	assert.Equal(t, "A", n.Name)
	assert.Equal(t, model.TypePlainText, n.Type)
}

func TestSubtree_CountIncludesRoot(t *testing.T) {
	s := openStore(t)
	tr := loadedTree(t, s, WithIDGenerator(seqIDs("d")))

	a, err := tr.CreateDocument("A", "", "")
	require.NoError(t, err)
	b, err := tr.CreateDocument("B", a, "")
	require.NoError(t, err)

	f, count, err := tr.Subtree(a)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, model.Forest{{ID: b, Name: "B", Children: model.Forest{}}}, f)

	_, count, err = tr.Subtree(b)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, _, err = tr.Subtree("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadiness_GatesMutationsAndSave(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.SetDocumentsTree(model.Forest{{ID: "keep", Name: "Keep"}}))

	tr := New(s)
	assert.Equal(t, NotReady, tr.State())
	assert.ErrorIs(t, tr.AddNode("x", "X", ""), ErrNotReady)
	_, err := tr.RemoveSubtree("keep")
	assert.ErrorIs(t, err, ErrNotReady)

	saved, err := tr.Save()
	require.NoError(t, err)
	assert.False(t, saved)

	f, err := s.DocumentsTree()
	require.NoError(t, err)
	assert.Len(t, f, 1, "save before load must not clobber the store")
}

func TestLoad_DoesNotFireOnChange(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.SetDocumentsTree(model.Forest{
		{ID: "a", Name: "A", Children: model.Forest{{ID: "b", Name: "B"}}},
	}))
	calls := 0
	tr := loadedTree(t, s, WithOnChange(func() { calls++ }))
	assert.Equal(t, 0, calls)
	assert.Equal(t, 2, tr.Len())

	require.NoError(t, tr.Rename("b", "Bee"))
	assert.Equal(t, 1, calls)
}

func TestLoad_InvalidTree(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.SetDocumentsTree(model.Forest{
		{ID: "a", Name: "A", Children: model.Forest{{ID: "a", Name: "again"}}},
	}))
	tr := New(s)
	err := tr.Load()
	require.ErrorIs(t, err, ErrInvalidTree)
	var ite InvalidTreeError
	assert.True(t, errors.As(err, &ite))
	assert.Equal(t, NotReady, tr.State())
}

func TestLoad_CorruptDegradesToEmpty(t *testing.T) {
	s := openStore(t)
	path := filepath.Join(s.Dir, "documents", "applenote.doctree")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	tr := loadedTree(t, s)
	assert.Equal(t, 0, tr.Len())
	_, err := os.Stat(path + ".corrupt")
	assert.NoError(t, err)
}

func TestAddNode_Validation(t *testing.T) {
	tr := loadedTree(t, openStore(t))
	require.NoError(t, tr.AddNode("a", "A", ""))

	err := tr.AddNode("a", "dup", "")
	assert.ErrorIs(t, err, ErrInvalidTree)
	assert.ErrorIs(t, tr.AddNode("", "empty", ""), ErrInvalidTree)
	assert.ErrorIs(t, tr.AddNode("b", "B", "nope"), ErrNotFound)

	require.NoError(t, tr.AddNode("b", "B", "a"))
	n, _ := tr.Node("a")
	assert.Equal(t, []string{"b"}, n.Children)
}

func TestMove_ReordersAndRejectsCycles(t *testing.T) {
	tr := loadedTree(t, openStore(t))
	require.NoError(t, tr.AddNode("a", "A", ""))
	require.NoError(t, tr.AddNode("b", "B", "a"))
	require.NoError(t, tr.AddNode("c", "C", "b"))
	require.NoError(t, tr.AddNode("d", "D", ""))

	assert.ErrorIs(t, tr.Move("a", "c", -1), ErrInvalidTree)
	assert.ErrorIs(t, tr.Move("a", "a", -1), ErrInvalidTree)

	require.NoError(t, tr.Move("c", "", 0))
	assert.Equal(t, []string{"c", "a", "b", "d"}, tr.IDs(""))

	require.NoError(t, tr.Move("d", "a", 0))
	assert.Equal(t, []string{"c", "a", "d", "b"}, tr.IDs(""))
}

func TestCreateDocument_GeneratorExhausted(t *testing.T) {
	s := openStore(t)
	tr := loadedTree(t, s, WithIDGenerator(func() string { return "same" }))
	first, err := tr.CreateDocument("A", "", "")
	require.NoError(t, err)
	assert.Equal(t, "same", first)

	_, err = tr.CreateDocument("B", "", "")
	assert.ErrorIs(t, err, ErrInvalidTree)
	assert.Equal(t, 1, tr.Len())

	empty := loadedTree(t, openStore(t), WithIDGenerator(func() string { return "" }))
	_, err = empty.CreateDocument("C", "", "")
	assert.ErrorIs(t, err, ErrInvalidTree)

	_, err = tr.CloneSubtree(nil, first, "")
	assert.ErrorIs(t, err, ErrInvalidTree)
	assert.Equal(t, 1, tr.Len())
}

func TestToggleTags_CommaSplitsAndMatchesStore(t *testing.T) {
	s := openStore(t)
	tr := loadedTree(t, s, WithIDGenerator(seqIDs("d")))
	id, err := tr.CreateDocument("A", "", "")
	require.NoError(t, err)

	tags, err := tr.ToggleTags(id, "x,y")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, tags)

	n, _ := tr.Node(id)
	reloaded, _ := loadedTree(t, s).Node(id)
	assert.Equal(t, n.Tags, reloaded.Tags)
}

func TestToggleTags_PersistsImmediately(t *testing.T) {
	s := openStore(t)
	tr := loadedTree(t, s, WithIDGenerator(seqIDs("d")))
	id, err := tr.CreateDocument("A", "", "")
	require.NoError(t, err)

	tags, err := tr.ToggleTags(id, "work", "urgent", "work ")
	require.NoError(t, err)
	assert.Equal(t, []string{"urgent", "work"}, tags)

	tags, err = tr.ToggleTags(id, "urgent", "home")
	require.NoError(t, err)
	assert.Equal(t, []string{"home", "work"}, tags)

	meta, err := s.DocumentMeta(id)
	require.NoError(t, err)
	assert.Equal(t, "home,work", meta["tags"])

	n, _ := loadedTree(t, s).Node(id)
	assert.Equal(t, []string{"home", "work"}, n.Tags)
}

func TestRemoveSubtree_IsComplete(t *testing.T) {
	s := openStore(t)
	closer := &recordingCloser{}
	tr := loadedTree(t, s, WithIDGenerator(seqIDs("d")), WithCloser(closer))

	a, _ := tr.CreateDocument("A", "", "")
	b, _ := tr.CreateDocument("B", a, "")
	c, _ := tr.CreateDocument("C", b, "")
	other, _ := tr.CreateDocument("Other", "", "")
	closer.stored = s.HasDocument

	n, err := tr.RemoveSubtree(a)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.ElementsMatch(t, []string{a, b, c}, closer.closed)
	assert.Empty(t, closer.gone, "editors must be closed before any file is deleted")

	f, err := s.DocumentsTree()
	require.NoError(t, err)
	assert.Equal(t, []string{other}, f.IDs())
	for _, id := range []string{a, b, c} {
		assert.False(t, s.HasDocument(id), id)
		assert.False(t, tr.Has(id), id)
	}
	assert.True(t, s.HasDocument(other))
}

func TestRemoveSubtree_Declined(t *testing.T) {
	s := openStore(t)
	var gotMsg string
	tr := loadedTree(t, s, WithConfirmer(ConfirmFunc(func(title, msg, detail string) bool {
		gotMsg = msg
		return false
	})))
	a, _ := tr.CreateDocument("A", "", "")
	_, _ = tr.CreateDocument("B", a, "")

	_, err := tr.RemoveSubtree(a)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, "Remove 2 document(s)?", gotMsg)
	assert.Equal(t, 2, tr.Len())
	assert.True(t, s.HasDocument(a))
}

func TestCloneSubtree_DisjointIDsSameContent(t *testing.T) {
	srcStore := openStore(t)
	src := loadedTree(t, srcStore, WithIDGenerator(seqIDs("s")))
	a, _ := src.CreateDocument("A", "", model.TypeMarkdown)
	b, _ := src.CreateDocument("B", a, "")
	require.NoError(t, srcStore.PutDocumentBody(a, "# A", false))
	require.NoError(t, srcStore.PutDocumentBody(b, "<p>b</p>", false))
	require.NoError(t, srcStore.PutDocumentBodyDraft(b, "<p>b draft</p>"))
	_, err := srcStore.PutImage(b, "pic.png", image.NewRGBA(image.Rect(0, 0, 1, 1)))
	require.NoError(t, err)
	_, err = src.ToggleTags(a, "x")
	require.NoError(t, err)

	for _, tc := range []struct {
		name string
		dest func() (*Tree, store.Store)
	}{
		{"same project", func() (*Tree, store.Store) { return src, srcStore }},
		{"other project", func() (*Tree, store.Store) {
			s := openStore(t)
			return loadedTree(t, s), s
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dest, destStore := tc.dest()
			before := dest.Len()
			root, err := dest.CloneSubtree(src, a, "")
			require.NoError(t, err)
			assert.Equal(t, before+2, dest.Len())

			cloned := dest.IDs(root)
			require.Len(t, cloned, 2)
			for _, id := range cloned {
				assert.NotContains(t, []string{a, b}, id)
			}

			f, _, err := dest.Subtree(root)
			require.NoError(t, err)
			require.Len(t, f, 1)
			assert.Equal(t, "B", f[0].Name)

			pairs := map[string]string{a: cloned[0], b: cloned[1]}
			for from, to := range pairs {
				wantBody, _ := srcStore.DocumentBody(from)
				gotBody, err := destStore.DocumentBody(to)
				require.NoError(t, err)
				assert.Equal(t, wantBody, gotBody)

				wantDraft, wantOK, _ := srcStore.DocumentBodyDraft(from)
				gotDraft, gotOK, _ := destStore.DocumentBodyDraft(to)
				assert.Equal(t, wantOK, gotOK)
				assert.Equal(t, wantDraft, gotDraft)

				wantImgs, _ := srcStore.Images(from)
				gotImgs, _ := destStore.Images(to)
				assert.Equal(t, wantImgs, gotImgs)

				wantMeta, _ := srcStore.DocumentMeta(from)
				gotMeta, _ := destStore.DocumentMeta(to)
				assert.Equal(t, wantMeta, gotMeta)
			}
			n, _ := dest.Node(root)
			assert.Equal(t, model.TypeMarkdown, n.Type)
			assert.Equal(t, []string{"x"}, n.Tags)

			persisted, err := destStore.DocumentsTree()
			require.NoError(t, err)
			assert.Contains(t, persisted.IDs(), root)
		})
	}
}

func TestCloneSubtree_IntoOwnSubtree(t *testing.T) {
	s := openStore(t)
	tr := loadedTree(t, s, WithIDGenerator(seqIDs("d")))
	a, _ := tr.CreateDocument("A", "", "")
	_, _ = tr.CreateDocument("B", a, "")

	root, err := tr.CloneSubtree(tr, a, a)
	require.NoError(t, err)
	assert.Equal(t, 4, tr.Len())
	n, _ := tr.Node(root)
	assert.Equal(t, a, n.Parent)
}
