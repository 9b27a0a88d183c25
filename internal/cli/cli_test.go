package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args []string) (string, string, error) {
	t.Helper()
	return runCLIWithInput(t, args, nil)
}

func runCLIWithInput(t *testing.T, args []string, in io.Reader) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if in != nil {
		cmd.SetIn(in)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// cliEnv runs commands against one throwaway data dir.
type cliEnv struct {
	t   *testing.T
	dir string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	t.Setenv("APPLETREE_PROJECT", "")
	t.Setenv("APPLETREE_FORMAT", "")
	t.Setenv("APPLETREE_CONFIG_DIR", "")
	return &cliEnv{t: t, dir: t.TempDir()}
}

func (e *cliEnv) args(args ...string) []string {
	return append([]string{"--data-dir", e.dir}, args...)
}

func (e *cliEnv) run(args ...string) string {
	e.t.Helper()
	out, errOut, err := runCLI(e.t, e.args(args...))
	if err != nil {
		e.t.Fatalf("%v: %v\nstderr: %s", args, err, errOut)
	}
	return out
}

func (e *cliEnv) runIn(in string, args ...string) string {
	e.t.Helper()
	out, errOut, err := runCLIWithInput(e.t, e.args(args...), strings.NewReader(in))
	if err != nil {
		e.t.Fatalf("%v: %v\nstderr: %s", args, err, errOut)
	}
	return out
}

func (e *cliEnv) fail(args ...string) string {
	e.t.Helper()
	_, errOut, err := runCLI(e.t, e.args(args...))
	if err == nil {
		e.t.Fatalf("%v: expected error", args)
	}
	return errOut
}

// data decodes the {"data": ...} envelope of a JSON response into v.
func (e *cliEnv) data(out string, v any) {
	e.t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		e.t.Fatalf("decode envelope: %v\n%s", err, out)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		e.t.Fatalf("decode data: %v\n%s", err, out)
	}
}

type nodeOut struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Type     string    `json:"type"`
	Tags     []string  `json:"tags"`
	Parent   string    `json:"parent"`
	Children []nodeOut `json:"children"`
}

func (e *cliEnv) addDoc(name, docType, parent string) nodeOut {
	e.t.Helper()
	args := []string{"docs", "add", "--name", name, "--type", docType}
	if parent != "" {
		args = append(args, "--parent", parent)
	}
	var n nodeOut
	e.data(e.run(args...), &n)
	if n.ID == "" {
		e.t.Fatalf("add %q: missing id", name)
	}
	return n
}

func TestProjectsCreateUseAndList(t *testing.T) {
	e := newCLIEnv(t)

	var meta struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Backend string `json:"backend"`
		Active  bool   `json:"active"`
	}
	e.data(e.run("projects", "create", "--name", "Notes", "--id", "notes", "--use"), &meta)
	if meta.ID != "notes" || meta.Name != "Notes" || meta.Backend != "local" || !meta.Active {
		t.Fatalf("unexpected meta: %+v", meta)
	}

	var st struct {
		ActiveProject string `json:"activeProject"`
	}
	e.data(e.run("session", "show"), &st)
	if st.ActiveProject != "notes" {
		t.Fatalf("expected active project notes, got %q", st.ActiveProject)
	}

	e.run("projects", "create", "--name", "Other", "--id", "other")
	var metas []struct {
		ID string `json:"id"`
	}
	e.data(e.run("projects", "list"), &metas)
	if len(metas) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(metas))
	}

	errOut := e.fail("projects", "create", "--name", "Again", "--id", "notes")
	if !strings.Contains(errOut, "notes") {
		t.Fatalf("expected duplicate id error, got %q", errOut)
	}
}

func TestDocsLifecycle(t *testing.T) {
	e := newCLIEnv(t)
	e.run("projects", "create", "--name", "Notes", "--id", "notes", "--use")

	reading := e.addDoc("Reading", "markdown", "")
	books := e.addDoc("Books", "plaintext", reading.ID)
	todo := e.addDoc("Todo", "plaintext", "")

	var tree []nodeOut
	e.data(e.run("docs", "tree"), &tree)
	if len(tree) != 2 || tree[0].ID != reading.ID || tree[1].ID != todo.ID {
		t.Fatalf("unexpected roots: %+v", tree)
	}
	if len(tree[0].Children) != 1 || tree[0].Children[0].ID != books.ID {
		t.Fatalf("expected Books under Reading: %+v", tree[0])
	}

	var renamed nodeOut
	e.data(e.run("docs", "rename", books.ID, "Novels"), &renamed)
	if renamed.Name != "Novels" {
		t.Fatalf("rename: %+v", renamed)
	}

	var moved nodeOut
	e.data(e.run("docs", "move", books.ID, "--parent", todo.ID), &moved)
	if moved.Parent != todo.ID {
		t.Fatalf("move: %+v", moved)
	}

	var tagged struct {
		Tags []string `json:"tags"`
	}
	e.data(e.run("docs", "tag", todo.ID, "work", "urgent"), &tagged)
	if len(tagged.Tags) != 2 {
		t.Fatalf("tag: %+v", tagged)
	}
	e.data(e.run("docs", "tag", todo.ID, "urgent"), &tagged)
	if len(tagged.Tags) != 1 || tagged.Tags[0] != "work" {
		t.Fatalf("tag toggle: %+v", tagged)
	}

	var show struct {
		Path []string `json:"path"`
	}
	e.data(e.run("docs", "show", books.ID), &show)
	if strings.Join(show.Path, "/") != "Todo/Novels" {
		t.Fatalf("unexpected path: %v", show.Path)
	}

	var sub struct {
		Count int `json:"count"`
	}
	e.data(e.run("docs", "subtree", todo.ID), &sub)
	if sub.Count != 2 {
		t.Fatalf("subtree count: %d", sub.Count)
	}

	var clone struct {
		ID    string `json:"id"`
		Count int    `json:"count"`
	}
	e.data(e.run("docs", "clone", todo.ID), &clone)
	if clone.ID == "" || clone.ID == todo.ID || clone.Count != 2 {
		t.Fatalf("clone: %+v", clone)
	}

	var removed struct {
		Removed int `json:"removed"`
	}
	e.data(e.run("docs", "remove", todo.ID, "--yes"), &removed)
	if removed.Removed != 2 {
		t.Fatalf("remove: %+v", removed)
	}
	e.data(e.run("docs", "tree"), &tree)
	if len(tree) != 2 {
		t.Fatalf("expected Reading and the clone, got %+v", tree)
	}

	e.fail("docs", "show", todo.ID)
	e.fail("docs", "add", "--name", "Bad", "--type", "spreadsheet")
}

func TestDocsRemoveAsksFirst(t *testing.T) {
	e := newCLIEnv(t)
	e.run("projects", "create", "--name", "Notes", "--id", "notes", "--use")
	doc := e.addDoc("Keep", "plaintext", "")

	var removed struct {
		Removed int `json:"removed"`
	}
	e.data(e.runIn("n\n", "docs", "remove", doc.ID), &removed)
	if removed.Removed != 0 {
		t.Fatalf("declined remove should keep the document: %+v", removed)
	}
	e.run("docs", "show", doc.ID)

	e.data(e.runIn("y\n", "docs", "remove", doc.ID), &removed)
	if removed.Removed != 1 {
		t.Fatalf("confirmed remove: %+v", removed)
	}
}

func TestDocsWriteCatAndDraft(t *testing.T) {
	e := newCLIEnv(t)
	e.run("projects", "create", "--name", "Notes", "--id", "notes", "--use")
	doc := e.addDoc("Diary", "markdown", "")

	body := "# Hello\n\nA goroutine walks into a bar.\n"
	var st struct {
		HasDraft bool `json:"hasDraft"`
		Bytes    int  `json:"bytes"`
	}
	e.data(e.runIn(body, "docs", "write", doc.ID), &st)
	if st.HasDraft || st.Bytes == 0 {
		t.Fatalf("write: %+v", st)
	}

	if out := e.run("docs", "cat", doc.ID); !strings.Contains(out, "goroutine") {
		t.Fatalf("cat: %q", out)
	}
	if out := e.run("docs", "cat", doc.ID, "--as", "html"); !strings.Contains(out, "<h1") {
		t.Fatalf("cat --as html: %q", out)
	}
	if out := e.run("docs", "cat", doc.ID, "--as", "markdown"); !strings.HasPrefix(out, "# Hello") {
		t.Fatalf("cat --as markdown: %q", out)
	}
	e.fail("docs", "cat", doc.ID, "--as", "pdf")

	e.data(e.runIn("draft text\n", "docs", "write", doc.ID, "--draft"), &st)
	if !st.HasDraft {
		t.Fatalf("draft write: %+v", st)
	}
	if out := e.run("docs", "cat", doc.ID, "--draft"); !strings.Contains(out, "draft text") {
		t.Fatalf("cat --draft: %q", out)
	}
	if out := e.run("docs", "cat", doc.ID); !strings.Contains(out, "goroutine") {
		t.Fatalf("committed body changed by a draft: %q", out)
	}

	e.data(e.run("docs", "discard", doc.ID), &st)
	if st.HasDraft {
		t.Fatalf("discard kept the draft: %+v", st)
	}
	e.fail("docs", "cat", doc.ID, "--draft")

	var images []any
	e.data(e.run("docs", "images", doc.ID), &images)
	if len(images) != 0 {
		t.Fatalf("expected no images, got %v", images)
	}
}

func TestSearchAndTags(t *testing.T) {
	e := newCLIEnv(t)
	e.run("projects", "create", "--name", "Notes", "--id", "notes", "--use")
	golang := e.addDoc("Go notes", "plaintext", "")
	other := e.addDoc("Recipes", "plaintext", "")
	e.runIn("channels and goroutines\n", "docs", "write", golang.ID)
	e.runIn("flour, water, salt\n", "docs", "write", other.ID)
	e.run("docs", "tag", other.ID, "kitchen")

	var hits []struct {
		ID     string `json:"id"`
		InName bool   `json:"inName"`
	}
	e.data(e.run("search", "goroutine"), &hits)
	if len(hits) != 1 || hits[0].ID != golang.ID || hits[0].InName {
		t.Fatalf("body search: %+v", hits)
	}
	e.data(e.run("search", "recipes"), &hits)
	if len(hits) != 1 || hits[0].ID != other.ID || !hits[0].InName {
		t.Fatalf("name search: %+v", hits)
	}
	e.data(e.run("search", "--tag", "kitchen"), &hits)
	if len(hits) != 1 || hits[0].ID != other.ID {
		t.Fatalf("tag search: %+v", hits)
	}

	var tags []tagCount
	e.data(e.run("search", "tags"), &tags)
	if len(tags) != 1 || tags[0].Tag != "kitchen" || tags[0].Count != 1 {
		t.Fatalf("tags: %+v", tags)
	}

	var re struct {
		Documents int `json:"documents"`
	}
	e.data(e.run("reindex"), &re)
	if re.Documents != 2 {
		t.Fatalf("reindex: %+v", re)
	}

	e.fail("search")
}

func TestExportImportRoundTrip(t *testing.T) {
	e := newCLIEnv(t)
	e.run("projects", "create", "--name", "Notes", "--id", "notes", "--use")
	parent := e.addDoc("Parent", "markdown", "")
	child := e.addDoc("Child", "plaintext", parent.ID)
	e.runIn("child body\n", "docs", "write", child.ID)

	archivePath := filepath.Join(t.TempDir(), "notes.zip")
	var exp struct {
		Path  string `json:"path"`
		Stats struct {
			Projects  int `json:"projects"`
			Documents int `json:"documents"`
		} `json:"stats"`
	}
	e.data(e.run("export", "--out", archivePath), &exp)
	if exp.Path != archivePath || exp.Stats.Projects != 1 || exp.Stats.Documents != 2 {
		t.Fatalf("export: %+v", exp)
	}

	if out := e.run("import", "inspect", "--file", archivePath); !strings.Contains(out, "notes") {
		t.Fatalf("inspect: %s", out)
	}

	var imp struct {
		Project   string `json:"project"`
		Name      string `json:"name"`
		Documents int    `json:"documents"`
	}
	e.data(e.run("import", "--file", archivePath, "--id", "copy"), &imp)
	if imp.Project != "copy" || imp.Name != "Notes" || imp.Documents != 2 {
		t.Fatalf("import: %+v", imp)
	}

	var tree []nodeOut
	e.data(e.run("--project", "copy", "docs", "tree"), &tree)
	if len(tree) != 1 || tree[0].ID != parent.ID || len(tree[0].Children) != 1 || tree[0].Children[0].ID != child.ID {
		t.Fatalf("imported tree: %+v", tree)
	}
	if out := e.run("--project", "copy", "docs", "cat", child.ID); !strings.Contains(out, "child body") {
		t.Fatalf("imported body: %q", out)
	}

	e.fail("export")
	e.fail("import", "--file", filepath.Join(t.TempDir(), "missing.zip"))
}

func TestPluginsListRunAndToggle(t *testing.T) {
	e := newCLIEnv(t)
	e.run("projects", "create", "--name", "Notes", "--id", "notes", "--use")
	doc := e.addDoc("Words", "plaintext", "")
	e.runIn("one two three\n", "docs", "write", doc.ID)

	var plugins []pluginView
	e.data(e.run("plugins", "list"), &plugins)
	loaded := map[string]bool{}
	for _, p := range plugins {
		loaded[p.Name] = p.Loaded
	}
	if !loaded["wordcount"] || !loaded["timestamp"] || loaded["screenshot"] {
		t.Fatalf("unexpected plugin state: %+v", plugins)
	}

	var res struct {
		Message string `json:"message"`
	}
	e.data(e.run("plugins", "run", "wordcount", "count", "--doc", doc.ID), &res)
	if !strings.HasPrefix(res.Message, "3 words") {
		t.Fatalf("count: %q", res.Message)
	}

	e.fail("plugins", "run", "wordcount", "count")
	e.fail("plugins", "run", "wordcount", "nope", "--doc", doc.ID)

	e.run("plugins", "disable", "wordcount")
	e.data(e.run("plugins", "list"), &plugins)
	for _, p := range plugins {
		if p.Name == "wordcount" && p.Loaded {
			t.Fatalf("wordcount still loaded after disable")
		}
	}
}

func TestSessionOpenClose(t *testing.T) {
	e := newCLIEnv(t)
	e.run("projects", "create", "--name", "Notes", "--id", "notes", "--use")
	a := e.addDoc("A", "plaintext", "")
	b := e.addDoc("B", "plaintext", "")

	var ps struct {
		Open    []string `json:"open"`
		Current string   `json:"current"`
	}
	e.run("session", "open", a.ID)
	e.data(e.run("session", "open", b.ID), &ps)
	if len(ps.Open) != 2 || ps.Current != b.ID {
		t.Fatalf("open: %+v", ps)
	}
	e.data(e.run("session", "close", b.ID), &ps)
	if len(ps.Open) != 1 || ps.Open[0] != a.ID {
		t.Fatalf("close: %+v", ps)
	}

	e.run("docs", "remove", a.ID, "--yes")
	var st struct {
		Projects map[string]struct {
			Open []string `json:"open"`
		} `json:"projects"`
	}
	e.data(e.run("session", "show"), &st)
	if len(st.Projects["notes"].Open) != 0 {
		t.Fatalf("removed document still open in session: %+v", st)
	}
}

func TestOutputFormats(t *testing.T) {
	e := newCLIEnv(t)
	e.run("projects", "create", "--name", "Notes", "--id", "notes")

	if out := e.run("--format", "edn", "projects", "list"); !strings.HasPrefix(out, "{:data [") {
		t.Fatalf("edn: %q", out)
	}
	if out := e.run("--format", "yaml", "projects", "list"); !strings.HasPrefix(out, "data:") {
		t.Fatalf("yaml: %q", out)
	}
	e.fail("--format", "xml", "projects", "list")
}

func TestGuide(t *testing.T) {
	e := newCLIEnv(t)

	var topics struct {
		Topics []string `json:"topics"`
	}
	e.data(e.run("guide"), &topics)
	if len(topics.Topics) == 0 {
		t.Fatalf("expected guide topics")
	}
	if out := e.run("guide", "documents", "--raw"); !strings.HasPrefix(out, "# Documents") {
		t.Fatalf("raw guide: %q", out)
	}
	e.fail("guide", "nope")
}

func TestNoProjectSelected(t *testing.T) {
	e := newCLIEnv(t)
	e.run("projects", "create", "--name", "A", "--id", "a")
	e.run("projects", "create", "--name", "B", "--id", "b")

	errOut := e.fail("docs", "tree")
	if !strings.Contains(errOut, "--project") {
		t.Fatalf("expected a hint about --project, got %q", errOut)
	}
}
