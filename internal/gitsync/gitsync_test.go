package gitsync

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestGetStatus_NonRepo(t *testing.T) {
	st, err := GetStatus(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if st.IsRepo {
		t.Fatalf("expected non-repo status")
	}
}

func TestParsePorcelain(t *testing.T) {
	cases := []struct {
		out      string
		dirty    bool
		unmerged bool
	}{
		{"", false, false},
		{" M documents/a/document.atdoc\n", true, false},
		{"?? project.conf\n", true, false},
		{"UU documents/applenote.doctree\n", true, true},
		{"AA x\n", true, true},
	}
	for _, tc := range cases {
		dirty, unmerged := parsePorcelain(tc.out)
		if dirty != tc.dirty || unmerged != tc.unmerged {
			t.Fatalf("parsePorcelain(%q) = %v,%v want %v,%v", tc.out, dirty, unmerged, tc.dirty, tc.unmerged)
		}
	}
}

func TestCommit_TracksProjectFilesOnly(t *testing.T) {
	if !Available() {
		t.Skip("git not installed")
	}
	ctx := context.Background()
	dir := t.TempDir()
	if err := EnsureRepo(ctx, dir); err != nil {
		t.Fatalf("EnsureRepo: %v", err)
	}
	run(t, dir, "git", "config", "user.email", "test@example.com")
	run(t, dir, "git", "config", "user.name", "Test")

	writeFile(t, filepath.Join(dir, "project.conf"), "[project]\nname = Notes\n")
	writeFile(t, filepath.Join(dir, "documents", "applenote.doctree"), "[]")
	writeFile(t, filepath.Join(dir, ".appletree", "index.sqlite"), "local")

	committed, err := Commit(ctx, dir, "create project")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !committed {
		t.Fatalf("expected a commit")
	}
	committed, err = Commit(ctx, dir, "again")
	if err != nil {
		t.Fatalf("Commit (noop): %v", err)
	}
	if committed {
		t.Fatalf("expected nothing to commit")
	}

	entries, err := Log(ctx, dir, 5)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(entries) != 1 || entries[0].Subject != "create project" {
		t.Fatalf("unexpected log: %+v", entries)
	}

	st, err := GetStatus(ctx, dir)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if st.Dirty {
		t.Fatalf("local-only files should be ignored: %+v", st)
	}
}

func run(t *testing.T, dir string, name string, args ...string) {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("%s %v: %v\n%s", name, args, err, out)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
