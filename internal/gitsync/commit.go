package gitsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Paths inside a project directory that are committed. Everything else (the derived index, the
// lock file, temp files) stays local.
var trackedPaths = []string{"project.conf", "documents"}

const gitignore = ".appletree/\n*.tmp\n*.corrupt\n"

// EnsureRepo initialises dir as a repository when it is not inside one yet and writes the
// .gitignore for local-only files.
func EnsureRepo(ctx context.Context, dir string) error {
	st, err := GetStatus(ctx, dir)
	if err != nil {
		return err
	}
	if !st.IsRepo {
		if _, err := git(ctx, dir, "init"); err != nil {
			return err
		}
	}
	path := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(path, []byte(gitignore), 0o600); err != nil {
			return err
		}
	}
	return nil
}

// Commit stages the tracked project files and commits them. committed is false when there was
// nothing to commit or dir is not a repository.
func Commit(ctx context.Context, dir string, message string) (committed bool, err error) {
	dir = filepath.Clean(dir)
	st, err := GetStatus(ctx, dir)
	if err != nil {
		return false, err
	}
	if !st.IsRepo {
		return false, nil
	}
	if st.Unmerged || st.InProgress != "" {
		return false, errors.New("git repo has an in-progress merge/rebase; resolve first")
	}

	args := []string{"add", "--all", "--"}
	n := 0
	for _, p := range trackedPaths {
		if _, err := os.Stat(filepath.Join(dir, p)); err == nil {
			args = append(args, p)
			n++
		}
	}
	if _, err := os.Stat(filepath.Join(dir, ".gitignore")); err == nil {
		args = append(args, ".gitignore")
		n++
	}
	if n == 0 {
		return false, nil
	}
	if _, err := git(ctx, dir, args...); err != nil {
		return false, err
	}

	staged, err := git(ctx, dir, "diff", "--cached", "--name-only")
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(staged) == "" {
		return false, nil
	}

	msg := strings.TrimSpace(message)
	if msg == "" {
		msg = fmt.Sprintf("appletree: update (%s)", time.Now().UTC().Format(time.RFC3339))
	}
	if _, err := git(ctx, dir, "commit", "-m", msg); err != nil {
		return false, err
	}
	return true, nil
}

// Entry is one commit of the project history.
type Entry struct {
	Hash    string `json:"hash"`
	Date    string `json:"date"`
	Subject string `json:"subject"`
}

// Log returns up to limit commits, newest first.
func Log(ctx context.Context, dir string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	out, err := git(ctx, dir, "log", fmt.Sprintf("-n%d", limit), "--format=%h%x09%cI%x09%s")
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, ln := range strings.Split(strings.TrimSpace(out), "\n") {
		parts := strings.SplitN(ln, "\t", 3)
		if len(parts) != 3 {
			continue
		}
		entries = append(entries, Entry{Hash: parts[0], Date: parts[1], Subject: parts[2]})
	}
	return entries, nil
}
