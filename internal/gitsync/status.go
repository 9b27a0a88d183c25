package gitsync

import (
	"context"
	"os/exec"
	"strings"
)

type Status struct {
	IsRepo bool   `json:"isRepo"`
	Root   string `json:"root,omitempty"`
	Branch string `json:"branch,omitempty"`
	Head   string `json:"head,omitempty"`

	Dirty    bool `json:"dirty"`
	Unmerged bool `json:"unmerged"`

	// InProgress is one of merge|rebase|cherry-pick|revert, or empty.
	InProgress string `json:"inProgress,omitempty"`
}

// GetStatus inspects the repository containing dir. A directory outside any repository is not
// an error; it yields IsRepo=false.
func GetStatus(ctx context.Context, dir string) (Status, error) {
	root, err := git(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return Status{}, nil
	}
	st := Status{IsRepo: true, Root: strings.TrimSpace(root)}

	if branch, err := git(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD"); err == nil {
		st.Branch = strings.TrimSpace(branch)
	}
	if head, err := git(ctx, dir, "rev-parse", "--short", "HEAD"); err == nil {
		st.Head = strings.TrimSpace(head)
	}
	porcelain, _ := git(ctx, dir, "status", "--porcelain=v1")
	st.Dirty, st.Unmerged = parsePorcelain(porcelain)
	st.InProgress = inProgress(ctx, dir)
	return st, nil
}

func parsePorcelain(out string) (dirty bool, unmerged bool) {
	for _, ln := range strings.Split(out, "\n") {
		ln = strings.TrimRight(ln, "\r")
		if len(ln) < 2 {
			continue
		}
		xy := ln[:2]
		if strings.TrimSpace(xy) == "" {
			continue
		}
		dirty = true
		if unmergedXY(xy) {
			unmerged = true
		}
	}
	return dirty, unmerged
}

func unmergedXY(xy string) bool {
	switch xy {
	case "DD", "AA":
		return true
	}
	return xy[0] == 'U' || xy[1] == 'U'
}

func inProgress(ctx context.Context, dir string) string {
	for _, ref := range []struct{ head, kind string }{
		{"MERGE_HEAD", "merge"},
		{"REBASE_HEAD", "rebase"},
		{"CHERRY_PICK_HEAD", "cherry-pick"},
		{"REVERT_HEAD", "revert"},
	} {
		cmd := exec.CommandContext(ctx, "git", "rev-parse", "--verify", "-q", ref.head)
		cmd.Dir = dir
		if cmd.Run() == nil {
			return ref.kind
		}
	}
	return ""
}
