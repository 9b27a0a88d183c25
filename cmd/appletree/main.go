package main

import (
	"os"
	"strings"

	"github.com/google/uuid"

	"appletree/internal/cli"
)

func isDocID(s string) bool {
	_, err := uuid.Parse(strings.TrimSpace(s))
	return err == nil
}

// rewriteDirectDocArgs turns `appletree <doc-id>` into `appletree docs show <doc-id>`. Cobra
// treats the first positional token as a subcommand, so argv is rewritten before parsing.
// Persistent flags may come first; the rewrite looks for the first positional token.
func rewriteDirectDocArgs(argv []string) []string {
	if len(argv) < 2 {
		return argv
	}
	valueFlags := map[string]bool{
		"--data-dir":   true,
		"--config-dir": true,
		"--project":    true,
		"--format":     true,
	}

	rewrite := func(i int) []string {
		out := make([]string, 0, len(argv)+2)
		out = append(out, argv[:i]...)
		out = append(out, "docs", "show")
		return append(out, argv[i:]...)
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		switch {
		case a == "":
			continue
		case a == "--":
			if i+1 < len(argv) && isDocID(argv[i+1]) {
				return rewrite(i + 1)
			}
			return argv
		case strings.HasPrefix(a, "-"):
			if !strings.Contains(a, "=") && valueFlags[a] {
				i++
			}
			continue
		case isDocID(a):
			return rewrite(i)
		default:
			return argv
		}
	}
	return argv
}

func main() {
	os.Args = rewriteDirectDocArgs(os.Args)

	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
