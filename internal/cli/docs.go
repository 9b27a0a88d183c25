package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"

	"appletree/internal/doctree"
	"appletree/internal/editor"
	"appletree/internal/model"
)

type treeView struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Type     string     `json:"type"`
	Tags     []string   `json:"tags,omitempty"`
	Children []treeView `json:"children"`
}

func buildTreeView(t *doctree.Tree, nodes []doctree.Node) []treeView {
	out := make([]treeView, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, treeView{
			ID:       n.ID,
			Name:     n.Name,
			Type:     n.Type,
			Tags:     n.Tags,
			Children: buildTreeView(t, t.Children(n.ID)),
		})
	}
	return out
}

func newDocsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "docs",
		Aliases: []string{"documents"},
		Short:   "Document commands",
	}
	cmd.AddCommand(newDocsTreeCmd(app))
	cmd.AddCommand(newDocsAddCmd(app))
	cmd.AddCommand(newDocsRenameCmd(app))
	cmd.AddCommand(newDocsMoveCmd(app))
	cmd.AddCommand(newDocsRemoveCmd(app))
	cmd.AddCommand(newDocsCloneCmd(app))
	cmd.AddCommand(newDocsTagCmd(app))
	cmd.AddCommand(newDocsSetTypeCmd(app))
	cmd.AddCommand(newDocsShowCmd(app))
	cmd.AddCommand(newDocsSubtreeCmd(app))
	cmd.AddCommand(newDocsFindCmd(app))
	cmd.AddCommand(newDocsCatCmd(app))
	cmd.AddCommand(newDocsWriteCmd(app))
	cmd.AddCommand(newDocsEditCmd(app))
	cmd.AddCommand(newDocsDiscardCmd(app))
	cmd.AddCommand(newDocsImagesCmd(app))
	return cmd
}

func newDocsTreeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tree [doc-id]",
		Short: "Show the document tree (or the subtree below a document)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, t, err := openProject(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			nodes := t.Roots()
			if len(args) == 1 {
				n, ok := t.Node(args[0])
				if !ok {
					return writeErr(cmd, errNotFound("document", args[0]))
				}
				nodes = []doctree.Node{n}
			}
			return writeOut(cmd, app, map[string]any{"data": buildTreeView(t, nodes)})
		},
	}
}

func newDocsAddCmd(app *App) *cobra.Command {
	var (
		name     string
		parentID string
		docType  string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a document",
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := editor.DefaultKinds()
			if _, ok := kinds.Lookup(docType); !ok {
				return writeErr(cmd, unknownTypeError{docType: docType, known: kinds.Names()})
			}
			p, t, err := openProject(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			id, err := t.CreateDocument(strings.TrimSpace(name), parentID, docType)
			if err != nil {
				return writeErr(cmd, err)
			}
			syncBestEffort(cmd, p, "add document "+id)
			n, _ := t.Node(id)
			return writeOut(cmd, app, map[string]any{"data": n})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Document name")
	cmd.Flags().StringVar(&parentID, "parent", "", "Parent document id (default: top level)")
	cmd.Flags().StringVar(&docType, "type", model.DefaultType, "Document type (richtext|markdown|plaintext|table)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newDocsRenameCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <doc-id> <name>",
		Short: "Rename a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, t, err := openProject(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := t.Rename(args[0], strings.TrimSpace(args[1])); err != nil {
				return writeErr(cmd, err)
			}
			if _, err := t.Save(); err != nil {
				return writeErr(cmd, err)
			}
			syncBestEffort(cmd, p, "rename document "+args[0])
			n, _ := t.Node(args[0])
			return writeOut(cmd, app, map[string]any{"data": n})
		},
	}
}

func newDocsMoveCmd(app *App) *cobra.Command {
	var (
		parentID string
		index    int
	)

	cmd := &cobra.Command{
		Use:   "move <doc-id>",
		Short: "Move a document under another parent (or to the top level)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, t, err := openProject(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := t.Move(args[0], parentID, index); err != nil {
				return writeErr(cmd, err)
			}
			if _, err := t.Save(); err != nil {
				return writeErr(cmd, err)
			}
			syncBestEffort(cmd, p, "move document "+args[0])
			n, _ := t.Node(args[0])
			return writeOut(cmd, app, map[string]any{"data": n})
		},
	}

	cmd.Flags().StringVar(&parentID, "parent", "", "New parent id (default: top level)")
	cmd.Flags().IntVar(&index, "index", -1, "Position among the new siblings (default: last)")
	return cmd
}

// promptConfirmer asks on the command's stdin.
func promptConfirmer(in io.Reader, out io.Writer) doctree.ConfirmFunc {
	return func(title, message, detail string) bool {
		fmt.Fprintf(out, "%s: %s (%s) [y/N] ", title, message, detail)
		line, _ := bufio.NewReader(in).ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	}
}

func newDocsRemoveCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "remove <doc-id>",
		Short: "Remove a document and everything below it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []doctree.Option
			if !yes {
				opts = append(opts, doctree.WithConfirmer(promptConfirmer(cmd.InOrStdin(), cmd.ErrOrStderr())))
			}
			id, err := app.projectID()
			if err != nil {
				return writeErr(cmd, err)
			}
			p, err := app.projects.Open(id)
			if err != nil {
				return writeErr(cmd, err)
			}
			t, err := p.Tree(opts...)
			if err != nil {
				return writeErr(cmd, err)
			}
			n, err := t.RemoveSubtree(args[0])
			if errors.Is(err, doctree.ErrCancelled) {
				return writeOut(cmd, app, map[string]any{"data": map[string]any{"id": args[0], "removed": 0, "cancelled": true}})
			}
			if n > 0 {
				forgetDocuments(app, p.ID, t)
				syncBestEffort(cmd, p, fmt.Sprintf("remove %d document(s)", n))
			}
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"id": args[0], "removed": n}})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newDocsCloneCmd(app *App) *cobra.Command {
	var (
		toProject string
		parentID  string
	)

	cmd := &cobra.Command{
		Use:   "clone <doc-id>",
		Short: "Deep-copy a document subtree, optionally into another project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, srcTree, err := openProject(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			dest, destTree := src, srcTree
			if toProject != "" && toProject != src.ID {
				dest, err = app.projects.Open(toProject)
				if err != nil {
					return writeErr(cmd, err)
				}
				destTree, err = dest.Tree()
				if err != nil {
					return writeErr(cmd, err)
				}
			}
			newID, err := destTree.CloneSubtree(srcTree, args[0], parentID)
			if err != nil {
				return writeErr(cmd, err)
			}
			syncBestEffort(cmd, dest, "clone document "+args[0])
			_, count, _ := destTree.Subtree(newID)
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"id":      newID,
				"project": dest.ID,
				"count":   count,
			}})
		},
	}

	cmd.Flags().StringVar(&toProject, "to-project", "", "Destination project id (default: same project)")
	cmd.Flags().StringVar(&parentID, "parent", "", "Destination parent id (default: top level)")
	return cmd
}

func newDocsTagCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tag <doc-id> <tag>...",
		Short: "Toggle tags on a document",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, t, err := openProject(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			tags, err := t.ToggleTags(args[0], args[1:]...)
			if err != nil {
				return writeErr(cmd, err)
			}
			syncBestEffort(cmd, p, "tag document "+args[0])
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"id": args[0], "tags": tags}})
		},
	}
}

func newDocsSetTypeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set-type <doc-id> <type>",
		Short: "Change the document type",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := editor.DefaultKinds()
			if _, ok := kinds.Lookup(args[1]); !ok {
				return writeErr(cmd, unknownTypeError{docType: args[1], known: kinds.Names()})
			}
			p, t, err := openProject(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := t.SetType(args[0], args[1]); err != nil {
				return writeErr(cmd, err)
			}
			syncBestEffort(cmd, p, "retype document "+args[0])
			n, _ := t.Node(args[0])
			return writeOut(cmd, app, map[string]any{"data": n})
		},
	}
}

func newDocsShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <doc-id>",
		Short: "Show a document's metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, t, err := openProject(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			n, ok := t.Node(args[0])
			if !ok {
				return writeErr(cmd, errNotFound("document", args[0]))
			}
			meta, err := p.Docs.DocumentMeta(n.ID)
			if err != nil {
				return writeErr(cmd, err)
			}
			_, hasDraft, err := p.Docs.DocumentBodyDraft(n.ID)
			if err != nil {
				return writeErr(cmd, err)
			}
			images, err := p.Docs.Images(n.ID)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"document": n,
				"path":     t.Path(n.ID),
				"meta":     meta,
				"hasDraft": hasDraft,
				"images":   len(images),
			}})
		},
	}
}

func newDocsSubtreeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "subtree <doc-id>",
		Short: "Show the persisted forest below a document and the subtree size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, t, err := openProject(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			forest, count, err := t.Subtree(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"id":       args[0],
				"count":    count,
				"children": forest,
			}})
		},
	}
}

type pathSource struct {
	ids   []string
	paths []string
}

func (s pathSource) String(i int) string { return s.paths[i] }
func (s pathSource) Len() int            { return len(s.paths) }

func newDocsFindCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "find <query>",
		Short: "Fuzzy-find documents by their path of names",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, t, err := openProject(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			var src pathSource
			t.Walk(func(n doctree.Node, _ int) {
				src.ids = append(src.ids, n.ID)
				src.paths = append(src.paths, strings.Join(t.Path(n.ID), " / "))
			})
			matches := fuzzy.FindFrom(args[0], src)
			out := []map[string]any{}
			for i, m := range matches {
				if limit > 0 && i >= limit {
					break
				}
				out = append(out, map[string]any{"id": src.ids[m.Index], "path": m.Str, "score": m.Score})
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum matches (0: all)")
	return cmd
}
