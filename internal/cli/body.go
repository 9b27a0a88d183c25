package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"appletree/internal/backend"
	"appletree/internal/doctree"
	"appletree/internal/editor"
	"appletree/internal/model"
	"appletree/internal/project"
	"appletree/internal/render"
	"appletree/internal/shellwords"
)

// bindDocument opens a headless editor on a document. Relative image paths in the body resolve
// against baseDir.
func bindDocument(p *project.Project, t *doctree.Tree, id, baseDir string) (*editor.Binding, error) {
	n, ok := t.Node(id)
	if !ok {
		return nil, errNotFound("document", id)
	}
	kinds := editor.DefaultKinds()
	kind, ok := kinds.Lookup(n.Type)
	if !ok {
		return nil, unknownTypeError{docType: n.Type, known: kinds.Names()}
	}
	buf := editor.NewBuffer(kind, editor.FileResolver{BaseDir: baseDir, Docs: p.Docs, DocID: id})
	b := editor.Bind(p.Docs, id, buf, kind)
	if err := b.Open(); err != nil {
		return nil, err
	}
	return b, nil
}

// commitBody saves (or drafts) body through b and stamps the modified time.
func commitBody(docs backend.Documents, b *editor.Binding, body string, draft bool) error {
	b.Surface().SetBody(body)
	b.MarkEdited()
	if draft {
		return b.SaveDraft()
	}
	if err := b.Save(); err != nil {
		return err
	}
	return docs.UpdateDocumentMeta(b.ID(), model.Meta{model.MetaModified: time.Now().UTC().Format(time.RFC3339)})
}

func newDocsCatCmd(app *App) *cobra.Command {
	var (
		draft bool
		as    string
		width int
		style string
	)

	cmd := &cobra.Command{
		Use:   "cat <doc-id>",
		Short: "Print a document body",
		Long: strings.TrimSpace(`
Print the committed body (or the pending draft with --draft) to stdout.

--as picks the rendering: raw (stored format), markdown, html, text or terminal (styled
for the console).
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, t, err := openProject(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			n, ok := t.Node(args[0])
			if !ok {
				return writeErr(cmd, errNotFound("document", args[0]))
			}
			var body string
			if draft {
				d, ok, err := p.Docs.DocumentBodyDraft(n.ID)
				if err != nil {
					return writeErr(cmd, err)
				}
				if !ok {
					return writeErr(cmd, fmt.Errorf("document %s has no draft", n.ID))
				}
				body = d
			} else {
				body, err = p.Docs.DocumentBody(n.ID)
				if err != nil && !errors.Is(err, backend.ErrNotFound) {
					return writeErr(cmd, err)
				}
			}

			out, err := renderAs(n.Type, body, as, width, style)
			if err != nil {
				return writeErr(cmd, err)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), out)
			return err
		},
	}

	cmd.Flags().BoolVar(&draft, "draft", false, "Print the pending draft instead of the committed body")
	cmd.Flags().StringVar(&as, "as", "raw", "Rendering: raw|markdown|html|text|terminal")
	cmd.Flags().IntVar(&width, "width", 80, "Wrap width for --as terminal")
	cmd.Flags().StringVar(&style, "style", "", "glamour style for --as terminal (default: dark)")
	return cmd
}

func renderAs(docType, body, as string, width int, style string) (string, error) {
	var out string
	var err error
	switch as {
	case "", "raw":
		out = body
	case "markdown":
		out, err = render.Markdown(docType, body)
	case "html":
		out, err = render.HTML(docType, body)
	case "text":
		out = render.Text(docType, body)
	case "terminal":
		out, err = render.Terminal(docType, body, width, style)
	default:
		return "", fmt.Errorf("unknown rendering %q (want raw|markdown|html|text|terminal)", as)
	}
	if err != nil {
		return "", err
	}
	if out != "" && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out, nil
}

func newDocsWriteCmd(app *App) *cobra.Command {
	var (
		file  string
		draft bool
	)

	cmd := &cobra.Command{
		Use:   "write <doc-id>",
		Short: "Replace a document body from a file or stdin",
		Long: strings.TrimSpace(`
Replace the body with the content of --file (or stdin). Local image references in the body
are stored with the document and rewritten; images no longer referenced are removed.

With --draft only the draft is written and the committed body stays untouched.
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data    []byte
				err     error
				baseDir string
			)
			if file == "" || file == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
				baseDir, _ = os.Getwd()
			} else {
				data, err = os.ReadFile(file)
				baseDir = filepath.Dir(file)
			}
			if err != nil {
				return writeErr(cmd, err)
			}

			p, t, err := openProject(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			b, err := bindDocument(p, t, args[0], baseDir)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := commitBody(p.Docs, b, string(data), draft); err != nil {
				return writeErr(cmd, err)
			}
			if !draft {
				syncBestEffort(cmd, p, "write document "+args[0])
			}
			return writeOut(cmd, app, map[string]any{"data": bodyStatus(p.Docs, b)})
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Read the body from this file (default: stdin)")
	cmd.Flags().BoolVar(&draft, "draft", false, "Write the draft only")
	return cmd
}

func bodyStatus(docs backend.Documents, b *editor.Binding) map[string]any {
	_, hasDraft, _ := docs.DocumentBodyDraft(b.ID())
	images, _ := docs.Images(b.ID())
	return map[string]any{
		"id":       b.ID(),
		"state":    b.State().String(),
		"hasDraft": hasDraft,
		"bytes":    len(b.Surface().Body()),
		"images":   images,
	}
}

func externalEditorName() string {
	if v := strings.TrimSpace(os.Getenv("VISUAL")); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv("EDITOR")); v != "" {
		return v
	}
	return "vi"
}

func editorExt(docType string) string {
	switch docType {
	case model.TypeRichText:
		return ".html"
	case model.TypeMarkdown:
		return ".md"
	case model.TypeTable:
		return ".csv"
	}
	return ".txt"
}

func newDocsEditCmd(app *App) *cobra.Command {
	var draft bool

	cmd := &cobra.Command{
		Use:   "edit <doc-id>",
		Short: "Edit a document body in $VISUAL / $EDITOR",
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
			cwd, _ := os.Getwd()
			b, err := bindDocument(p, t, n.ID, cwd)
			if err != nil {
				return writeErr(cmd, err)
			}
			before := b.Surface().Body()

			after, err := runExternalEditor(cmd, before, editorExt(n.Type))
			if err != nil {
				return writeErr(cmd, err)
			}
			if after == before && !b.Modified() {
				return writeOut(cmd, app, map[string]any{"data": bodyStatus(p.Docs, b)})
			}
			if err := commitBody(p.Docs, b, after, draft); err != nil {
				return writeErr(cmd, err)
			}
			if !draft {
				syncBestEffort(cmd, p, "edit document "+n.ID)
			}
			return writeOut(cmd, app, map[string]any{"data": bodyStatus(p.Docs, b)})
		},
	}

	cmd.Flags().BoolVar(&draft, "draft", false, "Keep the edit as a draft instead of committing it")
	return cmd
}

func runExternalEditor(cmd *cobra.Command, content, ext string) (string, error) {
	argv := shellwords.Split(externalEditorName())
	if len(argv) == 0 {
		argv = []string{"vi"}
	}

	f, err := os.CreateTemp("", "appletree-*"+ext)
	if err != nil {
		return "", err
	}
	path := f.Name()
	defer func() { _ = os.Remove(path) }()

	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return "", err
	}
	_ = f.Close()

	c := exec.CommandContext(cmd.Context(), argv[0], append(argv[1:], path)...)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = cmd.ErrOrStderr()
	if err := c.Run(); err != nil {
		return "", fmt.Errorf("editor %s failed: %w", argv[0], err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("editor read failed: %w", err)
	}
	return string(b), nil
}

func newDocsDiscardCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "discard <doc-id>",
		Short: "Drop a document's pending draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, t, err := openProject(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			b, err := bindDocument(p, t, args[0], "")
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := b.Discard(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": bodyStatus(p.Docs, b)})
		},
	}
}

type imageView struct {
	Name  string `json:"name"`
	Bytes int    `json:"bytes"`
	Size  string `json:"size"`
}

func newDocsImagesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "images <doc-id>",
		Short: "List the images stored with a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, t, err := openProject(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if !t.Has(args[0]) {
				return writeErr(cmd, errNotFound("document", args[0]))
			}
			names, err := p.Docs.Images(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			out := make([]imageView, 0, len(names))
			for _, name := range names {
				data, err := p.Docs.ImageRaw(args[0], name)
				if err != nil {
					return writeErr(cmd, err)
				}
				out = append(out, imageView{Name: name, Bytes: len(data), Size: humanize.Bytes(uint64(len(data)))})
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}
}
