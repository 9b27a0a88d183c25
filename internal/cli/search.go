package cli

import (
	"errors"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"appletree/internal/index"
	"appletree/internal/project"
)

// projectIndex returns the project's search index, rebuilding it first unless cached is set
// and the index has been built before.
func projectIndex(cmd *cobra.Command, p *project.Project, cached bool) (*index.Index, error) {
	t, err := p.Tree()
	if err != nil {
		return nil, err
	}
	ix, err := p.Index(cmd.Context())
	if err != nil {
		return nil, err
	}
	if cached {
		if _, built, err := ix.RebuiltAt(cmd.Context()); err != nil || built {
			return ix, err
		}
	}
	if _, err := ix.Rebuild(cmd.Context(), t); err != nil {
		return nil, err
	}
	return ix, nil
}

func newSearchCmd(app *App) *cobra.Command {
	var (
		tag    string
		limit  int
		cached bool
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search document names and bodies",
		Long: strings.TrimSpace(`
Search matches the query case-insensitively against document names and committed body text.
Name matches come first, then tree order. With --tag only documents carrying that tag are listed.

The search index is derived local state. It is rebuilt before every search unless --cached is
given.
`),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			if strings.TrimSpace(query) == "" && strings.TrimSpace(tag) == "" {
				return writeErr(cmd, errors.New("search needs a query or --tag"))
			}
			p, _, err := openProject(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			ix, err := projectIndex(cmd, p, cached)
			if err != nil {
				return writeErr(cmd, err)
			}

			var hits []index.Hit
			if tag != "" {
				hits, err = ix.ByTag(cmd.Context(), tag)
				if err == nil && query != "" {
					hits = filterHits(hits, query)
				}
			} else {
				hits, err = ix.Search(cmd.Context(), query, limit)
			}
			if err != nil {
				return writeErr(cmd, err)
			}
			if limit > 0 && len(hits) > limit {
				hits = hits[:limit]
			}
			return writeOut(cmd, app, map[string]any{"data": hits})
		},
	}

	cmd.Flags().StringVar(&tag, "tag", "", "Only documents carrying this tag")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of results")
	cmd.Flags().BoolVar(&cached, "cached", false, "Use the existing index without rebuilding it")
	cmd.AddCommand(newSearchTagsCmd(app))
	return cmd
}

// filterHits keeps hits whose name or path contains q.
func filterHits(hits []index.Hit, q string) []index.Hit {
	q = strings.ToLower(strings.TrimSpace(q))
	out := hits[:0]
	for _, h := range hits {
		if strings.Contains(strings.ToLower(h.Name), q) || strings.Contains(strings.ToLower(h.Path), q) {
			out = append(out, h)
		}
	}
	return out
}

type tagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

func newSearchTagsCmd(app *App) *cobra.Command {
	var cached bool
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List tags with their document counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := openProject(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			ix, err := projectIndex(cmd, p, cached)
			if err != nil {
				return writeErr(cmd, err)
			}
			counts, err := ix.Tags(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			out := make([]tagCount, 0, len(counts))
			for tag, n := range counts {
				out = append(out, tagCount{Tag: tag, Count: n})
			}
			sort.Slice(out, func(i, j int) bool {
				if out[i].Count != out[j].Count {
					return out[i].Count > out[j].Count
				}
				return out[i].Tag < out[j].Tag
			})
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}
	cmd.Flags().BoolVar(&cached, "cached", false, "Use the existing index without rebuilding it")
	return cmd
}

func newReindexCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the derived search index of the current project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, t, err := openProject(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			ix, err := p.Index(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			n, err := ix.Rebuild(cmd.Context(), t)
			if err != nil {
				return writeErr(cmd, err)
			}
			at, _, err := ix.RebuiltAt(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"project":   p.ID,
				"documents": n,
				"path":      ix.Path(),
				"rebuiltAt": at,
			}})
		},
	}
}
