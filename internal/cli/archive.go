package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"appletree/internal/archive"
	"appletree/internal/store"
)

func newExportCmd(app *App) *cobra.Command {
	var (
		out string
		all bool
	)

	cmd := &cobra.Command{
		Use:   "export [project-id...]",
		Short: "Export projects to an appletree archive (zip)",
		Long: strings.TrimSpace(`
Export writes the given projects (default: the current project; --all for every project) into
one zip archive: document trees, committed bodies, metadata and images. Pending drafts are
not archived.
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(out) == "" {
				return writeErr(cmd, errors.New("missing --out"))
			}
			ids := args
			switch {
			case all:
				var err error
				if ids, err = app.projects.List(); err != nil {
					return writeErr(cmd, err)
				}
			case len(ids) == 0:
				id, err := app.projectID()
				if err != nil {
					return writeErr(cmd, err)
				}
				ids = []string{id}
			}

			sources := make([]archive.Source, 0, len(ids))
			for _, id := range ids {
				p, err := app.projects.Open(id)
				if err != nil {
					return writeErr(cmd, err)
				}
				sources = append(sources, archive.Source{ID: p.ID, Name: p.Meta.Name, Docs: p.Docs})
			}

			f, err := os.CreateTemp(filepath.Dir(out), ".appletree-export-*")
			if err != nil {
				return writeErr(cmd, err)
			}
			tmp := f.Name()
			stats, err := archive.Export(cmd.Context(), f, sources, archive.WithLogger(app.log))
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err == nil {
				err = os.Rename(tmp, out)
			}
			if err != nil {
				_ = os.Remove(tmp)
				return writeErr(cmd, err)
			}

			info, err := os.Stat(out)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"path":  out,
				"stats": stats,
				"bytes": info.Size(),
				"size":  humanize.Bytes(uint64(info.Size())),
			}})
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Archive path to write")
	cmd.Flags().BoolVar(&all, "all", false, "Export every project")
	return cmd
}

type archiveFile struct {
	*os.File
	size int64
}

func openArchive(path string) (archiveFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return archiveFile{}, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return archiveFile{}, err
	}
	return archiveFile{File: f, size: info.Size()}, nil
}

func newImportCmd(app *App) *cobra.Command {
	var (
		file string
		from string
		name string
		id   string
		sync string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a project from an appletree archive",
		Long: strings.TrimSpace(`
Import creates a new project from one project of an archive. Documents keep their archived ids.

Use "appletree import inspect --file F" to list the projects an archive holds. --from picks one
when the archive holds several.
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			af, err := openArchive(file)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer af.Close()

			c, err := archive.Inspect(af, af.size)
			if err != nil {
				return writeErr(cmd, err)
			}
			src, err := pickArchivedProject(c, from)
			if err != nil {
				return writeErr(cmd, err)
			}
			if strings.TrimSpace(name) == "" {
				name = c.Manifest.Projects[src]
			}

			pid, err := app.projects.Create(name, store.BackendName, sync, id)
			if err != nil {
				return writeErr(cmd, err)
			}
			p, err := app.projects.Open(pid)
			if err != nil {
				return writeErr(cmd, err)
			}
			n, err := archive.Restore(cmd.Context(), af, af.size, src, p.Docs)
			if err != nil {
				return writeErr(cmd, fmt.Errorf("restore into project %s: %w", pid, err))
			}
			syncBestEffort(cmd, p, "import "+src)

			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"project":   pid,
				"name":      name,
				"from":      src,
				"documents": n,
			}})
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Archive to import")
	cmd.Flags().StringVar(&from, "from", "", "Archived project id (default: the only one)")
	cmd.Flags().StringVar(&name, "name", "", "New project name (default: the archived name)")
	cmd.Flags().StringVar(&id, "id", "", "New project id (default: random)")
	cmd.Flags().StringVar(&sync, "sync", "", "Sync backend for the new project (git)")
	_ = cmd.MarkFlagRequired("file")
	cmd.AddCommand(newImportInspectCmd(app))
	return cmd
}

func pickArchivedProject(c archive.Contents, from string) (string, error) {
	if from != "" {
		if _, ok := c.Manifest.Projects[from]; !ok {
			return "", errNotFound("archived project", from)
		}
		return from, nil
	}
	ids := make([]string, 0, len(c.Manifest.Projects))
	for id := range c.Manifest.Projects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	switch len(ids) {
	case 0:
		return "", errors.New("archive holds no projects")
	case 1:
		return ids[0], nil
	}
	return "", fmt.Errorf("archive holds %d projects (%s); pick one with --from", len(ids), strings.Join(ids, ", "))
}

func newImportInspectCmd(app *App) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List the projects and documents of an archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			af, err := openArchive(file)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer af.Close()
			c, err := archive.Inspect(af, af.size)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"created":   c.Manifest.Time(),
				"projects":  c.Manifest.Projects,
				"documents": c.Documents,
			}})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Archive to inspect")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
