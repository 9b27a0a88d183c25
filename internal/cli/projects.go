package cli

import (
	"github.com/spf13/cobra"

	"appletree/internal/session"
)

func newProjectsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Project commands",
	}
	cmd.AddCommand(newProjectsCreateCmd(app))
	cmd.AddCommand(newProjectsListCmd(app))
	cmd.AddCommand(newProjectsShowCmd(app))
	cmd.AddCommand(newProjectsRenameCmd(app))
	cmd.AddCommand(newProjectsOpenCmd(app))
	cmd.AddCommand(newProjectsCloseCmd(app))
	cmd.AddCommand(newProjectsForgetCmd(app))
	return cmd
}

func newProjectsCreateCmd(app *App) *cobra.Command {
	var (
		name        string
		backendKind string
		syncKind    string
		id          string
		use         bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := app.projects.Create(name, backendKind, syncKind, id)
			if err != nil {
				return writeErr(cmd, err)
			}
			if use {
				if err := activate(app, pid); err != nil {
					return writeErr(cmd, err)
				}
			}
			meta, err := app.projects.Meta(pid)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": meta})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Project name")
	cmd.Flags().StringVar(&backendKind, "backend", "local", "Storage backend")
	cmd.Flags().StringVar(&syncKind, "sync", "", "Sync backend (git)")
	cmd.Flags().StringVar(&id, "id", "", "Project id (default: random)")
	cmd.Flags().BoolVar(&use, "use", false, "Open the project and make it the session's active project")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newProjectsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			metas, err := app.projects.Metas()
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": metas})
		},
	}
}

func newProjectsShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show [project-id]",
		Short: "Show project metadata and document count",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				app.Project = args[0]
			}
			p, t, err := openProject(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"project":   p.Meta,
				"dir":       p.Dir,
				"documents": t.Len(),
			}})
		},
	}
}

func newProjectsRenameCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <project-id> <name>",
		Short: "Rename a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.projects.Rename(args[0], args[1]); err != nil {
				return writeErr(cmd, err)
			}
			meta, err := app.projects.Meta(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": meta})
		},
	}
}

func newProjectsOpenCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "open <project-id>",
		Short: "Mark a project active and make it the session's current project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := activate(app, args[0]); err != nil {
				return writeErr(cmd, err)
			}
			meta, err := app.projects.Meta(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": meta})
		},
	}
}

func newProjectsCloseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "close <project-id>",
		Short: "Mark a project inactive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if err := app.projects.SetActive(id, false); err != nil {
				return writeErr(cmd, err)
			}
			if err := app.projects.Close(id); err != nil {
				return writeErr(cmd, err)
			}
			st, _ := session.Load(app.sessionPath())
			if st.ActiveProject == id {
				st.ActiveProject = ""
				if err := session.Save(app.sessionPath(), st); err != nil {
					return writeErr(cmd, err)
				}
			}
			meta, err := app.projects.Meta(id)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": meta})
		},
	}
}

func newProjectsForgetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <project-id>",
		Short: "Remove a project from the registry (its files stay on disk)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if err := app.projects.Forget(id); err != nil {
				return writeErr(cmd, err)
			}
			st, _ := session.Load(app.sessionPath())
			st.Forget(id)
			if err := session.Save(app.sessionPath(), st); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"id": id, "forgotten": true}})
		},
	}
}

// activate checks the project opens, flags it active and makes it the session's project.
func activate(app *App, id string) error {
	if _, err := app.projects.Open(id); err != nil {
		return err
	}
	if err := app.projects.SetActive(id, true); err != nil {
		return err
	}
	st, _ := session.Load(app.sessionPath())
	st.ActiveProject = id
	if st.Projects == nil {
		st.Projects = map[string]session.ProjectState{}
	}
	if _, ok := st.Projects[id]; !ok {
		st.Projects[id] = session.ProjectState{}
	}
	return session.Save(app.sessionPath(), st)
}
