package cli

import (
	"github.com/spf13/cobra"

	"appletree/internal/doctree"
	"appletree/internal/session"
)

func newSessionCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Last-session state (active project, open documents)",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := session.Load(app.sessionPath())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": st})
		},
	})
	cmd.AddCommand(newSessionOpenCmd(app))
	cmd.AddCommand(newSessionCloseCmd(app))
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget the open documents of the current project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.projectID()
			if err != nil {
				return writeErr(cmd, err)
			}
			st, err := updateSession(app, func(st *session.State) { st.Remember(id, nil, "") })
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": st})
		},
	})
	return cmd
}

func newSessionOpenCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "open <doc-id>",
		Short: "Record a document as open (and current) in the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, t, err := openProject(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if !t.Has(args[0]) {
				return writeErr(cmd, errNotFound("document", args[0]))
			}
			st, err := updateSession(app, func(st *session.State) {
				open := st.Projects[p.ID].Open
				if !contains(open, args[0]) {
					open = append(open, args[0])
				}
				st.Remember(p.ID, open, args[0])
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": st.Projects[p.ID]})
		},
	}
}

func newSessionCloseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "close <doc-id>",
		Short: "Drop a document from the session's open documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.projectID()
			if err != nil {
				return writeErr(cmd, err)
			}
			st, err := updateSession(app, func(st *session.State) {
				st.Prune(id, func(docID string) bool { return docID != args[0] })
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": st.Projects[id]})
		},
	}
}

func updateSession(app *App, fn func(st *session.State)) (session.State, error) {
	path := app.sessionPath()
	st, err := session.Load(path)
	if err != nil {
		return st, err
	}
	fn(&st)
	if err := session.Save(path, st); err != nil {
		return st, err
	}
	return st, nil
}

// forgetDocuments drops removed documents from the saved session. Session state is a
// convenience, so failures are only logged.
func forgetDocuments(app *App, projectID string, t *doctree.Tree) {
	if _, err := updateSession(app, func(st *session.State) { st.Prune(projectID, t.Has) }); err != nil {
		app.log.Warn("update session", "project", projectID, "error", err)
	}
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
