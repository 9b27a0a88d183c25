package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"appletree/internal/gitsync"
	"appletree/internal/model"
)

func newSyncCmd(app *App) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Commit the current project through its sync backend",
		Long: strings.TrimSpace(`
Projects created with --sync git are a git repository. Most write commands commit on their own;
sync commits whatever is left (for example after editing files by hand).
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := openProject(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if p.Meta.Sync == model.SyncNone {
				return writeErr(cmd, errors.New("project "+p.ID+" has no sync backend"))
			}
			committed, err := p.Sync(cmd.Context(), message)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"project":   p.ID,
				"committed": committed,
			}})
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "sync", "Commit message")
	cmd.AddCommand(newSyncStatusCmd(app))
	cmd.AddCommand(newSyncLogCmd(app))
	return cmd
}

func newSyncStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show git working tree status for the current project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := openProject(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			st, err := gitsync.GetStatus(cmd.Context(), p.Dir)
			if err != nil {
				return writeErr(cmd, err)
			}

			hints := []string{}
			if st.IsRepo && (st.Dirty || st.Unmerged) {
				hints = append(hints, "appletree sync")
			}
			if st.InProgress != "" {
				hints = append(hints, "git -C "+p.Dir+" status")
			}

			return writeOut(cmd, app, map[string]any{
				"data":   st,
				"_hints": hints,
			})
		},
	}
}

func newSyncLogCmd(app *App) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent commits of the current project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := openProject(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			st, err := gitsync.GetStatus(cmd.Context(), p.Dir)
			if err != nil {
				return writeErr(cmd, err)
			}
			if !st.IsRepo {
				return writeOut(cmd, app, map[string]any{"data": []gitsync.Entry{}})
			}
			entries, err := gitsync.Log(cmd.Context(), p.Dir, limit)
			if err != nil {
				return writeErr(cmd, err)
			}
			if entries == nil {
				entries = []gitsync.Entry{}
			}
			return writeOut(cmd, app, map[string]any{"data": entries})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of commits")
	return cmd
}
