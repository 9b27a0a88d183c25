package cli

import (
	"github.com/spf13/cobra"

	"appletree/internal/tui"
)

func runTUI(cmd *cobra.Command, app *App) error {
	if err := app.plugins.Load(); err != nil {
		// A broken plugin manifest should not keep the browser from starting.
		app.log.Warn("load plugins", "error", err)
	}
	return tui.Run(cmd.Context(), tui.Options{
		Projects:    app.projects,
		Plugins:     app.plugins,
		SessionPath: app.sessionPath(),
		ProjectID:   app.Project,
		Log:         app.log,
	})
}
