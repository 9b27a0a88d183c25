package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"appletree/internal/backend"
	"appletree/internal/config"
	"appletree/internal/doctree"
	"appletree/internal/format"
	"appletree/internal/plugin"
	"appletree/internal/project"
	"appletree/internal/session"
	"appletree/internal/store"
)

type App struct {
	DataDir   string
	ConfigDir string
	Project   string
	Format    string
	Pretty    bool

	cfg      *config.Config
	log      *slog.Logger
	closeLog func() error
	projects *project.Registry
	plugins  *plugin.Registry
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "appletree",
		Short:        "appletree: hierarchical notes, local-first",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Browse the active project in the terminal UI
  appletree

  # Create a project and add a document
  appletree projects create --name Notes
  appletree --project <id> docs add --name "Reading list" --type markdown

  # Search every document of a project
  appletree --project <id> search "goroutine"
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.setup(cmd)
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return app.teardown()
	}

	cmd.PersistentFlags().StringVar(&app.DataDir, "data-dir", "", "Data directory (default: $APPLETREE_DATA_DIR or ~/.appletree)")
	cmd.PersistentFlags().StringVar(&app.ConfigDir, "config-dir", "", "Config directory for plugins (default: $APPLETREE_CONFIG_DIR or the data directory)")
	cmd.PersistentFlags().StringVar(&app.Project, "project", envOr("APPLETREE_PROJECT", ""), "Project id (default: the session's active project)")
	cmd.PersistentFlags().BoolVar(&app.Pretty, "pretty", false, "Pretty-print output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", "", "Output format (json|edn|yaml; default: $APPLETREE_FORMAT or json)")

	cmd.AddCommand(newProjectsCmd(app))
	cmd.AddCommand(newDocsCmd(app))
	cmd.AddCommand(newSearchCmd(app))
	cmd.AddCommand(newReindexCmd(app))
	cmd.AddCommand(newExportCmd(app))
	cmd.AddCommand(newImportCmd(app))
	cmd.AddCommand(newPluginsCmd(app))
	cmd.AddCommand(newSessionCmd(app))
	cmd.AddCommand(newSyncCmd(app))
	cmd.AddCommand(newGuideCmd(app))

	return cmd
}

func (app *App) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadDir(app.DataDir)
	if err != nil {
		return writeErr(cmd, err)
	}
	if app.ConfigDir != "" {
		cfg.ConfigDir = app.ConfigDir
	}
	if app.Format == "" {
		app.Format = cfg.Format
	}
	app.DataDir, app.ConfigDir = cfg.DataDir, cfg.ConfigDir

	logger, closeLog, err := config.SetupLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return writeErr(cmd, err)
	}
	app.cfg, app.log, app.closeLog = cfg, logger, closeLog

	backends := backend.NewRegistry()
	store.Register(backends)
	app.projects = project.NewRegistry(cfg.DataDir, backends, project.WithLogger(logger))

	app.plugins = plugin.NewRegistry(cfg.ConfigDir, plugin.WithLogger(logger))
	plugin.Builtins(app.plugins)
	return nil
}

func (app *App) teardown() error {
	var errs []error
	if app.projects != nil {
		errs = append(errs, app.projects.CloseAll())
	}
	if app.closeLog != nil {
		errs = append(errs, app.closeLog())
	}
	return errors.Join(errs...)
}

func (app *App) sessionPath() string {
	return session.Path(app.DataDir)
}

// projectID picks the project a command works on: --project, then the session's active
// project, then the only active project, then the only project.
func (app *App) projectID() (string, error) {
	if id := strings.TrimSpace(app.Project); id != "" {
		return id, nil
	}
	if st, err := session.Load(app.sessionPath()); err == nil && st.ActiveProject != "" {
		return st.ActiveProject, nil
	}
	if active, err := app.projects.ActiveIDs(); err == nil && len(active) == 1 {
		return active[0], nil
	}
	ids, err := app.projects.List()
	if err != nil {
		return "", err
	}
	if len(ids) == 1 {
		return ids[0], nil
	}
	return "", errors.New("no project selected; pass --project <id> (see `appletree projects list`)")
}

func openProject(app *App) (*project.Project, *doctree.Tree, error) {
	id, err := app.projectID()
	if err != nil {
		return nil, nil, err
	}
	p, err := app.projects.Open(id)
	if err != nil {
		return nil, nil, err
	}
	t, err := p.Tree()
	if err != nil {
		return nil, nil, fmt.Errorf("load project %s: %w", id, err)
	}
	return p, t, nil
}

// syncBestEffort commits through the project's sync backend. Failures are reported but do not
// fail the command.
func syncBestEffort(cmd *cobra.Command, p *project.Project, message string) {
	ctx, cancel := context.WithTimeout(cmd.Context(), 20*time.Second)
	defer cancel()
	if _, err := p.Sync(ctx, message); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: sync failed: %v\n", err)
	}
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.Pretty)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
