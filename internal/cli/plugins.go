package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"appletree/internal/plugin"
)

type pluginView struct {
	Name         string `json:"name"`
	FriendlyName string `json:"friendlyName,omitempty"`
	Loaded       bool   `json:"loaded"`
}

type actionView struct {
	Plugin      string `json:"plugin"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Shortcut    string `json:"shortcut,omitempty"`
}

func newPluginsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Plugin commands",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := app.setup(cmd); err != nil {
				return err
			}
			if err := app.plugins.Load(); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
	cmd.AddCommand(newPluginsListCmd(app))
	cmd.AddCommand(newPluginsToggleCmd(app, "enable", true))
	cmd.AddCommand(newPluginsToggleCmd(app, "disable", false))
	cmd.AddCommand(newPluginsActionsCmd(app))
	cmd.AddCommand(newPluginsRunCmd(app))
	cmd.AddCommand(newPluginsConfigCmd(app))
	return cmd
}

func newPluginsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available plugins and whether they are loaded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := make([]pluginView, 0)
			for _, name := range app.plugins.Available() {
				v := pluginView{Name: name}
				if p, ok := app.plugins.Get(name); ok {
					v.Loaded = true
					v.FriendlyName = p.FriendlyName()
				}
				out = append(out, v)
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}
}

func newPluginsToggleCmd(app *App, verb string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <plugin>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " a plugin (takes effect on the next start)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.plugins.SetEnabled(args[0], enabled); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"name":     args[0],
				"enabled":  enabled,
				"manifest": app.plugins.ManifestPath(),
			}})
		},
	}
}

// pluginTarget builds the action target for scope. Editor actions bind docID; the returned
// finish func saves the document when the action changed its body.
func pluginTarget(cmd *cobra.Command, app *App, scope plugin.Scope, docID string) (plugin.Target, func() error, error) {
	noop := func() error { return nil }
	if scope == plugin.ScopeApplication {
		return plugin.Target{}, noop, nil
	}
	p, t, err := openProject(app)
	if err != nil {
		return plugin.Target{}, noop, err
	}
	target := plugin.Target{ProjectID: p.ID, Docs: p.Docs}
	if scope != plugin.ScopeEditor {
		return target, noop, nil
	}
	if docID == "" {
		return plugin.Target{}, noop, plugin.ErrNoEditor
	}
	b, err := bindDocument(p, t, docID, "")
	if err != nil {
		return plugin.Target{}, noop, err
	}
	n, _ := t.Node(docID)
	target.DocID, target.DocType, target.Surface = n.ID, n.Type, b.Surface()
	before := b.Surface().Body()
	finish := func() error {
		after := b.Surface().Body()
		if after == before {
			return nil
		}
		if err := commitBody(p.Docs, b, after, false); err != nil {
			return err
		}
		syncBestEffort(cmd, p, "plugin edit "+docID)
		return nil
	}
	return target, finish, nil
}

func parseScope(s string) (plugin.Scope, error) {
	scope := plugin.Scope(strings.ToLower(strings.TrimSpace(s)))
	if !scope.Valid() {
		return "", fmt.Errorf("unknown scope %q (want application|project|editor)", s)
	}
	return scope, nil
}

func newPluginsActionsCmd(app *App) *cobra.Command {
	var (
		scopeName string
		docID     string
	)
	cmd := &cobra.Command{
		Use:   "actions",
		Short: "List the toolbar actions loaded plugins offer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := parseScope(scopeName)
			if err != nil {
				return writeErr(cmd, err)
			}
			target, _, err := pluginTarget(cmd, app, scope, docID)
			if err != nil {
				return writeErr(cmd, err)
			}
			out := make([]actionView, 0)
			for _, a := range app.plugins.Actions(scope, target) {
				out = append(out, actionView{Plugin: a.Plugin, Name: a.Name, Description: a.Description, Shortcut: a.Shortcut})
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}
	cmd.Flags().StringVar(&scopeName, "scope", string(plugin.ScopeEditor), "Toolbar scope: application|project|editor")
	cmd.Flags().StringVar(&docID, "doc", "", "Document for editor actions")
	return cmd
}

func newPluginsRunCmd(app *App) *cobra.Command {
	var (
		scopeName string
		docID     string
	)
	cmd := &cobra.Command{
		Use:   "run <plugin> <action>",
		Short: "Run a plugin action",
		Long: strings.TrimSpace(`
Run one toolbar action. Editor actions (the default scope) need --doc; when the action changes
the document body the change is saved.
`),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := parseScope(scopeName)
			if err != nil {
				return writeErr(cmd, err)
			}
			target, finish, err := pluginTarget(cmd, app, scope, docID)
			if err != nil {
				return writeErr(cmd, err)
			}
			msg, err := app.plugins.Run(cmd.Context(), scope, args[0], args[1], target)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := finish(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"plugin":  args[0],
				"action":  args[1],
				"message": msg,
			}})
		},
	}
	cmd.Flags().StringVar(&scopeName, "scope", string(plugin.ScopeEditor), "Toolbar scope: application|project|editor")
	cmd.Flags().StringVar(&docID, "doc", "", "Document for editor actions")
	return cmd
}

func newPluginsConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change plugin configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <plugin>",
		Short: "Show a loaded plugin's configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.plugins.Config(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"path":   cfg.Path(),
				"values": cfg.Values(),
			}})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <plugin> <key> <value>",
		Short: "Set one configuration value",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.plugins.Config(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := cfg.Set(args[1], args[2]); err != nil {
				return writeErr(cmd, err)
			}
			if err := cfg.Save(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"path":   cfg.Path(),
				"values": cfg.Values(),
			}})
		},
	})
	return cmd
}
