package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/imyousuf/PackEagle/internal/config"
)

// Style definitions for config view.
var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"})
	labelStyle = lipgloss.NewStyle().
			Faint(true).
			Width(18)
	valueStyle = lipgloss.NewStyle()
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View or edit project configuration",
		Long: `View or edit PackEagle configuration.

By default, displays the effective configuration (file, environment and
defaults combined). Use 'config edit' to edit it interactively.`,
		RunE: runConfigView,
	}

	cmd.AddCommand(newConfigEditCmd())

	return cmd
}

// configPath is the file the configuration is read from and written to.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigFile + "." + config.DefaultConfigType
}

func runConfigView(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(out, cfg)
	}
	fmt.Fprintln(out)

	// Title
	fmt.Fprintln(out, headerStyle.Render("PackEagle Configuration"))
	fmt.Fprintln(out, headerStyle.Render(strings.Repeat("=", 23)))
	fmt.Fprintln(out)

	source := configPath()
	if _, err := os.Stat(source); err != nil {
		source += " (not found, using defaults)"
	}
	printKV(out, "Config file", source)
	fmt.Fprintln(out)

	printSection(out, "Modules")
	printKV(out, "Directory", cfg.Modules.Dir)
	printKV(out, "Include", strings.Join(cfg.Modules.Include, ", "))
	printKV(out, "Exclude", strings.Join(cfg.Modules.Exclude, ", "))
	fmt.Fprintln(out)

	printSection(out, "Graph Storage")
	printKV(out, "DB Path", cfg.Store.DBPath)
	printKV(out, "Bundle", cfg.Store.Bundle)
	fmt.Fprintln(out)

	printSection(out, "Analysis")
	printKV(out, "Visit budget", strconv.Itoa(cfg.Analysis.VisitBudget))
	workers := "one per CPU"
	if cfg.Index.Workers > 0 {
		workers = strconv.Itoa(cfg.Index.Workers)
	}
	printKV(out, "Index workers", workers)
	printKV(out, "Global env", cfg.GlobalEnv.Path)
	printKV(out, "Log level", cfg.Log.Level)
	fmt.Fprintln(out)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(out, "  %s %v\n\n", headerStyle.Render("Invalid:"), err)
	}
	return nil
}

func printSection(out io.Writer, title string) {
	fmt.Fprintf(out, "  %s\n", headerStyle.Render(title))
}

func printKV(out io.Writer, label, value string) {
	fmt.Fprintf(out, "    %s%s\n", labelStyle.Render(label+":"), valueStyle.Render(value))
}

func newConfigEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Edit project configuration interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			path := configPath()
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("no config file at %s; run 'packeagle init' first", path)
			}

			out := cmd.OutOrStdout()
			ok, err := runConfigForm(cfg, "Save changes?")
			if errors.Is(err, huh.ErrUserAborted) || (err == nil && !ok) {
				fmt.Fprintln(out, "Cancelled.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("interactive config edit: %w", err)
			}

			if err := config.WriteConfig(cfg, path); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintf(out, "Configuration saved to %s\n", path)
			return nil
		},
	}
}

// runConfigForm edits cfg in place with an interactive form and reports
// whether the user confirmed.
func runConfigForm(cfg *config.Config, confirmTitle string) (bool, error) {
	var (
		dir      = cfg.Modules.Dir
		include  = strings.Join(cfg.Modules.Include, ", ")
		exclude  = strings.Join(cfg.Modules.Exclude, ", ")
		dbPath   = cfg.Store.DBPath
		bundle   = cfg.Store.Bundle
		budget   = strconv.Itoa(cfg.Analysis.VisitBudget)
		workers  = strconv.Itoa(cfg.Index.Workers)
		logLevel = cfg.Log.Level
		confirm  bool
	)

	notEmpty := func(what string) func(string) error {
		return func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%s cannot be empty", what)
			}
			return nil
		}
	}
	nonNegative := func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || n < 0 {
			return fmt.Errorf("must be a non-negative number")
		}
		return nil
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Module directory").
				Description("One <id>.js file per module").
				Value(&dir).
				Validate(notEmpty("module directory")),
			huh.NewInput().
				Title("Include globs").
				Description("Comma-separated, matched against file names").
				Value(&include),
			huh.NewInput().
				Title("Exclude patterns").
				Description("Comma-separated, .gitignore syntax").
				Value(&exclude),
		).Title("Modules"),

		huh.NewGroup(
			huh.NewInput().
				Title("Graph database path").
				Value(&dbPath).
				Validate(notEmpty("database path")),
			huh.NewInput().
				Title("Bundle").
				Description("Namespace in the store, e.g. the build id").
				Value(&bundle).
				Validate(func(s string) error {
					if strings.Contains(s, ":") {
						return fmt.Errorf("bundle must not contain ':'")
					}
					return notEmpty("bundle")(s)
				}),
		).Title("Graph Storage"),

		huh.NewGroup(
			huh.NewInput().
				Title("Visit budget").
				Description("Maximum modules visited by one cross-module query").
				Value(&budget).
				Validate(func(s string) error {
					if n, err := strconv.Atoi(strings.TrimSpace(s)); err != nil || n <= 0 {
						return fmt.Errorf("must be a positive number")
					}
					return nil
				}),
			huh.NewInput().
				Title("Index workers").
				Description("0 means one per CPU").
				Value(&workers).
				Validate(nonNegative),
			huh.NewSelect[string]().
				Title("Log level").
				Options(huh.NewOptions("debug", "info", "warn", "error")...).
				Value(&logLevel),
		).Title("Analysis"),

		huh.NewGroup(
			huh.NewNote().
				Title("Summary").
				DescriptionFunc(func() string {
					return fmt.Sprintf(
						"Modules:  %s\n"+
							"Store:    %s (bundle %s)\n"+
							"Budget:   %s\n"+
							"Log:      %s",
						dir, dbPath, bundle, budget, logLevel,
					)
				}, &bundle),
			huh.NewConfirm().
				Title(confirmTitle).
				Value(&confirm).
				Affirmative("Save").
				Negative("Cancel"),
		).Title("Confirm"),
	).WithTheme(huh.ThemeCharm())

	if err := form.Run(); err != nil {
		return false, err
	}
	if !confirm {
		return false, nil
	}

	cfg.Modules.Dir = strings.TrimSpace(dir)
	cfg.Modules.Include = splitList(include)
	cfg.Modules.Exclude = splitList(exclude)
	cfg.Store.DBPath = strings.TrimSpace(dbPath)
	cfg.Store.Bundle = strings.TrimSpace(bundle)
	cfg.Analysis.VisitBudget, _ = strconv.Atoi(strings.TrimSpace(budget))
	cfg.Index.Workers, _ = strconv.Atoi(strings.TrimSpace(workers))
	cfg.Log.Level = logLevel
	return true, nil
}

// splitList splits a comma-separated list, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
