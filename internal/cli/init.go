package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/imyousuf/PackEagle/internal/config"
)

func newInitCmd() *cobra.Command {
	var (
		output      string
		dir         string
		dbPath      string
		bundle      string
		interactive bool
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a PackEagle config file",
		Long: `Write a PackEagle configuration file, .packeagle.yaml by default.

A path ending in .toml is written as TOML; such a file must be passed with
--config on later runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = configPath()
			}
			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", output)
			}

			cfg := config.Default()
			if dir != "" {
				cfg.Modules.Dir = dir
			}
			if dbPath != "" {
				cfg.Store.DBPath = dbPath
			}
			if bundle != "" {
				cfg.Store.Bundle = bundle
			}

			out := cmd.OutOrStdout()
			if interactive {
				ok, err := runConfigForm(cfg, "Write configuration?")
				if errors.Is(err, huh.ErrUserAborted) || (err == nil && !ok) {
					fmt.Fprintln(out, "Cancelled.")
					return nil
				}
				if err != nil {
					return fmt.Errorf("interactive init: %w", err)
				}
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			if err := config.WriteConfig(cfg, output); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintf(out, "Created %s\n", output)

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Next steps:")
			fmt.Fprintf(out, "  1. Put module files (<id>.js) in %s, or run 'packeagle split <chunk.js>'\n", cfg.Modules.Dir)
			fmt.Fprintln(out, "  2. Run 'packeagle index' to build the dependency graph")
			fmt.Fprintln(out, "  3. Add to .gitignore:")
			fmt.Fprintf(out, "       %s\n", cfg.Store.DBPath)

			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "config file to write (default: --config or .packeagle.yaml)")
	cmd.Flags().StringVar(&dir, "dir", "", "module directory")
	cmd.Flags().StringVar(&dbPath, "db-path", "", "path for the graph database")
	cmd.Flags().StringVar(&bundle, "bundle", "", "bundle name in the graph store")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "fill in the configuration with a form")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	return cmd
}
