// Package cli implements the command-line interface for PackEagle.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/imyousuf/PackEagle/internal/config"
)

var (
	cfgFile     string
	verbose     bool
	jsonOut     bool
	readBundles []string
)

// rootCmd is the base command.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "packeagle",
		Short: "PackEagle - navigate the modules of a webpack bundle",
		Long: `PackEagle indexes a directory of extracted webpack modules, builds the
require graph between them and answers navigation queries: what a module
exports, who requires it, where an export is used and where a use is defined.

Commands:
  init         Write a .packeagle.yaml config file
  split        Split a chunk file into one file per module
  index        Build or refresh the dependency graph
  watch        Keep the dependency graph current while files change
  status       Show graph statistics
  exports      List the exports of a module
  references   Find the uses of an export across modules
  definitions  Find the definition of an imported value
  env          Decode a GLOBAL_ENV assignment
  scan-page    Find the environment and entry scripts of an HTML page`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags (available to all subcommands)
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .packeagle.yaml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print machine-readable JSON")
	cmd.PersistentFlags().StringSliceVar(&readBundles, "fallback-bundle", nil, "bundles read after the configured one")

	// Bind flags to viper
	bindFlag := func(key, flag string) {
		if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind %s flag: %v", flag, err))
		}
	}
	bindFlag("config_file", "config")

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newModulesCmd())
	cmd.AddCommand(newExportsCmd())
	cmd.AddCommand(newRequiresCmd())
	cmd.AddCommand(newImportersCmd())
	cmd.AddCommand(newReferencesCmd())
	cmd.AddCommand(newDefinitionsCmd())
	cmd.AddCommand(newReExportsCmd())
	cmd.AddCommand(newFluxCmd())
	cmd.AddCommand(newEnvCmd())
	cmd.AddCommand(newScanPageCmd())
	cmd.AddCommand(newSplitCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger writes diagnostics to stderr at log.level, or debug with
// --verbose.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil {
		if l, err := config.ParseLevel(cfg.Log.Level); err == nil {
			level = l
		}
	}
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}
