package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imyousuf/PackEagle/internal/config"
	"github.com/imyousuf/PackEagle/internal/parser/globalenv"
	htmlscan "github.com/imyousuf/PackEagle/internal/parser/html"
)

// readInput reads a file argument, or stdin for "-".
func readInput(cmd *cobra.Command, arg string) ([]byte, error) {
	if arg == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(arg)
}

// globalEnvPath is the configured environment global, or the default when
// there is no usable config.
func globalEnvPath() string {
	if cfg, err := config.Load(); err == nil && cfg.GlobalEnv.Path != "" {
		return cfg.GlobalEnv.Path
	}
	return globalenv.DefaultPath
}

func newEnvCmd() *cobra.Command {
	var (
		path string
		key  string
	)

	cmd := &cobra.Command{
		Use:   "env <file|->",
		Short: "Decode the GLOBAL_ENV assignment of a script",
		Long: `Decode the object literal a script assigns to the environment global
(window.GLOBAL_ENV by default) and print it as JSON. Values that are not
literals are printed as {"expression": source}; keys that cannot be read
are reported on stderr.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			if path == "" {
				path = globalEnvPath()
			}
			log := newLogger(cmd, nil)

			env, err := globalenv.Decode(string(data), globalenv.WithPath(path), globalenv.WithLogger(log))
			if err != nil {
				return fmt.Errorf("decode %s: %w", path, err)
			}
			if len(env.Unreadable) > 0 {
				log.Warn("unreadable keys", "keys", strings.Join(env.Unreadable, ", "))
			}

			out := cmd.OutOrStdout()
			if key == "" {
				return printJSON(out, globalenv.ToJSON(env.Object))
			}
			var v globalenv.Value = env.Object
			for _, k := range strings.Split(key, ".") {
				obj, ok := v.(*globalenv.Object)
				if !ok {
					return fmt.Errorf("key %s: not an object at %q", key, k)
				}
				if v, ok = obj.Get(k); !ok {
					return fmt.Errorf("key %s: %q not found", key, k)
				}
			}
			return printJSON(out, globalenv.ToJSON(v))
		},
	}

	cmd.Flags().StringVar(&path, "global", "", "assignment target (default: globalenv.path config)")
	cmd.Flags().StringVar(&key, "key", "", "print only this dot-separated key")
	return cmd
}

func newScanPageCmd() *cobra.Command {
	var origin string

	cmd := &cobra.Command{
		Use:   "scan-page <file|->",
		Short: "Find the environment script and entry scripts of an HTML page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			page, err := htmlscan.Scan(strings.NewReader(string(data)), htmlscan.Options{
				Origin:  origin,
				EnvPath: globalEnvPath(),
				Logger:  newLogger(cmd, nil),
			})
			if err != nil {
				return fmt.Errorf("scan page: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, page)
			}
			printKV(out, "Build id", page.BuildID)
			printSection(out, "Entry scripts")
			for _, s := range page.EntryScripts {
				fmt.Fprintf(out, "    %s\n", s)
			}
			if len(page.Stylesheets) > 0 {
				printSection(out, "Stylesheets")
				for _, s := range page.Stylesheets {
					fmt.Fprintf(out, "    %s\n", s)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&origin, "origin", "", "origin stripped from absolute asset URLs, e.g. https://example.com")
	return cmd
}

// buildIDFromFile returns the build id recorded in a script or HTML page,
// or "" when it has none.
func buildIDFromFile(cmd *cobra.Command, path string) string {
	log := newLogger(cmd, nil)
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn("cannot read environment script", "path", path, "err", err)
		return ""
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		page, err := htmlscan.Scan(strings.NewReader(string(data)), htmlscan.Options{EnvPath: globalEnvPath(), Logger: log})
		if err != nil {
			log.Warn("cannot scan page", "path", path, "err", err)
			return ""
		}
		return page.BuildID
	}
	env, err := globalenv.Decode(string(data), globalenv.WithPath(globalEnvPath()), globalenv.WithLogger(log))
	if err != nil {
		log.Warn("cannot decode environment", "path", path, "err", err)
		return ""
	}
	id, _ := env.BuildID()
	return id
}
