package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/imyousuf/PackEagle/internal/config"
	"github.com/imyousuf/PackEagle/internal/indexer"
)

func newIndexCmd() *cobra.Command {
	var (
		full       bool
		exportPath string
		importPath string
		envScript  string
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build or refresh the dependency graph of the module directory",
		Long: `Index the module directory into the graph store.

By default, syncs incrementally using file modification times. Use --full
for a complete re-index.

Use --export to write the bundle's graph to a portable JSON-lines file, and
--import to replace the bundle's graph with a previously exported one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if exportPath != "" && importPath != "" {
				return fmt.Errorf("cannot use --export and --import together")
			}

			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			switch {
			case exportPath != "":
				f, err := os.Create(exportPath)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				defer f.Close()
				if err := ws.store.Export(ctx, f); err != nil {
					return fmt.Errorf("export graph: %w", err)
				}
				fmt.Fprintf(out, "Exported bundle %q to %s\n", ws.cfg.Store.Bundle, exportPath)
				return nil
			case importPath != "":
				f, err := os.Open(importPath)
				if err != nil {
					return fmt.Errorf("open import file: %w", err)
				}
				defer f.Close()
				if err := ws.store.Import(ctx, f); err != nil {
					return fmt.Errorf("import graph: %w", err)
				}
				// The imported graph no longer matches the recorded file times.
				_ = os.Remove(ws.statePath())
				fmt.Fprintf(out, "Imported %s into bundle %q\n", importPath, ws.cfg.Store.Bundle)
				return nil
			}

			start := time.Now()
			res, err := ws.index.Sync(ctx, ws.statePath(), full)
			if err != nil {
				return fmt.Errorf("sync: %w", err)
			}

			entry := config.BundleEntry{
				Bundle:    ws.cfg.Store.Bundle,
				Dir:       absPath(ws.cfg.Modules.Dir),
				DBPath:    absPath(ws.cfg.Store.DBPath),
				IndexedAt: time.Now().UTC(),
			}
			if envScript != "" {
				entry.BuildID = buildIDFromFile(cmd, envScript)
			}
			if err := config.RegisterBundle(entry); err != nil {
				ws.log.Warn("cannot register bundle", "path", config.RegistryPath(), "err", err)
			}

			stats := ws.index.Stats(ctx)
			if jsonOut {
				return printJSON(out, struct {
					Sync  indexer.SyncResult `json:"sync"`
					Stats indexer.IndexStats `json:"stats"`
				}{res, stats})
			}
			printIndexResult(out, res, stats, time.Since(start))
			return nil
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "re-index every module")
	cmd.Flags().StringVar(&exportPath, "export", "", "export the bundle's graph to a file")
	cmd.Flags().StringVar(&importPath, "import", "", "import a previously exported graph")
	cmd.Flags().StringVar(&envScript, "env-script", "", "script or HTML page holding GLOBAL_ENV; its build id is recorded")

	return cmd
}

func printIndexResult(out io.Writer, res indexer.SyncResult, stats indexer.IndexStats, took time.Duration) {
	mode := "incremental"
	if res.Full {
		mode = "full"
	}
	fmt.Fprintf(out, "Indexed module directory (%s) in %s\n", mode, took.Round(time.Millisecond))
	fmt.Fprintf(out, "  Indexed:   %d\n", res.Indexed)
	fmt.Fprintf(out, "  Removed:   %d\n", res.Removed)
	fmt.Fprintf(out, "  Unchanged: %d\n", res.Unchanged)
	fmt.Fprintf(out, "  Nodes:     %d\n", stats.NodesTotal)
	fmt.Fprintf(out, "  Edges:     %d\n", stats.EdgesTotal)
	if len(stats.Errors) > 0 {
		fmt.Fprintf(out, "  Errors:    %d\n", len(stats.Errors))
		for _, e := range stats.Errors {
			fmt.Fprintf(out, "    %s\n", e)
		}
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
