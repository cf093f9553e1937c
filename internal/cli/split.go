package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imyousuf/PackEagle/internal/config"
	"github.com/imyousuf/PackEagle/internal/indexer"
	"github.com/imyousuf/PackEagle/internal/modcache"
	"github.com/imyousuf/PackEagle/internal/parser/chunk"
	"github.com/imyousuf/PackEagle/internal/webpack"
)

func newSplitCmd() *cobra.Command {
	var (
		outDir string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "split <chunk-file|->",
		Short: "Split a webpack chunk into one file per module",
		Long: `Split a webpack chunk file into its modules and write each one, with its
module header, to <id>.js in the module directory (modules.dir, or --out).

With --dry-run nothing is written; the modules are analyzed together in
memory and listed with their requires, importers and exports.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outDir == "" && !dryRun {
				cfg, err := config.Load()
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				outDir = cfg.Modules.Dir
			}

			data, err := readInput(cmd, args[0])
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			modules, err := chunk.Split(cmd.Context(), string(data), newLogger(cmd, nil))
			if err != nil {
				return fmt.Errorf("split %s: %w", args[0], err)
			}
			if dryRun {
				return printChunkSummary(cmd, modules)
			}
			paths, err := chunk.Write(outDir, modules)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, paths)
			}
			fmt.Fprintf(out, "Wrote %d module(s) to %s\n", len(paths), outDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "", "output directory (default: modules.dir)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "analyze the chunk in memory without writing files")
	return cmd
}

type chunkModule struct {
	ID        string       `json:"id"`
	Requires  webpack.Deps `json:"requires"`
	Importers webpack.Deps `json:"importers"`
	Exports   []string     `json:"exports"`
}

// printChunkSummary analyzes the modules of one chunk against each other,
// with a memory cache and dependency index in place of a module directory.
func printChunkSummary(cmd *cobra.Command, modules []chunk.Module) error {
	ctx := cmd.Context()
	log := newLogger(cmd, nil)
	cache := modcache.NewMemory(nil)
	index := indexer.NewMemoryIndex()

	parsed := make([]*webpack.Module, 0, len(modules))
	for _, cm := range modules {
		cache.Put(cm.ID, cm.Text, "")
		m, err := webpack.ParseContext(ctx, cm.Text, webpack.Options{Cache: cache, Deps: index, Logger: log})
		if err != nil {
			return fmt.Errorf("parse module %s: %w", cm.ID, err)
		}
		index.Add(m)
		parsed = append(parsed, m)
	}

	summary := make([]chunkModule, len(modules))
	for i, m := range parsed {
		importers, err := index.Deps(ctx, modules[i].ID)
		if err != nil {
			return err
		}
		s := chunkModule{ID: modules[i].ID, Requires: m.Requires(), Importers: importers}
		for _, k := range m.Exports().Keys() {
			s.Exports = append(s.Exports, k.String())
		}
		summary[i] = s
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(out, summary)
	}
	fmt.Fprintf(out, "%-10s  %-8s  %-9s  %s\n", "ID", "Requires", "Importers", "Exports")
	fmt.Fprintf(out, "%-10s  %-8s  %-9s  %s\n", "----------", "--------", "---------", "-------")
	for _, s := range summary {
		fmt.Fprintf(out, "%-10s  %-8d  %-9d  %s\n", s.ID,
			len(s.Requires.Sync)+len(s.Requires.Lazy),
			len(s.Importers.Sync)+len(s.Importers.Lazy),
			strings.Join(s.Exports, ", "))
	}
	fmt.Fprintf(out, "\n%d module(s)\n", len(summary))
	return nil
}
