package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/imyousuf/PackEagle/internal/config"
	"github.com/imyousuf/PackEagle/internal/graph"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show graph statistics and indexed bundles",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			stats, err := ws.store.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("get stats: %w", err)
			}
			bundles, err := ws.store.ListBundles()
			if err != nil {
				return fmt.Errorf("list bundles: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, struct {
					Bundle   string               `json:"bundle"`
					Stats    *graph.GraphStats    `json:"stats"`
					Bundles  []string             `json:"bundles"`
					Registry []config.BundleEntry `json:"registry"`
				}{ws.cfg.Store.Bundle, stats, bundles, config.ListBundles()})
			}

			fmt.Fprintln(out, headerStyle.Render("Dependency Graph Status"))
			fmt.Fprintln(out, headerStyle.Render("======================="))
			fmt.Fprintln(out)
			printKV(out, "Bundle", ws.cfg.Store.Bundle)
			printKV(out, "Module dir", ws.cfg.Modules.Dir)
			if e, ok := config.LookupBundle(absPath(ws.cfg.Modules.Dir)); ok {
				printKV(out, "Last indexed", e.IndexedAt.Format("2006-01-02 15:04"))
				if e.BuildID != "" {
					printKV(out, "Build id", e.BuildID)
				}
			}
			printKV(out, "Total nodes", fmt.Sprint(stats.NodeCount))
			printKV(out, "Total edges", fmt.Sprint(stats.EdgeCount))
			printKV(out, "Module texts", fmt.Sprint(stats.TextCount))
			fmt.Fprintln(out)

			if len(stats.NodesByType) > 0 {
				printSection(out, "Nodes by type")
				for _, nt := range sortedKeys(stats.NodesByType) {
					fmt.Fprintf(out, "    %-20s %d\n", nt, stats.NodesByType[nt])
				}
				fmt.Fprintln(out)
			}

			if len(stats.EdgesByType) > 0 {
				printSection(out, "Edges by type")
				for _, et := range sortedKeys(stats.EdgesByType) {
					fmt.Fprintf(out, "    %-20s %d\n", et, stats.EdgesByType[et])
				}
				fmt.Fprintln(out)
			}

			printSection(out, "Bundles in store")
			for _, b := range bundles {
				fmt.Fprintf(out, "    %s\n", b)
			}
			fmt.Fprintln(out)

			if entries := config.ListBundles(); len(entries) > 0 {
				printSection(out, "Registered bundles")
				for _, e := range entries {
					build := e.BuildID
					if build == "" {
						build = "-"
					}
					fmt.Fprintf(out, "    %-16s %-12s %s  (%s)\n", e.Bundle, build, e.Dir, e.IndexedAt.Format("2006-01-02 15:04"))
				}
				fmt.Fprintln(out)
			}

			return nil
		},
	}
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
