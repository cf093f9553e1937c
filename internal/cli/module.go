package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imyousuf/PackEagle/internal/graph"
	"github.com/imyousuf/PackEagle/internal/textpos"
	"github.com/imyousuf/PackEagle/internal/webpack"
)

func newExportsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exports <module>",
		Short: "List the exports of a module",
		Long: `List the exports of a module with the range of each exported value.

<module> is a module id, looked up in the module directory and then in the
graph store, or the path of a module file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			m, header, err := ws.module(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			exports := shiftExports(m.Exports(), -header)

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, exports)
			}
			if len(exports) == 0 {
				fmt.Fprintln(out, "No exports found.")
				return nil
			}
			printExports(out, exports, 0)
			return nil
		},
	}
}

type requiresResult struct {
	Module      string       `json:"module"`
	Requires    webpack.Deps `json:"requires"`
	ReExportsOf string       `json:"reexports_of,omitempty"`
}

func newRequiresCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requires <module>",
		Short: "List the modules a module requires",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			m, _, err := ws.module(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			res := requiresResult{Module: args[0], Requires: m.Requires()}
			if id, ok := m.ReExportsWholeModule(); ok {
				res.ReExportsOf = id
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, res)
			}
			if !m.HasRequire() {
				fmt.Fprintf(out, "Module %s does not use a require function.\n", args[0])
				return nil
			}
			printDeps(out, res.Requires)
			if res.ReExportsOf != "" {
				fmt.Fprintf(out, "  re-exports module %s\n", res.ReExportsOf)
			}
			return nil
		},
	}
}

func newImportersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "importers <module-id>",
		Short: "List the modules that require a module",
		Long: `List the modules that require a module, split into direct and lazy
requires. Answers from the dependency graph; run 'packeagle index' first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			deps, err := ws.index.Deps(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("importers of %s: %w", args[0], err)
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, deps)
			}
			printDeps(out, deps)
			return nil
		},
	}
}

func printDeps(out io.Writer, d webpack.Deps) {
	if len(d.Sync) == 0 && len(d.Lazy) == 0 {
		fmt.Fprintln(out, "No modules.")
		return
	}
	if len(d.Sync) > 0 {
		fmt.Fprintf(out, "  %-8s %s\n", "sync:", strings.Join(d.Sync, ", "))
	}
	if len(d.Lazy) > 0 {
		fmt.Fprintf(out, "  %-8s %s\n", "lazy:", strings.Join(d.Lazy, ", "))
	}
}

func newReExportsCmd() *cobra.Command {
	var useDefault bool

	cmd := &cobra.Command{
		Use:   "reexports <module> [export]",
		Short: "List the modules that re-export an export of a module",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key webpack.Key
			switch {
			case useDefault && len(args) == 1:
				key = webpack.DefaultKey
			case !useDefault && len(args) == 2:
				key = webpack.Named(args[1])
			default:
				return fmt.Errorf("give either an export name or --default")
			}

			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			m, _, err := ws.module(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			res, err := m.ReExportsOf(cmd.Context(), key)
			if err != nil {
				return fmt.Errorf("re-exports of %s: %w", key, err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, res)
			}
			if len(res) == 0 {
				fmt.Fprintln(out, "No results found.")
				return nil
			}
			fmt.Fprintf(out, "%-10s  %s\n", "Module", "Export")
			fmt.Fprintf(out, "%-10s  %s\n", "----------", "------")
			for _, r := range res {
				fmt.Fprintf(out, "%-10s  %s\n", r.ModuleID, r.Name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&useDefault, "default", false, "use the default export")
	return cmd
}

type fluxResult struct {
	Module     string                                `json:"module"`
	Dispatcher string                                `json:"dispatcher,omitempty"`
	Stores     map[string]map[string][]textpos.Range `json:"stores,omitempty"`
}

func newFluxCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flux [module]",
		Short: "Show the Flux dispatcher and stores of a module",
		Long: `With a module, show whether it exports the Flux dispatcher and which
action types its stores handle. Without one, list the indexed modules that
export the dispatcher.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				flux := true
				nodes, err := ws.store.QueryNodes(cmd.Context(), graph.NodeFilter{Flux: &flux})
				if err != nil {
					return fmt.Errorf("query nodes: %w", err)
				}
				return printNodes(out, nodes)
			}

			m, header, err := ws.module(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			res := fluxResult{Module: args[0], Stores: m.StoreEvents()}
			for _, events := range res.Stores {
				for _, handlers := range events {
					for i, r := range handlers {
						handlers[i] = r.ShiftLines(-header)
					}
				}
			}
			res.Dispatcher, _ = m.FluxDispatcherExport()

			if jsonOut {
				return printJSON(out, res)
			}
			if res.Dispatcher != "" {
				fmt.Fprintf(out, "Dispatcher export: %s\n", res.Dispatcher)
			}
			stores := make([]string, 0, len(res.Stores))
			for s := range res.Stores {
				stores = append(stores, s)
			}
			slices.Sort(stores)
			for _, s := range stores {
				fmt.Fprintf(out, "Store %s\n", s)
				events := make([]string, 0, len(res.Stores[s]))
				for e := range res.Stores[s] {
					events = append(events, e)
				}
				slices.Sort(events)
				for _, e := range events {
					fmt.Fprintf(out, "  %-32s %d handler(s)\n", e, len(res.Stores[s][e]))
				}
			}
			if res.Dispatcher == "" && len(stores) == 0 {
				fmt.Fprintln(out, "No Flux dispatcher or stores found.")
			}
			return nil
		},
	}
}

func newModulesCmd() *cobra.Command {
	var (
		nodeType  string
		idPattern string
		filePath  string
		exports   string
	)

	cmd := &cobra.Command{
		Use:   "modules",
		Short: "Query the modules in the dependency graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			nodes, err := ws.store.QueryNodes(cmd.Context(), graph.NodeFilter{
				Type:        graph.NodeType(nodeType),
				IDPattern:   idPattern,
				FilePath:    filePath,
				ExportsName: exports,
			})
			if err != nil {
				return fmt.Errorf("query nodes: %w", err)
			}
			return printNodes(cmd.OutOrStdout(), nodes)
		},
	}

	cmd.Flags().StringVar(&nodeType, "type", "", "filter by node type (Module, External)")
	cmd.Flags().StringVar(&idPattern, "id", "", "filter by module id (glob)")
	cmd.Flags().StringVar(&filePath, "file", "", "filter by file path")
	cmd.Flags().StringVar(&exports, "exports", "", "only modules exporting this name")

	return cmd
}

func printNodes(out io.Writer, nodes []*graph.Node) error {
	slices.SortFunc(nodes, func(a, b *graph.Node) int { return strings.Compare(a.ID, b.ID) })
	if jsonOut {
		return printJSON(out, nodes)
	}
	if len(nodes) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}
	fmt.Fprintf(out, "%-10s  %-9s  %-8s  %-7s  %s\n", "ID", "Type", "Size", "Exports", "File")
	fmt.Fprintf(out, "%-10s  %-9s  %-8s  %-7s  %s\n", "----------", "---------", "--------", "-------", "----")
	for _, n := range nodes {
		fmt.Fprintf(out, "%-10s  %-9s  %-8d  %-7d  %s\n", n.ID, n.Type, n.Size, len(n.Exports), n.FilePath)
	}
	fmt.Fprintf(out, "\n%d result(s)\n", len(nodes))
	return nil
}
