package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imyousuf/PackEagle/internal/textpos"
	"github.com/imyousuf/PackEagle/internal/webpack"
)

func newReferencesCmd() *cobra.Command {
	var export string

	cmd := &cobra.Command{
		Use:   "references <module> [line:character]",
		Short: "Find the uses of an export in other modules",
		Long: `Find every place in the bundle where an export of <module> is used,
following modules that re-export it.

The export is given either by a zero-based line:character position inside
its export definition, or by name with --export (dot-separated for nested
exports, e.g. --export Store.getState).`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 2) == (export != "") {
				return fmt.Errorf("give either a position or --export")
			}

			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			ctx := cmd.Context()
			m, header, err := ws.module(ctx, args[0])
			if err != nil {
				return err
			}

			var pos textpos.Position
			if export != "" {
				r := m.FindExportLocation(strings.Split(export, ".")...)
				if r == textpos.ZeroRange {
					return fmt.Errorf("module %s: %w: %s", args[0], webpack.ErrUnknownExport, export)
				}
				pos = r.Start
			} else {
				p, err := parsePosition(args[1])
				if err != nil {
					return err
				}
				pos = p.ShiftLines(header)
			}

			locs, err := m.References(ctx, pos)
			if err != nil {
				return fmt.Errorf("references: %w", err)
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, locs)
			}
			printLocations(out, locs)
			return nil
		},
	}

	cmd.Flags().StringVar(&export, "export", "", "name of the export instead of a position")
	return cmd
}

func newDefinitionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "definitions <module> <line:character>",
		Short: "Find the definition of an imported value",
		Long: `Find where the value used at a zero-based line:character position of
<module> is defined, following the require chain and re-exports into the
module that defines it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := parsePosition(args[1])
			if err != nil {
				return err
			}

			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			ctx := cmd.Context()
			m, header, err := ws.module(ctx, args[0])
			if err != nil {
				return err
			}
			locs, err := m.Definitions(ctx, pos.ShiftLines(header))
			if err != nil {
				return fmt.Errorf("definitions: %w", err)
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, locs)
			}
			printLocations(out, locs)
			return nil
		},
	}
}
