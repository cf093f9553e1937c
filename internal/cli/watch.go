package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var skipSync bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the dependency graph current while module files change",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd)
			if err != nil {
				return err
			}
			defer ws.Close()

			// Set up signal handling.
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case <-sigCh:
					fmt.Fprintln(cmd.OutOrStdout(), "\nShutting down...")
					cancel()
				case <-ctx.Done():
				}
			}()

			out := cmd.OutOrStdout()
			if !skipSync {
				res, err := ws.index.Sync(ctx, ws.statePath(), false)
				if err != nil {
					return fmt.Errorf("initial sync: %w", err)
				}
				fmt.Fprintf(out, "Initial sync: %d indexed, %d removed, %d unchanged\n", res.Indexed, res.Removed, res.Unchanged)
			}

			fmt.Fprintf(out, "Watching %s...\n", ws.cfg.Modules.Dir)
			fmt.Fprintf(out, "Graph database: %s (bundle %s)\n", ws.cfg.Store.DBPath, ws.cfg.Store.Bundle)

			if err := ws.index.Watch(ctx); err != nil {
				return fmt.Errorf("watch: %w", err)
			}

			// Record the file times the watch left behind.
			if _, err := ws.index.Sync(context.WithoutCancel(ctx), ws.statePath(), false); err != nil {
				ws.log.Warn("save sync state", "err", err)
			}

			// Print final stats.
			stats := ws.index.Stats(context.WithoutCancel(ctx))
			fmt.Fprintf(out, "\nFinal stats:\n")
			fmt.Fprintf(out, "  Files indexed: %d\n", stats.FilesIndexed)
			fmt.Fprintf(out, "  Nodes:         %d\n", stats.NodesTotal)
			fmt.Fprintf(out, "  Edges:         %d\n", stats.EdgesTotal)
			if len(stats.Errors) > 0 {
				fmt.Fprintf(out, "  Errors:        %d\n", len(stats.Errors))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipSync, "no-sync", false, "skip the initial incremental sync")

	return cmd
}
