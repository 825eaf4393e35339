package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rflorenc/go-nomad/nomad"
)

func systemCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "system",
		Short: "Cluster maintenance",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "gc",
			Short: "Run a cluster-wide garbage collection",
			Args:  cobra.NoArgs,
			RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, _ []string) error {
				ok, err := client.System().GarbageCollect(ctx)
				if err != nil {
					return err
				}
				return a.printResult(cmd, ok, "garbage collection started")
			}),
		},
		&cobra.Command{
			Use:   "reconcile-summaries",
			Short: "Recompute job summaries from allocation state",
			Args:  cobra.NoArgs,
			RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, _ []string) error {
				ok, err := client.System().ReconcileSummaries(ctx)
				if err != nil {
					return err
				}
				return a.printResult(cmd, ok, "job summaries reconciled")
			}),
		},
	)
	return cmd
}
