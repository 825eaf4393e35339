package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rflorenc/go-nomad/nomad"
)

func allocCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "alloc",
		Aliases: []string{"allocation"},
		Short:   "Inspect and stop allocations",
	}
	cmd.AddCommand(allocList(a), allocStatus(a), allocStop(a))
	return cmd
}

func allocList(a *app) *cobra.Command {
	var (
		opts       nomad.AllocationListOptions
		all        bool
		taskStates string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List allocations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			states, err := nomad.ParseBool("task-states", taskStates)
			if err != nil {
				return err
			}
			opts.TaskStates = states
			if all {
				opts.Namespace = "*"
			}
			return a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, _ []string) error {
				allocs, err := client.Allocations().List(ctx, opts)
				if err != nil {
					return err
				}
				return a.printList(cmd, allocs, allocColumns)
			})(cmd, args)
		},
	}
	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "Only allocations whose ID starts with this prefix")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "Server-side filter expression")
	cmd.Flags().BoolVarP(&all, "all-namespaces", "A", false, "List allocations in every namespace")
	cmd.Flags().StringVar(&taskStates, "task-states", "", "Include task states (true or false)")
	return cmd
}

func allocStatus(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <alloc-id>",
		Short: "Show an allocation",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			alloc, err := client.Allocation().Get(ctx, args[0])
			if err != nil {
				return err
			}
			return a.printRecord(cmd, alloc)
		}),
	}
}

func allocStop(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <alloc-id>",
		Short: "Stop an allocation so the scheduler replaces it",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			resp, err := client.Allocation().Stop(ctx, args[0])
			if err != nil {
				return err
			}
			return a.printRecord(cmd, resp)
		}),
	}
}
