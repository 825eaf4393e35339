package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/rflorenc/go-nomad/nomad"
)

func nodeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Inspect client nodes and control draining and eligibility",
	}
	cmd.AddCommand(
		nodeList(a),
		nodeStatus(a),
		nodeAllocations(a),
		nodeEvaluate(a),
		nodeDrain(a),
		nodeEligibility(a),
		nodePurge(a),
	)
	return cmd
}

func nodeList(a *app) *cobra.Command {
	var (
		opts      nomad.NodeListOptions
		resources bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List client nodes",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, _ []string) error {
			if cmd.Flags().Changed("resources") {
				opts.Resources = nomad.Bool(resources)
			}
			nodes, err := client.Nodes().List(ctx, opts)
			if err != nil {
				return err
			}
			return a.printList(cmd, nodes, []column{
				field("ID", "ID"),
				field("Name", "Name"),
				field("Datacenter", "Datacenter"),
				field("Class", "NodeClass"),
				field("Drain", "Drain"),
				field("Eligibility", "SchedulingEligibility"),
				field("Status", "Status"),
			})
		}),
	}
	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "Only nodes whose ID starts with this prefix")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "Server-side filter expression")
	cmd.Flags().BoolVar(&resources, "resources", false, "Include node resources")
	return cmd
}

func nodeStatus(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <node-id>",
		Short: "Show a node",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			node, err := client.Node().Lookup(ctx, args[0])
			if err != nil {
				return err
			}
			return a.printRecord(cmd, node)
		}),
	}
}

func nodeAllocations(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "allocations <node-id>",
		Short: "List the allocations placed on a node",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			allocs, err := client.Node().Allocations(ctx, args[0])
			if err != nil {
				return err
			}
			return a.printList(cmd, allocs, allocColumns)
		}),
	}
}

func nodeEvaluate(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate <node-id>",
		Short: "Create evaluations for the jobs on a node",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			resp, err := client.Node().Evaluate(ctx, args[0])
			if err != nil {
				return err
			}
			return a.printRecord(cmd, resp)
		}),
	}
}

func nodeDrain(a *app) *cobra.Command {
	var (
		enable, disable, ignoreSystem, legacy bool
		deadline                              time.Duration
		markEligible                          string
	)
	cmd := &cobra.Command{
		Use:   "drain <node-id>",
		Short: "Enable or disable draining on a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if enable == disable {
				return badArg("exactly one of --enable or --disable is required")
			}
			eligible, err := nomad.ParseBool("mark-eligible", markEligible)
			if err != nil {
				return err
			}
			return a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
				var resp nomad.Record
				if legacy {
					resp, err = client.Node().Drain(ctx, args[0], enable)
				} else {
					var spec nomad.Record
					if enable {
						spec = nomad.Record{
							"Deadline":         deadline.Nanoseconds(),
							"IgnoreSystemJobs": ignoreSystem,
						}
					}
					resp, err = client.Node().DrainWithSpec(ctx, args[0], spec, eligible)
				}
				if err != nil {
					return err
				}
				return a.printRecord(cmd, resp)
			})(cmd, args)
		},
	}
	cmd.Flags().BoolVar(&enable, "enable", false, "Start draining the node")
	cmd.Flags().BoolVar(&disable, "disable", false, "Stop draining the node")
	cmd.Flags().DurationVar(&deadline, "deadline", time.Hour, "Time allowed for allocations to migrate")
	cmd.Flags().BoolVar(&ignoreSystem, "ignore-system", false, "Leave system jobs running on the node")
	cmd.Flags().StringVar(&markEligible, "mark-eligible", "", "Set scheduling eligibility when the drain ends (true or false)")
	cmd.Flags().BoolVar(&legacy, "legacy", false, "Use the pre-0.8 enable-only drain endpoint")
	return cmd
}

func nodeEligibility(a *app) *cobra.Command {
	var enable, disable bool
	cmd := &cobra.Command{
		Use:   "eligibility <node-id>",
		Short: "Toggle whether the scheduler may place work on a node",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			var eligible, ineligible *bool
			if cmd.Flags().Changed("enable") {
				eligible = nomad.Bool(enable)
			}
			if cmd.Flags().Changed("disable") {
				ineligible = nomad.Bool(disable)
			}
			resp, err := client.Node().SetEligibility(ctx, args[0], eligible, ineligible)
			if err != nil {
				return err
			}
			return a.printRecord(cmd, resp)
		}),
	}
	cmd.Flags().BoolVar(&enable, "enable", false, "Mark the node eligible")
	cmd.Flags().BoolVar(&disable, "disable", false, "Mark the node ineligible")
	return cmd
}

func nodePurge(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "purge <node-id>",
		Short: "Remove a node from the cluster state",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			resp, err := client.Node().Purge(ctx, args[0])
			if err != nil {
				return err
			}
			return a.printRecord(cmd, resp)
		}),
	}
}
