package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rflorenc/go-nomad/nomad"
)

func sentinelCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sentinel",
		Short: "Manage Sentinel policies (Nomad Enterprise)",
	}
	policy := &cobra.Command{
		Use:   "policy",
		Short: "Manage Sentinel policies",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List policies",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, _ []string) error {
			policies, err := client.Sentinel().Policies(ctx)
			if err != nil {
				return err
			}
			return a.printList(cmd, policies, []column{
				field("Name", "Name"),
				field("Scope", "Scope"),
				field("Enforcement", "EnforcementLevel"),
				field("Description", "Description"),
			})
		}),
	}

	info := &cobra.Command{
		Use:   "info <name>",
		Short: "Show a policy",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			p, err := client.Sentinel().Policy(ctx, args[0])
			if err != nil {
				return err
			}
			return a.printRecord(cmd, p)
		}),
	}

	var scope, level, description string
	apply := &cobra.Command{
		Use:   "apply <name> <policy-file>",
		Short: "Create or update a policy",
		Args:  cobra.ExactArgs(2),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			src, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("reading policy: %w", err)
			}
			ok, err := client.Sentinel().CreatePolicy(ctx, args[0], nomad.Record{
				"Name":             args[0],
				"Description":      description,
				"Scope":            scope,
				"EnforcementLevel": level,
				"Policy":           string(src),
			})
			if err != nil {
				return err
			}
			return a.printResult(cmd, ok, fmt.Sprintf("policy %s applied", args[0]))
		}),
	}
	apply.Flags().StringVar(&scope, "scope", "submit-job", "Policy scope")
	apply.Flags().StringVar(&level, "level", "advisory", "Enforcement level: advisory, soft-mandatory or hard-mandatory")
	apply.Flags().StringVar(&description, "description", "", "Policy description")

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a policy",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			ok, err := client.Sentinel().DeletePolicy(ctx, args[0])
			if err != nil {
				return err
			}
			return a.printResult(cmd, ok, fmt.Sprintf("policy %s deleted", args[0]))
		}),
	}

	policy.AddCommand(list, info, apply, del)
	cmd.AddCommand(policy)
	return cmd
}
