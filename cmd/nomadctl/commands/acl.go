package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rflorenc/go-nomad/nomad"
)

func aclCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "acl",
		Short: "Manage ACL tokens and policies",
	}
	cmd.AddCommand(aclBootstrap(a), aclTokenCommand(a), aclPolicyCommand(a))
	return cmd
}

func aclBootstrap(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the initial management token",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, _ []string) error {
			token, err := client.ACL().Bootstrap(ctx)
			if err != nil {
				return err
			}
			return a.printRecord(cmd, token)
		}),
	}
}

func aclTokenCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage ACL tokens",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List tokens",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, _ []string) error {
			tokens, err := client.ACL().Tokens(ctx)
			if err != nil {
				return err
			}
			return a.printList(cmd, tokens, []column{
				field("Accessor", "AccessorID"),
				field("Name", "Name"),
				field("Type", "Type"),
				field("Global", "Global"),
				field("Policies", "Policies"),
			})
		}),
	}

	info := &cobra.Command{
		Use:   "info <accessor-id>",
		Short: "Show a token",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			token, err := client.ACL().Token(ctx, args[0])
			if err != nil {
				return err
			}
			return a.printRecord(cmd, token)
		}),
	}

	self := &cobra.Command{
		Use:   "self",
		Short: "Show the token in use",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, _ []string) error {
			token, err := client.ACL().SelfToken(ctx)
			if err != nil {
				return err
			}
			return a.printRecord(cmd, token)
		}),
	}

	var createSpec tokenSpec
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a token",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, _ []string) error {
			token, err := client.ACL().CreateToken(ctx, createSpec.record(cmd))
			if err != nil {
				return err
			}
			return a.printRecord(cmd, token)
		}),
	}
	createSpec.bind(create)

	var updateSpec tokenSpec
	update := &cobra.Command{
		Use:   "update <accessor-id>",
		Short: "Update a token",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			body := updateSpec.record(cmd)
			body["AccessorID"] = args[0]
			token, err := client.ACL().UpdateToken(ctx, args[0], body)
			if err != nil {
				return err
			}
			return a.printRecord(cmd, token)
		}),
	}
	updateSpec.bind(update)

	del := &cobra.Command{
		Use:   "delete <accessor-id>",
		Short: "Delete a token",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			ok, err := client.ACL().DeleteToken(ctx, args[0])
			if err != nil {
				return err
			}
			return a.printResult(cmd, ok, fmt.Sprintf("token %s deleted", args[0]))
		}),
	}

	cmd.AddCommand(list, info, self, create, update, del)
	return cmd
}

// tokenSpec holds the token fields settable from flags.
type tokenSpec struct {
	name     string
	kind     string
	policies []string
	global   bool
}

func (s *tokenSpec) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.name, "name", "", "Human readable token name")
	cmd.Flags().StringVar(&s.kind, "type", "client", "Token type: client or management")
	cmd.Flags().StringSliceVar(&s.policies, "policy", nil, "Policy to attach (repeatable)")
	cmd.Flags().BoolVar(&s.global, "global", false, "Replicate the token to every region")
}

// record builds the request body from the flags the user set.
func (s *tokenSpec) record(cmd *cobra.Command) nomad.Record {
	body := nomad.Record{}
	flags := cmd.Flags()
	if flags.Changed("name") {
		body["Name"] = s.name
	}
	if flags.Changed("type") || cmd.Name() == "create" {
		body["Type"] = s.kind
	}
	if flags.Changed("policy") {
		body["Policies"] = s.policies
	}
	if flags.Changed("global") {
		body["Global"] = s.global
	}
	return body
}

func aclPolicyCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Manage ACL policies",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List policies",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, _ []string) error {
			policies, err := client.ACL().Policies(ctx)
			if err != nil {
				return err
			}
			return a.printList(cmd, policies, []column{
				field("Name", "Name"),
				field("Description", "Description"),
			})
		}),
	}

	info := &cobra.Command{
		Use:   "info <name>",
		Short: "Show a policy",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			policy, err := client.ACL().Policy(ctx, args[0])
			if err != nil {
				return err
			}
			return a.printRecord(cmd, policy)
		}),
	}

	var description string
	apply := &cobra.Command{
		Use:   "apply <name> <rules-file>",
		Short: "Create or update a policy from an HCL rules file",
		Args:  cobra.ExactArgs(2),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			rules, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("reading rules: %w", err)
			}
			ok, err := client.ACL().CreatePolicy(ctx, args[0], nomad.Record{
				"Name":        args[0],
				"Description": description,
				"Rules":       string(rules),
			})
			if err != nil {
				return err
			}
			return a.printResult(cmd, ok, fmt.Sprintf("policy %s applied", args[0]))
		}),
	}
	apply.Flags().StringVar(&description, "description", "", "Policy description")

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a policy",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			ok, err := client.ACL().DeletePolicy(ctx, args[0])
			if err != nil {
				return err
			}
			return a.printResult(cmd, ok, fmt.Sprintf("policy %s deleted", args[0]))
		}),
	}

	cmd.AddCommand(list, info, apply, del)
	return cmd
}
