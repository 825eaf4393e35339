package commands

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rflorenc/go-nomad/internal/transfer"
	"github.com/rflorenc/go-nomad/nomad"
)

var jobColumns = []column{
	field("ID", "ID"),
	field("Type", "Type"),
	field("Namespace", "Namespace"),
	field("Status", "Status"),
}

var allocColumns = []column{
	field("ID", "ID"),
	field("Job", "JobID"),
	field("Task Group", "TaskGroup"),
	field("Node", "NodeID"),
	field("Desired", "DesiredStatus"),
	field("Status", "ClientStatus"),
}

func jobCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Register, inspect and manage jobs",
	}
	cmd.AddCommand(
		jobList(a),
		jobStatus(a),
		jobExists(a),
		jobVersions(a),
		jobAllocations(a),
		jobEvaluations(a),
		jobDeployments(a),
		jobSummary(a),
		jobRegister(a),
		jobPlan(a),
		jobEvaluate(a),
		jobDispatch(a),
		jobRevert(a),
		jobStable(a),
		jobPeriodicForce(a),
		jobDeregister(a),
		jobExport(a),
		jobImport(a),
	)
	return cmd
}

func jobList(a *app) *cobra.Command {
	var opts nomad.JobListOptions
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		Args:  cobra.NoArgs,
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, _ []string) error {
			if all {
				opts.Namespace = "*"
			}
			jobs, err := client.Jobs().List(ctx, opts)
			if err != nil {
				return err
			}
			return a.printList(cmd, jobs, jobColumns)
		}),
	}
	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "Only jobs whose ID starts with this prefix")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "Server-side filter expression")
	cmd.Flags().BoolVarP(&all, "all-namespaces", "A", false, "List jobs in every namespace")
	return cmd
}

func jobStatus(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a job's specification and status",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			job, err := client.Job().Lookup(ctx, args[0])
			if err != nil {
				return err
			}
			return a.printRecord(cmd, job)
		}),
	}
}

func jobExists(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exists <job-id>",
		Short: "Report whether a job is registered",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			ok, err := client.Job().Exists(ctx, args[0])
			if err != nil {
				return err
			}
			if a.output != formatTable {
				return a.printValue(cmd, map[string]any{"id": args[0], "exists": ok})
			}
			fmt.Fprintln(cmd.OutOrStdout(), ok)
			return nil
		}),
	}
}

func jobVersions(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "versions <job-id>",
		Short: "List every known version of a job",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			resp, err := client.Job().Versions(ctx, args[0])
			if err != nil {
				return err
			}
			return a.printList(cmd, records(resp["Versions"]), []column{
				field("Version", "Version"),
				field("Stable", "Stable"),
				field("Status", "Status"),
				field("Submitted", "SubmitTime"),
			})
		}),
	}
}

func jobAllocations(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "allocations <job-id>",
		Short: "List a job's allocations",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			allocs, err := client.Job().Allocations(ctx, args[0])
			if err != nil {
				return err
			}
			return a.printList(cmd, allocs, allocColumns)
		}),
	}
}

func jobEvaluations(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "evaluations <job-id>",
		Short: "List a job's evaluations",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			evals, err := client.Job().Evaluations(ctx, args[0])
			if err != nil {
				return err
			}
			return a.printList(cmd, evals, []column{
				field("ID", "ID"),
				field("Triggered By", "TriggeredBy"),
				field("Status", "Status"),
				field("Node", "NodeID"),
			})
		}),
	}
}

func jobDeployments(a *app) *cobra.Command {
	var latest bool
	cmd := &cobra.Command{
		Use:   "deployments <job-id>",
		Short: "List a job's deployments",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			if latest {
				d, err := client.Job().Deployment(ctx, args[0])
				if err != nil {
					return err
				}
				return a.printRecord(cmd, d)
			}
			ds, err := client.Job().Deployments(ctx, args[0])
			if err != nil {
				return err
			}
			return a.printList(cmd, ds, []column{
				field("ID", "ID"),
				field("Job Version", "JobVersion"),
				field("Status", "Status"),
			})
		}),
	}
	cmd.Flags().BoolVar(&latest, "latest", false, "Show only the most recent deployment")
	return cmd
}

func jobSummary(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary <job-id>",
		Short: "Show a job's allocation summary",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			summary, err := client.Job().Summary(ctx, args[0])
			if err != nil {
				return err
			}
			if a.output != formatTable {
				return a.printValue(cmd, summary)
			}
			groups := summary.Map("Summary")
			rows := make([]nomad.Record, 0, len(groups))
			for name := range groups {
				row := groups.Map(name)
				if row == nil {
					continue
				}
				out := nomad.Record{"TaskGroup": name}
				for k, v := range row {
					out[k] = v
				}
				rows = append(rows, out)
			}
			sort.Slice(rows, func(i, j int) bool { return rows[i].String("TaskGroup") < rows[j].String("TaskGroup") })
			return a.printList(cmd, rows, []column{
				field("Task Group", "TaskGroup"),
				field("Queued", "Queued"),
				field("Starting", "Starting"),
				field("Running", "Running"),
				field("Failed", "Failed"),
				field("Complete", "Complete"),
				field("Lost", "Lost"),
			})
		}),
	}
}

func jobRegister(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "register <file>",
		Short: "Register or update a job from a JSON or YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			job, err := transfer.ReadJob(args[0])
			if err != nil {
				return err
			}
			resp, err := client.Job().Register(ctx, job.ID(), map[string]any{"Job": job})
			if err != nil {
				return err
			}
			return a.printRecord(cmd, resp)
		}),
	}
}

func jobPlan(a *app) *cobra.Command {
	var diff, policyOverride bool
	cmd := &cobra.Command{
		Use:   "plan <file>",
		Short: "Dry-run the scheduler for a job file",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			job, err := transfer.ReadJob(args[0])
			if err != nil {
				return err
			}
			plan, err := client.Job().Plan(ctx, job.ID(), nomad.Record{"Job": job}, diff, policyOverride)
			if err != nil {
				return err
			}
			return a.printRecord(cmd, plan)
		}),
	}
	cmd.Flags().BoolVar(&diff, "diff", true, "Include a diff against the registered job")
	cmd.Flags().BoolVar(&policyOverride, "policy-override", false, "Override soft-mandatory Sentinel policies")
	return cmd
}

func jobEvaluate(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate <job-id>",
		Short: "Force a new evaluation of a job",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			resp, err := client.Job().Evaluate(ctx, args[0])
			if err != nil {
				return err
			}
			return a.printRecord(cmd, resp)
		}),
	}
}

func jobDispatch(a *app) *cobra.Command {
	var payloadFile string
	var meta map[string]string
	cmd := &cobra.Command{
		Use:   "dispatch <job-id>",
		Short: "Start an instance of a parameterized job",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			var payload string
			if payloadFile != "" {
				data, err := os.ReadFile(payloadFile)
				if err != nil {
					return fmt.Errorf("reading payload: %w", err)
				}
				payload = base64.StdEncoding.EncodeToString(data)
			}
			resp, err := client.Job().Dispatch(ctx, args[0], payload, meta)
			if err != nil {
				return err
			}
			return a.printRecord(cmd, resp)
		}),
	}
	cmd.Flags().StringVar(&payloadFile, "payload-file", "", "File whose contents become the dispatch payload")
	cmd.Flags().StringToStringVar(&meta, "meta", nil, "Metadata for the dispatched job (key=value)")
	return cmd
}

func jobRevert(a *app) *cobra.Command {
	var prior int
	cmd := &cobra.Command{
		Use:   "revert <job-id> <version>",
		Short: "Revert a job to an earlier version",
		Args:  cobra.ExactArgs(2),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			version, err := parseVersion(args[1])
			if err != nil {
				return err
			}
			var enforce *int
			if cmd.Flags().Changed("enforce-prior-version") {
				enforce = nomad.Int(prior)
			}
			resp, err := client.Job().Revert(ctx, args[0], version, enforce)
			if err != nil {
				return err
			}
			return a.printRecord(cmd, resp)
		}),
	}
	cmd.Flags().IntVar(&prior, "enforce-prior-version", 0, "Only revert if the current version matches")
	return cmd
}

func jobStable(a *app) *cobra.Command {
	var stable bool
	cmd := &cobra.Command{
		Use:   "stable <job-id> <version>",
		Short: "Mark a job version as stable or unstable",
		Args:  cobra.ExactArgs(2),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			version, err := parseVersion(args[1])
			if err != nil {
				return err
			}
			resp, err := client.Job().Stable(ctx, args[0], version, stable)
			if err != nil {
				return err
			}
			return a.printRecord(cmd, resp)
		}),
	}
	cmd.Flags().BoolVar(&stable, "stable", true, "Stability to set")
	return cmd
}

func jobPeriodicForce(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "periodic-force <job-id>",
		Short: "Launch a periodic job immediately",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			resp, err := client.Job().ForcePeriodic(ctx, args[0])
			if err != nil {
				return err
			}
			return a.printRecord(cmd, resp)
		}),
	}
}

func jobDeregister(a *app) *cobra.Command {
	var purge string
	cmd := &cobra.Command{
		Use:   "deregister <job-id>",
		Short: "Stop a job and optionally purge it",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			resp, err := client.Job().Deregister(ctx, args[0], purge)
			if err != nil {
				return err
			}
			return a.printRecord(cmd, resp)
		}),
	}
	cmd.Flags().StringVar(&purge, "purge", "", "Purge the job immediately (true or false); unset leaves it to the server")
	cmd.Flags().Lookup("purge").NoOptDefVal = "true"
	return cmd
}

func jobExport(a *app) *cobra.Command {
	var opts transfer.Options
	var format string
	var all bool
	cmd := &cobra.Command{
		Use:   "export <dir>",
		Short: "Write job specifications to a directory",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			opts.Format = transfer.Format(format)
			if opts.Format != transfer.FormatJSON && opts.Format != transfer.FormatYAML {
				return badArg("format must be json or yaml, got %q", format)
			}
			if all {
				opts.Namespace = "*"
			}
			report, err := transfer.Export(ctx, client, args[0], opts, a.progress())
			if err != nil {
				return err
			}
			return a.printReport(cmd, report)
		}),
	}
	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "Only jobs whose ID starts with this prefix")
	cmd.Flags().StringSliceVar(&opts.Exclude, "exclude", nil, "Job IDs to skip")
	cmd.Flags().StringVar(&format, "format", "json", "File format: json or yaml")
	cmd.Flags().BoolVarP(&all, "all-namespaces", "A", false, "Export jobs from every namespace")
	return cmd
}

func jobImport(a *app) *cobra.Command {
	var opts transfer.Options
	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Register exported job specifications",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error {
			report, err := transfer.Import(ctx, client, args[0], opts, a.progress())
			if report != nil {
				if perr := a.printReport(cmd, report); perr != nil && err == nil {
					err = perr
				}
			}
			return err
		}),
	}
	cmd.Flags().StringSliceVar(&opts.Exclude, "exclude", nil, "Job IDs to skip")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Only show what would be registered")
	return cmd
}

func (a *app) printReport(cmd *cobra.Command, report *transfer.Report) error {
	if a.output != formatTable {
		return a.printValue(cmd, report)
	}
	rows := make([]nomad.Record, 0, len(report.Items))
	for _, it := range report.Items {
		rows = append(rows, nomad.Record{
			"ID": it.ID, "Namespace": it.Namespace, "Action": it.Action, "File": it.File, "Error": it.Error,
		})
	}
	if err := a.printList(cmd, rows, []column{
		field("ID", "ID"),
		field("Namespace", "Namespace"),
		field("Action", "Action"),
		field("File", "File"),
		field("Error", "Error"),
	}); err != nil {
		return err
	}
	for _, w := range report.Warnings {
		a.log.Warn().Msg(w)
	}
	return nil
}

func parseVersion(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, badArg("version must be a non-negative integer, got %q", s)
	}
	return v, nil
}
