// Package commands defines the nomadctl command tree.
package commands

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rflorenc/go-nomad/internal/config"
	"github.com/rflorenc/go-nomad/nomad"
)

// app carries the state shared by every command: resolved flags, the
// logger and a lazily built client.
type app struct {
	flags    *config.Flags
	output   string
	logLevel string
	getenv   func(string) string

	log    zerolog.Logger
	client *nomad.Client
}

// Root returns the root command for the nomadctl CLI.
func Root() *cobra.Command {
	return newRoot(os.Getenv)
}

func newRoot(getenv func(string) string) *cobra.Command {
	a := &app{getenv: getenv, log: zerolog.Nop()}

	cmd := &cobra.Command{
		Use:           "nomadctl",
		Short:         "Inspect and operate a Nomad cluster over its HTTP API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := a.logLevel
			if level == "" {
				level = getenv("LOG_LEVEL")
			}
			logger, err := newLogger(cmd.ErrOrStderr(), level)
			if err != nil {
				return err
			}
			a.log = logger
			return validateOutput(a.output)
		},
	}

	a.flags = config.BindFlags(cmd.PersistentFlags())
	cmd.PersistentFlags().StringVarP(&a.output, "output", "o", "table", "Output format: table, json or yaml")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error); defaults to $LOG_LEVEL")

	cmd.AddCommand(jobCommand(a))
	cmd.AddCommand(nodeCommand(a))
	cmd.AddCommand(allocCommand(a))
	cmd.AddCommand(aclCommand(a))
	cmd.AddCommand(sentinelCommand(a))
	cmd.AddCommand(systemCommand(a))
	cmd.AddCommand(Version())

	return cmd
}

// nomad returns the client, building it on first use.
func (a *app) nomad() (*nomad.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	cluster, err := a.flags.Resolve(a.getenv)
	if err != nil {
		return nil, err
	}
	cfg, err := cluster.ClientConfig(&a.log)
	if err != nil {
		return nil, err
	}
	client, err := nomad.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	a.log.Debug().Str("address", client.Address()).Str("cluster", cluster.Name).Msg("using cluster")
	a.client = client
	return client, nil
}

// run wraps a command body that needs a client.
func (a *app) run(fn func(ctx context.Context, cmd *cobra.Command, client *nomad.Client, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		client, err := a.nomad()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return fn(ctx, cmd, client, args)
	}
}

// progress returns a line logger for long running operations.
func (a *app) progress() func(string) {
	return func(line string) {
		if line == "" {
			return
		}
		a.log.Info().Msg(line)
	}
}
