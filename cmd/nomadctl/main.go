// Package main is the entry point for the nomadctl CLI.
//
// nomadctl wraps the Nomad HTTP API: jobs, nodes, allocations, ACL and
// Sentinel policies, and cluster maintenance. Connection settings come
// from a config file, NOMAD_* environment variables and flags.
package main

import (
	"fmt"
	"os"

	"github.com/rflorenc/go-nomad/cmd/nomadctl/commands"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(commands.ExitCode(err))
	}
}
