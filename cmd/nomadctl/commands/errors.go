package commands

import (
	"github.com/rflorenc/go-nomad/nomad"
)

// Exit codes.
const (
	ExitOK            = 0
	ExitError         = 1
	ExitInvalidParams = 2
	ExitNotFound      = 3
)

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case nomad.IsNotFound(err):
		return ExitNotFound
	case nomad.IsInvalidParameters(err):
		return ExitInvalidParams
	default:
		return ExitError
	}
}
