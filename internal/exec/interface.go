// Package exec provides an interface for command execution.
package exec

import (
	"context"
)

// CommandRunner defines the interface for running external commands.
// This abstraction allows mocking command execution in tests.
type CommandRunner interface {
	// Run executes a command with stdin fed from input and returns stdout
	// and stderr separately. The working directory is set to workDir if
	// non-empty. Run returns an error for start failures and non-zero
	// exits; callers classify from the error and the captured stderr.
	Run(ctx context.Context, workDir string, input string, name string, args ...string) (stdout, stderr []byte, err error)
}
