package adapter

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	qexec "github.com/quorumhq/quorum/internal/exec"
	"github.com/quorumhq/quorum/pkg/models"
)

// ProcessAdapter invokes a model backend by spawning an external executable
// with the prompt on stdin and capturing stdout as the response text.
type ProcessAdapter struct {
	runner  qexec.CommandRunner
	command string
	args    []string
	workDir string
	// modelFlag, when non-empty, is appended as "<modelFlag> <model>"
	// (e.g. "--model"). Backends without a model flag leave it empty.
	modelFlag string
}

// ProcessConfig configures a ProcessAdapter.
type ProcessConfig struct {
	// Command is the executable to spawn.
	Command string
	// Args are fixed arguments passed before any model flag.
	Args []string
	// WorkDir is the working directory for the subprocess.
	WorkDir string
	// ModelFlag is the flag used to pass the model identifier, if any.
	ModelFlag string
}

// NewProcessAdapter creates a ProcessAdapter using the given runner.
// A nil runner defaults to the real os/exec implementation.
func NewProcessAdapter(cfg ProcessConfig, runner qexec.CommandRunner) *ProcessAdapter {
	if runner == nil {
		runner = qexec.NewRunner()
	}
	return &ProcessAdapter{
		runner:    runner,
		command:   cfg.Command,
		args:      cfg.Args,
		workDir:   cfg.WorkDir,
		modelFlag: cfg.ModelFlag,
	}
}

// Invoke spawns the executable and captures its output.
func (a *ProcessAdapter) Invoke(ctx context.Context, prompt string, opts InvokeOptions) models.Response {
	args := append([]string{}, a.args...)
	if a.modelFlag != "" && opts.Model != "" {
		args = append(args, a.modelFlag, opts.Model)
	}

	input := prompt
	if pre := stancePreamble(opts.Stance); pre != "" {
		input = pre + "\n\n" + prompt
	}

	start := time.Now()
	stdout, stderr, err := a.runner.Run(ctx, a.workDir, input, a.command, args...)
	latency := time.Since(start)

	if ctx.Err() != nil {
		return ctxFailure(ctx.Err(), latency)
	}
	if err != nil {
		return a.classify(err, stderr, latency)
	}

	text := strings.TrimSpace(string(stdout))
	if text == "" {
		return failure(models.ErrorMalformedOutput, false, latency,
			"%s produced no output", a.command)
	}
	return success(text, latency)
}

// classify maps a subprocess error to a failed Response. Start failures
// (missing executable) are unreachable; non-zero exits are a backend
// rejection carrying the stderr tail for transparency.
func (a *ProcessAdapter) classify(err error, stderr []byte, latency time.Duration) models.Response {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		detail := strings.TrimSpace(string(stderr))
		if detail == "" {
			detail = err.Error()
		}
		return failure(models.ErrorRejected, false, latency,
			"%s exited %d: %s", a.command, exitErr.ExitCode(), tail(detail, 500))
	}
	return failure(models.ErrorUnreachable, true, latency,
		"failed to run %s: %v", a.command, err)
}

// tail returns at most the last n bytes of s.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// String describes the adapter for logging.
func (a *ProcessAdapter) String() string {
	return fmt.Sprintf("process(%s)", a.command)
}

// Verify ProcessAdapter implements Adapter at compile time.
var _ Adapter = (*ProcessAdapter)(nil)
