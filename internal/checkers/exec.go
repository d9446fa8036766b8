package checkers

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// Command is an external process invocation.
type Command struct {
	Dir     string
	Args    []string
	Timeout time.Duration
}

// CommandResult is the outcome of running a Command.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	// NotFound is set when the executable could not be started.
	NotFound bool
	Err      error
	Duration time.Duration
}

// CommandRunner runs external commands. Tests substitute a fake.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) CommandResult
}

// ExecRunner runs commands with os/exec, without a shell.
type ExecRunner struct{}

// Run executes cmd and waits for it, killing it when the timeout expires.
func (ExecRunner) Run(ctx context.Context, c Command) CommandResult {
	if len(c.Args) == 0 {
		return CommandResult{ExitCode: -1, Err: errors.New("empty command")}
	}
	if _, err := exec.LookPath(c.Args[0]); err != nil {
		return CommandResult{ExitCode: -1, NotFound: true, Err: err}
	}

	runCtx := ctx
	cancel := func() {}
	if c.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, c.Timeout)
	}
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	res := CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			res.ExitCode = -1
			res.TimedOut = true
		case errors.As(runErr, &exitErr):
			res.ExitCode = exitErr.ExitCode()
		default:
			res.ExitCode = -1
			res.Err = runErr
		}
	}
	return res
}
