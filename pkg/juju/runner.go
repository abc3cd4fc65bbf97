// Package juju drives a Juju controller through the juju CLI.
//
// The harness never links against Juju itself; every operation shells out to
// the juju binary and parses its stdout/stderr, mirroring how operators drive
// deployments by hand. A non-zero exit code is always surfaced as an error
// carrying the full command line, return code and both output streams.
package juju

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/charmed-network/kube-ovn-harness/pkg/logging"
)

// Result holds the outcome of a CLI invocation.
type Result struct {
	// RC is the process return code
	RC int

	// Stdout is the captured standard output
	Stdout string

	// Stderr is the captured standard error
	Stderr string
}

// Output returns stdout if non-empty, otherwise stderr.
// Useful for building failure messages the way operators read them.
func (r Result) Output() string {
	if s := strings.TrimSpace(r.Stdout); s != "" {
		return s
	}
	return strings.TrimSpace(r.Stderr)
}

// ExitError is returned when a CLI invocation exits non-zero.
type ExitError struct {
	// Args is the full command line, binary included
	Args []string

	// Result is the captured process outcome
	Result Result
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command %q exited %d: %s",
		strings.Join(e.Args, " "), e.Result.RC, e.Result.Output())
}

// Runner executes a CLI binary and captures its output.
type Runner struct {
	// Binary is the executable name or path
	Binary string

	// Env is appended to the inherited environment for every invocation
	Env []string

	// Dir is the working directory for invocations; empty means inherit
	Dir string

	log *logging.Logger

	// newCommand builds the exec.Cmd; replaceable by tests
	newCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewRunner creates a Runner for the given binary.
func NewRunner(binary string, log *logging.Logger) *Runner {
	if log == nil {
		log = logging.L()
	}
	return &Runner{
		Binary:     binary,
		log:        log.WithName("runner"),
		newCommand: exec.CommandContext,
	}
}

// WithEnv returns a copy of the runner with extra environment variables.
// Each entry has the form KEY=VALUE.
func (r *Runner) WithEnv(env ...string) *Runner {
	clone := *r
	clone.Env = append(append([]string{}, r.Env...), env...)
	return &clone
}

// Run executes the binary with the given arguments.
//
// The returned error is non-nil when the process could not be started or
// exited non-zero; in the latter case it is an *ExitError and the Result
// still carries the captured streams.
func (r *Runner) Run(ctx context.Context, args ...string) (Result, error) {
	cmd := r.newCommand(ctx, r.Binary, args...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.log.Debug("running command", "binary", r.Binary, "args", args)
	err := cmd.Run()

	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.RC = exitErr.ExitCode()
			return res, &ExitError{
				Args:   append([]string{r.Binary}, args...),
				Result: res,
			}
		}
		return res, fmt.Errorf("failed to run %s: %w", r.Binary, err)
	}

	return res, nil
}
