package geoip

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/kballard/go-shellquote"
)

// exitCommandNotFound is the shell exit status for a missing command.
const exitCommandNotFound = 127

// DefaultLookupTimeout bounds a single lookup command run.
const DefaultLookupTimeout = 5 * time.Second

// Runner executes a command and returns its standard output and exit status.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout []byte, exitCode int, err error)
}

// ExecRunner runs commands with os/exec. A binary missing from PATH is
// reported as exit status 127, the way a shell would.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, int, error) {
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), exitErr.ExitCode(), nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return nil, exitCommandNotFound, nil
	}
	return stdout.Bytes(), -1, err
}

// ProcessAdapter resolves addresses by running an external lookup command
// such as geoiplookup with the address as its last argument.
type ProcessAdapter struct {
	command []string
	timeout time.Duration
	allowed bool
	runner  Runner
	logger  *slog.Logger
}

// NewProcessAdapter creates an adapter for command. allowed gates whether
// processes may be started at all.
func NewProcessAdapter(command []string, timeout time.Duration, allowed bool, runner Runner, logger *slog.Logger) *ProcessAdapter {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessAdapter{
		command: command,
		timeout: timeout,
		allowed: allowed,
		runner:  runner,
		logger:  logger,
	}
}

// Lookup runs the lookup command for address and parses its first output
// line. It returns ErrDisabled when processes may not be run and an error
// matching ErrUnavailable when the command yields no usable line.
func (a *ProcessAdapter) Lookup(ctx context.Context, address string) (code, name string, err error) {
	if !a.allowed || len(a.command) == 0 {
		return "", "", ErrDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	args := make([]string, 0, len(a.command))
	args = append(args, a.command[1:]...)
	args = append(args, address)

	a.logger.Debug("running lookup command", "command", shellquote.Join(append([]string{a.command[0]}, args...)...))

	out, exitCode, err := a.runner.Run(ctx, a.command[0], args...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", "", fmt.Errorf("%w: lookup command: %v", ErrUnavailable, ctxErr)
	}
	if err != nil {
		return "", "", fmt.Errorf("%w: lookup command: %v", ErrUnavailable, err)
	}
	if exitCode == exitCommandNotFound {
		return "", "", fmt.Errorf("%w: lookup command %q not found", ErrUnavailable, a.command[0])
	}

	line, ok := firstLine(out)
	if !ok {
		return "", "", fmt.Errorf("%w: lookup command produced no output", ErrUnavailable)
	}

	return ParseLookupLine(line)
}
