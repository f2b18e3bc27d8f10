// Package proc runs external programs from argument vectors and reports how
// they exited.
package proc

//go:generate mockgen -destination=mocks/runner.go -package=mocks . Runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// ErrNonZeroExit is returned when a process ran but exited with a non-zero status.
var ErrNonZeroExit = errors.New("process exited with non-zero status")

// WaitDelay bounds how long Run waits for output after the process was
// killed or exited.
var WaitDelay = 5 * time.Second

// Command is an external program invocation. Args are passed to the program
// as-is; no shell is involved.
type Command struct {
	Name string
	Args []string
	Dir  string
}

// String renders the command for logs and dry runs. Arguments containing
// whitespace or quotes are single-quoted.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quote(c.Name))
	for _, a := range c.Args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"\\$*?") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Result describes a finished process.
type Result struct {
	ExitCode int
	Output   []byte
	Duration time.Duration
}

// Tail returns at most the last n lines of the captured output.
func (r *Result) Tail(n int) string {
	if r == nil {
		return ""
	}
	lines := strings.Split(strings.TrimRight(string(r.Output), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// Runner executes commands.
type Runner interface {
	// Run starts the command and blocks until it exits. The returned Result is
	// non-nil whenever the process was started. The error wraps
	// ErrNonZeroExit for a failed exit status, or the context error when ctx
	// ended first.
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ExecRunner runs commands as OS processes.
type ExecRunner struct {
	// execCommand allows injection of command execution for testing
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
	logger      *slog.Logger
}

// NewExecRunner creates a runner backed by os/exec.
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{
		execCommand: exec.CommandContext,
		logger:      logger,
	}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, c Command) (*Result, error) {
	cmd := r.execCommand(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	// Renderer launchers fork the real binary; killing only the launcher
	// would leave the output pipe open and Wait blocked.
	killProcessGroup(cmd)
	cmd.WaitDelay = WaitDelay
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	r.logger.Debug("exec", "command", c.String())
	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", c.Name, err)
	}
	err := cmd.Wait()

	res := &Result{
		ExitCode: cmd.ProcessState.ExitCode(),
		Output:   out.Bytes(),
		Duration: time.Since(start),
	}
	if err == nil {
		return res, nil
	}
	if errors.Is(err, exec.ErrWaitDelay) && res.ExitCode == 0 && ctx.Err() == nil {
		// exited cleanly; a leftover child kept the output open
		r.logger.Warn("output truncated", "command", c.Name)
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("%s: %w", c.Name, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return res, fmt.Errorf("%s exited with status %d: %w", c.Name, res.ExitCode, ErrNonZeroExit)
	}
	return res, fmt.Errorf("wait %s: %w", c.Name, err)
}

// Ensure ExecRunner implements Runner
var _ Runner = (*ExecRunner)(nil)
