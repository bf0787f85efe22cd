package backend

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"sync"
)

// Invocation describes one external command.
type Invocation struct {
	Dir  string
	Name string
	Args []string
}

// Argv returns the full command line.
func (inv Invocation) Argv() []string {
	return append([]string{inv.Name}, inv.Args...)
}

// Output is the captured result of an invocation.
type Output struct {
	// ExitCode is the process exit status; -1 when killed by a signal.
	ExitCode int

	// Log is stdout and stderr interleaved in arrival order.
	Log string

	// Stdout is standard output alone, for commands whose output is parsed.
	Stdout string
}

// Runner executes external commands.
//
// A non-zero exit is reported through Output.ExitCode with a nil error. An
// error is returned only when the command could not be run at all.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Output, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, inv Invocation) (Output, error) {
	cmd := exec.CommandContext(ctx, inv.Name, inv.Args...)
	cmd.Dir = inv.Dir

	combined := &lockedBuffer{}
	var stdout bytes.Buffer
	cmd.Stdout = io.MultiWriter(combined, &stdout)
	cmd.Stderr = combined

	err := cmd.Run()
	out := Output{Log: combined.String(), Stdout: stdout.String()}
	if err == nil {
		return out, nil
	}

	// A process killed because the context ended reports the context error,
	// not its exit status.
	if ctxErr := ctx.Err(); ctxErr != nil {
		out.ExitCode = -1
		return out, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, nil
	}

	return out, &EnvironmentError{Command: inv.Argv(), Err: err}
}

// lockedBuffer serializes writes from the stdout and stderr copiers.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
