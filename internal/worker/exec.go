package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/seastate/bsose-sync/internal/schedule"
)

// stderrTailLimit bounds how much captured stderr is carried into errors.
const stderrTailLimit = 2048

// ExecRunner invokes the worker as a local subprocess.
type ExecRunner struct {
	binary  string
	builder *InvocationBuilder
}

// NewExecRunner creates a Runner that executes the worker binary directly.
func NewExecRunner(binary string, builder *InvocationBuilder) *ExecRunner {
	return &ExecRunner{
		binary:  binary,
		builder: builder,
	}
}

// Run executes the worker for one unit and blocks until it exits. Worker
// output passes through to the driver's own stdout and stderr; a bounded tail
// of stderr is kept for error reporting.
func (r *ExecRunner) Run(ctx context.Context, unit schedule.WorkUnit) error {
	inv := r.builder.Build(unit)

	cmd := exec.CommandContext(ctx, r.binary, inv.Args...)

	// The worker inherits the driver's environment; the destination address
	// is appended so it wins over any inherited value.
	cmd.Env = append(os.Environ(), inv.Env...)

	// Set process group so the entire process tree dies on cancellation.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stderrTail bytes.Buffer
	cmd.Stdout = os.Stdout
	cmd.Stderr = io.MultiWriter(os.Stderr, &stderrTail)

	slog.Debug("Starting worker process",
		"binary", r.binary,
		"unit", unit.ID(),
	)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		// Kill the process group (negative PID).
		if cmd.Process != nil {
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		<-done
		return fmt.Errorf("worker cancelled: %w", ctx.Err())
	case err := <-done:
		if err == nil {
			return nil
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			return fmt.Errorf("worker exited with status %d: %s",
				exitErr.ExitCode(), tailOf(&stderrTail))
		}
		return fmt.Errorf("worker failed: %w", err)
	}
}

// tailOf returns a bounded, single-line rendering of captured stderr.
func tailOf(buf *bytes.Buffer) string {
	s := strings.TrimSpace(buf.String())
	if s == "" {
		return "(no stderr output)"
	}
	if len(s) > stderrTailLimit {
		s = s[len(s)-stderrTailLimit:]
	}
	return strings.ReplaceAll(s, "\n", " | ")
}
