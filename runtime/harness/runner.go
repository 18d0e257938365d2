package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/aledsdavies/catconform/core/invariant"
)

// Config carries the process-wide settings. It is constructed once in
// main and passed by value; nothing mutates it after startup.
type Config struct {
	// Verbose enables per-command trace lines.
	Verbose bool
	// Timeout bounds a single process execution. Zero disables the bound,
	// in which case a hung subject blocks the run indefinitely.
	Timeout time.Duration
	// Out receives progress and trace output. Defaults to os.Stdout.
	Out io.Writer
}

func (c Config) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

func (c Config) logf(format string, args ...interface{}) {
	if c.Verbose {
		fmt.Fprintf(c.out(), format+"\n", args...)
	}
}

// ErrTimeout marks a process that exceeded Config.Timeout. The executor
// reports these as a distinct outcome rather than a plain failure.
var ErrTimeout = errors.New("timed out")

// Command describes a single process invocation.
type Command struct {
	// Path is the executable to spawn.
	Path string
	// Args is the ordered argument vector, excluding argv[0]. Order is
	// significant and never normalized.
	Args []string
	// Stdin, when non-nil, is written to the process by a background
	// goroutine. nil leaves stdin unconnected; an empty non-nil slice
	// connects stdin and closes it immediately.
	Stdin []byte
	// Arg0 overrides the process-identity string (argv[0]) so a subject's
	// diagnostics become textually comparable to the reference's. Empty
	// keeps Path.
	Arg0 string
}

// CmdOutput is the captured result of one process execution.
type CmdOutput struct {
	// ExitCode is -1 when the process was killed by a signal.
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Runner spawns processes with controlled stdin delivery and either
// pipe-captured or file-redirected stdout.
type Runner struct {
	cfg Config
}

// NewRunner returns a Runner using the given configuration.
func NewRunner(cfg Config) *Runner {
	return &Runner{cfg: cfg}
}

// Run executes spec and captures stdout and stderr through pipes.
//
// When stdin bytes are supplied they are written by a dedicated
// goroutine while this goroutine drains output and waits for exit.
// Writing stdin synchronously first would deadlock once both the stdin
// and stdout pipe buffers fill.
func (r *Runner) Run(ctx context.Context, spec Command) (CmdOutput, error) {
	invariant.Precondition(spec.Path != "", "command path cannot be empty")

	ctx, cancel := r.bound(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	if spec.Arg0 != "" {
		cmd.Args[0] = spec.Arg0
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	exitCode, err := r.wait(ctx, cmd, spec)
	if err != nil {
		return CmdOutput{}, err
	}

	r.cfg.logf("[cmd ] %s %q -> exit %d, stdout %dB, stderr %dB",
		spec.Path, spec.Args, exitCode, stdout.Len(), stderr.Len())

	return CmdOutput{ExitCode: exitCode, Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, nil
}

// RunToFile executes spec with stdout redirected to a regular file
// descriptor instead of a pipe. Some implementations pick a different
// buffering or I/O strategy for regular files, so comparisons exercise
// both modes.
func (r *Runner) RunToFile(ctx context.Context, spec Command, outputPath string) (int, error) {
	invariant.Precondition(spec.Path != "", "command path cannot be empty")

	out, err := os.Create(outputPath)
	if err != nil {
		return 0, fmt.Errorf("create redirect target %s: %w", outputPath, err)
	}
	defer out.Close()

	ctx, cancel := r.bound(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	if spec.Arg0 != "" {
		cmd.Args[0] = spec.Arg0
	}

	var stderr bytes.Buffer
	cmd.Stdout = out
	cmd.Stderr = &stderr

	exitCode, err := r.wait(ctx, cmd, spec)
	if err != nil {
		return 0, err
	}

	r.cfg.logf("[cmd ] %s %q -> exit %d, stdout at %s, stderr %dB",
		spec.Path, spec.Args, exitCode, outputPath, stderr.Len())

	return exitCode, nil
}

// wait starts cmd, feeds stdin from a background goroutine, and waits
// for exit. The writer goroutine is always joined before returning so a
// write-side failure is never dropped.
func (r *Runner) wait(ctx context.Context, cmd *exec.Cmd, spec Command) (int, error) {
	var stdin io.WriteCloser
	if spec.Stdin != nil {
		pipe, err := cmd.StdinPipe()
		if err != nil {
			return 0, fmt.Errorf("stdin pipe for %s: %w", spec.Path, err)
		}
		stdin = pipe
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("spawn %s %q: %w", spec.Path, spec.Args, err)
	}

	var writer chan error
	if stdin != nil {
		writer = make(chan error, 1)
		payload := spec.Stdin
		go func() {
			_, werr := stdin.Write(payload)
			if cerr := stdin.Close(); werr == nil {
				werr = cerr
			}
			writer <- werr
		}()
	}

	waitErr := cmd.Wait()

	if writer != nil {
		// A subject that exits before draining stdin (--help, bad option)
		// legitimately breaks the pipe; anything else is an infrastructure
		// failure.
		if werr := <-writer; werr != nil && !errors.Is(werr, syscall.EPIPE) && !errors.Is(werr, os.ErrClosed) {
			return 0, fmt.Errorf("write stdin to %s: %w", spec.Path, werr)
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return 0, fmt.Errorf("%s %q: %w", spec.Path, spec.Args, ErrTimeout)
		}
		return 0, ctxErr
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return 0, fmt.Errorf("wait for %s %q: %w", spec.Path, spec.Args, waitErr)
		}
		// ExitCode is -1 for signal-killed processes, which is exactly the
		// "absent" representation CmdOutput documents.
		return exitErr.ExitCode(), nil
	}

	return 0, nil
}

func (r *Runner) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.cfg.Timeout)
}
