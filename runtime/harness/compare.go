package harness

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/crypto/blake2b"

	"github.com/aledsdavies/catconform/core/invariant"
)

// Comparator drives the subject and the reference through identical
// invocations and demands byte-for-byte equal results. The reference is
// the oracle: expected wording is never hardcoded, it is diffed live.
type Comparator struct {
	runner  *Runner
	subject string
	oracle  string
	scratch string
}

// NewComparator wires a comparator over runner. scratchDir receives the
// temporary files used for file-redirected output capture.
func NewComparator(runner *Runner, subject, oracle, scratchDir string) *Comparator {
	invariant.NotNil(runner, "runner")
	invariant.Precondition(subject != "", "subject path cannot be empty")
	invariant.Precondition(oracle != "", "oracle path cannot be empty")
	return &Comparator{runner: runner, subject: subject, oracle: oracle, scratch: scratchDir}
}

// Subject returns the candidate executable path.
func (c *Comparator) Subject() string { return c.subject }

// Oracle returns the reference executable path.
func (c *Comparator) Oracle() string { return c.oracle }

// Runner exposes the underlying process runner for scripted checks.
func (c *Comparator) Runner() *Runner { return c.runner }

// SubjectCommand builds the subject invocation with its process identity
// spoofed to the oracle's, so diagnostic messages that embed argv[0]
// stay textually comparable.
func (c *Comparator) SubjectCommand(args []string, stdin []byte) Command {
	return Command{Path: c.subject, Args: args, Stdin: stdin, Arg0: c.oracle}
}

// Compare runs args/stdin against both executables, first with
// pipe-captured stdout (stdout, stderr and exit code must all match),
// then with file-redirected stdout (written bytes must match).
func (c *Comparator) Compare(ctx context.Context, args []string, stdin []byte) error {
	got, err := c.runner.Run(ctx, c.SubjectCommand(args, stdin))
	if err != nil {
		return err
	}
	want, err := c.runner.Run(ctx, Command{Path: c.oracle, Args: args, Stdin: stdin})
	if err != nil {
		return err
	}
	if err := diffOutputs(args, got, want); err != nil {
		return err
	}
	return c.compareRedirected(ctx, args, stdin)
}

func (c *Comparator) compareRedirected(ctx context.Context, args []string, stdin []byte) error {
	gotPath, wantPath, cleanup, err := c.redirectTargets()
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := c.runner.RunToFile(ctx, c.SubjectCommand(args, stdin), gotPath); err != nil {
		return err
	}
	if _, err := c.runner.RunToFile(ctx, Command{Path: c.oracle, Args: args, Stdin: stdin}, wantPath); err != nil {
		return err
	}
	return diffRedirected(args, gotPath, wantPath)
}

// CompareFifo is Compare through a named-pipe operand: both executables
// read the same payload chunks from fifoPath, in pipe mode and in
// file-redirected mode.
func (c *Comparator) CompareFifo(ctx context.Context, args []string, fifoPath string, chunks [][]byte, delay time.Duration) error {
	got, err := c.runner.RunFifo(ctx, c.SubjectCommand(args, nil), fifoPath, chunks, delay)
	if err != nil {
		return err
	}
	want, err := c.runner.RunFifo(ctx, Command{Path: c.oracle, Args: args}, fifoPath, chunks, delay)
	if err != nil {
		return err
	}
	if err := diffOutputs(args, got, want); err != nil {
		return err
	}

	gotPath, wantPath, cleanup, err := c.redirectTargets()
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := c.runner.RunFifoToFile(ctx, c.SubjectCommand(args, nil), fifoPath, chunks, delay, gotPath); err != nil {
		return err
	}
	if _, err := c.runner.RunFifoToFile(ctx, Command{Path: c.oracle, Args: args}, fifoPath, chunks, delay, wantPath); err != nil {
		return err
	}
	return diffRedirected(args, gotPath, wantPath)
}

func (c *Comparator) redirectTargets() (gotPath, wantPath string, cleanup func(), err error) {
	got, err := os.CreateTemp(c.scratch, "redirect-subject-")
	if err != nil {
		return "", "", nil, fmt.Errorf("create subject redirect file: %w", err)
	}
	gotPath = got.Name()
	_ = got.Close()

	want, err := os.CreateTemp(c.scratch, "redirect-reference-")
	if err != nil {
		_ = os.Remove(gotPath)
		return "", "", nil, fmt.Errorf("create reference redirect file: %w", err)
	}
	wantPath = want.Name()
	_ = want.Close()

	cleanup = func() {
		_ = os.Remove(gotPath)
		_ = os.Remove(wantPath)
	}
	return gotPath, wantPath, cleanup, nil
}

// diffOutputs checks exact equality of stdout, stderr and exit code. Any
// single inequality produces one report carrying both sides.
func diffOutputs(args []string, got, want CmdOutput) error {
	if bytes.Equal(got.Stdout, want.Stdout) &&
		bytes.Equal(got.Stderr, want.Stderr) &&
		got.ExitCode == want.ExitCode {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "output mismatch for args %q\n", args)
	fmt.Fprintf(&b, "exit: subject %d, reference %d\n", got.ExitCode, want.ExitCode)
	fmt.Fprintf(&b, "stdout: subject %dB (%s), reference %dB (%s)\n",
		len(got.Stdout), digest(got.Stdout), len(want.Stdout), digest(want.Stdout))
	fmt.Fprintf(&b, "stderr: subject %dB (%s), reference %dB (%s)\n",
		len(got.Stderr), digest(got.Stderr), len(want.Stderr), digest(want.Stderr))
	if d := cmp.Diff(render(want.Stdout), render(got.Stdout)); d != "" {
		fmt.Fprintf(&b, "stdout diff (-reference +subject):\n%s", d)
	}
	if d := cmp.Diff(render(want.Stderr), render(got.Stderr)); d != "" {
		fmt.Fprintf(&b, "stderr diff (-reference +subject):\n%s", d)
	}
	return errors.New(strings.TrimRight(b.String(), "\n"))
}

func diffRedirected(args []string, gotPath, wantPath string) error {
	gotBytes, err := os.ReadFile(gotPath)
	if err != nil {
		return fmt.Errorf("read subject redirect output: %w", err)
	}
	wantBytes, err := os.ReadFile(wantPath)
	if err != nil {
		return fmt.Errorf("read reference redirect output: %w", err)
	}
	if bytes.Equal(gotBytes, wantBytes) {
		return nil
	}
	return fmt.Errorf("file output mismatch for args %q (subject %dB %s, reference %dB %s)",
		args, len(gotBytes), digest(gotBytes), len(wantBytes), digest(wantBytes))
}

// renderLimit bounds the lossy textual rendering of captured bytes so a
// multi-megabyte binary divergence stays diagnosable.
const renderLimit = 2048

func render(data []byte) string {
	s := strings.ToValidUTF8(string(data), "�")
	if len(s) > renderLimit {
		return s[:renderLimit] + fmt.Sprintf("... (%d bytes truncated)", len(s)-renderLimit)
	}
	return s
}

func digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return "blake2b:" + hex.EncodeToString(sum[:8])
}
