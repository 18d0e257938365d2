package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// selfComparator pits the system cat against itself; every comparison
// must pass.
func selfComparator(t *testing.T) *Comparator {
	t.Helper()
	cat := catPath(t)
	return NewComparator(NewRunner(Config{}), cat, cat, t.TempDir())
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestCompareIdenticalExecutables(t *testing.T) {
	c := selfComparator(t)
	input := filepath.Join(t.TempDir(), "input.txt")
	require.NoError(t, os.WriteFile(input, []byte("one\n\n\ntwo\n"), 0o644))

	assert.NoError(t, c.Compare(context.Background(), []string{input}, nil))
	assert.NoError(t, c.Compare(context.Background(), []string{"-n", input}, nil))
	assert.NoError(t, c.Compare(context.Background(), []string{"-"}, []byte("via stdin\n")))
	assert.NoError(t, c.Compare(context.Background(), []string{"-x"}, nil), "matching error paths must pass")
}

func TestCompareDetectsStdoutDivergence(t *testing.T) {
	dir := t.TempDir()
	subject := writeScript(t, dir, "subject.sh", "printf subject-output")
	oracle := writeScript(t, dir, "oracle.sh", "printf oracle-output")

	c := NewComparator(NewRunner(Config{}), subject, oracle, dir)
	err := c.Compare(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output mismatch")
	assert.Contains(t, err.Error(), "blake2b:")
}

func TestCompareDetectsExitCodeDivergence(t *testing.T) {
	dir := t.TempDir()
	subject := writeScript(t, dir, "subject.sh", "exit 1")
	oracle := writeScript(t, dir, "oracle.sh", "exit 0")

	c := NewComparator(NewRunner(Config{}), subject, oracle, dir)
	err := c.Compare(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit: subject 1, reference 0")
}

func TestCompareFifoIdenticalExecutables(t *testing.T) {
	c := selfComparator(t)
	fifo := filepath.Join(t.TempDir(), "cmp.fifo")
	require.NoError(t, Mkfifo(fifo))

	err := c.CompareFifo(context.Background(), []string{fifo}, fifo,
		[][]byte{[]byte("first\n"), []byte("second\n")}, 10*time.Millisecond)
	assert.NoError(t, err)
}

func TestSubjectCommandSpoofsIdentity(t *testing.T) {
	c := NewComparator(NewRunner(Config{}), "/path/to/subject", "/usr/bin/cat", t.TempDir())
	cmd := c.SubjectCommand([]string{"-n"}, []byte("x"))
	assert.Equal(t, "/path/to/subject", cmd.Path)
	assert.Equal(t, "/usr/bin/cat", cmd.Arg0)
	assert.Equal(t, []string{"-n"}, cmd.Args)
}
