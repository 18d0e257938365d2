package harness

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMkfifoCreatesNamedPipe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.fifo")
	require.NoError(t, Mkfifo(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeNamedPipe)
}

func TestRunFifoDeliversChunksInOrder(t *testing.T) {
	fifo := filepath.Join(t.TempDir(), "order.fifo")
	require.NoError(t, Mkfifo(fifo))

	r := NewRunner(Config{})
	out, err := r.RunFifo(context.Background(),
		Command{Path: catPath(t), Args: []string{fifo}},
		fifo,
		[][]byte{[]byte("one\n"), []byte("two\n"), []byte("three\n")},
		10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 0, out.ExitCode)
	assert.Equal(t, "one\ntwo\nthree\n", string(out.Stdout))
}

func TestRunFifoSingleChunk(t *testing.T) {
	fifo := filepath.Join(t.TempDir(), "single.fifo")
	require.NoError(t, Mkfifo(fifo))

	r := NewRunner(Config{})
	out, err := r.RunFifo(context.Background(),
		Command{Path: catPath(t), Args: []string{"-n", fifo}},
		fifo,
		[][]byte{[]byte("only\n")},
		0)
	require.NoError(t, err)
	assert.Contains(t, string(out.Stdout), "only")
}

func TestRunFifoToFile(t *testing.T) {
	dir := t.TempDir()
	fifo := filepath.Join(dir, "redir.fifo")
	require.NoError(t, Mkfifo(fifo))
	target := filepath.Join(dir, "out.txt")

	r := NewRunner(Config{})
	code, err := r.RunFifoToFile(context.Background(),
		Command{Path: catPath(t), Args: []string{fifo}},
		fifo,
		[][]byte{[]byte("through a file\n")},
		0,
		target)
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "through a file\n", string(data))
}

// A reader that drains the pipe and then hangs past the deadline must
// surface as a timeout; joining the already-finished producer must not
// reopen the pipe and wait for a writer that will never come.
func TestRunFifoTimeoutAfterDrainReturns(t *testing.T) {
	fifo := filepath.Join(t.TempDir(), "hang.fifo")
	require.NoError(t, Mkfifo(fifo))

	r := NewRunner(Config{Timeout: 300 * time.Millisecond})
	done := make(chan error, 1)
	go func() {
		_, err := r.RunFifo(context.Background(),
			Command{Path: "/bin/sh", Args: []string{"-c", "cat " + fifo + "; exec sleep 60"}},
			fifo,
			[][]byte{[]byte("tiny\n")},
			0)
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("RunFifo did not return after the reader timed out")
	}
}

// Same shape through the file-redirected variant.
func TestRunFifoToFileTimeoutAfterDrainReturns(t *testing.T) {
	dir := t.TempDir()
	fifo := filepath.Join(dir, "hang-redir.fifo")
	require.NoError(t, Mkfifo(fifo))

	r := NewRunner(Config{Timeout: 300 * time.Millisecond})
	done := make(chan error, 1)
	go func() {
		_, err := r.RunFifoToFile(context.Background(),
			Command{Path: "/bin/sh", Args: []string{"-c", "cat " + fifo + "; exec sleep 60"}},
			fifo,
			[][]byte{[]byte("tiny\n")},
			0,
			filepath.Join(dir, "out.txt"))
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("RunFifoToFile did not return after the reader timed out")
	}
}

// The producer goroutine blocks opening the pipe until a reader shows
// up; a failed spawn must not leave it stuck.
func TestRunFifoSpawnFailureUnblocksProducer(t *testing.T) {
	dir := t.TempDir()
	fifo := filepath.Join(dir, "orphan.fifo")
	require.NoError(t, Mkfifo(fifo))

	r := NewRunner(Config{})
	done := make(chan struct{})
	go func() {
		_, err := r.RunFifo(context.Background(),
			Command{Path: filepath.Join(dir, "missing-binary"), Args: []string{fifo}},
			fifo,
			[][]byte{[]byte("never read\n")},
			0)
		assert.Error(t, err)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("RunFifo did not return after spawn failure")
	}
}
