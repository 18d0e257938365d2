package harness

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Mkfifo creates a named pipe at path. The pipe must exist before either
// side is spawned.
func Mkfifo(path string) error {
	if err := unix.Mkfifo(path, 0o644); err != nil {
		return fmt.Errorf("mkfifo %s: %w", path, err)
	}
	return nil
}

// feedFifo starts the background producer: it opens the pipe for
// writing (blocking until a reader appears), writes each chunk in
// order, and sleeps delay between chunks when more than one was
// supplied. The returned channel yields exactly one error value.
func feedFifo(path string, chunks [][]byte, delay time.Duration) <-chan error {
	done := make(chan error, 1)
	go func() {
		f, err := os.OpenFile(path, os.O_WRONLY, 0)
		if err != nil {
			done <- fmt.Errorf("open fifo %s for writing: %w", path, err)
			return
		}
		for i, chunk := range chunks {
			if i > 0 && delay > 0 {
				time.Sleep(delay)
			}
			if _, err := f.Write(chunk); err != nil {
				_ = f.Close()
				done <- fmt.Errorf("write fifo %s: %w", path, err)
				return
			}
		}
		if err := f.Close(); err != nil {
			done <- fmt.Errorf("close fifo %s: %w", path, err)
			return
		}
		done <- nil
	}()
	return done
}

// RunFifo runs spec (whose argv points at fifoPath) while a background
// producer streams chunks into the pipe. The producer is always joined
// after the reader exits; a write-side error is never dropped.
//
// Only the final byte sequence is guaranteed: captured output must equal
// the concatenation of chunks in write order, not any particular
// interleaving.
func (r *Runner) RunFifo(ctx context.Context, spec Command, fifoPath string, chunks [][]byte, delay time.Duration) (CmdOutput, error) {
	producer := feedFifo(fifoPath, chunks, delay)
	out, runErr := r.Run(ctx, spec)
	writeErr := joinProducer(producer, fifoPath, runErr)
	if runErr != nil {
		return out, runErr
	}
	if writeErr != nil {
		return out, writeErr
	}
	return out, nil
}

// RunFifoToFile is the file-redirected variant of RunFifo.
func (r *Runner) RunFifoToFile(ctx context.Context, spec Command, fifoPath string, chunks [][]byte, delay time.Duration, outputPath string) (int, error) {
	producer := feedFifo(fifoPath, chunks, delay)
	exitCode, runErr := r.RunToFile(ctx, spec, outputPath)
	writeErr := joinProducer(producer, fifoPath, runErr)
	if runErr != nil {
		return exitCode, runErr
	}
	if writeErr != nil {
		return exitCode, writeErr
	}
	return exitCode, nil
}

// joinProducer collects the producer's result. When the reader run
// failed and the producer is still going it may be stuck in open(2)
// with no reader, or writing with none left; draining the pipe resolves
// both before the blocking join. A producer that already finished (the
// reader consumed everything before timing out) needs no drain.
func joinProducer(producer <-chan error, fifoPath string, runErr error) error {
	if runErr != nil {
		select {
		case writeErr := <-producer:
			return writeErr
		default:
			drainFifo(fifoPath)
		}
	}
	return <-producer
}

// drainFifo opens the read side and discards everything, unblocking a
// producer whose reader vanished. O_NONBLOCK makes the open succeed
// even when the producer finished in the meantime; reading a FIFO with
// no writer then yields immediate EOF instead of blocking.
func drainFifo(path string) {
	f, err := os.OpenFile(path, os.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return
	}
	_, _ = io.Copy(io.Discard, f)
	_ = f.Close()
}
