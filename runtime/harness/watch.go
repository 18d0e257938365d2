package harness

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch blocks, rerunning the suite whenever the subject source file
// changes, until ctx is canceled. rerun is invoked once per settled
// change; its error is reported but never stops the loop.
func Watch(ctx context.Context, cfg Config, source string, rerun func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	source = filepath.Clean(source)
	if err := watcher.Add(filepath.Dir(source)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(source), err)
	}

	fmt.Fprintf(cfg.out(), "[watch] waiting for changes to %s\n", source)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != source {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Editors fire bursts of events per save; let them settle.
			time.Sleep(100 * time.Millisecond)
			drainEvents(watcher)

			fmt.Fprintf(cfg.out(), "[watch] %s changed, rerunning\n", source)
			if err := rerun(); err != nil {
				fmt.Fprintf(cfg.out(), "[watch] run failed: %v\n", err)
			}
			fmt.Fprintf(cfg.out(), "[watch] waiting for changes to %s\n", source)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cfg.out(), "[watch] error: %v\n", err)
		}
	}
}

func drainEvents(watcher *fsnotify.Watcher) {
	for {
		select {
		case <-watcher.Events:
		default:
			return
		}
	}
}
