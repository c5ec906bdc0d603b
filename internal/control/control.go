// Package control provides a file-based cancel signal for in-flight
// deliberations. An operator (or another process) touches a "cancel" file
// in the run directory to stop a deliberation cooperatively; the watcher
// cancels the deliberation context, which takes the same early-finalize
// path as a caller deadline.
package control

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// CancelFile is the filename watched for inside the run directory.
const CancelFile = "cancel"

// pollInterval is the fallback cadence when no watcher is available.
const pollInterval = 2 * time.Second

// Watcher cancels a context when the cancel file appears.
type Watcher struct {
	runDir  string
	cancel  context.CancelFunc
	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

// Watch derives a cancellable context from parent and starts watching
// runDir for the cancel file. The directory is created if needed. If the
// cancel file already exists the returned context is cancelled immediately.
// fsnotify failures degrade to polling rather than erroring out.
func Watch(parent context.Context, runDir string) (context.Context, *Watcher, error) {
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(parent)
	w := &Watcher{
		runDir: runDir,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	if w.cancelFileExists() {
		cancel()
		return ctx, w, nil
	}

	fw, err := fsnotify.NewWatcher()
	if err == nil {
		if err := fw.Add(runDir); err != nil {
			fw.Close()
			fw = nil
		}
	} else {
		fw = nil
	}
	w.watcher = fw

	if w.watcher != nil {
		go w.watchEvents(ctx)
	} else {
		// Polling fallback when inotify is unavailable.
		go w.poll(ctx)
	}

	return ctx, w, nil
}

// Stop releases the watcher. The derived context is left as-is unless the
// cancel file triggered first.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.done)
		if w.watcher != nil {
			w.watcher.Close()
		}
	})
}

func (w *Watcher) watchEvents(ctx context.Context) {
	for {
		select {
		case <-w.done:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) == CancelFile &&
				(event.Op&fsnotify.Create != 0 || event.Op&fsnotify.Write != 0) {
				w.cancel()
				return
			}
		case <-w.watcher.Errors:
			// Keep watching.
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.cancelFileExists() {
				w.cancel()
				return
			}
		}
	}
}

func (w *Watcher) cancelFileExists() bool {
	_, err := os.Stat(filepath.Join(w.runDir, CancelFile))
	return err == nil
}
