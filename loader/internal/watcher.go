package internal

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Watcher polls a source directory and reports PDF files once they have
// stopped changing. A file is announced on the channel only after it has
// been present and untouched for the settle time, so half-copied uploads
// are never picked up.
type Watcher struct {
	sourceDir string
	settle    time.Duration
	logger    *slog.Logger

	mu         sync.Mutex
	firstSeen  map[string]time.Time
	processing map[string]bool
}

func NewWatcher(sourceDir string, settle time.Duration) *Watcher {
	return &Watcher{
		sourceDir:  sourceDir,
		settle:     settle,
		logger:     slog.Default(),
		firstSeen:  make(map[string]time.Time),
		processing: make(map[string]bool),
	}
}

// Watch scans once per second until the context is cancelled, sending each
// stable PDF path exactly once. Call Done after the file has been handled
// to release it from tracking.
func (w *Watcher) Watch(ctx context.Context, fileChan chan<- string) {
	w.logger.Info("watching folder", "dir", w.sourceDir)

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("file watcher stopped")
			return
		case <-ticker.C:
			w.scan(ctx, fileChan)
		}
	}
}

func (w *Watcher) scan(ctx context.Context, fileChan chan<- string) {
	entries, err := os.ReadDir(w.sourceDir)
	if err != nil {
		w.logger.Error("failed to read source directory", "dir", w.sourceDir, "error", err)
		return
	}

	current := make(map[string]bool)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".pdf") {
			continue
		}

		path := filepath.Join(w.sourceDir, entry.Name())
		current[path] = true

		w.mu.Lock()
		if w.processing[path] {
			w.mu.Unlock()
			continue
		}
		seen, known := w.firstSeen[path]
		if !known {
			w.firstSeen[path] = time.Now()
			w.mu.Unlock()
			w.logger.Info("new file detected", "file", path)
			continue
		}
		ready := time.Since(seen) > w.settle
		if ready {
			w.processing[path] = true
		}
		w.mu.Unlock()

		if !ready {
			continue
		}

		select {
		case fileChan <- path:
		case <-ctx.Done():
			return
		}
	}

	// Forget files that disappeared from the directory.
	w.mu.Lock()
	for path := range w.firstSeen {
		if !current[path] && !w.processing[path] {
			delete(w.firstSeen, path)
		}
	}
	w.mu.Unlock()
}

// Done releases a file from tracking once it has been uploaded and moved
// away.
func (w *Watcher) Done(path string) {
	w.mu.Lock()
	delete(w.processing, path)
	delete(w.firstSeen, path)
	w.mu.Unlock()
}
