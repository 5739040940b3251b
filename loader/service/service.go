package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"docqa/loader/internal"
)

// Service ties the folder watcher to the upload client: stable PDFs from
// the source directory are pushed to the QA service, then moved to the
// archive directory, or to the bad directory when rejected.
type Service struct {
	cfg      internal.Config
	watcher  *internal.Watcher
	uploader *internal.Uploader
	logger   *slog.Logger
}

func New(cfg internal.Config) *Service {
	return &Service{
		cfg:      cfg,
		watcher:  internal.NewWatcher(cfg.SourceDir, cfg.SettleTime),
		uploader: internal.NewUploader(cfg.ServiceURL, cfg.SessionID),
		logger:   slog.Default(),
	}
}

// Run blocks until the context is cancelled, then waits for in-flight
// work to drain (bounded by a five second grace period).
func (s *Service) Run(ctx context.Context) error {
	if err := createDirectories(s.cfg.SourceDir, s.cfg.ArchiveDir, s.cfg.BadDir); err != nil {
		return err
	}

	fileChan := make(chan string, 10)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(fileChan)
		s.watcher.Watch(ctx, fileChan)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.processFiles(ctx, fileChan)
	}()

	<-ctx.Done()
	s.logger.Info("shutting down loader")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("loader stopped")
	case <-time.After(5 * time.Second):
		s.logger.Warn("timeout waiting for loader goroutines")
	}
	return nil
}

func (s *Service) processFiles(ctx context.Context, fileChan <-chan string) {
	for path := range fileChan {
		accepted, err := s.uploader.Upload(ctx, path)
		switch {
		case err != nil && ctx.Err() != nil:
			// Shutdown mid-upload: leave the file in place for the next run.
			s.watcher.Done(path)
			return
		case err != nil:
			s.logger.Error("upload failed, keeping file for retry", "file", path, "error", err)
		case accepted:
			s.moveTo(path, s.cfg.ArchiveDir)
		default:
			s.moveTo(path, s.cfg.BadDir)
		}
		s.watcher.Done(path)
	}
}

// moveTo relocates a handled file into destDir/YYYY-MM-DD/, renaming on
// name conflicts.
func (s *Service) moveTo(path, destDir string) {
	dayDir := filepath.Join(destDir, time.Now().Format("2006-01-02"))
	if err := os.MkdirAll(dayDir, 0755); err != nil {
		s.logger.Error("failed to create directory", "dir", dayDir, "error", err)
		return
	}

	destPath := filepath.Join(dayDir, filepath.Base(path))
	for counter := 1; ; counter++ {
		if _, err := os.Stat(destPath); os.IsNotExist(err) {
			break
		}
		ext := filepath.Ext(path)
		base := strings.TrimSuffix(filepath.Base(path), ext)
		destPath = filepath.Join(dayDir, fmt.Sprintf("%s_%d%s", base, counter, ext))
	}

	if err := moveFile(path, destPath); err != nil {
		s.logger.Error("failed to move file", "from", path, "to", destPath, "error", err)
		return
	}
	s.logger.Info("file moved", "to", destPath)
}

// moveFile copies then removes, so it also works across filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return os.Remove(src)
}

func createDirectories(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
