package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher analyzes images as they land in a directory, for captures that
// arrive from another machine instead of the local camera.
type Watcher struct {
	session *Session
	logger  *slog.Logger

	// settle is how long to wait after a create event before reading the
	// file, giving the writer time to finish.
	settle time.Duration
}

// NewWatcher builds a watcher around an analyze-capable session.
func NewWatcher(session *Session, logger *slog.Logger) *Watcher {
	return &Watcher{session: session, logger: logger, settle: 500 * time.Millisecond}
}

// Watch analyzes every new image created under dir until ctx is done. Our
// own artifact files are skipped so analysis output never feeds back in.
func (w *Watcher) Watch(ctx context.Context, dir string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.logger.Info("watching directory", "dir", dir)

	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != fsnotify.Create {
				continue
			}
			if !isImageFile(event.Name) || isArtifact(event.Name) {
				continue
			}

			select {
			case <-time.After(w.settle):
			case <-ctx.Done():
				return nil
			}
			if _, err := w.session.AnalyzeFile(event.Name); err != nil {
				w.logger.Error("analysis failed", "image", event.Name, "error", err)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)

		case <-ctx.Done():
			return nil
		}
	}
}

func isImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".tif":
		return true
	}
	return false
}

// isArtifact reports whether the file is one of our own outputs.
func isArtifact(path string) bool {
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	return strings.HasSuffix(stem, "_display")
}
