package ingest

import (
	"context"
	"log"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// CorpusWatcher monitors the corpus directory and enqueues new or modified
// rule books for ingestion. Deterministic document IDs make re-ingesting a
// rewritten file an in-place replacement.
type CorpusWatcher struct {
	watcher    *fsnotify.Watcher
	pipeline   *Pipeline
	extensions []string
}

// NewCorpusWatcher creates a watcher feeding the given pipeline.
func NewCorpusWatcher(pipeline *Pipeline, extensions []string) (*CorpusWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if len(extensions) == 0 {
		extensions = []string{".pdf", ".txt", ".md"}
	}
	return &CorpusWatcher{watcher: w, pipeline: pipeline, extensions: extensions}, nil
}

// Watch starts monitoring dir until ctx is cancelled.
func (w *CorpusWatcher) Watch(ctx context.Context, dir string) error {
	if err := w.watcher.Add(dir); err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !w.isWatchedExtension(event.Name) {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				log.Printf("CorpusWatcher: %s changed, scheduling ingestion", filepath.Base(event.Name))
				w.pipeline.EnqueueFile(event.Name)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				log.Printf("CorpusWatcher: watch error: %v", err)
			}
		}
	}()

	return nil
}

// Close stops the watcher.
func (w *CorpusWatcher) Close() error {
	return w.watcher.Close()
}

func (w *CorpusWatcher) isWatchedExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}
