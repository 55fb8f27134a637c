package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ritzau/pattern-detector/pkg/logging"
)

// ChangeType represents the type of file change detected
type ChangeType int

const (
	ChangeTypeModified ChangeType = iota // Written, created or renamed into place
	ChangeTypeRemoved
)

func (t ChangeType) String() string {
	if t == ChangeTypeRemoved {
		return "removed"
	}
	return "modified"
}

// ChangeEvent represents a batch of file system changes
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

// batchWindow groups the burst of events editors produce for one save
const batchWindow = 100 * time.Millisecond

// FileWatcher watches topology files for changes. It watches each file's parent
// directory so that editors replacing the file by rename are still noticed.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	files   map[string]bool // cleaned absolute paths
	events  chan ChangeEvent
	once    sync.Once
}

// NewFileWatcher creates a watcher for the given files
func NewFileWatcher(files ...string) (*FileWatcher, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to watch")
	}

	watched := make(map[string]bool, len(files))
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", f, err)
		}
		watched[filepath.Clean(abs)] = true
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher: watcher,
		files:   watched,
		events:  make(chan ChangeEvent, 100),
	}, nil
}

// Start begins watching; events stop and the channel closes when ctx is done
func (fw *FileWatcher) Start(ctx context.Context) error {
	dirs := make(map[string]bool)
	for f := range fw.files {
		dirs[filepath.Dir(f)] = true
	}
	for dir := range dirs {
		if err := fw.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	logging.Info("Watching topology", "files", len(fw.files), "directories", len(dirs))

	go fw.processEvents(ctx)
	return nil
}

func classify(op fsnotify.Op) (ChangeType, bool) {
	switch {
	case op.Has(fsnotify.Remove):
		return ChangeTypeRemoved, true
	case op.Has(fsnotify.Write), op.Has(fsnotify.Create), op.Has(fsnotify.Rename):
		return ChangeTypeModified, true
	}
	return ChangeTypeModified, false
}

// processEvents filters directory events down to the watched files and batches them
func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer fw.close()

	var (
		paths    []string
		seen     = make(map[string]bool)
		lastType = ChangeTypeModified
	)

	flushTimer := time.NewTimer(batchWindow)
	flushTimer.Stop()

	flush := func() {
		if len(paths) == 0 {
			return
		}
		select {
		case fw.events <- ChangeEvent{Type: lastType, Paths: paths, Timestamp: time.Now()}:
		default:
			logging.Warn("Change channel full, dropping event", "paths", paths)
		}
		paths = nil
		seen = make(map[string]bool)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !fw.files[filepath.Clean(event.Name)] {
				continue
			}
			changeType, relevant := classify(event.Op)
			if !relevant {
				continue
			}
			logging.Trace("Topology file event", "path", event.Name, "op", event.Op.String())

			lastType = changeType
			if !seen[event.Name] {
				seen[event.Name] = true
				paths = append(paths, event.Name)
			}
			flushTimer.Reset(batchWindow)

		case <-flushTimer.C:
			flush()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("Watcher error", "error", err)
		}
	}
}

func (fw *FileWatcher) close() {
	fw.once.Do(func() {
		_ = fw.watcher.Close()
		close(fw.events)
	})
}

// Events returns the channel of change events
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}
