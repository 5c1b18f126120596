package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ritzau/translation-network/pkg/logging"
	"github.com/ritzau/translation-network/pkg/records"
)

// ChangeType represents the type of file change detected
type ChangeType int

const (
	ChangeTypeRecords ChangeType = iota
	ChangeTypeConfig
)

func (t ChangeType) String() string {
	switch t {
	case ChangeTypeRecords:
		return "records"
	case ChangeTypeConfig:
		return "config"
	}
	return fmt.Sprintf("ChangeType(%d)", int(t))
}

// ChangeEvent represents a batch of file system changes
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

const batchWindow = 100 * time.Millisecond

// FileWatcher watches the record source and the config file. It watches the
// parent directories because editors often replace files rather than write
// them in place. A record directory is watched recursively.
type FileWatcher struct {
	watcher    *fsnotify.Watcher
	targets    map[string]ChangeType // cleaned absolute path -> change type
	recordDirs []string              // cleaned absolute record directories
	events     chan ChangeEvent
	once       sync.Once
}

// NewFileWatcher creates a watcher for the given paths. Either path may be
// empty. recordsPath may name a file or a directory.
func NewFileWatcher(recordsPath, configPath string) (*FileWatcher, error) {
	targets := make(map[string]ChangeType)
	var recordDirs []string
	for path, typ := range map[string]ChangeType{recordsPath: ChangeTypeRecords, configPath: ChangeTypeConfig} {
		if path == "" {
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", path, err)
		}
		abs = filepath.Clean(abs)
		if info, err := os.Stat(abs); err == nil && info.IsDir() && typ == ChangeTypeRecords {
			recordDirs = append(recordDirs, abs)
			continue
		}
		targets[abs] = typ
	}
	if len(targets) == 0 && len(recordDirs) == 0 {
		return nil, fmt.Errorf("nothing to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher:    watcher,
		targets:    targets,
		recordDirs: recordDirs,
		events:     make(chan ChangeEvent, 100),
	}, nil
}

// Start begins watching for file changes
func (fw *FileWatcher) Start(ctx context.Context) error {
	dirs := make(map[string]bool)
	for path := range fw.targets {
		dirs[filepath.Dir(path)] = true
	}
	for _, root := range fw.recordDirs {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				dirs[path] = true
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", root, err)
		}
	}
	for dir := range dirs {
		if err := fw.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	logging.Info("started watching files", "files", len(fw.targets), "directories", len(dirs))
	go fw.processEvents(ctx)
	return nil
}

// classify maps an fsnotify event to a change type.
func (fw *FileWatcher) classify(event fsnotify.Event) (ChangeType, bool) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return 0, false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return 0, false
	}
	abs = filepath.Clean(abs)
	if typ, ok := fw.targets[abs]; ok {
		return typ, true
	}
	if records.IsRecordFile(abs) {
		for _, dir := range fw.recordDirs {
			if strings.HasPrefix(abs, dir+string(filepath.Separator)) {
				return ChangeTypeRecords, true
			}
		}
	}
	return 0, false
}

// processEvents processes file system events and batches them by type
func (fw *FileWatcher) processEvents(ctx context.Context) {
	batched := make(map[ChangeType][]string)

	flushTimer := time.NewTimer(batchWindow)
	flushTimer.Stop()

	flush := func() {
		for _, typ := range []ChangeType{ChangeTypeConfig, ChangeTypeRecords} {
			if paths := batched[typ]; len(paths) > 0 {
				fw.events <- ChangeEvent{Type: typ, Paths: paths, Timestamp: time.Now()}
			}
		}
		clear(batched)
	}

	defer fw.shutdown()
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			typ, relevant := fw.classify(event)
			if !relevant {
				continue
			}
			logging.Trace("file changed", "path", event.Name, "op", event.Op.String(), "type", typ.String())
			batched[typ] = append(batched[typ], event.Name)
			flushTimer.Reset(batchWindow)

		case <-flushTimer.C:
			flush()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

// Events returns the channel of change events
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}

// Stop stops the file watcher. Events is closed once processing ends.
func (fw *FileWatcher) Stop() error {
	return fw.watcher.Close()
}

func (fw *FileWatcher) shutdown() {
	fw.once.Do(func() {
		fw.watcher.Close()
		close(fw.events)
	})
}
