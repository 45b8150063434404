// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileChange represents a file system change event.
type FileChange struct {
	// Path is the absolute path to the changed file.
	Path string

	// Op is the type of change.
	Op FileOp

	// Time is when the change was detected.
	Time time.Time
}

// FileOp represents the type of file operation.
type FileOp int

const (
	// FileOpCreate indicates a file was created.
	FileOpCreate FileOp = iota

	// FileOpWrite indicates a file was modified.
	FileOpWrite

	// FileOpRemove indicates a file was deleted.
	FileOpRemove

	// FileOpRename indicates a file was renamed away.
	FileOpRename
)

// String returns the string representation of the operation.
func (op FileOp) String() string {
	switch op {
	case FileOpCreate:
		return "create"
	case FileOpWrite:
		return "write"
	case FileOpRemove:
		return "remove"
	case FileOpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// FileChangeHandler is called when debounced changes are ready.
type FileChangeHandler func(ctx context.Context, changes []FileChange)

// FileWatcher watches a documentation tree for file changes with debouncing.
//
// # Description
//
// Watches a directory recursively and batches changes using a debounce
// window, so an editor saving a note several times in quick succession
// produces one change. Within a batch only the latest change per path is
// kept.
//
// # Thread Safety
//
// Safe for concurrent use. The handler is called from a single goroutine.
type FileWatcher struct {
	root       string
	watcher    *fsnotify.Watcher
	debounce   time.Duration
	extensions []string
	logger     *slog.Logger

	changes  chan FileChange
	done     chan struct{}
	stopOnce sync.Once
	dropped  atomic.Int64

	mu            sync.RWMutex
	handler       FileChangeHandler
	ignorePattern []string
	watching      bool
}

// FileWatcherOptions configures the FileWatcher.
type FileWatcherOptions struct {
	// DebounceWindow is how long to wait for more changes before triggering.
	// Default: 100ms
	DebounceWindow time.Duration

	// IgnorePatterns are glob patterns for files/directories to ignore.
	// Default: [".git", "node_modules", ".obsidian", "*.swp", "*.tmp"]
	IgnorePatterns []string

	// Extensions restricts events to files with these extensions.
	// Empty means every file. Directories are always watched.
	Extensions []string

	// BufferSize is the size of the change buffer channel.
	// Default: 1000
	BufferSize int

	// Logger receives watcher errors. Nil uses slog.Default().
	Logger *slog.Logger
}

// DefaultFileWatcherOptions returns sensible defaults.
func DefaultFileWatcherOptions() FileWatcherOptions {
	return FileWatcherOptions{
		DebounceWindow: 100 * time.Millisecond,
		IgnorePatterns: []string{".git", "node_modules", ".obsidian", "*.swp", "*.tmp", "*~"},
		BufferSize:     1000,
	}
}

// NewFileWatcher creates a new file watcher for the given root directory.
//
// # Inputs
//
//   - root: Path to the directory to watch.
//   - handler: Function called with batched changes after debounce.
//   - opts: Optional configuration (nil uses defaults).
//
// # Outputs
//
//   - *FileWatcher: Ready-to-use watcher (call Start to begin watching).
//   - error: Non-nil if the watcher could not be created.
//
// # Example
//
//	watcher, err := graph.NewFileWatcher("/docs", func(ctx context.Context, changes []graph.FileChange) {
//	    for _, c := range changes {
//	        engine.Trigger(ctx, rules.TriggerFileChange, rules.Input{FilePath: c.Path})
//	    }
//	}, nil)
//	if err != nil {
//	    return err
//	}
//	defer watcher.Stop()
func NewFileWatcher(root string, handler FileChangeHandler, opts *FileWatcherOptions) (*FileWatcher, error) {
	if opts == nil {
		defaults := DefaultFileWatcherOptions()
		opts = &defaults
	}
	debounce := opts.DebounceWindow
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	bufferSize := opts.BufferSize
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &FileWatcher{
		root:          root,
		watcher:       watcher,
		handler:       handler,
		debounce:      debounce,
		extensions:    opts.Extensions,
		ignorePattern: append([]string(nil), opts.IgnorePatterns...),
		logger:        logger.With(slog.String("component", "file_watcher"), slog.String("root", root)),
		changes:       make(chan FileChange, bufferSize),
		done:          make(chan struct{}),
	}, nil
}

// Start begins watching for file changes.
//
// # Description
//
// Recursively watches the root directory and all subdirectories. Spawns
// an event processor and a debouncer; both exit when Stop is called or
// ctx is cancelled. Calling Start on a running watcher is a no-op.
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.addRecursive(w.root); err != nil {
		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
		return err
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)

	return nil
}

// Stop stops the file watcher.
func (w *FileWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching returns true if the watcher is currently active.
func (w *FileWatcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

// Dropped returns how many events were discarded because the buffer was full.
func (w *FileWatcher) Dropped() int64 {
	return w.dropped.Load()
}

// addRecursive adds a directory and all subdirectories to the watch list.
func (w *FileWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.shouldIgnore(path) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// shouldIgnore checks if a path matches any ignore pattern.
func (w *FileWatcher) shouldIgnore(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	base := filepath.Base(path)
	for _, pattern := range w.ignorePattern {
		if base == pattern {
			return true
		}
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
		// Directory components, e.g. ".git" anywhere in the path
		if strings.Contains(path, string(filepath.Separator)+pattern+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// wantsFile reports whether a file event should be forwarded.
func (w *FileWatcher) wantsFile(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range w.extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

// processEvents converts fsnotify events to FileChange and sends to channel.
func (w *FileWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.shouldIgnore(event.Name) {
				continue
			}

			// New directories join the watch list and are not reported.
			if event.Has(fsnotify.Create) && isDir(event.Name) {
				if err := w.addRecursive(event.Name); err != nil {
					w.logger.Warn("failed to watch new directory",
						slog.String("path", event.Name),
						slog.String("error", err.Error()),
					)
				}
				continue
			}
			if !w.wantsFile(event.Name) {
				continue
			}
			if event.Op == fsnotify.Chmod {
				continue
			}

			change := FileChange{
				Path: event.Name,
				Time: time.Now(),
				Op:   convertOp(event.Op),
			}

			select {
			case w.changes <- change:
			default:
				w.dropped.Add(1)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", slog.String("error", err.Error()))
		}
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// convertOp converts fsnotify.Op to FileOp.
func convertOp(op fsnotify.Op) FileOp {
	switch {
	case op.Has(fsnotify.Create):
		return FileOpCreate
	case op.Has(fsnotify.Write):
		return FileOpWrite
	case op.Has(fsnotify.Remove):
		return FileOpRemove
	case op.Has(fsnotify.Rename):
		return FileOpRename
	default:
		return FileOpWrite
	}
}

// debounceLoop batches changes and calls handler after debounce window.
func (w *FileWatcher) debounceLoop(ctx context.Context) {
	var batch []FileChange
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) > 0 {
			deduped := deduplicateChanges(batch)
			w.mu.RLock()
			handler := w.handler
			w.mu.RUnlock()
			if len(deduped) > 0 && handler != nil {
				handler(ctx, deduped)
			}
			batch = batch[:0]
		}
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.done:
			flush()
			return
		case change := <-w.changes:
			batch = append(batch, change)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			flush()
		}
	}
}

// deduplicateChanges keeps the most recent change per path, at the
// position the path was first seen.
func deduplicateChanges(changes []FileChange) []FileChange {
	seen := make(map[string]int)
	result := make([]FileChange, 0, len(changes))

	for _, change := range changes {
		if idx, exists := seen[change.Path]; exists {
			result[idx] = change
		} else {
			seen[change.Path] = len(result)
			result = append(result, change)
		}
	}
	return result
}

// AddPattern adds an ignore pattern.
func (w *FileWatcher) AddPattern(pattern string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ignorePattern = append(w.ignorePattern, pattern)
}

// SetHandler changes the change handler.
func (w *FileWatcher) SetHandler(handler FileChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handler = handler
}
