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
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileOp_String(t *testing.T) {
	tests := []struct {
		op       FileOp
		expected string
	}{
		{FileOpCreate, "create"},
		{FileOpWrite, "write"},
		{FileOpRemove, "remove"},
		{FileOpRename, "rename"},
		{FileOp(99), "unknown"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, tc.op.String())
	}
}

func TestConvertOp(t *testing.T) {
	assert.Equal(t, FileOpCreate, convertOp(fsnotify.Create))
	assert.Equal(t, FileOpWrite, convertOp(fsnotify.Write))
	assert.Equal(t, FileOpRemove, convertOp(fsnotify.Remove))
	assert.Equal(t, FileOpRename, convertOp(fsnotify.Rename))
	assert.Equal(t, FileOpCreate, convertOp(fsnotify.Create|fsnotify.Write))
}

func TestDeduplicateChanges(t *testing.T) {
	now := time.Now()
	changes := []FileChange{
		{Path: "/a.md", Op: FileOpCreate, Time: now},
		{Path: "/b.md", Op: FileOpWrite, Time: now},
		{Path: "/a.md", Op: FileOpWrite, Time: now.Add(time.Millisecond)},
		{Path: "/a.md", Op: FileOpRemove, Time: now.Add(2 * time.Millisecond)},
	}

	got := deduplicateChanges(changes)
	require.Len(t, got, 2)
	assert.Equal(t, "/a.md", got[0].Path)
	assert.Equal(t, FileOpRemove, got[0].Op)
	assert.Equal(t, "/b.md", got[1].Path)
}

func TestFileWatcher_ShouldIgnore(t *testing.T) {
	w, err := NewFileWatcher(t.TempDir(), nil, nil)
	require.NoError(t, err)
	defer w.Stop()

	sep := string(filepath.Separator)
	assert.True(t, w.shouldIgnore(sep+"docs"+sep+".git"))
	assert.True(t, w.shouldIgnore(sep+"docs"+sep+".git"+sep+"HEAD"))
	assert.True(t, w.shouldIgnore(sep+"docs"+sep+"note.md.swp"))
	assert.False(t, w.shouldIgnore(sep+"docs"+sep+"note.md"))

	w.AddPattern("drafts")
	assert.True(t, w.shouldIgnore(sep+"docs"+sep+"drafts"+sep+"x.md"))
}

func TestFileWatcher_Extensions(t *testing.T) {
	opts := DefaultFileWatcherOptions()
	opts.Extensions = []string{".md", ".MDX"}
	w, err := NewFileWatcher(t.TempDir(), nil, &opts)
	require.NoError(t, err)
	defer w.Stop()

	assert.True(t, w.wantsFile("/docs/a.md"))
	assert.True(t, w.wantsFile("/docs/A.MD"))
	assert.True(t, w.wantsFile("/docs/b.mdx"))
	assert.False(t, w.wantsFile("/docs/c.txt"))
}

func TestFileWatcher_DebouncedBatch(t *testing.T) {
	root := t.TempDir()

	var mu sync.Mutex
	var batches [][]FileChange
	handler := func(_ context.Context, changes []FileChange) {
		mu.Lock()
		defer mu.Unlock()
		batches = append(batches, changes)
	}

	opts := DefaultFileWatcherOptions()
	opts.DebounceWindow = 50 * time.Millisecond
	opts.Extensions = []string{".md"}
	w, err := NewFileWatcher(root, handler, &opts)
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	require.True(t, w.IsWatching())
	require.NoError(t, w.Start(ctx), "second start is a no-op")

	path := filepath.Join(root, "note.md")
	require.NoError(t, os.WriteFile(path, []byte("one"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("two"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ignored.txt"), []byte("x"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(batches) > 0
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	seen := make(map[string]int)
	for _, batch := range batches {
		for _, c := range batch {
			seen[c.Path]++
		}
	}
	assert.Contains(t, seen, path)
	assert.NotContains(t, seen, filepath.Join(root, "ignored.txt"))

	w.Stop()
	assert.False(t, w.IsWatching())
}
