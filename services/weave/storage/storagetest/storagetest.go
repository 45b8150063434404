// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storagetest holds a conformance suite run against every
// storage.SnapshotStore backend.
package storagetest

import (
	"context"
	"sync"
	"testing"

	"github.com/AleutianAI/weave/services/weave/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises the SnapshotStore contract. open must return a fresh, empty store.
func Run(t *testing.T, open func(t *testing.T) storage.SnapshotStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("load missing", func(t *testing.T) {
		s := open(t)
		_, err := s.Load(ctx, "nope")
		assert.ErrorIs(t, err, storage.ErrSnapshotNotFound)
	})

	t.Run("save then load", func(t *testing.T) {
		s := open(t)
		payload := []byte(`{"nodes":[],"edges":[]}`)
		require.NoError(t, s.Save(ctx, "main", payload))

		got, err := s.Load(ctx, "main")
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("save replaces", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Save(ctx, "main", []byte("v1")))
		require.NoError(t, s.Save(ctx, "main", []byte("v2")))

		got, err := s.Load(ctx, "main")
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), got)

		infos, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, infos, 1)
		assert.Equal(t, 2, infos[0].Size)
	})

	t.Run("list sorted", func(t *testing.T) {
		s := open(t)
		for _, name := range []string{"charlie", "alpha", "bravo"} {
			require.NoError(t, s.Save(ctx, name, []byte(name)))
		}
		infos, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, infos, 3)
		assert.Equal(t, "alpha", infos[0].Name)
		assert.Equal(t, "bravo", infos[1].Name)
		assert.Equal(t, "charlie", infos[2].Name)
		assert.False(t, infos[0].SavedAt.IsZero())
	})

	t.Run("delete", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.Save(ctx, "gone", []byte("x")))
		require.NoError(t, s.Delete(ctx, "gone"))
		require.NoError(t, s.Delete(ctx, "never-existed"))

		_, err := s.Load(ctx, "gone")
		assert.ErrorIs(t, err, storage.ErrSnapshotNotFound)
	})

	t.Run("empty name", func(t *testing.T) {
		s := open(t)
		assert.ErrorIs(t, s.Save(ctx, "", []byte("x")), storage.ErrInvalidName)
		_, err := s.Load(ctx, "")
		assert.ErrorIs(t, err, storage.ErrInvalidName)
	})

	t.Run("cancelled context", func(t *testing.T) {
		s := open(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, s.Save(cctx, "main", []byte("x")), context.Canceled)
	})

	t.Run("concurrent saves", func(t *testing.T) {
		s := open(t)
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.Save(ctx, "shared", []byte("payload")))
			}()
		}
		wg.Wait()
		got, err := s.Load(ctx, "shared")
		require.NoError(t, err)
		assert.Equal(t, []byte("payload"), got)
	})
}
