// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage defines the snapshot persistence contract for the
// knowledge graph.
//
// A snapshot is the opaque JSON document produced by graph.Store.ToJSON.
// Backends live in subpackages:
//
//	badger/ - embedded key-value store (github.com/dgraph-io/badger)
//	sqlite/ - single-file SQL database (modernc.org/sqlite, pure Go)
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrSnapshotNotFound is returned by Load when no snapshot has the given name.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ErrInvalidName is returned for an empty snapshot name.
var ErrInvalidName = errors.New("snapshot name must not be empty")

// SnapshotInfo describes a stored snapshot without its payload.
type SnapshotInfo struct {
	Name    string    `json:"name"`
	Size    int       `json:"size"`
	SavedAt time.Time `json:"saved_at"`
}

// SnapshotStore persists named graph snapshots.
//
// Thread Safety: Implementations must be safe for concurrent use.
type SnapshotStore interface {
	// Save writes data under name, replacing any previous snapshot.
	Save(ctx context.Context, name string, data []byte) error

	// Load returns the snapshot stored under name, or ErrSnapshotNotFound.
	Load(ctx context.Context, name string) ([]byte, error)

	// Delete removes the snapshot. Deleting a missing snapshot is not an error.
	Delete(ctx context.Context, name string) error

	// List returns every stored snapshot sorted by name.
	List(ctx context.Context) ([]SnapshotInfo, error)

	// Close releases the backend.
	Close() error
}

// CheckName validates a snapshot name and the context.
func CheckName(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if name == "" {
		return ErrInvalidName
	}
	return nil
}
