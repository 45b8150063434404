// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history provides bounded in-memory history buffers.
package history

// DefaultCapacity is used when a RingLog is created with a non-positive capacity.
const DefaultCapacity = 1000

// RingLog is a fixed-capacity circular log.
//
// # Description
//
// Retains the most recent N items. Push is O(1) and never fails; once the
// log holds Cap() items, each Push evicts the oldest one. Materialising
// the contents is O(size).
//
// # Thread Safety
//
// NOT safe for concurrent use; caller must synchronize.
type RingLog[T any] struct {
	items []T
	start int // index of the oldest item
	size  int
}

// NewRingLog creates a ring log holding at most capacity items.
//
// # Inputs
//
//   - capacity: Maximum number of retained items. Non-positive values
//     fall back to DefaultCapacity.
//
// # Outputs
//
//   - *RingLog[T]: Empty, ready-to-use log.
func NewRingLog[T any](capacity int) *RingLog[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RingLog[T]{items: make([]T, capacity)}
}

// Push appends an item, evicting the oldest item when the log is full.
func (r *RingLog[T]) Push(item T) {
	capacity := len(r.items)
	if r.size < capacity {
		r.items[(r.start+r.size)%capacity] = item
		r.size++
		return
	}
	r.items[r.start] = item
	r.start = (r.start + 1) % capacity
}

// Slice returns every retained item, oldest first.
//
// # Outputs
//
//   - []T: A copy of the contents in insertion order. Nil when empty.
func (r *RingLog[T]) Slice() []T {
	if r.size == 0 {
		return nil
	}
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.items[(r.start+i)%len(r.items)]
	}
	return out
}

// Latest returns the newest n items in insertion order (oldest of the n first).
//
// # Inputs
//
//   - n: Number of items wanted. Clamped to Len(); n <= 0 yields nil.
//
// # Outputs
//
//   - []T: Up to n most recent items, oldest first.
func (r *RingLog[T]) Latest(n int) []T {
	if n <= 0 || r.size == 0 {
		return nil
	}
	if n > r.size {
		n = r.size
	}
	out := make([]T, n)
	offset := r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.items[(r.start+offset+i)%len(r.items)]
	}
	return out
}

// Filter returns the items matching keep, oldest first.
func (r *RingLog[T]) Filter(keep func(item T) bool) []T {
	var out []T
	for i := 0; i < r.size; i++ {
		item := r.items[(r.start+i)%len(r.items)]
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// Len returns the number of retained items.
func (r *RingLog[T]) Len() int {
	return r.size
}

// Cap returns the fixed capacity.
func (r *RingLog[T]) Cap() int {
	return len(r.items)
}

// Clear empties the log. Capacity is unchanged and the backing array is reused.
func (r *RingLog[T]) Clear() {
	var zero T
	for i := range r.items {
		r.items[i] = zero // release references
	}
	r.start = 0
	r.size = 0
}
