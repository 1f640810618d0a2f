/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import "sync"

// DefaultHandleStart is the first handle returned by a new handle table.
const DefaultHandleStart = 1000

// Handles maps integer handles, used as variable references on the wire, to values.
// Handles are never reused until Reset is called.
type Handles[T any] struct {
	mu     sync.Mutex
	start  int
	next   int
	values map[int]T
}

func NewHandles[T any]() *Handles[T] {
	return NewHandlesFrom[T](DefaultHandleStart)
}

func NewHandlesFrom[T any](start int) *Handles[T] {
	return &Handles[T]{
		start:  start,
		next:   start,
		values: make(map[int]T),
	}
}

// Reset drops all values and restarts numbering.
func (h *Handles[T]) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next = h.start
	h.values = make(map[int]T)
}

// Create stores a value and returns its new handle.
func (h *Handles[T]) Create(value T) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	handle := h.next
	h.next++
	h.values[handle] = value
	return handle
}

// Get returns the value stored for handle, or dflt if there is none.
func (h *Handles[T]) Get(handle int, dflt T) T {
	h.mu.Lock()
	defer h.mu.Unlock()
	if value, found := h.values[handle]; found {
		return value
	}
	return dflt
}

// Lookup returns the value stored for handle and whether it exists.
func (h *Handles[T]) Lookup(handle int) (T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	value, found := h.values[handle]
	return value, found
}
