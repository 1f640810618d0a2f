/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package concurrency

import (
	"context"
	"sync"
	"time"
)

// AutoResetEvent wakes up one waiter per Set() call. Once frozen, the event stays set
// and releases every current and future waiter.
type AutoResetEvent struct {
	channel chan struct{}
	lock    sync.Mutex
	frozen  bool
}

func NewAutoResetEvent(initialState bool) *AutoResetEvent {
	retval := &AutoResetEvent{
		channel: make(chan struct{}, 1),
	}
	if initialState {
		retval.Set()
	}
	return retval
}

// Wait returns a channel that delivers a value when the event is set.
// Receiving from the channel resets the event (unless it is frozen).
func (e *AutoResetEvent) Wait() <-chan struct{} {
	return e.channel
}

// WaitTimeout blocks until the event is set, the timeout elapses, or the context is done.
// Returns true if the event was set.
func (e *AutoResetEvent) WaitTimeout(ctx context.Context, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-e.channel:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func (e *AutoResetEvent) Set() {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.frozen {
		panic("Set() called on frozen event")
	}

	// Non-blocking for caller
	select {
	case e.channel <- struct{}{}:
	default:
	}
}

// SetAndFreeze makes the event set forever. Calling Set() afterwards panics.
func (e *AutoResetEvent) SetAndFreeze() {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.frozen {
		return
	}
	e.frozen = true
	close(e.channel)
}
