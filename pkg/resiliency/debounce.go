/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package resiliency

import (
	"context"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// DebounceLastAction calls an "action" (function with no return value) after the specified delay,
// but only if no new calls arrive in the meantime. Run does not wait for the action to complete.
// If new calls arrive, the action will be delayed further, but no more than maxDelay
// from the first call of the burst. The action receives the argument of the last call.
type DebounceLastAction[T any] struct {
	delay     time.Duration
	maxDelay  time.Duration
	clock     clock.WithDelayedExecution
	timer     clock.Timer
	threshold time.Time
	pending   bool
	timerID   uint64
	lastArg   T
	m         sync.Mutex
	action    func(T)
}

// NewDebounceLastActionWithClock creates a debouncer driven by clk; a nil clk means the real clock.
func NewDebounceLastActionWithClock[T any](action func(T), delay, maxDelay time.Duration, clk clock.WithDelayedExecution) *DebounceLastAction[T] {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if maxDelay < delay {
		maxDelay = delay
	}

	return &DebounceLastAction[T]{
		delay:    delay,
		maxDelay: maxDelay,
		clock:    clk,
		action:   action,
	}
}

func (dl *DebounceLastAction[T]) Run(ctx context.Context, arg T) {
	dl.m.Lock()
	defer dl.m.Unlock()

	if ctx.Err() != nil {
		return
	}

	dl.lastArg = arg

	now := dl.clock.Now()
	next := dl.delay

	if !dl.pending {
		// New burst
		dl.pending = true
		dl.threshold = now.Add(dl.maxDelay)
	} else {
		dl.timer.Stop()
		if remaining := dl.threshold.Sub(now); remaining < next {
			next = max(remaining, 0)
		}
	}

	dl.timerID++
	timerID := dl.timerID
	dl.timer = dl.clock.AfterFunc(next, func() { dl.fire(ctx, timerID) })
}

func (dl *DebounceLastAction[T]) fire(ctx context.Context, timerID uint64) {
	dl.m.Lock()
	if !dl.pending || timerID != dl.timerID {
		dl.m.Unlock()
		return
	}
	arg := dl.lastArg
	dl.pending = false
	dl.threshold = time.Time{}
	dl.lastArg = *new(T)
	dl.m.Unlock()

	if ctx.Err() != nil {
		return
	}
	dl.action(arg)
}
