/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package concurrency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const shortWait = 20 * time.Millisecond

func TestSetReleasesOneWaitOnly(t *testing.T) {
	t.Parallel()

	event := NewAutoResetEvent(false)
	require.False(t, event.WaitTimeout(context.Background(), shortWait))

	event.Set()
	event.Set()
	require.True(t, event.WaitTimeout(context.Background(), shortWait))
	require.False(t, event.WaitTimeout(context.Background(), shortWait), "repeated Set() calls coalesce")

	require.True(t, NewAutoResetEvent(true).WaitTimeout(context.Background(), shortWait))
}

func TestWaitChannelHandsEachSetToOneWaiter(t *testing.T) {
	t.Parallel()

	event := NewAutoResetEvent(false)
	const waiters = 3
	released := make(chan int, waiters)

	for i := 0; i < waiters; i++ {
		go func() {
			<-event.Wait()
			released <- i
		}()
	}

	seen := map[int]bool{}
	for i := 0; i < waiters; i++ {
		event.Set()
		select {
		case w := <-released:
			seen[w] = true
		case <-time.After(5 * time.Second):
			require.Fail(t, "no waiter was released")
		}
	}
	require.Len(t, seen, waiters)
}

func TestWaitTimeoutEndsWithContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.False(t, NewAutoResetEvent(false).WaitTimeout(ctx, 5*time.Second))
}

func TestWaitTimeoutSeesLateSet(t *testing.T) {
	t.Parallel()

	event := NewAutoResetEvent(false)
	time.AfterFunc(10*time.Millisecond, event.Set)
	require.True(t, event.WaitTimeout(context.Background(), 5*time.Second))
}

func TestFrozenEventReleasesEveryWait(t *testing.T) {
	t.Parallel()

	event := NewAutoResetEvent(false)
	event.SetAndFreeze()
	require.NotPanics(t, event.SetAndFreeze)

	for i := 0; i < 3; i++ {
		require.True(t, event.WaitTimeout(context.Background(), shortWait))
	}
	require.Panics(t, event.Set)
}
