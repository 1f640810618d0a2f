/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package resiliency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
)

type actionRecorder struct {
	m    sync.Mutex
	args []string
}

func (r *actionRecorder) record(arg string) {
	r.m.Lock()
	defer r.m.Unlock()
	r.args = append(r.args, arg)
}

func (r *actionRecorder) calls() []string {
	r.m.Lock()
	defer r.m.Unlock()
	return append([]string(nil), r.args...)
}

func TestExecutesActionAfterDelay(t *testing.T) {
	t.Parallel()

	const debounceDelay = 100 * time.Millisecond
	clk := clocktesting.NewFakeClock(time.Now())
	rec := &actionRecorder{}
	deb := NewDebounceLastActionWithClock(rec.record, debounceDelay, time.Second, clk)

	deb.Run(context.Background(), "a")
	clk.Step(debounceDelay - time.Millisecond)
	require.Empty(t, rec.calls())

	clk.Step(time.Millisecond)
	require.Equal(t, []string{"a"}, rec.calls())
}

func TestDebounceActionRapidInvocations(t *testing.T) {
	t.Parallel()

	const debounceDelay = 200 * time.Millisecond
	clk := clocktesting.NewFakeClock(time.Now())
	rec := &actionRecorder{}
	deb := NewDebounceLastActionWithClock(rec.record, debounceDelay, time.Second, clk)

	for _, arg := range []string{"a", "b", "c", "d", "e"} {
		deb.Run(context.Background(), arg)
		clk.Step(debounceDelay / 2)
	}
	require.Empty(t, rec.calls())

	clk.Step(debounceDelay)
	require.Equal(t, []string{"e"}, rec.calls(), "only the last call of a burst should run the action")
}

func TestDebounceActionRespectsMaxDelay(t *testing.T) {
	t.Parallel()

	const debounceDelay = 200 * time.Millisecond
	const maxDelay = 500 * time.Millisecond
	clk := clocktesting.NewFakeClock(time.Now())
	rec := &actionRecorder{}
	deb := NewDebounceLastActionWithClock(rec.record, debounceDelay, maxDelay, clk)

	for i := 0; i < 10; i++ {
		deb.Run(context.Background(), "x")
		clk.Step(100 * time.Millisecond)
	}

	calls := rec.calls()
	require.NotEmpty(t, calls)
	require.Less(t, len(calls), 10)
}

func TestDebounceActionIsReusable(t *testing.T) {
	t.Parallel()

	const debounceDelay = 150 * time.Millisecond
	clk := clocktesting.NewFakeClock(time.Now())
	rec := &actionRecorder{}
	deb := NewDebounceLastActionWithClock(rec.record, debounceDelay, time.Second, clk)

	deb.Run(context.Background(), "first")
	clk.Step(debounceDelay)
	deb.Run(context.Background(), "second")
	clk.Step(debounceDelay)

	require.Equal(t, []string{"first", "second"}, rec.calls())
}

func TestDebounceActionSkippedAfterCancellation(t *testing.T) {
	t.Parallel()

	const debounceDelay = 100 * time.Millisecond
	clk := clocktesting.NewFakeClock(time.Now())
	rec := &actionRecorder{}
	deb := NewDebounceLastActionWithClock(rec.record, debounceDelay, time.Second, clk)

	ctx, cancel := context.WithCancel(context.Background())
	deb.Run(ctx, "a")
	cancel()
	clk.Step(debounceDelay)

	require.Empty(t, rec.calls())
}

func TestDebounceWithoutClockUsesRealTime(t *testing.T) {
	t.Parallel()

	rec := &actionRecorder{}
	deb := NewDebounceLastActionWithClock(rec.record, 10*time.Millisecond, 50*time.Millisecond, nil)

	deb.Run(context.Background(), "a")
	deb.Run(context.Background(), "b")
	require.Eventually(t, func() bool { return len(rec.calls()) == 1 }, 5*time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"b"}, rec.calls())
}
