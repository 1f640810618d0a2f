/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package process

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessHandleComparable(t *testing.T) {
	t.Parallel()

	now := time.Now()
	h1 := NewProcessHandle(100, now)
	h2 := NewProcessHandle(100, now)
	h3 := NewProcessHandle(200, now)

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)

	m := map[ProcessHandle]string{
		h1: "first",
		h3: "second",
	}
	assert.Equal(t, "first", m[h2])
	assert.Equal(t, "second", m[h3])
}

func TestFindCurrentProcess(t *testing.T) {
	t.Parallel()

	this, err := This()
	require.NoError(t, err)
	require.Equal(t, Pid_t(os.Getpid()), this.Pid)
	require.False(t, this.IdentityTime.IsZero())

	require.NoError(t, FindProcess(this))
	require.NoError(t, FindProcess(NewProcessHandle(this.Pid, time.Time{})))
}

func TestFindProcessDetectsPidReuse(t *testing.T) {
	t.Parallel()

	this, err := This()
	require.NoError(t, err)

	reused := NewProcessHandle(this.Pid, this.IdentityTime.Add(-time.Hour))
	require.ErrorIs(t, FindProcess(reused), ErrorProcessNotFound)
}

func TestFindProcessInvalidPid(t *testing.T) {
	t.Parallel()

	require.Error(t, FindProcess(NewProcessHandle(UnknownPID, time.Time{})))
}

func TestWaitIsCancelledWithContext(t *testing.T) {
	t.Parallel()

	this, err := This()
	require.NoError(t, err)

	wp, err := FindWaitableProcess(this)
	require.NoError(t, err)
	wp.WaitPollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, wp.Wait(ctx), context.DeadlineExceeded)
}

func TestStringToPidT(t *testing.T) {
	t.Parallel()

	pid, err := StringToPidT("1234")
	require.NoError(t, err)
	require.Equal(t, Pid_t(1234), pid)

	_, err = StringToPidT("-5")
	require.Error(t, err)

	_, err = StringToPidT("abc")
	require.Error(t, err)
}
