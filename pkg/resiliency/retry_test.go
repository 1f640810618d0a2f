/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package resiliency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"
)

func TestRetryGetSucceedsAfterFailures(t *testing.T) {
	t.Parallel()

	attempts := 0
	val, err := RetryGet(context.Background(), backoff.NewConstantBackOff(time.Millisecond), func() (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("not yet")
		}
		return 42, nil
	})

	require.NoError(t, err)
	require.Equal(t, 42, val)
	require.Equal(t, 3, attempts)
}

func TestRetryGetStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	attempts := 0
	_, err := RetryGet(context.Background(), backoff.NewConstantBackOff(time.Millisecond), func() (int, error) {
		attempts++
		return 0, Permanent(errors.New("broken"))
	})

	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestRetryGetReportsLastAttemptOnTimeout(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	attemptErr := errors.New("still failing")
	_, err := RetryGet(ctx, backoff.NewConstantBackOff(5*time.Millisecond), func() (int, error) {
		return 0, attemptErr
	})

	require.ErrorIs(t, err, attemptErr)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryGetNotifyReportsAttempts(t *testing.T) {
	t.Parallel()

	var notified []error
	attempts := 0
	val, err := RetryGetNotify(context.Background(), NewBoundedBackOff(time.Millisecond, time.Second), func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("address in use")
		}
		return "listening", nil
	}, func(attemptErr error, next time.Duration) {
		notified = append(notified, attemptErr)
		require.Positive(t, next)
	})

	require.NoError(t, err)
	require.Equal(t, "listening", val)
	require.Len(t, notified, 1)
	require.EqualError(t, notified[0], "address in use")
}

func TestBoundedBackOffGivesUp(t *testing.T) {
	t.Parallel()

	attemptErr := errors.New("never works")
	start := time.Now()
	_, err := RetryGet(context.Background(), NewBoundedBackOff(time.Millisecond, 30*time.Millisecond), func() (int, error) {
		return 0, attemptErr
	})

	require.ErrorIs(t, err, attemptErr)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestMakePanicError(t *testing.T) {
	t.Parallel()

	require.NoError(t, MakePanicError(nil, logr.Discard()))

	err, stack := MakePanicErrorWithStack("boom", logr.Discard())
	require.EqualError(t, err, "boom")
	require.NotEmpty(t, stack)

	var permanent *backoff.PermanentError
	require.True(t, errors.As(err, &permanent))
}
