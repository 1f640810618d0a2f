/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package resiliency

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryNotify is called after every failed attempt, with the delay before the next one.
type RetryNotify func(attemptErr error, next time.Duration)

// NewBoundedBackOff returns an exponential back-off policy that gives up after maxElapsed.
func NewBoundedBackOff(initial, maxElapsed time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if initial > 0 {
		b.InitialInterval = initial
	}
	b.MaxElapsedTime = maxElapsed
	return b
}

// Try calling factory function with the supplied back-off policy until it succeeds,
// the policy gives up, or the context is done.
func RetryGet[T any](ctx context.Context, b backoff.BackOff, factory func() (T, error)) (T, error) {
	return RetryGetNotify(ctx, b, factory, nil)
}

// RetryGetNotify is RetryGet that reports failed attempts to notify.
// When the context ends first, the returned error carries both the context error and the last attempt error.
func RetryGetNotify[T any](ctx context.Context, b backoff.BackOff, factory func() (T, error), notify RetryNotify) (T, error) {
	var lastAttemptErr error

	retval, err := backoff.RetryNotifyWithData(
		factory,
		backoff.WithContext(b, ctx),
		func(attemptErr error, next time.Duration) {
			lastAttemptErr = attemptErr
			if notify != nil {
				notify(attemptErr, next)
			}
		},
	)

	if err == nil {
		return retval, nil
	}
	if lastAttemptErr != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		return *new(T), errors.Join(lastAttemptErr, err)
	}
	return *new(T), err
}
