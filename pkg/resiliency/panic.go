/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package resiliency

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
)

// Logs a panic value and associated call stack and returns it as an error.
// The returned error is permanent, so retry loops stop on it.
func MakePanicError(panicVal any, log logr.Logger) error {
	panicErr, _ := MakePanicErrorWithStack(panicVal, log)
	return panicErr
}

// Same as MakePanicError, but also returns the captured call stack.
func MakePanicErrorWithStack(panicVal any, log logr.Logger) (error, string) {
	if panicVal == nil {
		return nil, ""
	}

	panicErr, isError := panicVal.(error)
	if !isError {
		panicErr = fmt.Errorf("%v", panicVal)
	}
	var permanent *backoff.PermanentError
	if !errors.As(panicErr, &permanent) {
		panicErr = Permanent(panicErr)
	}

	stack := string(debug.Stack())
	log.Error(panicErr, "A goroutine ended prematurely due to panic", "stack", stack)

	return panicErr, stack
}

// Permanent wraps an error to signal that it should not be retried.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
