/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package testutil

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"
)

const testContextTimeoutEnvVar = "MOCKDAP_TEST_CONTEXT_TIMEOUT"

// GetTestContext returns a context that ends at the earlier of the test deadline and testTimeout.
// Setting MOCKDAP_TEST_CONTEXT_TIMEOUT (in minutes) overrides both, which helps when debugging tests.
func GetTestContext(t *testing.T, testTimeout time.Duration) (context.Context, context.CancelFunc) {
	timeoutStr, found := os.LookupEnv(testContextTimeoutEnvVar)
	if found {
		timeout, err := strconv.ParseUint(timeoutStr, 10, 16)
		if err != nil {
			panic(fmt.Sprintf("Context timeout value '%s' is invalid: %s", timeoutStr, err.Error()))
		}
		return context.WithTimeout(context.Background(), time.Duration(timeout)*time.Minute)
	}

	deadline, haveDeadline := t.Deadline()

	switch {
	case !haveDeadline && testTimeout == 0:
		return context.WithCancel(context.Background())

	case haveDeadline && testTimeout == 0:
		return context.WithDeadline(context.Background(), deadline)

	case !haveDeadline:
		return context.WithTimeout(context.Background(), testTimeout)

	default:
		// Take shorter of the two deadlines
		testDeadline := time.Now().Add(testTimeout)
		if testDeadline.Before(deadline) {
			deadline = testDeadline
		}
		return context.WithDeadline(context.Background(), deadline)
	}
}

// TestContext is GetTestContext with the cancellation registered as test cleanup.
func TestContext(t *testing.T, testTimeout time.Duration) context.Context {
	ctx, cancel := GetTestContext(t, testTimeout)
	t.Cleanup(cancel)
	return ctx
}
