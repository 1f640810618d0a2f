/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"context"
	"errors"
	"io"
	"net"
	"regexp"

	"github.com/go-logr/logr"
)

var (
	// ErrTransportClosed is returned when reading from or writing to a closed transport.
	ErrTransportClosed = errors.New("transport is closed")

	// ErrSessionClosed is delivered to requests still pending when the session ends.
	ErrSessionClosed = errors.New("session closed")

	// ErrRequestTimeout is delivered when a request sent to the client is not answered in time.
	ErrRequestTimeout = errors.New("timeout")
)

// ErrorDestination selects where an error response is routed.
type ErrorDestination int

const (
	ErrorUser      ErrorDestination = 1
	ErrorTelemetry ErrorDestination = 2
)

// Error codes sent by the protocol layer.
const (
	ErrCodeUnrecognizedRequest = 1014
	ErrCodeHandlerPanic        = 1104
	ErrCodeUnsupportedPaths    = 2018
)

// IsClosedError returns true if the error means the other end of the stream went away.
func IsClosedError(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, ErrTransportClosed)
}

var formatPIIRegexp = regexp.MustCompile(`{([^}]+)}`)

// FormatPII substitutes {name} placeholders in format with values from args.
// When excludePII is set only names starting with '_' are substituted; the others may carry
// personal information and keep their placeholder. Unknown names keep their placeholder too.
func FormatPII(format string, excludePII bool, args map[string]string) string {
	return formatPIIRegexp.ReplaceAllStringFunc(format, func(match string) string {
		paramName := match[1 : len(match)-1]
		if excludePII && paramName[0] != '_' {
			return match
		}
		if value, found := args[paramName]; found && value != "" {
			return value
		}
		return match
	})
}

// filterContextError filters out redundant context errors during shutdown.
// If the error is a context.Canceled or context.DeadlineExceeded and the
// context is already done, the error is logged at debug level and nil is returned.
// Otherwise, the original error is returned unchanged.
func filterContextError(err error, ctx context.Context, log logr.Logger) error {
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.V(1).Info("Filtering redundant context error", "error", err)
			return nil
		}

		if IsClosedError(err) {
			log.V(1).Info("Filtering stream closed error on context cancellation", "error", err)
			return nil
		}
	}

	return err
}
