/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package testutil

import (
	"flag"
	"testing"

	"github.com/go-logr/logr"
	"go.uber.org/zap/zapcore"

	"github.com/cvet/fonline-sub001/pkg/logger"
)

// NewLogForTesting returns a process logger that only reports errors,
// unless the tests run in verbose mode.
func NewLogForTesting(name string) logr.Logger {
	log := logger.New(name)
	log.SetLevel(zapcore.ErrorLevel)
	if !flag.Parsed() {
		flag.Parse() // Needed to test if verbose flag was present.
	}
	if testing.Verbose() {
		log.SetLevel(zapcore.DebugLevel)
	}
	return log.Logger.WithValues("test", true)
}
