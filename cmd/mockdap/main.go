/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cvet/fonline-sub001/internal/commands"
	"github.com/cvet/fonline-sub001/pkg/logger"
	"github.com/cvet/fonline-sub001/pkg/resiliency"
	"github.com/cvet/fonline-sub001/pkg/telemetry"
)

const (
	errCommandError = 1
	errSetup        = 2
	errPanic        = 3
)

func main() {
	// The environment file may configure the diagnostics log, so it is loaded before the logger is created
	envErr := commands.LoadEnvFile(commands.DefaultEnvFile)

	log := logger.New("mockdap").WithName("mockdap")
	defer func() {
		panicErr := resiliency.MakePanicError(recover(), log.Logger)
		if panicErr != nil {
			_, _ = os.Stderr.Write(commands.WithNewline([]byte(panicErr.Error())))
			log.Flush()
			os.Exit(errPanic)
		}
	}()

	if envErr != nil {
		commands.ErrorExit(log, envErr, errSetup)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetrySystem, telemetryErr := telemetry.NewTelemetrySystem("mockdap")
	if telemetryErr != nil {
		commands.ErrorExit(log, telemetryErr, errSetup)
	}

	root, err := commands.NewRootCommand(log, telemetrySystem.Tracer("mockdap"))
	if err != nil {
		commands.ErrorExit(log, err, errSetup)
	}

	err = root.ExecuteContext(ctx)
	_ = telemetrySystem.Shutdown(context.Background())
	if err != nil {
		commands.ErrorExit(log, err, errCommandError)
	} else {
		log.Flush()
	}
}
