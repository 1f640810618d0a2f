/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zapcore"

	"github.com/cvet/fonline-sub001/pkg/logger"
	"github.com/cvet/fonline-sub001/pkg/process"
)

// NewRootCommand creates the mockdap command. Without a subcommand it serves debug sessions.
func NewRootCommand(log *logger.Logger, tracer trace.Tracer) (*cobra.Command, error) {
	cfg := &Config{}

	rootCmd := &cobra.Command{
		SilenceErrors: true,
		Use:           "mockdap",
		Short:         "Runs a debug adapter for the mock line interpreter",
		Long: `Runs a debug adapter for the mock line interpreter.

	By default a single debug session is served over stdin and stdout.
	With --server or --ws the adapter accepts any number of sessions until it is stopped.`,
		SilenceUsage:     true,
		PersistentPreRun: LogVersion(log.Logger, "Starting mockdap..."),
		RunE:             runServe(log, tracer, cfg),
		Args:             cobra.NoArgs,
	}

	rootCmd.CompletionOptions.HiddenDefaultCmd = true

	log.AddLevelFlag(rootCmd.PersistentFlags())
	addConfigFlags(rootCmd.Flags(), cfg)

	if cmd, err := NewVersionCommand(log.Logger); err != nil {
		return nil, fmt.Errorf("could not set up 'version' command: %w", err)
	} else {
		rootCmd.AddCommand(cmd)
	}

	return rootCmd, nil
}

func runServe(log *logger.Logger, tracer trace.Tracer, cfg *Config) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		if resolveErr := cfg.resolve(cmd.Flags()); resolveErr != nil {
			log.Error(resolveErr, "Invocation parameters are invalid")
			return resolveErr
		}

		if cfg.Verbosity != "" && !logger.VerbosityChanged(cmd.Flags()) {
			level, levelErr := logger.StringToLevel(cfg.Verbosity, zapcore.InfoLevel)
			if levelErr != nil {
				return fmt.Errorf("configuration file has an invalid verbosity: %w", levelErr)
			}
			log.SetLevel(level)
		}

		ctx := cmd.Context()
		if cfg.MonitorPid != int64(process.UnknownPID) {
			monitorCtx, cancelMonitor, monitorErr := MonitorPid(ctx, cfg.MonitorPid, cfg.MonitorInterval, log.Logger.WithName("monitor"))
			if monitorErr != nil {
				return monitorErr
			}
			defer cancelMonitor()
			ctx = monitorCtx
		}

		srv := newServer(log.Logger, tracer, *cfg)
		switch {
		case cfg.Server != 0:
			return srv.serveTCP(ctx, cfg.Server)
		case cfg.WebSocket != "":
			return srv.serveWebSocket(ctx, cfg.WebSocket)
		default:
			return srv.serveStdio(ctx)
		}
	}
}
