/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package telemetry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap/zapcore"

	"github.com/cvet/fonline-sub001/pkg/logger"
)

func newTraceExporter(logName string) (sdktrace.SpanExporter, error) {
	logLevel, err := logger.GetDiagnosticsLogLevel()

	if err == nil && logLevel <= zapcore.DebugLevel {
		logFolder, err := logger.EnsureDiagnosticsLogsFolder()
		if err != nil {
			return nil, err
		}

		telemetryFileName := fmt.Sprintf("telemetry-%s-%d-%d.json", logName, time.Now().Unix(), os.Getpid())
		telemetryFile, err := os.OpenFile(filepath.Join(logFolder, telemetryFileName), os.O_RDWR|os.O_CREATE|os.O_EXCL|os.O_TRUNC, 0600)
		if err != nil {
			return nil, err
		}

		return stdouttrace.New(stdouttrace.WithPrettyPrint(), stdouttrace.WithWriter(telemetryFile))
	}

	return discardExporter{}, nil
}

type discardExporter struct{}

func (discardExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	return nil
}

func (discardExporter) Shutdown(ctx context.Context) error {
	return nil
}
