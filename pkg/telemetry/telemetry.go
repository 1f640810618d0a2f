/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type TelemetrySystem struct {
	TracerProvider *sdktrace.TracerProvider
	exporter       sdktrace.SpanExporter
}

// NewTelemetrySystem creates the process tracer provider and makes it the global one.
// Spans are written to a file in the diagnostics log folder when debug diagnostics are enabled,
// and discarded otherwise.
func NewTelemetrySystem(logName string) (TelemetrySystem, error) {
	exp, err := newTraceExporter(logName)
	if err != nil {
		return TelemetrySystem{}, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	return NewTelemetrySystemWithExporter(exp), nil
}

// NewTelemetrySystemWithExporter creates the process tracer provider around the given exporter.
func NewTelemetrySystemWithExporter(exp sdktrace.SpanExporter) TelemetrySystem {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exp),
	)

	otel.SetTracerProvider(tp)

	return TelemetrySystem{
		TracerProvider: tp,
		exporter:       exp,
	}
}

func (ts TelemetrySystem) Tracer(name string) trace.Tracer {
	return ts.TracerProvider.Tracer(name)
}

func (ts TelemetrySystem) Shutdown(ctx context.Context) error {
	return errors.Join(
		ts.TracerProvider.Shutdown(ctx),
		ts.exporter.Shutdown(ctx),
	)
}

func CallWithTelemetry[TResult any](tracer trace.Tracer, spanName string, parentCtx context.Context, fn func(ctx context.Context) (TResult, error)) (TResult, error) {
	spanCtx, span := tracer.Start(parentCtx, spanName)
	defer span.End()

	result, err := fn(spanCtx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func CallWithTelemetryNoResult(tracer trace.Tracer, spanName string, parentCtx context.Context, fn func(ctx context.Context) error) error {
	_, err := CallWithTelemetry(tracer, spanName, parentCtx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}

func AddEvent(ctx context.Context, name string, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, options...)
}
