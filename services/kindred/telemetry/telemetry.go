// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires OpenTelemetry metrics and tracing for the Kindred
// service. Instruments use the "kindred_" prefix.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// ServiceName identifies this service in spans and middleware.
const ServiceName = "kindred"

// Tracer returns the service tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(ServiceName)
}

// Providers owns the SDK providers created by Init, for shutdown.
type Providers struct {
	meterProvider *sdkmetric.MeterProvider
	traceProvider *sdktrace.TracerProvider
}

// Init installs stdout-exporting metric and trace providers globally.
//
// Description:
//
//	Local-first default: periodic stdout metric export and batched stdout
//	span export. Deployments fronted by a collector swap the exporters at
//	the flag level, not here.
//
// Outputs:
//
//	*Providers - Handle for Shutdown. Must be shut down on exit.
//	error - Non-nil if an exporter cannot be constructed.
func Init(ctx context.Context) (*Providers, error) {
	metricExporter, err := stdoutmetric.New()
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
			sdkmetric.WithInterval(time.Minute))),
	)
	otel.SetMeterProvider(mp)

	traceExporter, err := stdouttrace.New()
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter))
	otel.SetTracerProvider(tp)

	return &Providers{meterProvider: mp, traceProvider: tp}, nil
}

// Shutdown flushes and stops both providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	var firstErr error
	if err := p.traceProvider.Shutdown(ctx); err != nil {
		firstErr = err
	}
	if err := p.meterProvider.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
