// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetryinit installs the OpenTelemetry tracer and meter
// providers store/telemetry's package-level Tracer/Meter handles bind
// to, and exposes the resulting Prometheus scrape handler.
package telemetryinit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

// ErrUnknownExporter is returned when a Config names an exporter kind
// this package does not implement.
var ErrUnknownExporter = errors.New("telemetryinit: unknown exporter")

// Config selects a service identity and an exporter pair for the
// trace/metric resource. TraceExporter and MetricExporter default to
// "stdout" and "prometheus" respectively when left blank, matching a
// single-process CLI/server's needs without an external collector.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// TraceExporter selects how spans leave the process: "stdout"
	// (pretty-printed) or "otlp" (OTLP/gRPC to OTLPEndpoint).
	TraceExporter string
	// MetricExporter selects how metrics leave the process:
	// "prometheus" (scraped via MetricsHandler) or "stdout".
	MetricExporter string

	// OTLPEndpoint is the collector address used when TraceExporter is
	// "otlp", e.g. "localhost:4317".
	OTLPEndpoint string
	// OTLPInsecure disables TLS when dialing OTLPEndpoint.
	OTLPInsecure bool
}

var (
	handlerMu sync.RWMutex
	handler   http.Handler
)

// Init installs the tracer/meter providers globally and returns a
// shutdown function the caller must invoke before exiting.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	res := resource.NewWithAttributes("",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	tp, err := initTracer(ctx, cfg, res)
	if err != nil {
		return nil, fmt.Errorf("telemetryinit: %w", err)
	}
	otel.SetTracerProvider(tp)

	mp, err := initMeter(ctx, cfg, res)
	if err != nil {
		return nil, fmt.Errorf("telemetryinit: %w", err)
	}
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return err
		}
		return mp.Shutdown(ctx)
	}, nil
}

func initTracer(ctx context.Context, cfg Config, res *resource.Resource) (*trace.TracerProvider, error) {
	var exporter trace.SpanExporter
	var err error

	switch cfg.TraceExporter {
	case "otlp":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	case "", "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		return nil, fmt.Errorf("%w: trace exporter %q", ErrUnknownExporter, cfg.TraceExporter)
	}
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
	), nil
}

func initMeter(_ context.Context, cfg Config, res *resource.Resource) (*metric.MeterProvider, error) {
	switch cfg.MetricExporter {
	case "", "prometheus":
		exporter, err := promexporter.New()
		if err != nil {
			return nil, fmt.Errorf("creating prometheus exporter: %w", err)
		}
		handlerMu.Lock()
		handler = promhttp.Handler()
		handlerMu.Unlock()

		return metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(exporter),
		), nil

	case "stdout":
		exporter, err := stdoutmetric.New(stdoutmetric.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("creating stdout metric exporter: %w", err)
		}
		return metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(metric.NewPeriodicReader(exporter)),
		), nil

	default:
		return nil, fmt.Errorf("%w: metric exporter %q", ErrUnknownExporter, cfg.MetricExporter)
	}
}

// MetricsHandler returns the Prometheus scrape handler installed by
// Init when MetricExporter is "prometheus", or nil otherwise.
func MetricsHandler() http.Handler {
	handlerMu.RLock()
	defer handlerMu.RUnlock()
	return handler
}
