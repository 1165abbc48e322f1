// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command storesrv serves a single reactive property store over
// WebSocket: each connection is a Client cascaded after every settled
// flush, and can push its own writes back onto the store's mutation
// queue. A /metrics endpoint exposes the store's OpenTelemetry-derived
// counters and histograms to Prometheus.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/reactivestore/internal/obslog"
	"github.com/AleutianAI/reactivestore/internal/telemetryinit"
	"github.com/AleutianAI/reactivestore/store"
	"github.com/AleutianAI/reactivestore/store/configsrc"
)

func main() {
	var (
		addr           = flag.String("addr", ":8080", "listen address")
		schemaPath     = flag.String("schema", "", "path to a YAML property schema")
		watch          = flag.Bool("watch", false, "hot-reload the schema on edit")
		traceExporter  = flag.String("trace-exporter", "stdout", "trace exporter: stdout or otlp")
		metricExporter = flag.String("metric-exporter", "prometheus", "metric exporter: prometheus or stdout")
		otlpEndpoint   = flag.String("otlp-endpoint", "localhost:4317", "OTLP/gRPC collector address, used when -trace-exporter=otlp")
		otlpInsecure   = flag.Bool("otlp-insecure", true, "disable TLS when dialing -otlp-endpoint")
	)
	flag.Parse()

	logger := obslog.Default()
	if *schemaPath == "" {
		logger.Error("storesrv: --schema is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetryinit.Init(ctx, telemetryinit.Config{
		ServiceName:    "reactivestore-storesrv",
		ServiceVersion: "0.1.0",
		TraceExporter:  *traceExporter,
		MetricExporter: *metricExporter,
		OTLPEndpoint:   *otlpEndpoint,
		OTLPInsecure:   *otlpInsecure,
	})
	if err != nil {
		logger.Error("storesrv: telemetry init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer shutdown(context.Background())

	cfg, err := configsrc.Load(*schemaPath)
	if err != nil {
		logger.Error("storesrv: loading schema", slog.Any("error", err))
		os.Exit(1)
	}
	cfg.Logger = logger

	s, err := store.New(cfg)
	if err != nil {
		logger.Error("storesrv: building store", slog.Any("error", err))
		os.Exit(1)
	}
	s.Ready()

	// g carries ctx to every background goroutine the server depends on
	// (the schema watcher, the hub's command loop, the shutdown waiter,
	// and the listener itself), so a listener failure or a shutdown
	// signal unwinds the rest; the other goroutines never return an error.
	g, gCtx := errgroup.WithContext(ctx)

	hub := newHub(gCtx, s, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.serveWS)
	if h := telemetryinit.MetricsHandler(); h != nil {
		mux.Handle("/metrics", h)
	}

	srv := &http.Server{Addr: *addr, Handler: mux}

	if *watch {
		w, err := configsrc.NewWatcher(*schemaPath, func(reloaded store.Config, err error) {
			if err != nil {
				logger.Warn("storesrv: schema reload failed", slog.Any("error", err))
				return
			}
			logger.Info("storesrv: schema reload observed; new properties require a server restart to take effect")
		}, configsrc.WatcherOptions{Logger: logger})
		if err != nil {
			logger.Warn("storesrv: could not start schema watcher", slog.Any("error", err))
		} else {
			g.Go(func() error {
				w.Start(gCtx)
				return nil
			})
			defer w.Stop()
		}
	}

	g.Go(func() error {
		hub.run(gCtx)
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		logger.Info("storesrv: listening", slog.String("addr", *addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("storesrv: server exited", slog.Any("error", err))
		os.Exit(1)
	}
}
