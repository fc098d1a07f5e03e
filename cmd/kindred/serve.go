// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/Kindred/cmd/kindred/config"
	"github.com/AleutianAI/Kindred/pkg/logging"
	"github.com/AleutianAI/Kindred/services/kindred"
	"github.com/AleutianAI/Kindred/services/kindred/describe"
	"github.com/AleutianAI/Kindred/services/kindred/discovery"
	"github.com/AleutianAI/Kindred/services/kindred/storage/badgerstore"
	"github.com/AleutianAI/Kindred/services/kindred/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Kindred HTTP service",
	Long: `Starts the Kindred server: opens the Badger store, wires the discovery
scanner, graph mutator, traversal engine, and relationship describer, and
serves the /v1/kindred API until interrupted.`,
	Run: runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := config.Global

	logger := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		LogDir: cfg.Logging.Dir,
		JSON:   cfg.Logging.JSON,
	})
	defer logger.Close()
	slog.SetDefault(logger.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Init(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	metrics, err := telemetry.NewMetrics(otel.Meter(telemetry.ServiceName))
	if err != nil {
		log.Fatalf("Failed to create metrics: %v", err)
	}

	var st *badgerstore.Store
	if cfg.Storage.InMemory {
		st, err = badgerstore.NewInMemory()
	} else {
		bcfg := badgerstore.DefaultConfig(cfg.Storage.DataDir)
		bcfg.GCInterval = time.Duration(cfg.Storage.GCIntervalMinutes) * time.Minute
		bcfg.Logger = logger.Logger
		st, err = badgerstore.New(bcfg)
	}
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("store close failed", "error", err)
		}
	}()

	var describer describe.Describer
	if cfg.Describer.Enabled {
		d, err := describe.NewOpenAIDescriber(logger.Logger)
		if err != nil {
			logger.Warn("relationship describer unavailable", "error", err)
		} else {
			describer = d
		}
	}

	svc := kindred.NewService(kindred.ServiceConfig{
		Store:     st,
		Describer: describer,
		Logger:    logger.Logger,
		Metrics:   metrics,
		ScannerOptions: []discovery.ScannerOption{
			discovery.WithTimeout(time.Duration(cfg.Discovery.TimeoutSeconds) * time.Second),
			discovery.WithFetchConcurrency(cfg.Discovery.FetchConcurrency),
		},
	})
	handlers := kindred.NewHandlers(svc)

	router := gin.Default()
	router.Use(otelgin.Middleware(telemetry.ServiceName))
	v1 := router.Group("/v1")
	kindred.RegisterRoutes(v1, handlers)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting the Kindred server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
}
