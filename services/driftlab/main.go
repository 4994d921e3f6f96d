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
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/AleutianAI/AleutianDrift/services/driftlab/defense"
	"github.com/AleutianAI/AleutianDrift/services/driftlab/experiment"
	"github.com/AleutianAI/AleutianDrift/services/driftlab/memory"
	"github.com/AleutianAI/AleutianDrift/services/driftlab/observability"
	"github.com/AleutianAI/AleutianDrift/services/driftlab/routes"
	"github.com/AleutianAI/AleutianDrift/services/driftlab/storage/badgerstore"
	"github.com/AleutianAI/AleutianDrift/services/llm"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		// Tracing is opt-in; without a collector we skip the exporter.
		return func(context.Context) {}, nil
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("driftlab-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func main() {
	port := os.Getenv("DRIFTLAB_PORT")
	if port == "" {
		port = "12310"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	metrics := observability.InitMetrics()

	agentCfg, err := llm.ConfigFromEnv(llm.RoleAgent)
	if err != nil {
		slog.Error("agent gateway configuration failed", "error", err)
		os.Exit(2)
	}
	agent := llm.NewOpenAIClient(llm.RoleAgent, agentCfg)

	judgeCfg, err := llm.ConfigFromEnv(llm.RoleJudge)
	var judge llm.ChatModel
	if err != nil {
		slog.Warn("judge gateway not configured, defense degrades to rule-only", "error", err)
	} else {
		judge = llm.NewOpenAIClient(llm.RoleJudge, judgeCfg)
	}

	cacheSize := 4096
	if v := os.Getenv("DRIFTLAB_EMBEDDING_CACHE_SIZE"); v != "" {
		if n, cerr := strconv.Atoi(v); cerr == nil {
			cacheSize = n
		}
	}
	embedder := memory.NewEmbeddingCache(agent, cacheSize)

	strict := os.Getenv("DRIFTLAB_STRICT_DEFENSE") == "true"
	sentry := defense.NewSentry(defense.NewDetector(defense.WithJudge(judge)), strict)

	var store *badgerstore.Store
	if dir := os.Getenv("DRIFTLAB_SNAPSHOT_DIR"); dir != "" {
		store, err = badgerstore.Open(badgerstore.Config{Path: dir})
		if err != nil {
			slog.Error("snapshot store unavailable", "error", err)
			os.Exit(3)
		}
		defer store.Close()
	}

	supervisor := experiment.NewSupervisor(experiment.Deps{
		Agent:    agent,
		Embedder: embedder,
		Sentry:   sentry,
		Metrics:  metrics,
		Store:    store,
	})
	defer supervisor.Close()

	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware("driftlab-service"))
	routes.SetupRoutes(router, supervisor, sentry)

	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("driftlab service listening", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(3)
	}
	slog.Info("driftlab service stopped")
}
