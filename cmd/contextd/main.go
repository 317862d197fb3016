package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/systemshift/contextengine/internal/api"
	"github.com/systemshift/contextengine/internal/core"
	"github.com/systemshift/contextengine/internal/graph"
	"github.com/systemshift/contextengine/internal/observe"
	"github.com/systemshift/contextengine/internal/orchestrator"
	"github.com/systemshift/contextengine/internal/snapshotio"
)

func main() {
	cfg, err := core.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, syncLog, err := observe.NewZapLogger()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer syncLog()

	reg := prometheus.NewRegistry()
	metr := observe.NewMetrics(reg)

	store := graph.New(cfg, core.SystemClock{})
	snap := snapshotio.New(cfg.SnapshotPath)

	// No external keyword extractor wired by default: keyword extraction
	// falls back to C2, the heuristic extractor. A real deployment plugs
	// one in here.
	var ext core.ExternalExtractor

	orch := orchestrator.New(cfg, core.SystemClock{}, store, snap, ext, logger, metr)
	orch.Bootstrap()

	server := api.New(orch, logger)

	mux := http.NewServeMux()
	mux.Handle("/", server.Router())
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	addr := os.Getenv("CONTEXTENGINE_ADDR")
	if addr == "" {
		addr = ":8090"
	}
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("contextd listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}

	orch.Shutdown()
	logger.Info("shutdown complete")
}
