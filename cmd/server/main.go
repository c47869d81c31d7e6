// Package main is the entry point for the KOL feed API, the HTTP backend of
// the crypto trading dashboard.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/kol-feed-api/internal/config"
	"github.com/yourorg/kol-feed-api/internal/otel"
)

// main is the entry point for the application
func main() {
	// Configure logging
	setupLogging()

	// Load configuration
	config.LoadDotEnv()
	cfg := config.Load()
	cfg.LogMissing()

	shutdownTracing := otel.InitTracer(cfg.OtelEndpoint)
	defer shutdownTracing()

	app := newApp(context.Background(), cfg)
	defer app.Close()

	// Configure server with timeouts
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Upstream calls may take up to the indexer timeout
		WriteTimeout: cfg.IndexerTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start the server in a goroutine
	go func() {
		logrus.Infof("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Error starting server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("Server shutdown failed: %v", err)
		return
	}

	logrus.Info("Server stopped")
}
