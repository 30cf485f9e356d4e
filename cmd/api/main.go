package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"go-idphoto-guide/internal/config"
	"go-idphoto-guide/internal/container"
)

func main() {
	// Local overrides from .env, ignored when absent
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize dependency injection container
	c, err := container.NewContainer(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	// Start the live capture session when a camera is configured
	sessionCtx, stopSession := context.WithCancel(context.Background())
	defer stopSession()
	c.Start(sessionCtx)

	// Create HTTP server with configurable timeouts. The guidance stream
	// is long-lived, so writes are not bounded by the request timeout.
	server := &http.Server{
		Addr:        cfg.ServerAddress(),
		Handler:     c.Handler(),
		ReadTimeout: cfg.RequestTimeout,
	}

	// Start server in a goroutine
	go func() {
		logrus.WithFields(logrus.Fields{
			"address": cfg.ServerAddress(),
			"timeout": cfg.RequestTimeout,
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	// Stop the capture loop before tearing down the HTTP surface
	if err := c.Close(); err != nil {
		logrus.WithError(err).Warn("Error releasing capture resources")
	}

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := server.Shutdown(ctx); err != nil {
		logrus.WithError(err).Fatal("Server forced to shutdown")
	}

	logrus.Info("Server exited")
}
