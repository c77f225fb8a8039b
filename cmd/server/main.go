package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"dataflow-studio/backend/internal/api"
	"dataflow-studio/backend/internal/config"
	"dataflow-studio/backend/internal/engine"
	"dataflow-studio/backend/internal/logging"
	"dataflow-studio/backend/internal/session"
	"dataflow-studio/backend/internal/tls"
)

func main() {
	// Initialize logging
	logger := logging.NewLogger()

	// Parse command line flags
	configFile := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		log.Fatalf("Configuration loading failed: %v", err)
	}
	logger.Info("Configuration loaded",
		"engine_url", cfg.Engine.URL,
		"engine_timeout", cfg.Engine.Timeout,
	)

	logger.Info("Starting DataFlow Studio Server")

	// Initialize the data-engine client and verify reachability. The studio
	// still starts when the engine is down; requests fail individually until
	// it comes back.
	eng := engine.NewClient(cfg.Engine.URL, cfg.Engine.Timeout)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := eng.Health(pingCtx); err != nil {
		logger.Warn("Data engine is not reachable", "url", cfg.Engine.URL, "error", err)
	} else {
		logger.Info("Data engine connected", "url", cfg.Engine.URL)
	}
	cancel()

	// Session manager and API server
	sessions := session.NewManager(eng)
	server := api.NewServer(eng, sessions, logger)

	// Create Echo server
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	server.Register(e)
	logger.Info("REST API handlers mounted")

	// Create HTTP server
	addr := cfg.Server.Addr
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", addr, "tls", cfg.TLS.Enable)
		if cfg.TLS.Enable {
			if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
				logger.Error("TLS enabled but cert/key file not provided")
				serverErrors <- httpServer.ListenAndServe()
				return
			}
			// generate if missing and hostnames provided
			if _, err := os.Stat(cfg.TLS.CertFile); os.IsNotExist(err) {
				if len(cfg.TLS.Hostnames) > 0 {
					if err := tls.GenerateSelfSignedCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames); err != nil {
						logger.Error("failed to generate self-signed cert", "error", err)
					}
				}
			}
			serverErrors <- httpServer.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			serverErrors <- httpServer.ListenAndServe()
		}
	}()

	// Wait for shutdown signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-shutdown:
		logger.Info("Shutdown signal received", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			if err := httpServer.Close(); err != nil {
				logger.Error("Server close error", "error", err)
			}
		}

		logger.Info("Server stopped gracefully")
	}
}
