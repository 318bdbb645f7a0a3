// Package server wires the application together and runs the HTTP API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/dermnet/dermnet-go/internal/api"
	"github.com/dermnet/dermnet-go/internal/classifier"
	"github.com/dermnet/dermnet-go/internal/conf"
	"github.com/dermnet/dermnet-go/internal/datastore"
	"github.com/dermnet/dermnet-go/internal/detection"
	"github.com/dermnet/dermnet-go/internal/errors"
	"github.com/dermnet/dermnet-go/internal/imaging"
	"github.com/dermnet/dermnet-go/internal/logging"
	"github.com/dermnet/dermnet-go/internal/observability"
)

// shutdownTimeout is how long in-flight requests get to finish on shutdown.
const shutdownTimeout = 10 * time.Second

// Run starts the detection server and blocks until the process receives
// SIGINT or SIGTERM. It owns the lifecycle of the datastore connection.
func Run(settings *conf.Settings) error {
	logger := logging.ForService("server")
	if logger == nil {
		logger = slog.Default().With("service", "server")
	}

	store := datastore.New(settings)
	if err := store.Open(); err != nil {
		return errors.Newf("failed to open datastore: %w", err).
			Component("server").
			Category(errors.CategoryDatabase).
			Build()
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close datastore", "error", err)
		}
	}()

	m, err := observability.NewMetrics()
	if err != nil {
		return errors.Newf("failed to initialize metrics: %w", err).
			Component("server").
			Category(errors.CategoryConfiguration).
			Build()
	}

	pipeline := detection.New(imaging.New(), classifier.New(settings, m.Classifier), store, m)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	if settings.WebServer.Debug {
		e.Use(middleware.Logger())
	}

	api.New(e, pipeline, settings, m)

	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%s", settings.WebServer.Port)
		logger.Info("Starting HTTP server",
			"address", addr,
			"classifier", settings.Classifier.Endpoint)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return errors.Newf("HTTP server failed: %w", err).
			Component("server").
			Category(errors.CategoryNetwork).
			Build()
	case sig := <-quit:
		logger.Info("Shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return errors.Newf("graceful shutdown failed: %w", err).
			Component("server").
			Category(errors.CategoryNetwork).
			Build()
	}

	logger.Info("Server stopped")
	return nil
}
