// Checkout service - payment reconciliation between the dLocal Go gateway
// and the Shopify Admin API. Designed for Cloud Run deployment.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-checkout/internal/checkout"
	"storefront-checkout/internal/config"
	"storefront-checkout/internal/dlocal"
	"storefront-checkout/internal/events"
	"storefront-checkout/internal/handler"
	"storefront-checkout/internal/journal"
	"storefront-checkout/internal/middleware"
	"storefront-checkout/internal/shopify"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Initialize structured logger
	logger := initLogger()

	// Load configuration
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("store_id", cfg.StoreID),
		slog.String("environment", cfg.Environment),
		slog.String("shop_domain", cfg.ShopDomain()),
		slog.Bool("gateway_sandbox", cfg.Store.GatewaySandbox),
	)

	// Payment gateway client
	gateway, err := dlocal.New(dlocal.Config{
		APIKey:    cfg.Store.GatewayAPIKey,
		SecretKey: cfg.Store.GatewaySecretKey,
		Sandbox:   cfg.Store.GatewaySandbox,
	})
	if err != nil {
		return fmt.Errorf("creating gateway client: %w", err)
	}

	// Commerce platform client
	platform, err := shopify.New(shopify.Config{
		Domain:      cfg.ShopDomain(),
		AccessToken: cfg.Store.AdminToken,
		APIVersion:  cfg.Store.APIVersion,
	})
	if err != nil {
		return fmt.Errorf("creating platform client: %w", err)
	}

	// Payment-to-order journal
	jnl, err := journal.Open(cfg.Store.JournalPath)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer jnl.Close()

	// Conversion event sink
	var sink events.Sink = events.NopSink{}
	if cfg.Store.EventsURL != "" {
		sink = events.NewHTTPSink(cfg.Store.EventsURL)
	}

	// Reconciliation engine
	engine := checkout.New(gateway, platform, jnl, sink, logger, checkout.Options{
		PollInterval:    cfg.Store.PollInterval(),
		MaxPolls:        cfg.Store.MaxPolls,
		GracePolls:      cfg.Store.GracePolls,
		NotificationURL: cfg.Store.NotificationURL,
		SuccessURL:      cfg.Store.SuccessURL,
		BackURL:         cfg.Store.BackURL,
	})

	// Setup routes
	h := handler.New(engine, gateway, logger)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Apply middleware chain: recovery → logging → client version gate
	// Recovery must be outermost to catch panics from logging middleware
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.Logging(logger),
		middleware.ClientVersion(cfg.Store.MinClientVersion, logger),
	)(mux)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel for server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give outstanding requests time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	// JSON for production (Cloud Logging compatible), text for development
	if os.Getenv("ENVIRONMENT") == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
