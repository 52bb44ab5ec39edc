package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danuarif/duitbot/internal/bot"
	"github.com/danuarif/duitbot/internal/extract"
	"github.com/danuarif/duitbot/internal/gas"
	"github.com/danuarif/duitbot/internal/journal"
	"github.com/danuarif/duitbot/internal/server"
	"github.com/danuarif/duitbot/internal/session"
	"github.com/danuarif/duitbot/pkg/config"
	"github.com/danuarif/duitbot/pkg/logging"
)

func main() {
	// Setup logging
	logger := logging.Setup(logging.FromEnv())

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"port", cfg.Port,
		"timezone", cfg.Timezone,
		"admins", len(cfg.AdminIDs()),
	)

	// Setup context with cancellation on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	gasClient := gas.NewClient(cfg.AdminGASURL, logger.With("component", "gas"))
	flow := bot.NewFlow(session.NewStore(), gasClient, loc, logger.With("component", "flow"))

	jrnl, err := journal.Open(ctx, cfg.Postgres, logger.With("component", "journal"))
	if err != nil {
		logger.Error("failed to open journal", "error", err)
		os.Exit(1)
	}
	if jrnl != nil {
		defer jrnl.Close()
		flow.SetRecorder(jrnl)
	}

	b, err := bot.New(cfg, flow, gasClient, loc, logger.With("component", "bot"))
	if err != nil {
		logger.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	srv := server.New(
		[]byte(cfg.WebhookSecret),
		[]byte(cfg.ParserSecret),
		extract.Default(),
		gasClient,
		b,
		logger.With("component", "http"),
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	httpErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", httpServer.Addr)
		httpErr <- httpServer.ListenAndServe()
	}()

	go b.Start()
	logger.Info("telegram bot polling")

	select {
	case <-ctx.Done():
	case err := <-httpErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
		}
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	b.Stop()

	logger.Info("shutdown complete")
}
