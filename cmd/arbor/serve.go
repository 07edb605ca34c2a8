package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/arbor/internal/api"
	"github.com/MikeSquared-Agency/arbor/internal/config"
	"github.com/MikeSquared-Agency/arbor/internal/hermes"
	"github.com/MikeSquared-Agency/arbor/internal/library"
	"github.com/MikeSquared-Agency/arbor/internal/metrics"
	"github.com/MikeSquared-Agency/arbor/internal/store"
)

var (
	servePort    int
	serveArchive string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve conversation views and branch moves over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (default from ARBOR_PORT)")
	serveCmd.Flags().StringVar(&serveArchive, "archive", "", "conversations.json to load at startup (default from ARBOR_ARCHIVE)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	if serveArchive != "" {
		cfg.ArchivePath = serveArchive
	}
	logger := setupLogging(levelOr(cfg.LogLevel), os.Stdout)
	logger.Info("arbor starting", "port", cfg.Port)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []library.Option{library.WithMetrics(metrics.New(prometheus.DefaultRegisterer))}

	// Database (optional: without it selections live only in memory)
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		opts = append(opts, library.WithSelections(db))
		logger.Info("database connected")
	} else {
		logger.Warn("DATABASE_URL not set, branch selections will not persist")
	}

	// NATS/Hermes (optional)
	var hermesClient *hermes.Client
	if cfg.NatsURL != "" {
		hermesClient, err = hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			return err
		}
		defer hermesClient.Close()
		opts = append(opts, library.WithPublisher(hermesClient))
		logger.Info("NATS connected", "url", cfg.NatsURL)
	}

	lib := library.New(logger, opts...)
	if cfg.ArchivePath != "" {
		if _, err := lib.Load(ctx, cfg.ArchivePath); err != nil {
			return err
		}
	} else {
		logger.Warn("no archive configured, waiting for an import event or reload")
	}

	if hermesClient != nil {
		if err := hermesClient.Subscribe(hermes.SubjectArchiveImported, lib.HandleArchiveImported); err != nil {
			return err
		}
	}

	srv := api.NewServer(cfg.Port, lib, cfg.APIToken)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	logger.Info("arbor ready", "port", cfg.Port)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("HTTP shutdown failed", "error", err)
	}
	logger.Info("arbor stopped")
	return nil
}
