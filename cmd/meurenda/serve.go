package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"meurenda/internal/amqp"
	"meurenda/internal/auth"
	"meurenda/internal/backend"
	"meurenda/internal/cache"
	"meurenda/internal/cli"
	apphttp "meurenda/internal/http"
	"meurenda/internal/log"
	"meurenda/internal/notify"
	"meurenda/internal/ports"
	"meurenda/internal/services"
	"meurenda/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the JSON API, the dashboard event stream and the health and
metrics endpoints.

Writes are published to AMQP when AMQP_URL is set. Without a broker and with
Google Sheets export configured, records are exported by an in-process sweep.`,
		RunE: runServe,
	}
	cmd.Flags().String("addr", "", "listen address (default \":$PORT\")")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = ":" + cfg.Port
	}

	res, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Error("Failed to close store", log.FieldError, err)
		}
	}()
	store := res.Store

	caches := cache.NewManager()
	snapshots := cache.NewLRUCache[services.Snapshot](cfg.SnapshotCacheSize, cfg.SnapshotCacheTTL)
	revoked := cache.NewLRUCache[struct{}](10000, cfg.TokenTTL)
	caches.Register(snapshots)
	caches.Register(revoked)
	caches.StartCleanup(5 * time.Minute)
	defer caches.Stop()

	hub := notify.NewHub()
	dashboard := services.NewDashboardService(store, store, cfg.Calendar(),
		services.WithSnapshotCache(snapshots))

	// A nil *amqp.Client must not be stored in the interface.
	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}
	amqpEnabled := publisher != nil
	if !amqpEnabled && cfg.SheetsExportEnabled() {
		local, err := startInProcessExport(ctx, store)
		if err != nil {
			return err
		}
		publisher = local
	}
	ledger := services.NewLedgerService(store, publisher, dashboard, hub)

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL, revoked)
	srv := apphttp.NewServer(addr, apphttp.Deps{
		Auth:      auth.NewService(store, tokens),
		Ledger:    ledger,
		Dashboard: dashboard,
		Hub:       hub,
		Ready:     store.Ping,
		Logger:    logger,
	}, apphttp.Options{RateLimitPerMinute: cfg.RateLimitPerMinute})
	srv.MaxHeaderBytes = 1 << 16

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting meurenda server",
			"addr", addr,
			"backend", cfg.DataBackend,
			"amqp_enabled", amqpEnabled,
			"version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	return cli.Shutdown(logger, shutdownTimeout, srv.Shutdown)
}

// startInProcessExport runs the export worker inside the API process when
// no broker carries change events to a separate worker. The returned
// publisher feeds it the ledger's change events.
func startInProcessExport(ctx context.Context, store ports.ExportQueue) (*worker.LocalPublisher, error) {
	exporter, err := backend.NewExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	w := worker.NewExportWorker(store, exporter, cfg.SyncBatchSize).WithLogger(logger)
	local := worker.NewLocalPublisher(w, 256)

	go func() {
		if err := w.StartupCheck(ctx); err != nil {
			logger.Error("Startup export check failed", log.FieldError, err)
		}
		if err := w.Run(ctx, cfg.SyncInterval); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Export sweep stopped", log.FieldError, err)
		}
	}()
	go func() {
		if err := local.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("In-process export stopped", log.FieldError, err)
		}
	}()

	logger.Info("Exporting records in-process", "interval", cfg.SyncInterval)
	return local, nil
}
