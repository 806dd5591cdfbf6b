package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"meurenda/internal/amqp"
	"meurenda/internal/backend"
	"meurenda/internal/cli"
	"meurenda/internal/log"
	"meurenda/internal/worker"
)

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Mirror records into Google Sheets",
		Long: `Consume record change events from AMQP and mirror them into the
configured spreadsheet. A periodic sweep exports records whose events were
lost. Requires the sqlite backend so the worker sees the API's writes.`,
		RunE: runWorker,
	}
}

func runWorker(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	wlog := logger.WithComponent(log.ComponentWorker)

	if !backend.BackendType(cfg.DataBackend).Shared() {
		return fmt.Errorf("worker needs a shared backend, got %q (set DATA_BACKEND=sqlite)", cfg.DataBackend)
	}
	if cfg.AMQPURL == "" {
		return errors.New("worker needs AMQP_URL")
	}
	if !cfg.SheetsExportEnabled() {
		wlog.Warn("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, exporting to memory")
	}

	res, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Close(); err != nil {
			wlog.Error("Failed to close store", log.FieldError, err)
		}
	}()

	exporter, err := backend.NewExporter(ctx, cfg)
	if err != nil {
		return err
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("failed to initialize AMQP client: %w", err)
	}
	defer client.Close()

	w := worker.NewExportWorker(res.Store, exporter, cfg.SyncBatchSize).WithLogger(logger)

	wlog.Info("Performing startup export check...")
	if err := w.StartupCheck(ctx); err != nil {
		// Not fatal; the periodic sweep retries.
		wlog.Error("Failed startup export check", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeChangeEvents(gctx, w.HandleEvent)
	})
	g.Go(func() error {
		return w.Run(gctx, cfg.SyncInterval)
	})

	wlog.Info("Starting meurenda worker",
		"queue", cfg.AMQPQueue,
		"interval", cfg.SyncInterval,
		"batch_size", cfg.SyncBatchSize)

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		wlog.Info("Worker shutdown complete")
		return nil
	}
	return err
}
