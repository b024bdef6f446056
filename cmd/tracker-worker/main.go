package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"timetracker/internal/amqp"
	"timetracker/internal/cli"
	"timetracker/internal/config"
	"timetracker/internal/log"
	"timetracker/internal/sheets"
	"timetracker/internal/store"
	"timetracker/internal/worker"
)

func main() {
	cfg, logger := cli.LoadConfig(log.ComponentWorker, (*config.Config).ValidateMirror)
	logger.Info("Starting tracker-worker")

	if err := run(cfg, logger); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	sheetsClient, err := sheets.New(ctx, sheets.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return err
	}
	mirror := store.NewEntryStore(sheetsClient, cfg.MirrorEntriesSheet, store.WithEntryLogger(logger))
	mw := worker.NewMirrorWorker(mirror, logger)
	logger.Info("Google Sheets mirror initialized", "sheet", cfg.MirrorEntriesSheet)

	// The REST backend only answers on behalf of a signed-in user, so the
	// worker cannot read it in bulk; there is nothing to reconcile from.
	var source *store.EntryStore
	if cfg.DataBackend != "rest" {
		result, err := cli.OpenBackend(ctx, cfg, logger)
		if err != nil {
			return err
		}
		if result.Cleanup != nil {
			defer result.Cleanup()
		}
		source, _ = cli.NewStores(cfg, result.Client, logger)
	} else {
		logger.Info("Skipping reconcile - rest backend needs a user session")
	}

	reconcile := func(ctx context.Context) {
		if source == nil {
			return
		}
		if err := mw.Reconcile(ctx, source, mirror); err != nil {
			logger.Error("Reconcile failed", log.FieldError, err)
		}
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return err
	}
	defer amqpClient.Close()

	logger.Info("Performing startup reconcile...")
	reconcile(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := amqpClient.ConsumeEntryEvents(gctx, mw.HandleEvent)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if cfg.MirrorReconcileInterval > 0 && source != nil {
		g.Go(func() error {
			ticker := time.NewTicker(cfg.MirrorReconcileInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					reconcile(gctx)
				}
			}
		})
	}
	return g.Wait()
}
