package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"timetracker/internal/amqp"
	"timetracker/internal/auth"
	"timetracker/internal/cache"
	"timetracker/internal/cli"
	"timetracker/internal/config"
	"timetracker/internal/editor"
	apphttp "timetracker/internal/http"
	"timetracker/internal/log"
	"timetracker/internal/tracker"
)

func main() {
	cfg, logger := cli.LoadConfig(log.ComponentApp, (*config.Config).Validate)
	if err := run(cfg, logger); err != nil {
		logger.Error("Tracker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	result, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Warn("Closing backend failed", log.FieldError, err)
			}
		}
	}()
	entries, categories := cli.NewStores(cfg, result.Client, logger)

	tcfg := tracker.Config{
		Entries:    entries,
		Categories: categories,
		Logger:     logger,
	}
	if cfg.AMQPURL != "" {
		publisher, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			// Events are optional; the tracker works without them.
			logger.Warn("AMQP unavailable, change events disabled", log.FieldError, err)
		} else {
			defer publisher.Close()
			tcfg.Publisher = publisher
			logger.Info("Publishing change events", "exchange", cfg.AMQPExchange)
		}
	}
	svc, err := tracker.NewService(tcfg)
	if err != nil {
		return err
	}

	editors := editor.NewManager(editor.ManagerConfig{
		MaxSessions: cfg.EditorMaxSessions,
		TTL:         cfg.EditorSessionTTL,
		Logger:      logger,
	})
	caches := cache.NewManager(logger)
	caches.Register("editor_sessions", editors.Cleaner())
	caches.Register("snapshots", svc.Cleaner())
	caches.StartCleanup(ctx, time.Minute)
	defer caches.Stop()

	provider, err := cli.NewAuthProvider(cfg)
	if err != nil {
		return err
	}
	sessions, generated, err := auth.NewSessions(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return err
	}
	if generated {
		logger.Warn("SESSION_SECRET not set; using a random secret, sessions end on restart")
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Tracker:  svc,
		Editors:  editors,
		Auth:     provider,
		Sessions: sessions,
		Ready:    result.Ready,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting tracker server",
			"port", cfg.Port,
			log.FieldBackend, cfg.DataBackend,
			"auth_provider", cfg.AuthProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
