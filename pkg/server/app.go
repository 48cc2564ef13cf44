package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	mid "EarlyPump/internal/middleware"
	"EarlyPump/internal/usecase"
	"EarlyPump/pkg/config"
	xhttp "EarlyPump/pkg/http"
	pkgkafka "EarlyPump/pkg/kafka"
	applogger "EarlyPump/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	hub        *mid.RegionHub
	scanner    *usecase.PumpScanner
	renderer   *usecase.SignalRenderer
	consumer   *pkgkafka.Consumer
}

// New creates a new App; consumer may be nil when history is disabled.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	hub *mid.RegionHub,
	scanner *usecase.PumpScanner,
	renderer *usecase.SignalRenderer,
	consumer *pkgkafka.Consumer,
) *App {
	return &App{
		cfg:        cfg,
		log:        l,
		httpServer: httpServer,
		hub:        hub,
		scanner:    scanner,
		renderer:   renderer,
		consumer:   consumer,
	}
}

// Run starts the application and blocks until interrupted or ctx is done.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// the renderer reads its feed over HTTP, so the server goes first
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	if a.consumer != nil {
		if err := a.consumer.Start(ctx); err != nil {
			a.log.Error("kafka consumer error", applogger.Error(err))
		}
	}

	a.scanner.Start(ctx)

	if a.cfg.Renderer.RefreshOnStart && !a.cfg.Renderer.AutoRefresh {
		go func() {
			if _, err := a.renderer.RefreshSignals(ctx); err != nil {
				a.log.Warn("initial refresh failed", applogger.Error(err))
			}
		}()
	}

	a.log.Info("early pump service running",
		applogger.String("feed_url", a.cfg.Renderer.FeedURL),
		applogger.String("region", a.cfg.Renderer.RegionID),
		applogger.Bool("kafka", a.cfg.Kafka.Enabled),
		applogger.Bool("history", a.consumer != nil),
	)

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	a.scanner.Stop()
	a.hub.Close()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
