package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/medleyfm/medley/internal/server"
)

// Serve runs the long-lived daemon: periodic sync passes plus the HTTP API.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	app, err := r.openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	router := server.NewBasicRouter()
	router.Use(server.Recoverer(r.logger), server.RequestLogger(r.logger))
	router.Handler(server.NewAPIHandler(app.store, app.scheduler, app.registry, app.selector, app.jobRepo, r.logger))

	srv, err := server.Listen(r.config.Server.Host, r.config.Server.Port, router, r.logger)
	if err != nil {
		return err
	}

	eventCh, unsubscribe := app.bus.Subscribe(64)
	defer unsubscribe()
	go func() {
		for ev := range eventCh {
			r.logger.Info("sync event", "type", ev.Type, "provider", ev.ProviderID, "message", ev.Message)
		}
	}()

	app.scheduler.Start(ctx)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Serve()
	}()

	r.writePlain("Serving on http://%s (Ctrl+C to stop)\n", srv.Addr())

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		app.scheduler.Stop()
		return err
	case sig := <-shutdown:
		r.logger.Info("shutting down", "signal", sig)
	case <-ctx.Done():
		r.logger.Info("shutting down", "reason", ctx.Err())
	}

	app.scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("forced shutdown", "error", err)
		return err
	}

	r.writePlainln("Goodbye.")
	return nil
}
