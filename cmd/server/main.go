package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"boxoffice/internal/invite/sweeper"
	"boxoffice/internal/platform/config"
	"boxoffice/internal/platform/httpserver"
	"boxoffice/internal/platform/logger"
)

// main wires dependencies and runs the HTTP server, the invite sweeper and
// the audit mirror until a signal arrives. Business logic lives in the
// internal service packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "boxoffice:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(logger.Options{
		Format:      cfg.LogFormat,
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
	})
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app, err := build(ctx, cfg, reg, log)
	if err != nil {
		return err
	}
	defer app.close()

	log.InfoContext(ctx, "starting boxoffice",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"storage", app.storageKind,
		"directory", app.directoryKind,
		"system_actor", app.system.ID().String(),
	)

	sweepOpts := []sweeper.Option{sweeper.WithLogger(log)}
	if app.redis != nil {
		holder := uuid.NewString()
		sweepOpts = append(sweepOpts, sweeper.WithLease(sweeper.NewRedisLease(app.redis, holder), cfg.Invite.SweepLease))
	}
	sweep := sweeper.New(app.invites, cfg.Invite.SweepInterval, sweepOpts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, httpserver.New(cfg.Addr, app.router), log)
	})
	g.Go(func() error {
		return sweep.Run(gctx)
	})
	if app.mirror != nil {
		g.Go(func() error {
			return app.mirror.Run(gctx)
		})
	}
	return g.Wait()
}
