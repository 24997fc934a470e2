package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/samcharles93/genserve/internal/api"
	"github.com/samcharles93/genserve/internal/logger"
	"github.com/samcharles93/genserve/internal/metrics"
	"github.com/samcharles93/genserve/internal/modelhost"
)

func serveCmd(s *settings) *cli.Command {
	flags := []cli.Flag{
		configFlag(s),
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "listen address",
			Value:       "127.0.0.1:5000",
			Sources:     cli.EnvVars(envPrefix + "ADDR"),
			Destination: &s.addr,
		},
		&cli.StringFlag{
			Name:        "metrics-addr",
			Usage:       "listen address for /metrics (empty disables)",
			Sources:     cli.EnvVars(envPrefix + "METRICS_ADDR"),
			Destination: &s.metricsAddr,
		},
		&cli.DurationFlag{
			Name:        "read-header-timeout",
			Usage:       "read header timeout",
			Value:       30 * time.Second,
			Destination: &s.readHeaderTimeout,
		},
	}
	flags = append(flags, modelFlags(s)...)
	flags = append(flags, loggingFlags(s)...)

	return &cli.Command{
		Name:   "serve",
		Usage:  "Load the model and serve POST /generate",
		Flags:  flags,
		Before: prepare(s),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return serve(ctx, s)
		},
	}
}

func serve(ctx context.Context, s *settings) error {
	log := logger.FromContext(ctx)

	reg := metrics.NewRegistry()
	stats := metrics.New(reg)

	// The model must be ready before the listener binds.
	host, err := modelhost.Load(ctx, s.hostConfig(), log, modelhost.WithMetrics(stats))
	if err != nil {
		return err
	}
	defer func() {
		if err := host.Close(); err != nil {
			log.Warn("close model", "error", err)
		}
	}()

	e := echo.New()
	e.Use(middleware.Recover())
	api.NewServer(host, api.WithLogger(log), api.WithMetrics(stats)).Register(e)

	g, ctx := errgroup.WithContext(ctx)
	if s.metricsAddr != "" {
		g.Go(func() error {
			return metrics.Serve(ctx, s.metricsAddr, reg, log)
		})
	}
	g.Go(func() error {
		log.Info("starting server", "address", s.addr)
		sc := echo.StartConfig{
			Address: s.addr,
			BeforeServeFunc: func(srv *http.Server) error {
				srv.ReadHeaderTimeout = s.readHeaderTimeout
				return nil
			},
		}
		if err := sc.Start(ctx, e); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = g.Wait()
	log.Info("server stopped")
	return err
}
