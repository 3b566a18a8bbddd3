// Package server wires the bot process together: configuration, logging,
// the storage core, the Telegram transport, the health endpoint and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/ezfile/internal/bot"
	"github.com/dmitrijs2005/ezfile/internal/logging"
	"github.com/dmitrijs2005/ezfile/internal/metrics"
	"github.com/dmitrijs2005/ezfile/internal/server/config"
	"github.com/dmitrijs2005/ezfile/internal/telegram"

	gs "github.com/dmitrijs2005/ezfile/internal/server/grpc"
)

// eventSource yields inbound chat events until ctx is done.
type eventSource interface {
	Events(ctx context.Context) <-chan bot.Event
}

type App struct {
	config  *config.Config
	logger  logging.Logger
	metrics *metrics.Metrics
	core    *Core
	bot     *bot.Bot
	events  eventSource
	health  *gs.HealthServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(c.LogLevel, os.Stdout)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	tg, err := telegram.New(c.BotToken, telegram.Options{
		PollTimeout: c.PollTimeout,
		MaxFileSize: c.MaxFileSize,
	}, logger)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	core, err := NewCore(ctx, c, tg, m, logger)
	if err != nil {
		return nil, err
	}

	return newApp(c, logger, m, core, tg, tg)
}

func newApp(c *config.Config, logger logging.Logger, m *metrics.Metrics, core *Core, messenger bot.Messenger, events eventSource) (*App, error) {
	b, err := bot.New(core.Files, core.Gate, messenger, bot.Options{
		Limits:           core.Files.Limits(),
		ProgressInterval: c.ProgressInterval,
	}, logger)
	if err != nil {
		return nil, err
	}
	if m != nil {
		b.SetGateObserver(m)
	}

	app := &App{
		config:  c,
		logger:  logger,
		metrics: m,
		core:    core,
		bot:     b,
		events:  events,
	}
	if c.HealthAddrGRPC != "" {
		app.health = gs.NewHealthServer(c.HealthAddrGRPC, logger)
	}
	return app, nil
}

// Run serves until SIGINT/SIGTERM/SIGQUIT or until one component fails.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...", "storage_root", app.core.Layout.Root())
	defer app.core.Gate.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// the process has nothing left to serve once the bot stops
		defer cancel()
		if app.health != nil {
			app.health.SetServing(true)
			defer app.health.SetServing(false)
		}
		err := app.bot.Run(ctx, app.events.Events(ctx))
		app.logger.Info(ctx, "Bot loop stopped")
		return err
	})

	if app.health != nil {
		g.Go(func() error {
			return app.health.Run(ctx)
		})
	}

	if app.metrics != nil && app.config.MetricsAddr != "" {
		g.Go(func() error {
			return app.metrics.Serve(ctx, app.config.MetricsAddr, app.logger)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
