// Package main runs the recurring rule sweeper as a standalone service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coderAhmedHamood/pipefy/pkg/cmd"
	"github.com/coderAhmedHamood/pipefy/pkg/eventbus"
	"github.com/coderAhmedHamood/pipefy/pkg/log"
	"github.com/coderAhmedHamood/pipefy/pkg/metrics"
	"github.com/jonboulle/clockwork"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "pipefy-scheduler",
		Usage:                 "Create tickets from due recurring rules",
		EnableShellCompletion: true,
		Flags: append(cmd.CommonFlags(),
			&cli.StringFlag{
				Name:    "sweep-spec",
				Usage:   "Cron spec of the due rule sweep",
				Sources: cli.EnvVars("SWEEP_SPEC"),
			},
			&cli.DurationFlag{
				Name:    "claim-lease",
				Usage:   "How long one execution holds a rule",
				Sources: cli.EnvVars("CLAIM_LEASE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for rule locks; repository claims are used when empty",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port serving health probes and metrics",
				Sources: cli.EnvVars("PORT"),
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg, err := cmd.LoadConfig(command)
			if err != nil {
				return err
			}

			log.Setup(cfg.LogLevel, cfg.LogFormat)

			logger := log.WithModule("scheduler")

			logger.InfoContext(ctx, "Initializing Pipefy scheduler", "sweep_spec", cfg.SweepSpec)

			tracer, shutdownTracer, err := cmd.NewTracer(ctx, cfg.Otel, "pipefy-scheduler")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}
			defer func() {
				if err := shutdownTracer(context.WithoutCancel(ctx)); err != nil {
					logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
				}
			}()

			persistence, err := cmd.NewPersistence(ctx, logger, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer func() {
				if err := persistence.Close(context.WithoutCancel(ctx)); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(cfg, "pipefy-scheduler", logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			locker, closeLocker, err := cmd.NewLocker(ctx, logger, cfg.RedisURL, persistence.RuleRepository(), clockwork.NewRealClock())
			if err != nil {
				return err
			}
			defer func() {
				if err := closeLocker(); err != nil {
					logger.ErrorContext(ctx, "Failed to close rule locker", "error", err)
				}
			}()

			collector := metrics.NewCollector()
			notifier := eventbus.NewNotifier(eventBus, logger, collector)
			defer notifier.Wait()

			service := NewService(logger, persistence, notifier, locker, collector, tracer, cfg)

			return service.Run(ctx)
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := command.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
