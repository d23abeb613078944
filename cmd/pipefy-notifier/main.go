// Package main runs the ticket event consumer that fans notifications out.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coderAhmedHamood/pipefy/pkg/cmd"
	"github.com/coderAhmedHamood/pipefy/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "pipefy-notifier",
		Usage:                 "Consume ticket lifecycle events and dispatch notifications",
		EnableShellCompletion: true,
		Flags:                 cmd.CommonFlags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg, err := cmd.LoadConfig(command)
			if err != nil {
				return err
			}

			log.Setup(cfg.LogLevel, cfg.LogFormat)

			logger := log.WithModule("notifier")

			logger.InfoContext(ctx, "Initializing Pipefy notifier", "event_bus", cfg.EventBus)

			eventBus, err := cmd.NewEventBus(cfg, "pipefy-notifier", logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			dispatcher := NewDispatcher(logger)
			if err := dispatcher.Register(eventBus); err != nil {
				return err
			}

			if err := eventBus.Subscribe(ctx); err != nil {
				return fmt.Errorf("failed to subscribe to ticket events: %w", err)
			}

			logger.InfoContext(ctx, "Pipefy notifier started")

			<-ctx.Done()

			logger.InfoContext(ctx, "Shutting down Pipefy notifier")

			return nil
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := command.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
