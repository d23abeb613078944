package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/coderAhmedHamood/pipefy/pkg/channels/gochannel"
	"github.com/coderAhmedHamood/pipefy/pkg/channels/kafka"
	"github.com/coderAhmedHamood/pipefy/pkg/config"
	"github.com/coderAhmedHamood/pipefy/pkg/eventbus"
)

// NewEventBus connects the ticket event bus. serviceName names the Kafka
// consumer group.
//
//nolint:ireturn // callers only need the interface
func NewEventBus(cfg config.Config, serviceName string, logger *slog.Logger) (eventbus.EventBus, error) {
	watermillLogger := watermill.NewSlogLogger(logger)

	switch cfg.EventBus {
	case config.EventBusKafka:
		pub, sub, err := kafka.CreateChannel(watermillLogger, kafka.ParseBrokers(cfg.KafkaBrokers), serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub, logger), nil
	case config.EventBusGoChannel, "":
		pub, sub, err := gochannel.CreateChannel(watermillLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-process pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub, logger), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", cfg.EventBus)
	}
}
