package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/taskflow/pkg/channels/gochannel"
	"github.com/dukex/taskflow/pkg/channels/kafka"
	"github.com/dukex/taskflow/pkg/config"
	"github.com/dukex/taskflow/pkg/eventbus"
)

// NewEventBus builds the lifecycle event bus selected by cfg.EventBus.
func NewEventBus(cfg config.Config, logger *slog.Logger) (eventbus.EventBus, error) {
	wlogger := watermill.NewSlogLogger(logger)

	switch cfg.EventBus {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(wlogger, cfg.ServiceName, kafka.ParseBrokers(cfg.Kafka.Brokers))
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(wlogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create gochannel pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", cfg.EventBus)
	}
}
