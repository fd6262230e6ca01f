package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dukex/taskflow/pkg/cmd"
	"github.com/dukex/taskflow/pkg/config"
	"github.com/dukex/taskflow/pkg/log"
	"github.com/dukex/taskflow/pkg/otelhelper"
	"github.com/dukex/taskflow/pkg/persistence"
	cli "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// app carries what every subcommand needs. The store is opened on first use
// so commands that do not touch it never take the file lock.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	out    io.Writer
	format string

	store persistence.Persistence
}

func withApp(action func(ctx context.Context, a *app, command *cli.Command) error) cli.ActionFunc {
	return func(ctx context.Context, command *cli.Command) error {
		cfg, err := loadConfig(command)
		if err != nil {
			return err
		}

		log.Setup(cfg.LogLevel)

		a := &app{
			cfg:    cfg,
			logger: log.WithModule("taskflow"),
			out:    command.Root().Writer,
			format: command.String("output"),
		}
		if a.out == nil {
			a.out = os.Stdout
		}

		if cfg.Tracing {
			_, shutdown, err := otelhelper.NewTracer(ctx, cfg.ServiceName)
			if err != nil {
				return fmt.Errorf("failed to set up tracing: %w", err)
			}

			defer func() {
				if err := shutdown(ctx); err != nil {
					a.logger.ErrorContext(ctx, "Failed to flush traces", "error", err)
				}
			}()
		}

		defer a.close(ctx)

		return action(ctx, a, command)
	}
}

// loadConfig applies, in order: defaults, the config file, then flags and
// their environment variables.
func loadConfig(command *cli.Command) (config.Config, error) {
	cfg, err := config.Load(command.String("config"))
	if err != nil {
		return cfg, err
	}

	if command.IsSet("database-url") {
		cfg.DatabaseURL = command.String("database-url")
	}

	if command.IsSet("log-level") {
		cfg.LogLevel = command.String("log-level")
	}

	if command.IsSet("event-bus") {
		cfg.EventBus = command.String("event-bus")
	}

	if command.IsSet("kafka-brokers") {
		cfg.Kafka.Brokers = command.String("kafka-brokers")
	}

	if command.IsSet("tracing") {
		cfg.Tracing = command.Bool("tracing")
	}

	return cfg, cfg.Validate()
}

func (a *app) persistence() (persistence.Persistence, error) {
	if a.store != nil {
		return a.store, nil
	}

	store, err := cmd.NewPersistence(a.cfg, a.logger)
	if err != nil {
		return nil, err
	}

	a.store = store

	return store, nil
}

func (a *app) close(ctx context.Context) {
	if a.store == nil {
		return
	}

	if err := a.store.Close(ctx); err != nil {
		a.logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
	}
}

func (a *app) print(v any) error {
	switch a.format {
	case "yaml":
		enc := yaml.NewEncoder(a.out)
		enc.SetIndent(2)

		if err := enc.Encode(v); err != nil {
			return err
		}

		return enc.Close()
	case "json", "":
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")

		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported output format %q", a.format)
	}
}
