package main

import (
	"context"
	"os"

	"github.com/dukex/taskflow/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func main() {
	logger := log.WithModule("taskflow")

	cmd := &cli.Command{
		Name:                  "taskflow",
		Usage:                 "Inspect and manage recorded workflow executions",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
				Sources: cli.EnvVars("TASKFLOW_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Store location (bolt://path)",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("TASKFLOW_TRACING"),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output format (json, yaml)",
				Value:   "json",
			},
		},
		Commands: []*cli.Command{
			executionsCommand(),
			metadataCommand(),
			settingsCommand(),
			eventsCommand(),
			{
				Name:   "health",
				Usage:  "Check that the store is reachable",
				Action: withApp(runHealth),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func executionsCommand() *cli.Command {
	return &cli.Command{
		Name:    "executions",
		Aliases: []string{"exec"},
		Usage:   "Recorded workflow executions",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List executions, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "Maximum entries, 0 for all"},
				},
				Action: withApp(runExecutionsList),
			},
			{
				Name:      "show",
				Usage:     "Show one execution with its task records and audit trail",
				ArgsUsage: "<execution-id>",
				Action:    withApp(runExecutionsShow),
			},
			{
				Name:      "delete",
				Usage:     "Delete an execution, its metadata and task records",
				ArgsUsage: "<execution-id>",
				Action:    withApp(runExecutionsDelete),
			},
		},
	}
}

func metadataCommand() *cli.Command {
	return &cli.Command{
		Name:  "metadata",
		Usage: "Run status views",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List run metadata by start time, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "Maximum entries, 0 for all"},
					&cli.StringFlag{Name: "status", Usage: "Only runs with this status"},
				},
				Action: withApp(runMetadataList),
			},
			{
				Name:      "show",
				Usage:     "Show the metadata of one run with its tasks",
				ArgsUsage: "<execution-id>",
				Action:    withApp(runMetadataShow),
			},
		},
	}
}

func settingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Key/value settings",
		Commands: []*cli.Command{
			{
				Name:      "get",
				ArgsUsage: "<key>",
				Action:    withApp(runSettingsGet),
			},
			{
				Name:      "set",
				Usage:     "Set a value; JSON literals are stored decoded",
				ArgsUsage: "<key> <value>",
				Action:    withApp(runSettingsSet),
			},
			{
				Name:      "delete",
				ArgsUsage: "<key>",
				Action:    withApp(runSettingsDelete),
			},
			{
				Name:   "list",
				Action: withApp(runSettingsList),
			},
			{
				Name:   "export",
				Usage:  "Write every setting as a YAML document",
				Action: withApp(runSettingsExport),
			},
		},
	}
}

func eventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Workflow lifecycle events",
		Commands: []*cli.Command{
			{
				Name:   "watch",
				Usage:  "Print lifecycle events from the configured event bus until interrupted",
				Action: withApp(runEventsWatch),
			},
		},
	}
}
