package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dukex/taskflow/pkg/cmd"
	"github.com/dukex/taskflow/pkg/events"
	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/services"
	cli "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

var errMissingArgument = errors.New("missing argument")

func requireArgs(command *cli.Command, names ...string) ([]string, error) {
	if command.Args().Len() < len(names) {
		return nil, fmt.Errorf("%w: expected %v", errMissingArgument, names)
	}

	return command.Args().Slice()[:len(names)], nil
}

func runHealth(ctx context.Context, a *app, _ *cli.Command) error {
	p, err := a.persistence()
	if err != nil {
		return err
	}

	message, healthy := services.NewExecution(p, nil, a.logger).HealthCheck(ctx)
	if err := a.print(map[string]any{"healthy": healthy, "message": message}); err != nil {
		return err
	}

	if !healthy {
		return errors.New(message)
	}

	return nil
}

func runExecutionsList(ctx context.Context, a *app, command *cli.Command) error {
	p, err := a.persistence()
	if err != nil {
		return err
	}

	executions, err := p.WorkflowRepository().ListExecutions(ctx, command.Int("limit"))
	if err != nil {
		return err
	}

	type row struct {
		ID           string `json:"id"            yaml:"id"`
		WorkflowName string `json:"workflow_name" yaml:"workflow_name"`
		Timestamp    string `json:"timestamp"     yaml:"timestamp"`
		Success      bool   `json:"success"       yaml:"success"`
		Errors       int    `json:"errors"        yaml:"errors"`
	}

	rows := make([]row, 0, len(executions))
	for _, e := range executions {
		rows = append(rows, row{
			ID:           e.ID,
			WorkflowName: e.WorkflowName,
			Timestamp:    e.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			Success:      e.Success,
			Errors:       len(e.Errors),
		})
	}

	return a.print(rows)
}

func runExecutionsShow(ctx context.Context, a *app, command *cli.Command) error {
	args, err := requireArgs(command, "execution-id")
	if err != nil {
		return err
	}

	p, err := a.persistence()
	if err != nil {
		return err
	}

	execution, err := p.WorkflowRepository().GetExecution(ctx, args[0])
	if err != nil {
		return err
	}

	tasks, err := p.TaskRepository().ListTaskExecutions(ctx, args[0])
	if err != nil {
		return err
	}

	audit, err := p.WorkflowRepository().ListAuditEntries(ctx, args[0])
	if err != nil {
		return err
	}

	return a.print(map[string]any{
		"execution": execution,
		"tasks":     tasks,
		"audit":     audit,
	})
}

func runExecutionsDelete(ctx context.Context, a *app, command *cli.Command) error {
	args, err := requireArgs(command, "execution-id")
	if err != nil {
		return err
	}

	p, err := a.persistence()
	if err != nil {
		return err
	}

	if err := p.WorkflowRepository().DeleteExecution(ctx, args[0]); err != nil {
		return err
	}

	return a.print(map[string]any{"deleted": args[0]})
}

func runMetadataList(ctx context.Context, a *app, command *cli.Command) error {
	p, err := a.persistence()
	if err != nil {
		return err
	}

	var metadata []*models.WorkflowMetadata

	if status := command.String("status"); status != "" {
		metadata, err = p.WorkflowRepository().ListMetadataByStatus(ctx, models.WorkflowStatus(status), command.Int("limit"))
	} else {
		metadata, err = p.WorkflowRepository().ListMetadata(ctx, command.Int("limit"))
	}

	if err != nil {
		return err
	}

	return a.print(metadata)
}

func runMetadataShow(ctx context.Context, a *app, command *cli.Command) error {
	args, err := requireArgs(command, "execution-id")
	if err != nil {
		return err
	}

	p, err := a.persistence()
	if err != nil {
		return err
	}

	joined, err := p.WorkflowRepository().GetWithTasks(ctx, args[0])
	if err != nil {
		return err
	}

	return a.print(joined)
}

func runSettingsGet(ctx context.Context, a *app, command *cli.Command) error {
	args, err := requireArgs(command, "key")
	if err != nil {
		return err
	}

	p, err := a.persistence()
	if err != nil {
		return err
	}

	setting, err := p.SettingsRepository().Get(ctx, args[0])
	if err != nil {
		return err
	}

	return a.print(setting)
}

func runSettingsSet(ctx context.Context, a *app, command *cli.Command) error {
	args, err := requireArgs(command, "key", "value")
	if err != nil {
		return err
	}

	p, err := a.persistence()
	if err != nil {
		return err
	}

	return p.SettingsRepository().Set(ctx, args[0], parseValue(args[1]))
}

func runSettingsDelete(ctx context.Context, a *app, command *cli.Command) error {
	args, err := requireArgs(command, "key")
	if err != nil {
		return err
	}

	p, err := a.persistence()
	if err != nil {
		return err
	}

	return p.SettingsRepository().Delete(ctx, args[0])
}

func runSettingsList(ctx context.Context, a *app, _ *cli.Command) error {
	p, err := a.persistence()
	if err != nil {
		return err
	}

	settings, err := p.SettingsRepository().List(ctx)
	if err != nil {
		return err
	}

	return a.print(settings)
}

func runSettingsExport(ctx context.Context, a *app, _ *cli.Command) error {
	p, err := a.persistence()
	if err != nil {
		return err
	}

	settings, err := p.SettingsRepository().List(ctx)
	if err != nil {
		return err
	}

	doc := make(map[string]any, len(settings))
	for _, s := range settings {
		doc[s.Key] = s.Value
	}

	enc := yaml.NewEncoder(a.out)
	enc.SetIndent(2)

	if err := enc.Encode(doc); err != nil {
		return err
	}

	return enc.Close()
}

func runEventsWatch(ctx context.Context, a *app, _ *cli.Command) error {
	bus, err := cmd.NewEventBus(a.cfg, a.logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := bus.Close(); err != nil {
			a.logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	printEvent := func(_ context.Context, event any) error {
		return a.print(event)
	}

	for _, eventType := range []events.EventType{
		events.WorkflowExecutionStartedEvent,
		events.WorkflowExecutionResumedEvent,
		events.WorkflowExecutionPausedEvent,
		events.WorkflowExecutionCompletedEvent,
		events.WorkflowExecutionFailedEvent,
		events.TaskCompletedEvent,
		events.TaskFailedEvent,
		events.TaskWaitingForInputEvent,
	} {
		if err := bus.Handle(eventType, printEvent); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := bus.Subscribe(ctx); err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "Watching lifecycle events", "event_bus", a.cfg.EventBus)

	<-ctx.Done()

	return nil
}

// parseValue stores JSON literals decoded and anything else as a string.
func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}

	return raw
}
