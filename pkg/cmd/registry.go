// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/dukex/taskflow/pkg/handlers/clicommand"
	loghandler "github.com/dukex/taskflow/pkg/handlers/log"
	"github.com/dukex/taskflow/pkg/handlers/userinput"
	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/registry"
)

func registerNativeHandlers(reg *registry.Registry, log *slog.Logger) {
	reg.Register(models.FunctionTypeCLICommand, clicommand.New(log))
	reg.Register(models.FunctionTypeUserInput, userinput.New())
	reg.Register(loghandler.FunctionType, loghandler.New())
}

// NewRegistry returns a registry with the built-in handlers.
func NewRegistry(log *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(log)

	registerNativeHandlers(reg, log)

	return reg
}
