// Package registry maps function-type strings to task handlers.
package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/dukex/taskflow/pkg/protocol"
)

type Registry struct {
	logger   *slog.Logger
	mu       sync.RWMutex
	handlers map[string]protocol.Handler
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:   log,
		handlers: make(map[string]protocol.Handler),
	}
}

// Register binds a handler to a function type, replacing any previous one.
func (r *Registry) Register(functionType string, handler protocol.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[functionType]; exists {
		r.logger.Warn("Replacing registered handler", "function_type", functionType)
	}

	r.handlers[functionType] = handler
}

// RegisterFunc is Register for plain functions.
func (r *Registry) RegisterFunc(functionType string, fn protocol.HandlerFunc) {
	r.Register(functionType, fn)
}

// Lookup resolves the handler for a function type.
func (r *Registry) Lookup(functionType string) (protocol.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[functionType]

	return handler, ok
}

// Resolve is Lookup returning an error for unknown types.
func (r *Registry) Resolve(functionType string) (protocol.Handler, error) {
	handler, ok := r.Lookup(functionType)
	if !ok {
		return nil, fmt.Errorf("No handler found for function type: %s", functionType)
	}

	return handler, nil
}

// Types returns the registered function types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)

	return types
}
