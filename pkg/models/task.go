package models

import (
	"errors"
	"fmt"
)

// ErrNotATree indicates a task is reachable more than once through
// NextTasks, either through a back edge or a shared child.
var ErrNotATree = errors.New("task reached more than once")

// Built-in function types understood by the handler registry.
const (
	FunctionTypeCLICommand  = "cli_command"
	FunctionTypeCursorAgent = "cursor_agent"
	FunctionTypeUserInput   = "user_input"
)

// TaskFunction is the work a task performs. Each variant carries its own
// input payload; the engine only needs the function type to resolve a handler.
type TaskFunction interface {
	FunctionType() string
}

// CLICommand runs a shell command.
type CLICommand struct {
	Command    string            `json:"command"               validate:"required"`
	Args       []string          `json:"args,omitempty"`
	WorkingDir string            `json:"working_dir,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
}

func (CLICommand) FunctionType() string { return FunctionTypeCLICommand }

// AgentPrompt sends a prompt to a coding agent.
type AgentPrompt struct {
	Prompt string `json:"prompt"          validate:"required"`
	Model  string `json:"model,omitempty"`
}

func (AgentPrompt) FunctionType() string { return FunctionTypeCursorAgent }

// UserInputPrompt suspends the workflow until a human supplies a value.
type UserInputPrompt struct {
	Prompt    string `json:"prompt"               validate:"required"`
	InputType string `json:"input_type,omitempty"`
	Default   string `json:"default,omitempty"`
}

func (UserInputPrompt) FunctionType() string { return FunctionTypeUserInput }

// CustomFunction dispatches to a handler registered under Name.
type CustomFunction struct {
	Name  string         `json:"name"            validate:"required"`
	Input map[string]any `json:"input,omitempty"`
}

func (f CustomFunction) FunctionType() string { return f.Name }

// Task is the engine view of a workflow step.
//
// In the tree model children are reached through NextTasks and only root
// tasks (IsRoot) start a traversal. In the flat model the tree fields are
// ignored and ordering comes from Dependencies.
type Task struct {
	ID           string       `json:"id"                     validate:"required"`
	Name         string       `json:"name"`
	Function     TaskFunction `json:"-"                      validate:"required"`
	NextTasks    []*Task      `json:"next_tasks,omitempty"`
	IsRoot       bool         `json:"is_root"`
	Dependencies []string     `json:"dependencies,omitempty"`
	Status       TaskStatus   `json:"status,omitempty"`
}

// FunctionType returns the handler key of the task's function, or "" when
// the task has no function.
func (t *Task) FunctionType() string {
	if t.Function == nil {
		return ""
	}

	return t.Function.FunctionType()
}

// DisplayName returns Name, falling back to the ID.
func (t *Task) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}

	return t.ID
}

// Walk visits t and every task below it in pre-order. A task reached a
// second time is skipped, so a malformed tree still terminates.
func (t *Task) Walk(visit func(*Task)) {
	t.walk(visit, make(map[*Task]struct{}))
}

func (t *Task) walk(visit func(*Task), seen map[*Task]struct{}) {
	if _, ok := seen[t]; ok {
		return
	}

	seen[t] = struct{}{}
	visit(t)

	for _, child := range t.NextTasks {
		if child != nil {
			child.walk(visit, seen)
		}
	}
}

// EngineWorkflow is a tree-shaped workflow ready for execution.
type EngineWorkflow struct {
	ID    string  `json:"id"    validate:"required"`
	Name  string  `json:"name"  validate:"required"`
	Tasks []*Task `json:"tasks" validate:"required,min=1,dive,required"`
}

// AllTasks flattens the tree in pre-order, starting from each top-level
// task. Every task appears once.
func (w *EngineWorkflow) AllTasks() []*Task {
	var tasks []*Task

	seen := make(map[*Task]struct{})
	for _, task := range w.Tasks {
		if task != nil {
			task.walk(func(t *Task) { tasks = append(tasks, t) }, seen)
		}
	}

	return tasks
}

// CheckTree reports the first task reachable more than once.
func (w *EngineWorkflow) CheckTree() error {
	seen := make(map[*Task]struct{})

	var check func(task *Task) error
	check = func(task *Task) error {
		if _, ok := seen[task]; ok {
			return fmt.Errorf("%w: %s", ErrNotATree, task.ID)
		}

		seen[task] = struct{}{}

		for _, child := range task.NextTasks {
			if child == nil {
				continue
			}

			if err := check(child); err != nil {
				return err
			}
		}

		return nil
	}

	for _, task := range w.Tasks {
		if task == nil {
			continue
		}

		if err := check(task); err != nil {
			return err
		}
	}

	return nil
}

// FlatWorkflow is a workflow whose tasks declare dependencies by id.
type FlatWorkflow struct {
	ID    string  `json:"id"    validate:"required"`
	Name  string  `json:"name"  validate:"required"`
	Tasks []*Task `json:"tasks" validate:"required,min=1,dive,required"`
}
