// Package graph builds and queries the dependency graph of a flat task list.
package graph

import (
	"github.com/dukex/taskflow/pkg/models"
)

// DependencyGraph holds forward (dependencies) and reverse (dependents)
// adjacency for a task set. A constructed graph is always acyclic.
type DependencyGraph struct {
	tasks        map[string]*models.Task
	order        []string
	dependencies map[string][]string
	dependents   map[string][]string
}

// New validates the task set and builds the graph. Every dependency must
// reference a task in the set, and the relation must be acyclic.
func New(tasks []*models.Task) (*DependencyGraph, error) {
	g, err := build(tasks)
	if err != nil {
		return nil, err
	}

	if taskID, found := g.findCycle(); found {
		return nil, &DependencyError{TaskID: taskID, Err: ErrCircularDependency}
	}

	return g, nil
}

// HasCircularDependency reports whether the task list contains a cycle
// without requiring it to form a valid graph first. Validation callers use
// it to report cycles separately from construction errors.
func HasCircularDependency(tasks []*models.Task) bool {
	return lenient(tasks).HasCircularDependency()
}

// lenient builds adjacency straight from the declared dependencies. Unknown
// ids are skipped and duplicate ids merge their dependency lists.
func lenient(tasks []*models.Task) *DependencyGraph {
	g := &DependencyGraph{
		tasks:        make(map[string]*models.Task, len(tasks)),
		order:        make([]string, 0, len(tasks)),
		dependencies: make(map[string][]string, len(tasks)),
		dependents:   make(map[string][]string, len(tasks)),
	}

	for _, task := range tasks {
		if task == nil {
			continue
		}

		if _, exists := g.tasks[task.ID]; !exists {
			g.tasks[task.ID] = task
			g.order = append(g.order, task.ID)
		}
	}

	for _, task := range tasks {
		if task == nil {
			continue
		}

		for _, depID := range task.Dependencies {
			if _, ok := g.tasks[depID]; !ok {
				continue
			}

			g.dependencies[task.ID] = append(g.dependencies[task.ID], depID)
			g.dependents[depID] = append(g.dependents[depID], task.ID)
		}
	}

	return g
}

func build(tasks []*models.Task) (*DependencyGraph, error) {
	g := &DependencyGraph{
		tasks:        make(map[string]*models.Task, len(tasks)),
		order:        make([]string, 0, len(tasks)),
		dependencies: make(map[string][]string, len(tasks)),
		dependents:   make(map[string][]string, len(tasks)),
	}

	for _, task := range tasks {
		if _, exists := g.tasks[task.ID]; exists {
			return nil, &DependencyError{TaskID: task.ID, Err: ErrDuplicateTask}
		}

		g.tasks[task.ID] = task
		g.order = append(g.order, task.ID)
	}

	for _, task := range tasks {
		for _, depID := range task.Dependencies {
			if _, ok := g.tasks[depID]; !ok {
				return nil, &DependencyError{TaskID: task.ID, DependencyID: depID, Err: ErrInvalidDependency}
			}
		}
	}

	for _, task := range tasks {
		g.dependencies[task.ID] = append([]string(nil), task.Dependencies...)
		for _, depID := range task.Dependencies {
			g.dependents[depID] = append(g.dependents[depID], task.ID)
		}
	}

	return g, nil
}

// Len returns the number of tasks in the graph.
func (g *DependencyGraph) Len() int {
	return len(g.order)
}

// Task returns the task with the given id.
func (g *DependencyGraph) Task(id string) (*models.Task, bool) {
	task, ok := g.tasks[id]

	return task, ok
}

// Tasks returns all tasks in input order.
func (g *DependencyGraph) Tasks() []*models.Task {
	out := make([]*models.Task, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.tasks[id])
	}

	return out
}

// Dependencies returns the ids the task depends on.
func (g *DependencyGraph) Dependencies(id string) []string {
	return g.dependencies[id]
}

// Dependents returns the ids of tasks that depend directly on id.
func (g *DependencyGraph) Dependents(id string) []string {
	return g.dependents[id]
}

// Descendants returns every task reachable from id through dependents,
// excluding id itself, in breadth-first order.
func (g *DependencyGraph) Descendants(id string) []string {
	seen := map[string]bool{id: true}
	queue := append([]string(nil), g.dependents[id]...)

	var out []string
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		if seen[curr] {
			continue
		}
		seen[curr] = true
		out = append(out, curr)
		queue = append(queue, g.dependents[curr]...)
	}

	return out
}

// GetReadyTasks returns, in input order, the tasks that are not completed
// and whose every dependency is completed. Running tasks are not tracked
// here; callers exclude them.
func (g *DependencyGraph) GetReadyTasks(completed map[string]struct{}) []*models.Task {
	var ready []*models.Task

	for _, id := range g.order {
		if _, done := completed[id]; done {
			continue
		}

		if g.dependenciesMet(id, completed) {
			ready = append(ready, g.tasks[id])
		}
	}

	return ready
}

func (g *DependencyGraph) dependenciesMet(id string, completed map[string]struct{}) bool {
	for _, depID := range g.dependencies[id] {
		if _, done := completed[depID]; !done {
			return false
		}
	}

	return true
}

// HasCircularDependency runs a DFS over every node and reports whether a
// back edge exists.
func (g *DependencyGraph) HasCircularDependency() bool {
	_, found := g.findCycle()

	return found
}

func (g *DependencyGraph) findCycle() (string, bool) {
	visited := make(map[string]bool, len(g.order))
	onStack := make(map[string]bool, len(g.order))

	var visit func(id string) (string, bool)
	visit = func(id string) (string, bool) {
		visited[id] = true
		onStack[id] = true

		for _, depID := range g.dependencies[id] {
			if onStack[depID] {
				return depID, true
			}

			if !visited[depID] {
				if cycleAt, found := visit(depID); found {
					return cycleAt, true
				}
			}
		}

		onStack[id] = false

		return "", false
	}

	for _, id := range g.order {
		if visited[id] {
			continue
		}

		if cycleAt, found := visit(id); found {
			return cycleAt, true
		}
	}

	return "", false
}

// GetExecutionOrder returns a topological order computed with Kahn's
// algorithm. Dependencies always precede their dependents.
func (g *DependencyGraph) GetExecutionOrder() ([]string, error) {
	inDegree := make(map[string]int, len(g.order))

	var queue []string
	for _, id := range g.order {
		inDegree[id] = len(g.dependencies[id])
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	sorted := make([]string, 0, len(g.order))
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		sorted = append(sorted, curr)

		for _, dependent := range g.dependents[curr] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(sorted) != len(g.order) {
		return nil, &DependencyError{TaskID: firstUnsorted(g.order, sorted), Err: ErrCircularDependency}
	}

	return sorted, nil
}

func firstUnsorted(all, sorted []string) string {
	done := make(map[string]bool, len(sorted))
	for _, id := range sorted {
		done[id] = true
	}

	for _, id := range all {
		if !done[id] {
			return id
		}
	}

	return ""
}
