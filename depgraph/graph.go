// Package depgraph maintains the predecessor/successor links between tasks.
//
// Links form a simple chain: every task has at most one predecessor and one
// successor, and walking successor pointers always terminates. The package is
// a pure graph; completion policy built on top of chains belongs to callers.
package depgraph

import (
	"taskboard-api/domain"
)

// Graph is an id-keyed view over a snapshot of tasks. It is built per call
// from the caller's working set and retains nothing between operations;
// accepted mutations are returned as updated records for the caller to
// persist.
type Graph struct {
	tasks map[string]domain.Task
}

// New builds a graph from the given tasks. Later duplicates of an id win.
func New(tasks []domain.Task) *Graph {
	g := &Graph{tasks: make(map[string]domain.Task, len(tasks))}
	for _, t := range tasks {
		g.tasks[t.ID] = t
	}
	return g
}

// SetDependency links predecessorID directly before taskID and returns the
// records changed by the link, task first. A predecessor that already feeds a
// different task is rejected, as is any link that would close a cycle; on
// failure the graph is left untouched.
func (g *Graph) SetDependency(taskID, predecessorID string) ([]domain.Task, error) {
	task, ok := g.tasks[taskID]
	if !ok {
		return nil, domain.NotFoundError{Kind: "task", ID: taskID}
	}
	pred, ok := g.tasks[predecessorID]
	if !ok {
		return nil, domain.NotFoundError{Kind: "task", ID: predecessorID}
	}
	if taskID == predecessorID {
		return nil, InvalidDependencyError{Reason: "task cannot depend on itself"}
	}
	if pred.NextID != "" && pred.NextID != taskID {
		return nil, InvalidDependencyError{Reason: "predecessor " + predecessorID + " already has a successor"}
	}

	// Tentative link on copies, then a bounded walk over successor pointers
	// starting at the predecessor. Revisiting the task means the link closed
	// a loop.
	next := func(id string) string {
		if id == predecessorID {
			return taskID
		}
		return g.tasks[id].NextID
	}
	seenTask := false
	cur := predecessorID
	// One extra step past the task count: the first visit of the task is the
	// tentative link itself, the revisit that proves a loop comes one hop
	// after the walk has been through every node.
	for steps := 0; steps <= len(g.tasks); steps++ {
		cur = next(cur)
		if cur == "" {
			break
		}
		if cur == taskID {
			if seenTask {
				return nil, DependencyCycleError{TaskID: taskID, PredecessorID: predecessorID}
			}
			seenTask = true
		}
	}

	updated := make([]domain.Task, 0, 3)

	// Replacing the task's own predecessor releases the old one in the same
	// logical unit.
	if task.PrevID != "" && task.PrevID != predecessorID {
		if old, ok := g.tasks[task.PrevID]; ok {
			old.NextID = ""
			g.tasks[old.ID] = old
			updated = append(updated, old)
		}
	}

	task.PrevID = predecessorID
	pred.NextID = taskID
	g.tasks[task.ID] = task
	g.tasks[pred.ID] = pred

	return append([]domain.Task{task, pred}, updated...), nil
}

// RemoveDependency clears the link between taskID and its predecessor on both
// ends. Removing a link that does not exist is a no-op returning no updates.
func (g *Graph) RemoveDependency(taskID string) ([]domain.Task, error) {
	task, ok := g.tasks[taskID]
	if !ok {
		return nil, domain.NotFoundError{Kind: "task", ID: taskID}
	}
	if task.PrevID == "" {
		return nil, nil
	}

	updated := make([]domain.Task, 0, 2)
	if pred, ok := g.tasks[task.PrevID]; ok && pred.NextID == taskID {
		pred.NextID = ""
		g.tasks[pred.ID] = pred
		updated = append(updated, pred)
	}
	task.PrevID = ""
	g.tasks[task.ID] = task
	return append([]domain.Task{task}, updated...), nil
}

// Task returns the current snapshot record for id.
func (g *Graph) Task(id string) (domain.Task, bool) {
	t, ok := g.tasks[id]
	return t, ok
}

// Len returns the number of tasks in the snapshot.
func (g *Graph) Len() int {
	return len(g.tasks)
}
