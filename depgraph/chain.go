package depgraph

import "taskboard-api/domain"

// ChainEntry is one node in a dependency chain.
type ChainEntry struct {
	ID     string        `json:"id"`
	Title  string        `json:"title"`
	Status domain.Status `json:"status"`
	PrevID string        `json:"previousTaskId,omitempty"`
	NextID string        `json:"nextTaskId,omitempty"`
}

// Chain holds a task's dependency context. Predecessors are ordered nearest
// first, successors likewise. Truncated reports that a walk hit the task
// count cap, which only happens on corrupted link data.
type Chain struct {
	TaskID       string       `json:"taskId"`
	Predecessors []ChainEntry `json:"predecessors"`
	Successors   []ChainEntry `json:"successors"`
	Truncated    bool         `json:"truncated,omitempty"`
}

// Report summarizes a read-only link validation, typically run after a bulk
// import.
type Report struct {
	TaskID      string `json:"taskId"`
	Valid       bool   `json:"valid"`
	Cycle       bool   `json:"cycle,omitempty"`
	ChainLength int    `json:"chainLength"`
	Message     string `json:"message"`
}

func entryFor(t domain.Task) ChainEntry {
	return ChainEntry{ID: t.ID, Title: t.Title, Status: t.Status, PrevID: t.PrevID, NextID: t.NextID}
}

// Chain walks backward and forward from taskID and returns both sides of the
// chain. Each direction is capped at the total task count so corrupted data
// cannot loop forever; hitting the cap sets Truncated instead of failing.
func (g *Graph) Chain(taskID string) (Chain, error) {
	task, ok := g.tasks[taskID]
	if !ok {
		return Chain{}, domain.NotFoundError{Kind: "task", ID: taskID}
	}

	chain := Chain{TaskID: taskID}
	limit := len(g.tasks)

	cur := task.PrevID
	for steps := 0; cur != ""; steps++ {
		if steps >= limit {
			chain.Truncated = true
			break
		}
		node, ok := g.tasks[cur]
		if !ok {
			break
		}
		chain.Predecessors = append(chain.Predecessors, entryFor(node))
		cur = node.PrevID
	}

	cur = task.NextID
	for steps := 0; cur != ""; steps++ {
		if steps >= limit {
			chain.Truncated = true
			break
		}
		node, ok := g.tasks[cur]
		if !ok {
			break
		}
		chain.Successors = append(chain.Successors, entryFor(node))
		cur = node.NextID
	}

	return chain, nil
}

// Validate checks that the chains through taskID resolve and stay acyclic
// without modifying anything.
func (g *Graph) Validate(taskID string) (Report, error) {
	task, ok := g.tasks[taskID]
	if !ok {
		return Report{}, domain.NotFoundError{Kind: "task", ID: taskID}
	}

	visited := map[string]struct{}{taskID: {}}
	cycle := false

	walk := func(start string, next func(domain.Task) string) {
		cur := start
		for cur != "" {
			if _, seen := visited[cur]; seen {
				cycle = true
				return
			}
			visited[cur] = struct{}{}
			node, ok := g.tasks[cur]
			if !ok {
				return
			}
			cur = next(node)
		}
	}

	walk(task.PrevID, func(t domain.Task) string { return t.PrevID })
	if !cycle {
		walk(task.NextID, func(t domain.Task) string { return t.NextID })
	}

	report := Report{TaskID: taskID, Valid: !cycle, Cycle: cycle}
	if cycle {
		report.Message = "circular dependency detected"
	} else {
		report.ChainLength = len(visited)
		report.Message = "dependency chain is valid"
	}
	return report, nil
}
