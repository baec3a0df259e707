package api

import (
	"fmt"

	"taskboard-api/board"
	"taskboard-api/depgraph"
	"taskboard-api/domain"
)

// completionPolicy builds the transition rule applied to status-changing
// moves: a task may not be completed while a predecessor in its dependency
// chain is still open. Cancelled predecessors do not block completion.
func completionPolicy(tasks []domain.Task) board.TransitionFunc {
	return func(task domain.Task, _, to domain.Status) (bool, string) {
		if to != domain.StatusDone {
			return true, ""
		}
		chain, err := depgraph.New(tasks).Chain(task.ID)
		if err != nil {
			// Unknown task is caught by the move itself.
			return true, ""
		}
		for _, pred := range chain.Predecessors {
			if pred.Status != domain.StatusDone && pred.Status != domain.StatusCancelled {
				return false, fmt.Sprintf("cannot complete task %s before predecessor %s is done", task.ID, pred.ID)
			}
		}
		return true, ""
	}
}
