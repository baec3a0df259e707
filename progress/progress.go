// Package progress derives task completion percentages from subtasks.
package progress

import "taskboard-api/domain"

// Compute returns the completion percentage for a task's subtasks as an
// integer between 0 and 100. A task without subtasks reports 0, and the
// result is floored so it only reaches 100 when every subtask is done.
func Compute(subtasks []domain.Subtask) int {
	if len(subtasks) == 0 {
		return 0
	}
	done := 0
	for _, st := range subtasks {
		if st.Done {
			done++
		}
	}
	return 100 * done / len(subtasks)
}

// ByTask groups subtasks by parent task and computes each task's percentage.
// Tasks without subtasks are absent from the result.
func ByTask(subtasks []domain.Subtask) map[string]int {
	grouped := make(map[string][]domain.Subtask)
	for _, st := range subtasks {
		grouped[st.TaskID] = append(grouped[st.TaskID], st)
	}
	out := make(map[string]int, len(grouped))
	for taskID, group := range grouped {
		out[taskID] = Compute(group)
	}
	return out
}
