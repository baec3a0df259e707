package domain

// Status identifies the board column a task belongs to. Custom columns may
// introduce values beyond the well-known ones, so it is an open string set.
type Status string

const (
	StatusToDo       Status = "ToDo"
	StatusInProgress Status = "In Progress"
	StatusWaiting    Status = "Waiting"
	StatusBlocked    Status = "Blocked"
	StatusDone       Status = "Done"
	StatusCancelled  Status = "Cancelled"
)

// String returns the status as a plain string.
func (s Status) String() string {
	return string(s)
}

// IsKnown reports whether the status is one of the built-in values.
func (s Status) IsKnown() bool {
	switch s {
	case StatusToDo, StatusInProgress, StatusWaiting, StatusBlocked, StatusDone, StatusCancelled:
		return true
	default:
		return false
	}
}

// Task represents a single trackable unit of work.
type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Status      Status   `json:"status"`
	Priority    string   `json:"priority,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	// DeadlineMS is milliseconds since epoch, zero when no deadline is set.
	DeadlineMS int64 `json:"deadlineTimestampMs,omitempty"`
	// ProjectID is empty for tasks in the user's personal scope.
	ProjectID string `json:"projectId,omitempty"`
	// Order is the fractional index fixing the task's position within its column.
	Order float64 `json:"order"`
	// PrevID and NextID form the dependency chain; a task has at most one of each.
	PrevID string `json:"previousTaskId,omitempty"`
	NextID string `json:"nextTaskId,omitempty"`
}

// Subtask is a boolean-completion child item of a task.
type Subtask struct {
	ID     string `json:"id"`
	TaskID string `json:"taskId"`
	Title  string `json:"title"`
	Done   bool   `json:"done,omitempty"`
}
