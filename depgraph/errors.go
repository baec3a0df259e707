package depgraph

import "fmt"

// DependencyCycleError reports a link that would make the successor chain
// loop back on itself.
type DependencyCycleError struct {
	TaskID        string
	PredecessorID string
}

func (e DependencyCycleError) Error() string {
	return fmt.Sprintf("linking task %s after %s would create a circular dependency", e.TaskID, e.PredecessorID)
}

// InvalidDependencyError reports a structurally invalid link request, such as
// a self-link or a predecessor that already has a successor.
type InvalidDependencyError struct {
	Reason string
}

func (e InvalidDependencyError) Error() string {
	return "invalid dependency: " + e.Reason
}
