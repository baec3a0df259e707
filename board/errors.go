package board

import (
	"fmt"

	"taskboard-api/domain"
)

// DuplicateColumnError reports a second active column for a status value.
type DuplicateColumnError struct {
	Scope  string
	Status domain.Status
}

func (e DuplicateColumnError) Error() string {
	return fmt.Sprintf("an active column for status %q already exists in scope %q", e.Status, e.Scope)
}

// ColumnInUseError reports a delete that would orphan assigned tasks.
type ColumnInUseError struct {
	ColumnID string
	Status   domain.Status
}

func (e ColumnInUseError) Error() string {
	return fmt.Sprintf("column %s is the last active column for status %q and still has tasks", e.ColumnID, e.Status)
}

// InvalidColumnError reports a malformed column definition.
type InvalidColumnError struct {
	Reason string
}

func (e InvalidColumnError) Error() string {
	return "invalid column: " + e.Reason
}

// InvalidReorderError reports a reorder request that is not an exact
// permutation of the scope's active columns.
type InvalidReorderError struct {
	Reason string
}

func (e InvalidReorderError) Error() string {
	return "invalid column reorder: " + e.Reason
}

// TransitionRejectedError carries the policy's verbatim reason for vetoing a
// status change.
type TransitionRejectedError struct {
	TaskID string
	From   domain.Status
	To     domain.Status
	Reason string
}

func (e TransitionRejectedError) Error() string {
	return fmt.Sprintf("transition of task %s from %q to %q rejected: %s", e.TaskID, e.From, e.To, e.Reason)
}
