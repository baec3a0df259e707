// Package board projects tasks and columns into an ordered, status-bucketed
// board and performs the validated mutations behind it.
//
// The package performs no I/O: every operation receives its full working set
// as arguments and returns updated records for the caller to persist, so it
// is safe to call concurrently across independent scopes.
package board

import (
	"sort"

	"taskboard-api/domain"
	"taskboard-api/progress"
)

// TransitionFunc decides whether a task may change status. It returns false
// and a human-readable reason to veto the move.
type TransitionFunc func(task domain.Task, oldStatus, newStatus domain.Status) (bool, string)

// Engine performs board projections and moves. It holds only the transition
// policy supplied by the application layer.
type Engine struct {
	allow TransitionFunc
}

// NewEngine creates an engine with the given transition policy. A nil policy
// allows every transition.
func NewEngine(allow TransitionFunc) *Engine {
	return &Engine{allow: allow}
}

// Card is the board's view of one task.
type Card struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Priority    string        `json:"priority,omitempty"`
	Labels      []string      `json:"labels,omitempty"`
	DeadlineMS  int64         `json:"deadlineTimestampMs,omitempty"`
	Status      domain.Status `json:"status"`
	Order       float64       `json:"order"`
	Progress    int           `json:"progress"`
}

// ColumnView is one rendered column with its cards in display order.
type ColumnView struct {
	domain.Column
	Cards []Card `json:"cards"`
}

// Board is the ephemeral per-scope projection of tasks into columns.
type Board struct {
	ProjectID string       `json:"projectId,omitempty"`
	Columns   []ColumnView `json:"columns"`
}

// UnassignedColumnName labels the synthetic column holding tasks whose status
// matches no active column. It surfaces configuration drift instead of
// silently dropping tasks from the board.
const UnassignedColumnName = "Unassigned"

var defaultColumns = []domain.Column{
	{Name: "ToDo", StatusValue: domain.StatusToDo, Color: "#6B7280", Order: 0, IsDefault: true, IsActive: true},
	{Name: "In Progress", StatusValue: domain.StatusInProgress, Color: "#3B82F6", Order: 1, IsDefault: true, IsActive: true},
	{Name: "Done", StatusValue: domain.StatusDone, Color: "#10B981", Order: 2, IsDefault: true, IsActive: true},
}

// DefaultColumns returns the built-in columns every scope starts with.
func DefaultColumns() []domain.Column {
	out := make([]domain.Column, len(defaultColumns))
	copy(out, defaultColumns)
	return out
}

// ResolveColumns merges the built-in defaults with a scope's stored columns.
// A stored row for a default status replaces that default; a deactivated row
// removes it. The result is sorted by display order and carries at most one
// column per status value.
func ResolveColumns(scope string, stored []domain.Column) []domain.Column {
	covered := make(map[domain.Status]bool)
	resolved := make([]domain.Column, 0, len(defaultColumns)+len(stored))

	for _, col := range stored {
		if col.ProjectID != scope {
			continue
		}
		covered[col.StatusValue] = true
		if col.IsActive {
			resolved = append(resolved, col)
		}
	}
	for _, def := range defaultColumns {
		if !covered[def.StatusValue] {
			def.ProjectID = scope
			resolved = append(resolved, def)
		}
	}

	sort.SliceStable(resolved, func(i, j int) bool { return resolved[i].Order < resolved[j].Order })

	seen := make(map[domain.Status]bool, len(resolved))
	active := resolved[:0]
	for _, col := range resolved {
		if seen[col.StatusValue] {
			continue
		}
		seen[col.StatusValue] = true
		active = append(active, col)
	}
	return active
}

// Assemble builds the board for a scope from its columns, tasks and subtasks.
func (e *Engine) Assemble(scope string, columns []domain.Column, tasks []domain.Task, subtasks []domain.Subtask) Board {
	resolved := ResolveColumns(scope, columns)
	byTask := progress.ByTask(subtasks)

	buckets := make(map[domain.Status][]domain.Task)
	for _, t := range tasks {
		if t.ProjectID != scope {
			continue
		}
		buckets[t.Status] = append(buckets[t.Status], t)
	}

	b := Board{ProjectID: scope, Columns: make([]ColumnView, 0, len(resolved)+1)}
	for _, col := range resolved {
		view := ColumnView{Column: col, Cards: cardsFor(buckets[col.StatusValue], byTask)}
		delete(buckets, col.StatusValue)
		b.Columns = append(b.Columns, view)
	}

	// Whatever is left has no active column.
	if len(buckets) > 0 {
		var orphans []domain.Task
		for _, ts := range buckets {
			orphans = append(orphans, ts...)
		}
		maxOrder := 0
		for _, col := range resolved {
			if col.Order >= maxOrder {
				maxOrder = col.Order + 1
			}
		}
		b.Columns = append(b.Columns, ColumnView{
			Column: domain.Column{Name: UnassignedColumnName, ProjectID: scope, Order: maxOrder, IsActive: true},
			Cards:  cardsFor(orphans, byTask),
		})
	}

	return b
}

func cardsFor(bucket []domain.Task, progressByTask map[string]int) []Card {
	sorted := sortBucket(bucket)
	cards := make([]Card, 0, len(sorted))
	for _, t := range sorted {
		cards = append(cards, Card{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			Priority:    t.Priority,
			Labels:      t.Labels,
			DeadlineMS:  t.DeadlineMS,
			Status:      t.Status,
			Order:       t.Order,
			Progress:    progressByTask[t.ID],
		})
	}
	return cards
}

// sortBucket orders tasks by key ascending, ties broken by id.
func sortBucket(bucket []domain.Task) []domain.Task {
	sorted := make([]domain.Task, len(bucket))
	copy(sorted, bucket)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Order != sorted[j].Order {
			return sorted[i].Order < sorted[j].Order
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}
