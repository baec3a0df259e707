package board

import (
	"sort"

	"github.com/google/uuid"

	"taskboard-api/domain"
)

// CreateColumn adds a custom column to a scope. The status value defaults to
// the column name; at most one active column may exist per status value in a
// scope, counting the built-in defaults.
func CreateColumn(scope, name string, status domain.Status, color string, order *int, stored []domain.Column) (domain.Column, error) {
	if name == "" {
		return domain.Column{}, InvalidColumnError{Reason: "column name is required"}
	}
	if status == "" {
		status = domain.Status(name)
	}

	for _, col := range ResolveColumns(scope, stored) {
		if col.StatusValue == status {
			return domain.Column{}, DuplicateColumnError{Scope: scope, Status: status}
		}
	}

	displayOrder := 0
	if order != nil {
		displayOrder = *order
	} else {
		for _, col := range ResolveColumns(scope, stored) {
			if col.Order >= displayOrder {
				displayOrder = col.Order + 1
			}
		}
	}

	if color == "" {
		color = "#6B7280"
	}

	return domain.Column{
		ID:          uuid.NewString(),
		Name:        name,
		StatusValue: status,
		Color:       color,
		ProjectID:   scope,
		Order:       displayOrder,
		IsActive:    true,
	}, nil
}

// DeleteColumn marks a stored column inactive. Deletion is refused when the
// column is the last active one for a status value that still has tasks
// assigned, because those tasks would drop off the board.
func DeleteColumn(columnID string, stored []domain.Column, tasks []domain.Task) (domain.Column, error) {
	idx := -1
	for i, col := range stored {
		if col.ID == columnID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.Column{}, domain.NotFoundError{Kind: "column", ID: columnID}
	}
	col := stored[idx]

	lastForStatus := true
	for i, other := range stored {
		if i == idx {
			continue
		}
		if other.ProjectID == col.ProjectID && other.StatusValue == col.StatusValue && other.IsActive {
			lastForStatus = false
			break
		}
	}
	if lastForStatus {
		for _, t := range tasks {
			if t.ProjectID == col.ProjectID && t.Status == col.StatusValue {
				return domain.Column{}, ColumnInUseError{ColumnID: columnID, Status: col.StatusValue}
			}
		}
	}

	col.IsActive = false
	return col, nil
}

// ReorderColumns assigns sequential display orders following orderedIDs. The
// ids must be an exact permutation of the scope's stored active columns;
// otherwise the request fails and the previous order stands.
func ReorderColumns(scope string, orderedIDs []string, stored []domain.Column) ([]domain.Column, error) {
	active := make(map[string]domain.Column)
	for _, col := range stored {
		if col.ProjectID == scope && col.IsActive && col.ID != "" {
			active[col.ID] = col
		}
	}

	if len(orderedIDs) != len(active) {
		return nil, InvalidReorderError{Reason: "id list does not cover the scope's active columns"}
	}
	seen := make(map[string]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		if seen[id] {
			return nil, InvalidReorderError{Reason: "duplicate column id " + id}
		}
		seen[id] = true
		if _, ok := active[id]; !ok {
			return nil, InvalidReorderError{Reason: "unknown or inactive column id " + id}
		}
	}

	out := make([]domain.Column, 0, len(orderedIDs))
	for i, id := range orderedIDs {
		col := active[id]
		col.Order = i
		out = append(out, col)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}
