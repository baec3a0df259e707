package board

import (
	"testing"

	"taskboard-api/domain"
)

func TestResolveColumnsDefaultsOnly(t *testing.T) {
	cols := ResolveColumns("p1", nil)
	if len(cols) != 3 {
		t.Fatalf("expected 3 default columns, got %d", len(cols))
	}
	want := []domain.Status{domain.StatusToDo, domain.StatusInProgress, domain.StatusDone}
	for i, s := range want {
		if cols[i].StatusValue != s {
			t.Fatalf("column %d has status %q, want %q", i, cols[i].StatusValue, s)
		}
		if cols[i].Order != i {
			t.Fatalf("column %d has order %d", i, cols[i].Order)
		}
	}
}

func TestResolveColumnsCustomReplacesDefault(t *testing.T) {
	stored := []domain.Column{
		{ID: "c1", Name: "Doing", StatusValue: domain.StatusInProgress, ProjectID: "p1", Order: 1, IsActive: true},
	}

	cols := ResolveColumns("p1", stored)
	if len(cols) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(cols))
	}
	if cols[1].ID != "c1" || cols[1].Name != "Doing" {
		t.Fatalf("expected stored row to replace the default, got %+v", cols[1])
	}
}

func TestResolveColumnsDeactivatedDefaultRemoved(t *testing.T) {
	stored := []domain.Column{
		{ID: "c1", Name: "Done", StatusValue: domain.StatusDone, ProjectID: "p1", Order: 2, IsDefault: true, IsActive: false},
	}

	cols := ResolveColumns("p1", stored)
	if len(cols) != 2 {
		t.Fatalf("expected 2 columns after deactivating Done, got %d", len(cols))
	}
	for _, col := range cols {
		if col.StatusValue == domain.StatusDone {
			t.Fatalf("deactivated default still resolved: %+v", col)
		}
	}
}

func TestResolveColumnsIgnoresOtherScopes(t *testing.T) {
	stored := []domain.Column{
		{ID: "c1", Name: "Review", StatusValue: "Review", ProjectID: "other", Order: 5, IsActive: true},
	}

	cols := ResolveColumns("p1", stored)
	for _, col := range cols {
		if col.ID == "c1" {
			t.Fatalf("column from another scope leaked in: %+v", col)
		}
	}
}

func TestAssembleBucketsAndSorts(t *testing.T) {
	e := NewEngine(nil)
	tasks := []domain.Task{
		{ID: "b", Title: "B", Status: domain.StatusToDo, ProjectID: "p1", Order: 2},
		{ID: "a", Title: "A", Status: domain.StatusToDo, ProjectID: "p1", Order: 1},
		{ID: "tie2", Title: "Tie2", Status: domain.StatusDone, ProjectID: "p1", Order: 3},
		{ID: "tie1", Title: "Tie1", Status: domain.StatusDone, ProjectID: "p1", Order: 3},
		{ID: "x", Title: "Other scope", Status: domain.StatusToDo, ProjectID: "p2", Order: 0},
	}
	subtasks := []domain.Subtask{
		{ID: "s1", TaskID: "a", Done: true},
		{ID: "s2", TaskID: "a"},
		{ID: "s3", TaskID: "a"},
	}

	b := e.Assemble("p1", nil, tasks, subtasks)
	if len(b.Columns) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(b.Columns))
	}

	todo := b.Columns[0]
	if len(todo.Cards) != 2 || todo.Cards[0].ID != "a" || todo.Cards[1].ID != "b" {
		t.Fatalf("unexpected ToDo ordering: %#v", todo.Cards)
	}
	if todo.Cards[0].Progress != 33 {
		t.Fatalf("expected progress 33 for task a, got %d", todo.Cards[0].Progress)
	}

	done := b.Columns[2]
	if len(done.Cards) != 2 || done.Cards[0].ID != "tie1" || done.Cards[1].ID != "tie2" {
		t.Fatalf("equal keys must tie-break by id: %#v", done.Cards)
	}
}

func TestAssembleUnassignedBucket(t *testing.T) {
	e := NewEngine(nil)
	tasks := []domain.Task{
		{ID: "t1", Status: "Review", ProjectID: "p1", Order: 1},
		{ID: "t2", Status: domain.StatusToDo, ProjectID: "p1", Order: 1},
	}

	b := e.Assemble("p1", nil, tasks, nil)
	last := b.Columns[len(b.Columns)-1]
	if last.Name != UnassignedColumnName {
		t.Fatalf("expected trailing unassigned column, got %+v", last.Column)
	}
	if len(last.Cards) != 1 || last.Cards[0].ID != "t1" {
		t.Fatalf("unexpected unassigned cards: %#v", last.Cards)
	}
}

func TestAssembleOmitsEmptyUnassigned(t *testing.T) {
	e := NewEngine(nil)
	tasks := []domain.Task{{ID: "t1", Status: domain.StatusToDo, ProjectID: "p1", Order: 1}}

	b := e.Assemble("p1", nil, tasks, nil)
	for _, col := range b.Columns {
		if col.Name == UnassignedColumnName {
			t.Fatal("unassigned column must only appear when non-empty")
		}
	}
}

func TestAssembleThenMoveScenario(t *testing.T) {
	e := NewEngine(nil)
	tasks := []domain.Task{
		{ID: "T1", Status: domain.StatusToDo, ProjectID: "C", Order: 1.0},
		{ID: "T2", Status: domain.StatusToDo, ProjectID: "C", Order: 2.0},
	}

	res, err := e.MoveTask("C", "T2", string(domain.StatusInProgress), 0, nil, tasks)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if res.Task.Status != domain.StatusInProgress {
		t.Fatalf("expected status change, got %q", res.Task.Status)
	}
	if res.Task.Order != 1.0 {
		t.Fatalf("empty bucket move must use the tail default 1.0, got %v", res.Task.Order)
	}

	tasks[1] = res.Task
	b := e.Assemble("C", nil, tasks, nil)
	if got := cardIDs(b.Columns[0].Cards); len(got) != 1 || got[0] != "T1" {
		t.Fatalf("unexpected ToDo column: %v", got)
	}
	if got := cardIDs(b.Columns[1].Cards); len(got) != 1 || got[0] != "T2" {
		t.Fatalf("unexpected In Progress column: %v", got)
	}
	if got := cardIDs(b.Columns[2].Cards); len(got) != 0 {
		t.Fatalf("expected empty Done column, got %v", got)
	}
}

func cardIDs(cards []Card) []string {
	out := make([]string, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.ID)
	}
	return out
}
