package board

import (
	"taskboard-api/domain"
)

const (
	// orderStep is the spacing used for tail inserts and renumbered buckets.
	orderStep = 1.0
	// initialOrderKey anchors the key space of an empty bucket.
	initialOrderKey = 0.0
	// keyEpsilon is the gap below which neighboring keys count as exhausted.
	keyEpsilon = 1e-9
)

// MoveResult is the outcome of an accepted move. Renumbered carries the whole
// target bucket when key-space exhaustion forced a maintenance pass; the
// caller must then persist every record in it along with the moved task.
type MoveResult struct {
	Task                   domain.Task
	OldStatus              domain.Status
	Renumbered             []domain.Task
	KeyExhaustionRecovered bool
}

// MoveTask places a task at insertionIndex inside the column identified by
// target. Target matches a stored column id first, falling back to a status
// value so built-in columns without stored rows remain addressable. A move
// that changes status consults the engine's transition policy exactly once;
// a veto aborts with TransitionRejectedError and no mutation.
func (e *Engine) MoveTask(scope, taskID, target string, insertionIndex int, columns []domain.Column, tasks []domain.Task) (MoveResult, error) {
	var task domain.Task
	found := false
	for _, t := range tasks {
		if t.ID == taskID {
			task = t
			found = true
			break
		}
	}
	if !found {
		return MoveResult{}, domain.NotFoundError{Kind: "task", ID: taskID}
	}

	newStatus, ok := resolveTarget(scope, target, columns)
	if !ok {
		return MoveResult{}, domain.NotFoundError{Kind: "column", ID: target}
	}

	oldStatus := task.Status
	if newStatus != oldStatus && e.allow != nil {
		allowed, reason := e.allow(task, oldStatus, newStatus)
		if !allowed {
			return MoveResult{}, TransitionRejectedError{TaskID: taskID, From: oldStatus, To: newStatus, Reason: reason}
		}
	}

	// The moving task never counts as its own neighbor.
	var bucket []domain.Task
	for _, t := range tasks {
		if t.ProjectID == scope && t.Status == newStatus && t.ID != taskID {
			bucket = append(bucket, t)
		}
	}
	bucket = sortBucket(bucket)

	result := MoveResult{OldStatus: oldStatus}
	key, ok := insertionKey(bucket, insertionIndex)
	if !ok {
		// Key space around the insertion point is exhausted; renumber the
		// bucket with integer-spaced keys, then place the task against the
		// fresh keys.
		bucket = Renumber(bucket)
		result.Renumbered = bucket
		result.KeyExhaustionRecovered = true
		key, _ = insertionKey(bucket, insertionIndex)
	}

	task.Status = newStatus
	task.Order = key
	result.Task = task
	return result, nil
}

func resolveTarget(scope, target string, columns []domain.Column) (domain.Status, bool) {
	resolved := ResolveColumns(scope, columns)
	for _, col := range resolved {
		if col.ID != "" && col.ID == target {
			return col.StatusValue, true
		}
	}
	for _, col := range resolved {
		if col.StatusValue == domain.Status(target) {
			return col.StatusValue, true
		}
	}
	return "", false
}

// insertionKey computes the fractional index for a task entering the sorted
// bucket at index. It returns ok=false when the neighboring keys have
// converged and the bucket needs renumbering first.
func insertionKey(bucket []domain.Task, index int) (float64, bool) {
	if len(bucket) == 0 || index >= len(bucket) {
		max := initialOrderKey
		for _, t := range bucket {
			if t.Order > max {
				max = t.Order
			}
		}
		return max + orderStep, true
	}

	if index <= 0 {
		// Head inserts bisect toward the zero anchor instead of subtracting a
		// fixed step, so repeated inserts converge below keyEpsilon and trip
		// the renumbering path rather than walking off toward -Inf.
		first := bucket[0].Order
		if first > initialOrderKey {
			if first-initialOrderKey <= keyEpsilon {
				return 0, false
			}
			return (initialOrderKey + first) / 2, true
		}
		return first - orderStep, true
	}

	prev := bucket[index-1].Order
	next := bucket[index].Order
	if next-prev <= keyEpsilon {
		return 0, false
	}
	mid := (prev + next) / 2
	if mid <= prev || mid >= next {
		return 0, false
	}
	return mid, true
}

// Renumber rewrites a bucket's ordering keys with integer spacing (0, 1, 2,
// ...) preserving the current display order. It is a pure maintenance pass
// over one bucket; the input slice is not modified.
func Renumber(bucket []domain.Task) []domain.Task {
	out := sortBucket(bucket)
	for i := range out {
		out[i].Order = float64(i) * orderStep
	}
	return out
}
