package api

import (
	"context"

	"taskboard-api/domain"
)

// Storage abstracts persistence for handlers. Loads return the full working
// set for one user scope; saves persist records the engines accepted.
type Storage interface {
	LoadTasks(ctx context.Context, userID, projectID string) ([]domain.Task, error)
	LoadSubtasks(ctx context.Context, userID, projectID string) ([]domain.Subtask, error)
	LoadColumns(ctx context.Context, userID, projectID string) ([]domain.Column, error)
	SaveTasks(ctx context.Context, userID string, tasks []domain.Task) error
	SaveColumn(ctx context.Context, userID string, column domain.Column) error
	SaveColumns(ctx context.Context, userID string, columns []domain.Column) error
	PublishEvents(ctx context.Context, userID string, events []domain.BoardEvent) error
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper prevents reprocessing of repeated board mutations.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when processing fails.
	Remove(ctx context.Context, userID, key string) error
}
