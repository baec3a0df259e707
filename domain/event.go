package domain

import "github.com/bytedance/sonic"

// BoardEvent describes a single accepted board mutation.
type BoardEvent struct {
	// ID carries the idempotency key when published to the board events queue.
	ID             string                 `json:"id,omitempty"`
	IdempotencyKey string                 `json:"idempotencyKey"`
	EntityType     string                 `json:"entityType"`
	EntityID       string                 `json:"entityId"`
	Type           string                 `json:"type"`
	Data           sonic.NoCopyRawMessage `json:"data,omitempty"`
	Timestamp      int64                  `json:"timestamp"`
}

// BoardEventEnvelope wraps an event with the user who caused it.
type BoardEventEnvelope struct {
	UserID string     `json:"userId"`
	Event  BoardEvent `json:"event"`
}
