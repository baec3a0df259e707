package api

import (
	"taskboard-api/depgraph"
	"taskboard-api/domain"
)

const requestBodyMaxSize = 64 * 1024 // 64 KiB

type moveRequest struct {
	TaskID         string `json:"taskId"`
	TargetColumn   string `json:"targetColumn"`
	Index          int    `json:"index"`
	ProjectID      string `json:"projectId,omitempty"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

type moveResponse struct {
	Task                   domain.Task   `json:"task"`
	Renumbered             []domain.Task `json:"renumbered,omitempty"`
	KeyExhaustionRecovered bool          `json:"keyExhaustionRecovered,omitempty"`
	IdempotencyKey         string        `json:"idempotencyKey"`
	Duplicate              bool          `json:"duplicate,omitempty"`
}

type createColumnRequest struct {
	ProjectID   string `json:"projectId,omitempty"`
	Name        string `json:"name"`
	StatusValue string `json:"statusValue,omitempty"`
	Color       string `json:"color,omitempty"`
	Order       *int   `json:"order,omitempty"`
}

type reorderColumnsRequest struct {
	ProjectID string   `json:"projectId,omitempty"`
	ColumnIDs []string `json:"columnIds"`
}

type dependencyRequest struct {
	PredecessorID  string `json:"predecessorId"`
	ProjectID      string `json:"projectId,omitempty"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

type dependencyResponse struct {
	Updated        []domain.Task `json:"updated"`
	IdempotencyKey string        `json:"idempotencyKey,omitempty"`
	Duplicate      bool          `json:"duplicate,omitempty"`
}

type chainResponse struct {
	Chain depgraph.Chain `json:"chain"`
}
