package storage

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"taskboard-api/domain"
)

// queueAPI is the slice of the azqueue client the storage layer uses.
type queueAPI interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
	GetProperties(ctx context.Context, o *azqueue.GetQueuePropertiesOptions) (azqueue.GetQueuePropertiesResponse, error)
}

// Storage provides access to underlying persistence mechanisms.
type Storage struct {
	taskTable    *aztables.Client
	subtaskTable *aztables.Client
	columnTable  *aztables.Client
	eventQueue   queueAPI

	queueConcurrency int
}

const (
	defaultQueueConcurrency = 16
	queuePerCPU             = 10
	maxQueueConcurrency     = 64
)

func queueConcurrencyForCPU(cpu int) int {
	if cpu <= 0 {
		return defaultQueueConcurrency
	}
	c := cpu * queuePerCPU
	if c > maxQueueConcurrency {
		return maxQueueConcurrency
	}
	return c
}

// New creates a Storage instance from the given connection string.
func New(connStr, tasksTable, subtasksTable, columnsTable, eventsQueue string, cpu int) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	eq, err := azqueue.NewQueueClientFromConnectionString(connStr, eventsQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{
		taskTable:        svc.NewClient(tasksTable),
		subtaskTable:     svc.NewClient(subtasksTable),
		columnTable:      svc.NewClient(columnsTable),
		eventQueue:       eq,
		queueConcurrency: queueConcurrencyForCPU(cpu),
	}, nil
}

type taskEntity struct {
	aztables.Entity
	Title       string  `json:"Title"`
	Description string  `json:"Description"`
	Status      string  `json:"Status"`
	Priority    string  `json:"Priority"`
	Labels      string  `json:"Labels"`
	DeadlineMS  int64   `json:"DeadlineMs"`
	ProjectID   string  `json:"ProjectId"`
	Order       float64 `json:"Order"`
	PrevID      string  `json:"PreviousTaskId"`
	NextID      string  `json:"NextTaskId"`
}

type subtaskEntity struct {
	aztables.Entity
	TaskID string `json:"TaskId"`
	Title  string `json:"Title"`
	Done   bool   `json:"Done"`
}

type columnEntity struct {
	aztables.Entity
	Name        string `json:"Name"`
	StatusValue string `json:"StatusValue"`
	Color       string `json:"Color"`
	ProjectID   string `json:"ProjectId"`
	Order       int    `json:"Order"`
	IsDefault   bool   `json:"IsDefault"`
	IsActive    bool   `json:"IsActive"`
}

func encodeLabels(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	data, err := json.Marshal(labels)
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeLabels(raw string) []string {
	if raw == "" {
		return nil
	}
	var labels []string
	if err := json.Unmarshal([]byte(raw), &labels); err != nil {
		return nil
	}
	return labels
}

// LoadTasks retrieves the tasks for one user scope. Azure Tables cannot index
// secondary properties, so the project filter is applied after listing the
// user's partition.
func (s *Storage) LoadTasks(ctx context.Context, userID, projectID string) ([]domain.Task, error) {
	filter := "PartitionKey eq '" + userID + "'"
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent taskEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			if ent.ProjectID != projectID {
				continue
			}
			tasks = append(tasks, domain.Task{
				ID:          ent.RowKey,
				Title:       ent.Title,
				Description: ent.Description,
				Status:      domain.Status(ent.Status),
				Priority:    ent.Priority,
				Labels:      decodeLabels(ent.Labels),
				DeadlineMS:  ent.DeadlineMS,
				ProjectID:   ent.ProjectID,
				Order:       ent.Order,
				PrevID:      ent.PrevID,
				NextID:      ent.NextID,
			})
		}
	}
	return tasks, nil
}

// LoadSubtasks retrieves all subtasks for the user. Subtasks carry no project
// reference of their own; board assembly matches them to tasks by TaskId.
func (s *Storage) LoadSubtasks(ctx context.Context, userID, _ string) ([]domain.Subtask, error) {
	filter := "PartitionKey eq '" + userID + "'"
	pager := s.subtaskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	subtasks := []domain.Subtask{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent subtaskEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			subtasks = append(subtasks, domain.Subtask{
				ID:     ent.RowKey,
				TaskID: ent.TaskID,
				Title:  ent.Title,
				Done:   ent.Done,
			})
		}
	}
	return subtasks, nil
}

// LoadColumns retrieves the stored column rows for one user scope.
func (s *Storage) LoadColumns(ctx context.Context, userID, projectID string) ([]domain.Column, error) {
	filter := "PartitionKey eq '" + userID + "'"
	pager := s.columnTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	columns := []domain.Column{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent columnEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			if ent.ProjectID != projectID {
				continue
			}
			columns = append(columns, domain.Column{
				ID:          ent.RowKey,
				Name:        ent.Name,
				StatusValue: domain.Status(ent.StatusValue),
				Color:       ent.Color,
				ProjectID:   ent.ProjectID,
				Order:       ent.Order,
				IsDefault:   ent.IsDefault,
				IsActive:    ent.IsActive,
			})
		}
	}
	return columns, nil
}

// SaveTasks upserts the provided task records into the user's partition.
func (s *Storage) SaveTasks(ctx context.Context, userID string, tasks []domain.Task) error {
	for _, t := range tasks {
		ent := taskEntity{
			Entity:      aztables.Entity{PartitionKey: userID, RowKey: t.ID},
			Title:       t.Title,
			Description: t.Description,
			Status:      t.Status.String(),
			Priority:    t.Priority,
			Labels:      encodeLabels(t.Labels),
			DeadlineMS:  t.DeadlineMS,
			ProjectID:   t.ProjectID,
			Order:       t.Order,
			PrevID:      t.PrevID,
			NextID:      t.NextID,
		}
		data, err := json.Marshal(ent)
		if err != nil {
			return err
		}
		if _, err := s.taskTable.UpsertEntity(ctx, data, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace}); err != nil {
			return err
		}
	}
	return nil
}

// SaveColumn upserts a single column row.
func (s *Storage) SaveColumn(ctx context.Context, userID string, column domain.Column) error {
	return s.SaveColumns(ctx, userID, []domain.Column{column})
}

// SaveColumns upserts the provided column rows into the user's partition.
func (s *Storage) SaveColumns(ctx context.Context, userID string, columns []domain.Column) error {
	for _, col := range columns {
		ent := columnEntity{
			Entity:      aztables.Entity{PartitionKey: userID, RowKey: col.ID},
			Name:        col.Name,
			StatusValue: col.StatusValue.String(),
			Color:       col.Color,
			ProjectID:   col.ProjectID,
			Order:       col.Order,
			IsDefault:   col.IsDefault,
			IsActive:    col.IsActive,
		}
		data, err := json.Marshal(ent)
		if err != nil {
			return err
		}
		if _, err := s.columnTable.UpsertEntity(ctx, data, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace}); err != nil {
			return err
		}
	}
	return nil
}

// PublishEvents sends the given events to the board events queue, fanning out
// up to queueConcurrency sends at a time.
func (s *Storage) PublishEvents(ctx context.Context, userID string, events []domain.BoardEvent) error {
	if len(events) == 0 {
		return nil
	}
	conc := s.queueConcurrency
	if conc < 1 {
		conc = 1
	}
	if conc == 1 || len(events) == 1 {
		for _, ev := range events {
			if err := s.publishEvent(ctx, userID, ev); err != nil {
				return err
			}
		}
		return nil
	}

	sendCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, conc)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	for _, ev := range events {
		select {
		case sem <- struct{}{}:
		case <-sendCtx.Done():
			wg.Wait()
			mu.Lock()
			defer mu.Unlock()
			if firstErr != nil {
				return firstErr
			}
			return sendCtx.Err()
		}
		wg.Add(1)
		go func(ev domain.BoardEvent) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := s.publishEvent(sendCtx, userID, ev); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
					cancel()
				}
				mu.Unlock()
			}
		}(ev)
	}
	wg.Wait()
	mu.Lock()
	defer mu.Unlock()
	return firstErr
}

func (s *Storage) publishEvent(ctx context.Context, userID string, ev domain.BoardEvent) error {
	env := domain.BoardEventEnvelope{UserID: userID, Event: ev}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	_, err = s.eventQueue.EnqueueMessage(ctx, string(data), nil)
	return err
}

// Ping verifies the events queue is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	_, err := s.eventQueue.GetProperties(ctx, nil)
	return err
}
