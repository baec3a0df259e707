package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard-api/board"
	"taskboard-api/depgraph"
	"taskboard-api/domain"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, auth Authenticator, deduper Deduper, logger *log.Logger) {
	e.GET("/api/board", getBoard(store, auth, logger))
	e.GET("/api/board/stream", streamBoard(store, auth))
	e.POST("/api/board/move", moveTask(store, auth, deduper))
	e.POST("/api/columns", createColumn(store, auth))
	e.DELETE("/api/columns/:id", deleteColumn(store, auth))
	e.PUT("/api/columns/order", reorderColumns(store, auth))
	e.PUT("/api/tasks/:id/dependency", setDependency(store, auth, deduper))
	e.DELETE("/api/tasks/:id/dependency", removeDependency(store, auth))
	e.GET("/api/tasks/:id/chain", getChain(store, auth))
	e.GET("/api/tasks/:id/dependency/validation", validateDependency(store, auth))
	e.GET("/healthz", healthz(store))

	initEventPublisher(store, deduper, logger)
}

func healthz(store Storage) echo.HandlerFunc {
	type pinger interface {
		Ping(ctx context.Context) error
	}
	return func(c echo.Context) error {
		if p, ok := store.(pinger); ok {
			if err := p.Ping(c.Request().Context()); err != nil {
				return c.String(http.StatusServiceUnavailable, err.Error())
			}
		}
		return c.NoContent(http.StatusOK)
	}
}

func getBoard(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newBoardRequestMetrics(ctx, logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}
		projectID := c.QueryParam("projectId")

		fetchStart := time.Now()
		columns, tasks, subtasks, fetchErr := loadBoardWorkingSet(ctx, store, userID, projectID)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			err = c.String(http.StatusInternalServerError, fetchErr.Error())
			return err
		}

		assembleStart := time.Now()
		b := board.NewEngine(nil).Assemble(projectID, columns, tasks, subtasks)
		metrics.ObserveAssemble(time.Since(assembleStart))
		metrics.SetColumnsReturned(len(b.Columns))
		cards := 0
		for _, col := range b.Columns {
			cards += len(col.Cards)
		}
		metrics.SetCardsReturned(cards)

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, b)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func loadBoardWorkingSet(ctx context.Context, store Storage, userID, projectID string) ([]domain.Column, []domain.Task, []domain.Subtask, error) {
	columns, err := store.LoadColumns(ctx, userID, projectID)
	if err != nil {
		return nil, nil, nil, err
	}
	tasks, err := store.LoadTasks(ctx, userID, projectID)
	if err != nil {
		return nil, nil, nil, err
	}
	subtasks, err := store.LoadSubtasks(ctx, userID, projectID)
	if err != nil {
		return nil, nil, nil, err
	}
	return columns, tasks, subtasks, nil
}

func moveTask(store Storage, auth Authenticator, deduper Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req moveRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if req.TaskID == "" || req.TargetColumn == "" {
			return c.String(http.StatusBadRequest, "taskId and targetColumn are required")
		}

		key := req.IdempotencyKey
		if key == "" {
			key = uuid.NewString()
		}
		if deduper != nil {
			added, dErr := deduper.Add(ctx, userID, key)
			if dErr != nil {
				c.Logger().Error(dErr)
				return c.String(http.StatusInternalServerError, "idempotency check failed")
			}
			if !added {
				return c.JSON(http.StatusOK, moveResponse{IdempotencyKey: key, Duplicate: true})
			}
		}

		tasks, err := store.LoadTasks(ctx, userID, req.ProjectID)
		if err == nil {
			var columns []domain.Column
			columns, err = store.LoadColumns(ctx, userID, req.ProjectID)
			if err == nil {
				engine := board.NewEngine(completionPolicy(tasks))
				var res board.MoveResult
				res, err = engine.MoveTask(req.ProjectID, req.TaskID, req.TargetColumn, req.Index, columns, tasks)
				if err == nil {
					updates := append([]domain.Task{res.Task}, res.Renumbered...)
					if err = store.SaveTasks(ctx, userID, updates); err == nil {
						publishMutation(c, userID, key, "task", req.TaskID, "task-moved", moveResponse{
							Task:                   res.Task,
							Renumbered:             res.Renumbered,
							KeyExhaustionRecovered: res.KeyExhaustionRecovered,
						})
						return c.JSON(http.StatusOK, moveResponse{
							Task:                   res.Task,
							Renumbered:             res.Renumbered,
							KeyExhaustionRecovered: res.KeyExhaustionRecovered,
							IdempotencyKey:         key,
						})
					}
				}
			}
		}

		releaseKey(ctx, deduper, userID, key, c)
		status := httpStatusFor(err)
		if status == http.StatusInternalServerError {
			c.Logger().Error(err)
		}
		return c.String(status, err.Error())
	}
}

func createColumn(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req createColumnRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		stored, err := store.LoadColumns(ctx, userID, req.ProjectID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		col, err := board.CreateColumn(req.ProjectID, req.Name, domain.Status(req.StatusValue), req.Color, req.Order, stored)
		if err != nil {
			return c.String(httpStatusFor(err), err.Error())
		}
		if err := store.SaveColumn(ctx, userID, col); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		publishMutation(c, userID, uuid.NewString(), "column", col.ID, "column-created", col)
		return c.JSON(http.StatusCreated, col)
	}
}

func deleteColumn(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		columnID := c.Param("id")
		projectID := c.QueryParam("projectId")

		stored, err := store.LoadColumns(ctx, userID, projectID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		tasks, err := store.LoadTasks(ctx, userID, projectID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		col, err := board.DeleteColumn(columnID, stored, tasks)
		if err != nil {
			return c.String(httpStatusFor(err), err.Error())
		}
		if err := store.SaveColumn(ctx, userID, col); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		publishMutation(c, userID, uuid.NewString(), "column", col.ID, "column-deleted", col)
		return c.JSON(http.StatusOK, col)
	}
}

func reorderColumns(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req reorderColumnsRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		stored, err := store.LoadColumns(ctx, userID, req.ProjectID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		cols, err := board.ReorderColumns(req.ProjectID, req.ColumnIDs, stored)
		if err != nil {
			return c.String(httpStatusFor(err), err.Error())
		}
		if err := store.SaveColumns(ctx, userID, cols); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		publishMutation(c, userID, uuid.NewString(), "column", req.ProjectID, "columns-reordered", cols)
		return c.JSON(http.StatusOK, cols)
	}
}

func setDependency(store Storage, auth Authenticator, deduper Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		taskID := c.Param("id")

		var req dependencyRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if req.PredecessorID == "" {
			return c.String(http.StatusBadRequest, "predecessorId is required")
		}

		key := req.IdempotencyKey
		if key == "" {
			key = uuid.NewString()
		}
		if deduper != nil {
			added, dErr := deduper.Add(ctx, userID, key)
			if dErr != nil {
				c.Logger().Error(dErr)
				return c.String(http.StatusInternalServerError, "idempotency check failed")
			}
			if !added {
				return c.JSON(http.StatusOK, dependencyResponse{IdempotencyKey: key, Duplicate: true})
			}
		}

		tasks, err := store.LoadTasks(ctx, userID, req.ProjectID)
		if err == nil {
			var updated []domain.Task
			updated, err = depgraph.New(tasks).SetDependency(taskID, req.PredecessorID)
			if err == nil {
				if err = store.SaveTasks(ctx, userID, updated); err == nil {
					publishMutation(c, userID, key, "task", taskID, "dependency-set", updated)
					return c.JSON(http.StatusOK, dependencyResponse{Updated: updated, IdempotencyKey: key})
				}
			}
		}

		releaseKey(ctx, deduper, userID, key, c)
		status := httpStatusFor(err)
		if status == http.StatusInternalServerError {
			c.Logger().Error(err)
		}
		return c.String(status, err.Error())
	}
}

func removeDependency(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		taskID := c.Param("id")
		projectID := c.QueryParam("projectId")

		tasks, err := store.LoadTasks(ctx, userID, projectID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		updated, err := depgraph.New(tasks).RemoveDependency(taskID)
		if err != nil {
			return c.String(httpStatusFor(err), err.Error())
		}
		if len(updated) > 0 {
			if err := store.SaveTasks(ctx, userID, updated); err != nil {
				c.Logger().Error(err)
				return c.String(http.StatusInternalServerError, err.Error())
			}
			publishMutation(c, userID, uuid.NewString(), "task", taskID, "dependency-removed", updated)
		}
		return c.JSON(http.StatusOK, dependencyResponse{Updated: updated})
	}
}

func getChain(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		taskID := c.Param("id")
		projectID := c.QueryParam("projectId")

		tasks, err := store.LoadTasks(ctx, userID, projectID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		chain, err := depgraph.New(tasks).Chain(taskID)
		if err != nil {
			return c.String(httpStatusFor(err), err.Error())
		}
		return c.JSON(http.StatusOK, chainResponse{Chain: chain})
	}
}

func validateDependency(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		taskID := c.Param("id")
		projectID := c.QueryParam("projectId")

		tasks, err := store.LoadTasks(ctx, userID, projectID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		report, err := depgraph.New(tasks).Validate(taskID)
		if err != nil {
			return c.String(httpStatusFor(err), err.Error())
		}
		return c.JSON(http.StatusOK, report)
	}
}

func decodeBody(c echo.Context, out any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

// publishMutation hands the change notification to the publisher pool,
// falling back to an inline publish when the pool is saturated. Publishing is
// best-effort; the mutation itself is already persisted.
func publishMutation(c echo.Context, userID, key, entityType, entityID, eventType string, payload any) {
	data, err := sonic.Marshal(payload)
	if err != nil {
		c.Logger().Errorf("marshal %s event: %v", eventType, err)
		return
	}
	ev := domain.BoardEvent{
		ID:             key,
		IdempotencyKey: key,
		EntityType:     entityType,
		EntityID:       entityID,
		Type:           eventType,
		Data:           data,
		Timestamp:      nextTimestamp(),
	}
	job := publishJob{userID: userID, events: []domain.BoardEvent{ev}}

	if tryEnqueueJob(job) {
		return
	}

	if globalLog != nil {
		globalLog.Warn("publish buffer saturated; publishing inline")
	}
	if globalStore == nil {
		return
	}
	publishCtx, cancel := context.WithTimeout(bg, publishTimeout)
	defer cancel()
	if err := globalStore.PublishEvents(publishCtx, userID, job.events); err != nil {
		c.Logger().Errorf("publish inline failed: %v", err)
	}
}

func releaseKey(ctx context.Context, deduper Deduper, userID, key string, c echo.Context) {
	if deduper == nil {
		return
	}
	if err := deduper.Remove(ctx, userID, key); err != nil {
		c.Logger().Errorf("release idempotency key %s: %v", key, err)
	}
}

func httpStatusFor(err error) int {
	var (
		notFound domain.NotFoundError
		rejected board.TransitionRejectedError
		cycle    depgraph.DependencyCycleError
		dup      board.DuplicateColumnError
		inUse    board.ColumnInUseError
		reorder  board.InvalidReorderError
		badCol   board.InvalidColumnError
		badDep   depgraph.InvalidDependencyError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &rejected), errors.As(err, &cycle), errors.As(err, &dup), errors.As(err, &inUse):
		return http.StatusConflict
	case errors.As(err, &reorder), errors.As(err, &badCol), errors.As(err, &badDep):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
