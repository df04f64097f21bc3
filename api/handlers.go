package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// Deps are the optional collaborators of the handlers.
type Deps struct {
	Logger      *log.Logger
	Events      *Dispatcher
	Idempotency IdempotencyStore
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, deps Deps) {
	if deps.Logger == nil {
		panic("logger is required")
	}

	e.GET("/", welcome)
	e.GET("/healthz", healthz)
	e.GET("/board", getBoard(store))
	e.GET("/tasks/:id", getTask(store))
	e.POST("/tasks", createTask(store, deps))
	e.PATCH("/tasks/:id", updateTask(store, deps.Events))
	e.DELETE("/tasks/:id", deleteTask(store, deps.Events))
}

func welcome(c echo.Context) error {
	return c.JSON(http.StatusOK, messageResponse{Message: welcomeMessage})
}

func healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func getBoard(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		board := store.Board(c.Request().Context())
		metricsFrom(c).ObserveStore(time.Since(start))
		return c.JSON(http.StatusOK, board)
	}
}

func getTask(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		metrics := metricsFrom(c)
		id := c.Param("id")
		metrics.SetTaskID(id)

		start := time.Now()
		task, err := store.Task(c.Request().Context(), id)
		metrics.ObserveStore(time.Since(start))
		if err != nil {
			metrics.SetErrorStage("store")
			return storeError(err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func createTask(store Storage, deps Deps) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		metrics := metricsFrom(c)

		var req createTaskRequest
		if err := decodeBody(c, &req); err != nil {
			metrics.SetErrorStage("decode")
			return err
		}
		if req.Title == nil {
			metrics.SetErrorStage("validate")
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "title: field required")
		}
		if req.ColumnID == nil {
			metrics.SetErrorStage("validate")
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "columnId: field required")
		}

		idemKey := ""
		if deps.Idempotency != nil {
			idemKey = strings.TrimSpace(c.Request().Header.Get(headerIdempotencyKey))
		}
		var replay replayResult
		if idemKey != "" {
			replay = replayCreate(c, store, deps, idemKey)
			if replay.found {
				metrics.SetTaskID(replay.task.ID)
				c.Response().Header().Set(headerIdempotentReplayed, "true")
				return c.JSON(http.StatusOK, replay.task)
			}
		}

		start := time.Now()
		task, err := store.CreateTask(ctx, domain.NewTask{
			Title:       *req.Title,
			Description: req.Description,
			ColumnID:    *req.ColumnID,
		})
		metrics.ObserveStore(time.Since(start))
		if err != nil {
			metrics.SetErrorStage("store")
			return storeError(err)
		}
		metrics.SetTaskID(task.ID)

		if idemKey != "" {
			record := deps.Idempotency.Remember
			if replay.stale {
				record = deps.Idempotency.Replace
			}
			if err := record(ctx, idemKey, task.ID); err != nil {
				deps.Logger.WithError(err).WithField("task", task.ID).Warn("idempotency key not recorded")
			}
		}
		deps.Events.Emit(newEvent(domain.TaskCreated, task))
		return c.JSON(http.StatusOK, task)
	}
}

type replayResult struct {
	task  domain.Task
	found bool
	// stale is set when the key points at a task that has since been deleted.
	stale bool
}

// replayCreate looks up the task an earlier request with the same
// idempotency key created.
func replayCreate(c echo.Context, store Storage, deps Deps, key string) replayResult {
	ctx := c.Request().Context()
	id, ok, err := deps.Idempotency.Lookup(ctx, key)
	if err != nil {
		deps.Logger.WithError(err).Warn("idempotency lookup failed; creating task")
		return replayResult{}
	}
	if !ok {
		return replayResult{}
	}
	task, err := store.Task(ctx, id)
	if err != nil {
		return replayResult{stale: true}
	}
	return replayResult{task: task, found: true}
}

func updateTask(store Storage, events *Dispatcher) echo.HandlerFunc {
	return func(c echo.Context) error {
		metrics := metricsFrom(c)
		id := c.Param("id")
		metrics.SetTaskID(id)

		var req updateTaskRequest
		if err := decodeBody(c, &req); err != nil {
			metrics.SetErrorStage("decode")
			return err
		}

		start := time.Now()
		task, err := store.UpdateTask(c.Request().Context(), id, domain.TaskPatch{
			Title:       req.Title,
			Description: req.Description,
			ColumnID:    req.ColumnID,
		})
		metrics.ObserveStore(time.Since(start))
		if err != nil {
			metrics.SetErrorStage("store")
			return storeError(err)
		}

		events.Emit(newEvent(domain.TaskUpdated, task))
		return c.JSON(http.StatusOK, task)
	}
}

func deleteTask(store Storage, events *Dispatcher) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		metrics := metricsFrom(c)
		id := c.Param("id")
		metrics.SetTaskID(id)

		start := time.Now()
		task, err := store.Task(ctx, id)
		if err == nil {
			err = store.DeleteTask(ctx, id)
		}
		metrics.ObserveStore(time.Since(start))
		if err != nil {
			metrics.SetErrorStage("store")
			return storeError(err)
		}

		events.Emit(newEvent(domain.TaskDeleted, task))
		return c.JSON(http.StatusOK, messageResponse{Message: taskDeletedMessage})
	}
}
