package api

import (
	"context"

	"taskboard-api/domain"
)

// Storage abstracts the board store for handlers.
type Storage interface {
	Board(ctx context.Context) domain.Board
	Task(ctx context.Context, id string) (domain.Task, error)
	CreateTask(ctx context.Context, in domain.NewTask) (domain.Task, error)
	UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// Publisher delivers board events to an external sink.
type Publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// IdempotencyStore remembers which task a create request produced.
type IdempotencyStore interface {
	// Lookup returns the task id recorded for key, if any.
	Lookup(ctx context.Context, key string) (string, bool, error)
	// Remember records taskID for key unless the key is already taken.
	Remember(ctx context.Context, key, taskID string) error
	// Replace records taskID for key, overwriting any previous value.
	Replace(ctx context.Context, key, taskID string) error
}
