package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"taskboard-api/domain"
)

const taskIDPrefix = "task-"

// createdAtLayout renders timestamps as ISO-8601 with microsecond precision.
const createdAtLayout = "2006-01-02T15:04:05.000000Z07:00"

type column struct {
	id      string
	title   string
	taskIDs []string
}

// Board is the in-memory board store. The task map is the record of every
// task and each column keeps the ordered ids of the tasks it holds; both are
// only touched under mu.
type Board struct {
	mu      sync.RWMutex
	tasks   map[string]*domain.Task
	columns []*column
	byID    map[string]*column

	now   func() time.Time
	newID func() string
}

// Option customises a Board.
type Option func(*Board)

// WithClock overrides the clock used for createdAt.
func WithClock(now func() time.Time) Option {
	return func(b *Board) { b.now = now }
}

// WithIDGenerator overrides task id generation.
func WithIDGenerator(gen func() string) Option {
	return func(b *Board) { b.newID = gen }
}

// NewBoard creates an empty board with the given fixed columns.
func NewBoard(cols []domain.ColumnDef, opts ...Option) *Board {
	b := &Board{
		tasks:   make(map[string]*domain.Task),
		columns: make([]*column, 0, len(cols)),
		byID:    make(map[string]*column, len(cols)),
		now:     time.Now,
		newID:   func() string { return taskIDPrefix + uuid.NewString() },
	}
	for _, def := range cols {
		if _, dup := b.byID[def.ID]; dup {
			panic(fmt.Sprintf("storage.NewBoard: duplicate column %q", def.ID))
		}
		c := &column{id: def.ID, title: def.Title}
		b.columns = append(b.columns, c)
		b.byID[def.ID] = c
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Board returns every column with its tasks in display order.
func (b *Board) Board(_ context.Context) domain.Board {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := domain.Board{Columns: make([]domain.Column, 0, len(b.columns))}
	for _, c := range b.columns {
		col := domain.Column{ID: c.id, Title: c.title, Tasks: make([]domain.Task, 0, len(c.taskIDs))}
		for _, id := range c.taskIDs {
			col.Tasks = append(col.Tasks, cloneTask(b.tasks[id]))
		}
		out.Columns = append(out.Columns, col)
	}
	return out
}

// Task returns the task with the given id.
func (b *Board) Task(_ context.Context, id string) (domain.Task, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	t, ok := b.tasks[id]
	if !ok {
		return domain.Task{}, domain.ErrTaskNotFound
	}
	return cloneTask(t), nil
}

// CreateTask stores a new task at the end of its column.
func (b *Board) CreateTask(_ context.Context, in domain.NewTask) (domain.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	col, ok := b.byID[in.ColumnID]
	if !ok {
		return domain.Task{}, domain.ErrColumnNotFound
	}

	id := b.newID()
	if _, exists := b.tasks[id]; exists {
		return domain.Task{}, fmt.Errorf("task id %s already in use", id)
	}
	t := &domain.Task{
		ID:          id,
		Title:       in.Title,
		Description: cloneString(in.Description),
		ColumnID:    col.id,
		CreatedAt:   b.now().Format(createdAtLayout),
	}
	b.tasks[id] = t
	col.taskIDs = append(col.taskIDs, id)
	return cloneTask(t), nil
}

// UpdateTask applies the non-nil fields of patch. Moving to another column
// appends the task to the end of that column. An unknown target column
// rejects the whole update.
func (b *Board) UpdateTask(_ context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.tasks[id]
	if !ok {
		return domain.Task{}, domain.ErrTaskNotFound
	}

	var target *column
	if patch.ColumnID != nil && *patch.ColumnID != t.ColumnID {
		target, ok = b.byID[*patch.ColumnID]
		if !ok {
			return domain.Task{}, domain.ErrColumnNotFound
		}
	}

	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = cloneString(patch.Description)
	}
	if target != nil {
		source := b.byID[t.ColumnID]
		source.taskIDs = removeID(source.taskIDs, id)
		target.taskIDs = append(target.taskIDs, id)
		t.ColumnID = target.id
	}
	return cloneTask(t), nil
}

// DeleteTask removes the task from the board.
func (b *Board) DeleteTask(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.tasks[id]
	if !ok {
		return domain.ErrTaskNotFound
	}
	col := b.byID[t.ColumnID]
	col.taskIDs = removeID(col.taskIDs, id)
	delete(b.tasks, id)
	return nil
}

// Len returns the number of tasks on the board.
func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.tasks)
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func cloneTask(t *domain.Task) domain.Task {
	out := *t
	out.Description = cloneString(t.Description)
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
