package storage

import (
	"context"
	"fmt"

	"taskboard-api/domain"
)

// TaskCreator is the subset of the board used for seeding.
type TaskCreator interface {
	CreateTask(ctx context.Context, in domain.NewTask) (domain.Task, error)
}

func sampleTasks() []domain.NewTask {
	desc := func(s string) *string { return &s }
	return []domain.NewTask{
		{
			Title:       "Research project requirements",
			Description: desc("Gather all necessary information about the project scope and requirements."),
			ColumnID:    domain.ToDoColumnID,
		},
		{
			Title:       "Design database schema",
			Description: desc("Create ER diagrams and define the database structure."),
			ColumnID:    domain.ToDoColumnID,
		},
		{
			Title:       "Implement authentication",
			Description: desc("Add user login and registration functionality."),
			ColumnID:    domain.InProgressColumnID,
		},
		{
			Title:       "Write unit tests",
			Description: desc("Create comprehensive test suite for all core functionality."),
			ColumnID:    domain.InProgressColumnID,
		},
		{
			Title:       "Fix navigation bug",
			Description: desc("Address the issue with sidebar navigation in mobile view."),
			ColumnID:    domain.DoneColumnID,
		},
	}
}

// SeedSampleTasks fills the board with the demo tasks through the regular
// create path and returns them in creation order.
func SeedSampleTasks(ctx context.Context, store TaskCreator) ([]domain.Task, error) {
	samples := sampleTasks()
	created := make([]domain.Task, 0, len(samples))
	for _, in := range samples {
		t, err := store.CreateTask(ctx, in)
		if err != nil {
			return created, fmt.Errorf("seed %q: %w", in.Title, err)
		}
		created = append(created, t)
	}
	return created, nil
}
