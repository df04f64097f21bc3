package domain

import "errors"

// ErrTaskNotFound indicates that no task with the requested id exists.
var ErrTaskNotFound = errors.New("task not found")

// ErrColumnNotFound indicates that a task referenced a column outside the
// board's fixed set.
var ErrColumnNotFound = errors.New("column not found")
