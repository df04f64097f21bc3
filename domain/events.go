package domain

const (
	TaskCreated = "task-created"
	TaskUpdated = "task-updated"
	TaskDeleted = "task-deleted"
)

// Event describes a committed change to the board.
type Event struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	TaskID    string `json:"taskId"`
	ColumnID  string `json:"columnId"`
	Task      *Task  `json:"task,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
