package domain

// Task represents a single card on the board.
type Task struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	ColumnID    string  `json:"columnId"`
	CreatedAt   string  `json:"createdAt"`
}

// Column is a fixed bucket of tasks kept in append order.
type Column struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Tasks []Task `json:"tasks"`
}

// Board is the full set of columns and their tasks.
type Board struct {
	Columns []Column `json:"columns"`
}

// NewTask carries the fields accepted when creating a task.
type NewTask struct {
	Title       string
	Description *string
	ColumnID    string
}

// TaskPatch carries optional field overwrites. Nil fields are left unchanged.
type TaskPatch struct {
	Title       *string
	Description *string
	ColumnID    *string
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.ColumnID == nil
}

const (
	ToDoColumnID       = "column-1"
	InProgressColumnID = "column-2"
	DoneColumnID       = "column-3"
)

// ColumnDef names a column the board is created with.
type ColumnDef struct {
	ID    string
	Title string
}

// DefaultColumns returns the fixed column set in display order.
func DefaultColumns() []ColumnDef {
	return []ColumnDef{
		{ID: ToDoColumnID, Title: "To Do"},
		{ID: InProgressColumnID, Title: "In Progress"},
		{ID: DoneColumnID, Title: "Done"},
	}
}
