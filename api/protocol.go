package api

const (
	welcomeMessage     = "Welcome to the Task Board API"
	taskDeletedMessage = "Task deleted successfully"

	detailTaskNotFound   = "Task not found"
	detailColumnNotFound = "Column not found"
	detailInvalidBody    = "invalid request body"
	detailInvalidGzip    = "invalid gzip body"

	headerIdempotencyKey     = "Idempotency-Key"
	headerIdempotentReplayed = "Idempotent-Replayed"
)

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// POST /tasks request body
type createTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	ColumnID    *string `json:"columnId"`
}

// PATCH /tasks/:id request body. Null and absent fields are both ignored.
type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	ColumnID    *string `json:"columnId"`
}
