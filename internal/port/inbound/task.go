package inbound

import "github.com/gin-gonic/gin"

// TaskHttpPort defines HTTP handler interface for generation task operations.
type TaskHttpPort interface {
	// SubmitTask handles POST /tasks
	SubmitTask(c *gin.Context)

	// ListTasks handles GET /tasks
	ListTasks(c *gin.Context)

	// GetTask handles GET /tasks/:id
	GetTask(c *gin.Context)

	// DeleteTask handles DELETE /tasks/:id
	DeleteTask(c *gin.Context)

	// DeleteTasks handles DELETE /tasks?status=error|all
	DeleteTasks(c *gin.Context)

	// ResumeTask handles POST /tasks/:id/resume
	ResumeTask(c *gin.Context)
}

// EventHttpPort defines HTTP handler interface for the task event stream.
type EventHttpPort interface {
	// StreamEvents handles GET /events
	StreamEvents(c *gin.Context)
}
