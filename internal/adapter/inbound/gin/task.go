package gin

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/henjicc/henji-server/internal/domain/generation"
	"github.com/henjicc/henji-server/internal/infra/task"
	"github.com/henjicc/henji-server/internal/port/inbound"
	"github.com/henjicc/henji-server/internal/port/outbound"
)

// TaskService is the scheduler surface the HTTP layer drives.
type TaskService interface {
	Submit(ctx context.Context, req *task.SubmitRequest) (*task.Task, error)
	Resume(ctx context.Context, id uuid.UUID) (*task.Task, error)
	Get(ctx context.Context, id uuid.UUID) (*task.Task, error)
	List(ctx context.Context, filter *task.Filter) []*task.Task
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteWhere(ctx context.Context, filter *task.Filter) (int, error)
}

// taskAdapter implements inbound.TaskHttpPort.
type taskAdapter struct {
	tasks   TaskService
	assets  outbound.AssetStoragePort
	decoder *assetDecoder
}

// NewTaskAdapter creates a new task HTTP adapter. maxUploadBytes bounds every decoded
// file; zero disables the check.
func NewTaskAdapter(tasks TaskService, assets outbound.AssetStoragePort, inspector task.Inspector, maxUploadBytes int64) inbound.TaskHttpPort {
	return &taskAdapter{
		tasks:   tasks,
		assets:  assets,
		decoder: &assetDecoder{store: assets, inspector: inspector, maxSize: maxUploadBytes},
	}
}

// SubmitTaskRequest is the body of POST /tasks.
type SubmitTaskRequest struct {
	Model          string         `json:"model" binding:"required"`
	Prompt         string         `json:"prompt"`
	NegativePrompt string         `json:"negative_prompt,omitempty"`
	Params         map[string]any `json:"params,omitempty"`
	Images         []assetInput   `json:"images,omitempty"`
	Videos         []assetInput   `json:"videos,omitempty"`
}

// TaskResponse is a task with browser loadable URLs for its stored files.
type TaskResponse struct {
	*task.Task
	FileURL    string   `json:"file_url,omitempty"`
	UploadURLs []string `json:"upload_urls,omitempty"`
}

func (a *taskAdapter) render(ctx context.Context, t *task.Task) *TaskResponse {
	resp := &TaskResponse{Task: t}
	if t.Result != nil && t.Result.FilePath != "" {
		resp.FileURL, _ = a.assets.DisplayURL(ctx, t.Result.FilePath)
	}
	for _, p := range t.UploadedFilePaths {
		if u, err := a.assets.DisplayURL(ctx, p); err == nil {
			resp.UploadURLs = append(resp.UploadURLs, u)
		}
	}
	return resp
}

func parseTaskID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid task id")
		return uuid.Nil, false
	}
	return id, true
}

// SubmitTask enqueues a generation request.
//
//	@Summary		Submit generation task
//	@Description	Validate a request against the model configuration and queue it. Files are base64 data or paths of stored assets.
//	@Tags			Tasks
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		SubmitTaskRequest	true	"Generation request"
//	@Success		202		{object}	TaskResponse
//	@Failure		400		{object}	errors.ErrorResponse	"Malformed request"
//	@Failure		404		{object}	errors.ErrorResponse	"Unknown model"
//	@Failure		412		{object}	errors.ErrorResponse	"Provider credential missing"
//	@Failure		422		{object}	errors.ErrorResponse	"Invalid parameters"
//	@Router			/tasks [post]
func (a *taskAdapter) SubmitTask(c *gin.Context) {
	var req SubmitTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	images, err := a.decoder.decode(ctx, req.Images, true)
	if err != nil {
		handleError(c, err)
		return
	}
	videos, err := a.decoder.decode(ctx, req.Videos, true)
	if err != nil {
		handleError(c, err)
		return
	}

	t, err := a.tasks.Submit(ctx, &task.SubmitRequest{
		Model:          req.Model,
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Params:         generation.Params(req.Params),
		Images:         images,
		Videos:         videos,
	})
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, a.render(ctx, t))
}

// ListTasks lists tasks newest first.
//
//	@Summary		List tasks
//	@Tags			Tasks
//	@Produce		json
//	@Security		BearerAuth
//	@Param			status		query		string	false	"Comma separated statuses"
//	@Param			media_type	query		string	false	"image, video or audio"
//	@Param			limit		query		int		false	"Maximum number of tasks"
//	@Success		200			{object}	map[string]interface{}
//	@Router			/tasks [get]
func (a *taskAdapter) ListTasks(c *gin.Context) {
	filter := &task.Filter{MediaType: generation.MediaType(c.Query("media_type"))}
	for _, s := range strings.Split(c.Query("status"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			filter.Statuses = append(filter.Statuses, task.Status(s))
		}
	}
	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			badRequest(c, "invalid limit")
			return
		}
		filter.Limit = n
	}

	ctx := c.Request.Context()
	tasks := a.tasks.List(ctx, filter)
	resp := make([]*TaskResponse, len(tasks))
	for i, t := range tasks {
		resp[i] = a.render(ctx, t)
	}
	c.JSON(http.StatusOK, gin.H{"tasks": resp, "total": len(resp)})
}

// GetTask returns one task.
//
//	@Summary		Get task
//	@Tags			Tasks
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Task ID"
//	@Success		200	{object}	TaskResponse
//	@Failure		404	{object}	errors.ErrorResponse
//	@Router			/tasks/{id} [get]
func (a *taskAdapter) GetTask(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	t, err := a.tasks.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, a.render(c.Request.Context(), t))
}

// DeleteTask removes a task and the stored files only it referenced.
//
//	@Summary		Delete task
//	@Tags			Tasks
//	@Security		BearerAuth
//	@Param			id	path	string	true	"Task ID"
//	@Success		204
//	@Failure		404	{object}	errors.ErrorResponse
//	@Router			/tasks/{id} [delete]
func (a *taskAdapter) DeleteTask(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	if err := a.tasks.Delete(c.Request.Context(), id); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteTasks removes failed tasks, or every task.
//
//	@Summary		Delete tasks in bulk
//	@Tags			Tasks
//	@Produce		json
//	@Security		BearerAuth
//	@Param			status	query		string	true	"error or all"
//	@Success		200		{object}	map[string]int
//	@Failure		400		{object}	errors.ErrorResponse
//	@Router			/tasks [delete]
func (a *taskAdapter) DeleteTasks(c *gin.Context) {
	var filter *task.Filter
	switch c.Query("status") {
	case "error":
		filter = &task.Filter{Statuses: []task.Status{task.StatusError}}
	case "all":
		filter = nil
	default:
		badRequest(c, "status must be error or all")
		return
	}

	n, err := a.tasks.DeleteWhere(c.Request.Context(), filter)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// ResumeTask polls a timed out remote job again.
//
//	@Summary		Resume task
//	@Tags			Tasks
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Task ID"
//	@Success		202	{object}	TaskResponse
//	@Failure		404	{object}	errors.ErrorResponse
//	@Failure		409	{object}	errors.ErrorResponse	"Task is not resumable"
//	@Router			/tasks/{id}/resume [post]
func (a *taskAdapter) ResumeTask(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	t, err := a.tasks.Resume(c.Request.Context(), id)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, a.render(c.Request.Context(), t))
}
