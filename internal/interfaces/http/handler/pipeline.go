package handler

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ordersync/backend/internal/application/export"
	"github.com/ordersync/backend/internal/application/ingest"
	pipelineapp "github.com/ordersync/backend/internal/application/pipeline"
	"github.com/ordersync/backend/internal/domain/pipeline"
	"github.com/ordersync/backend/internal/interfaces/http/dto"
)

// PipelineHandler serves the pipeline dashboard and the operator actions,
// plus the manual drain/sweep triggers.
type PipelineHandler struct {
	BaseHandler
	dashboard *pipelineapp.Service
	worker    *ingest.QueueWorker
	processor *export.SyncProcessor
}

// NewPipelineHandler creates a new PipelineHandler
func NewPipelineHandler(dashboard *pipelineapp.Service, worker *ingest.QueueWorker, processor *export.SyncProcessor) *PipelineHandler {
	return &PipelineHandler{
		dashboard: dashboard,
		worker:    worker,
		processor: processor,
	}
}

// Status handles GET /pipeline/status
func (h *PipelineHandler) Status(c *gin.Context) {
	status, err := h.dashboard.Status(c.Request.Context())
	if err != nil {
		h.InternalError(c, err.Error())
		return
	}
	h.Success(c, status)
}

// TaskResponse is one task row on the dashboard
type TaskResponse struct {
	ID         uint   `json:"id"`
	Status     string `json:"status"`
	Type       string `json:"type"`
	SourceGuid string `json:"sourceGuid"`
	EventType  string `json:"eventType"`
	Attempts   int    `json:"attempts"`
	LastError  string `json:"lastError,omitempty"`
	CreatedAt  string `json:"createdAt"`
	UpdatedAt  string `json:"updatedAt"`
}

// Tasks handles GET /pipeline/tasks
func (h *PipelineHandler) Tasks(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	tasks, err := h.dashboard.Recent(c.Request.Context(), limit)
	if err != nil {
		h.InternalError(c, err.Error())
		return
	}

	rows := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		rows = append(rows, TaskResponse{
			ID:         task.ID,
			Status:     string(task.Status),
			Type:       task.Type,
			SourceGuid: task.SourceGuid,
			EventType:  task.EventType,
			Attempts:   task.Attempts,
			LastError:  task.LastError,
			CreatedAt:  task.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt:  task.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	h.Success(c, rows)
}

// Replay handles POST /pipeline/tasks/:id/replay
func (h *PipelineHandler) Replay(c *gin.Context) {
	h.taskAction(c, h.dashboard.ReplayTask)
}

// Retry handles POST /pipeline/tasks/:id/retry
func (h *PipelineHandler) Retry(c *gin.Context) {
	h.taskAction(c, h.dashboard.RetryTask)
}

// taskAction parses the task id and applies an operator action to it
func (h *PipelineHandler) taskAction(c *gin.Context, action func(ctx context.Context, id uint) error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		h.BadRequest(c, "invalid task id")
		return
	}

	if err := action(c.Request.Context(), uint(id)); err != nil {
		if errors.Is(err, pipeline.ErrTaskNotFound) {
			h.NotFound(c, "sync task not found")
			return
		}
		h.InternalError(c, err.Error())
		return
	}
	h.Success(c, gin.H{"id": id})
}

// Drain handles POST /queue/drain, running one worker batch on demand
func (h *PipelineHandler) Drain(c *gin.Context) {
	report, err := h.worker.Drain(c.Request.Context())
	if err != nil {
		h.InternalError(c, err.Error())
		return
	}
	h.Success(c, report)
}

// Sync handles POST /sync/run, running one export sweep on demand
func (h *PipelineHandler) Sync(c *gin.Context) {
	report, err := h.processor.Run(c.Request.Context())
	if err != nil {
		if errors.Is(err, pipeline.ErrCredentialsMissing) {
			h.ErrorWithCode(c, dto.ErrCodeCredentialsMissing, "target credentials not configured")
			return
		}
		h.InternalError(c, err.Error())
		return
	}
	h.Success(c, report)
}

// RegisterRoutes registers pipeline routes
func (h *PipelineHandler) RegisterRoutes(rg *gin.RouterGroup) {
	pipelines := rg.Group("/pipeline")
	{
		pipelines.GET("/status", h.Status)
		pipelines.GET("/tasks", h.Tasks)
		pipelines.POST("/tasks/:id/replay", h.Replay)
		pipelines.POST("/tasks/:id/retry", h.Retry)
	}

	rg.POST("/queue/drain", h.Drain)
	rg.POST("/sync/run", h.Sync)
}
