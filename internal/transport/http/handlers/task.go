// Package handlers implements the §6 Task API and chat/SSE endpoints over
// gin, grounded on internal/http/handlers/chat.go's request-bind ->
// service-call -> response.RespondOK/RespondError shape in the teacher.
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/riverglen/coursecraft/internal/apierr"
	"github.com/riverglen/coursecraft/internal/decision"
	"github.com/riverglen/coursecraft/internal/domain"
	"github.com/riverglen/coursecraft/internal/orchestrator"
	"github.com/riverglen/coursecraft/internal/store"
	"github.com/riverglen/coursecraft/internal/transport/http/response"
)

var errInvalidEntryPoint = errors.New("entry_point must be scenario or tool_seed")

// TaskHandler serves create_task, task(task_id), task_progress(task_id),
// and task_action(task_id) (spec.md §6).
type TaskHandler struct {
	Orchestrator *orchestrator.Orchestrator
	Store        *store.Store
}

func NewTaskHandler(o *orchestrator.Orchestrator, st *store.Store) *TaskHandler {
	return &TaskHandler{Orchestrator: o, Store: st}
}

type createTaskRequest struct {
	EntryPoint string         `json:"entry_point"`
	Scenario   string         `json:"scenario"`
	ToolSeed   map[string]any `json:"tool_seed"`
	SessionID  string         `json:"session_id"`
}

type taskResponse struct {
	Task                  *domain.Task          `json:"task"`
	Decision              domain.DecisionResult `json:"decision"`
	CurrentStageArtifact  *domain.StageArtifact `json:"current_stage_artifact,omitempty"`
}

// CreateTask handles POST create_task.
func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, apierr.Validation("invalid_request", err))
		return
	}

	entryData := map[string]any{"session_id": req.SessionID}
	switch domain.EntryPoint(req.EntryPoint) {
	case domain.EntryScenario:
		entryData["scenario"] = req.Scenario
	case domain.EntryToolSeed:
		entryData["tool_seed"] = req.ToolSeed
	default:
		response.RespondError(c, apierr.Validation("invalid_entry_point", errInvalidEntryPoint))
		return
	}

	task, dr, artifact, err := h.Orchestrator.CreateTask(c.Request.Context(), domain.EntryPoint(req.EntryPoint), entryData)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, taskResponse{Task: task, Decision: dr, CurrentStageArtifact: artifact})
}

// GetTask handles GET task(task_id).
func (h *TaskHandler) GetTask(c *gin.Context) {
	taskID := c.Param("task_id")
	task, err := h.Store.Get(taskID)
	if err != nil {
		response.RespondError(c, apierr.NotFound("task_not_found", err))
		return
	}
	response.RespondOK(c, task)
}

type taskProgressResponse struct {
	TaskID          string                           `json:"task_id"`
	CurrentStage    domain.StageType                 `json:"current_stage"`
	CompletedStages []domain.StageType               `json:"completed_stages"`
	Status          domain.TaskStatus                `json:"status"`
	StageStatus     map[domain.StageType]domain.StageStatus `json:"stage_status"`
	NextSteps       domain.DecisionResult           `json:"next_steps"`
}

// TaskProgress handles GET task_progress(task_id).
func (h *TaskHandler) TaskProgress(c *gin.Context) {
	taskID := c.Param("task_id")
	task, err := h.Store.Get(taskID)
	if err != nil {
		response.RespondError(c, apierr.NotFound("task_not_found", err))
		return
	}
	response.RespondOK(c, taskProgressResponse{
		TaskID:          task.TaskID,
		CurrentStage:    task.CurrentStage,
		CompletedStages: task.CompletedStages,
		Status:          task.Status,
		StageStatus:     task.StageStatus,
		NextSteps:       decision.DryRunNextSteps(task),
	})
}

type taskActionRequest struct {
	ActionType string         `json:"action_type"`
	Payload    map[string]any `json:"payload"`
}

// TaskAction handles POST task_action(task_id, {action_type, payload}).
func (h *TaskHandler) TaskAction(c *gin.Context) {
	taskID := c.Param("task_id")
	var req taskActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, apierr.Validation("invalid_request", err))
		return
	}
	task, dr, artifact, err := h.Orchestrator.ApplyAction(c.Request.Context(), taskID, req.ActionType, req.Payload)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, taskResponse{Task: task, Decision: dr, CurrentStageArtifact: artifact})
}
