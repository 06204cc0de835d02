package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"duotask/internal/engine"
	"duotask/internal/models"
	"duotask/internal/realtime"
	"duotask/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

// TaskAPI is the engine surface the HTTP layer consumes.
type TaskAPI interface {
	Tasks() []models.Task
	AddTask(ctx context.Context, draft engine.TaskDraft) (models.Task, error)
	UpdateTask(ctx context.Context, id uuid.UUID, patch store.TaskPatch) (models.Task, error)
	ToggleTaskCompletion(ctx context.Context, id uuid.UUID) error
	ToggleChecklistItem(ctx context.Context, taskID uuid.UUID, itemID string) error
	DeleteTask(ctx context.Context, id uuid.UUID) error
	NudgePartner(ctx context.Context, taskID uuid.UUID) error
	AvailableTags() []string
	Celebrations() <-chan realtime.Milestone
}

// ResolveSession returns the calling user's live engine.
type ResolveSession func(ctx context.Context, userID uuid.UUID) (TaskAPI, error)

type TaskHandler struct {
	resolve ResolveSession
}

func NewTaskHandler(resolve ResolveSession) *TaskHandler {
	return &TaskHandler{resolve: resolve}
}

func (h *TaskHandler) ListTasks(c *gin.Context) {
	api, ok := h.api(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": api.Tasks()})
}

func (h *TaskHandler) ListTags(c *gin.Context) {
	api, ok := h.api(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": api.AvailableTags()})
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	api, ok := h.api(c)
	if !ok {
		return
	}

	var draft engine.TaskDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if draft.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	task, err := api.AddTask(c.Request.Context(), draft)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

type updateTaskInput struct {
	Title           *string                `json:"title"`
	Description     *string                `json:"description"`
	Visibility      *models.Visibility     `json:"visibility"`
	Priority        *models.Priority       `json:"priority"`
	AssigneeID      *uuid.UUID             `json:"assignee_id"`
	ClearAssigneeID bool                   `json:"clear_assignee_id"`
	DueAt           *time.Time             `json:"due_at"`
	ClearDueAt      bool                   `json:"clear_due_at"`
	ImageURL        *string                `json:"image_url"`
	Tags            []string               `json:"tags"`
	Checklist       []models.ChecklistItem `json:"checklist"`
}

// UpdateTask patches task fields. Status is deliberately absent: it only
// moves through the completion toggle or the watchdog.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	api, ok := h.api(c)
	if !ok {
		return
	}

	id := uuid.FromStringOrNil(c.Param("id"))
	var input updateTaskInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	patch := store.TaskPatch{
		Title:           input.Title,
		Description:     input.Description,
		Visibility:      input.Visibility,
		Priority:        input.Priority,
		AssigneeID:      input.AssigneeID,
		ClearAssigneeID: input.ClearAssigneeID,
		DueAt:           input.DueAt,
		ClearDueAt:      input.ClearDueAt,
		ImageURL:        input.ImageURL,
		Tags:            input.Tags,
		Checklist:       input.Checklist,
	}

	task, err := api.UpdateTask(c.Request.Context(), id, patch)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) ToggleCompletion(c *gin.Context) {
	api, ok := h.api(c)
	if !ok {
		return
	}

	id := uuid.FromStringOrNil(c.Param("id"))
	if err := api.ToggleTaskCompletion(c.Request.Context(), id); err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task toggled"})
}

func (h *TaskHandler) ToggleChecklistItem(c *gin.Context) {
	api, ok := h.api(c)
	if !ok {
		return
	}

	taskID := uuid.FromStringOrNil(c.Param("id"))
	itemID := c.Param("item_id")
	if err := api.ToggleChecklistItem(c.Request.Context(), taskID, itemID); err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "checklist item toggled"})
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	api, ok := h.api(c)
	if !ok {
		return
	}

	id := uuid.FromStringOrNil(c.Param("id"))
	if err := api.DeleteTask(c.Request.Context(), id); err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusNoContent, nil)
}

func (h *TaskHandler) NudgePartner(c *gin.Context) {
	api, ok := h.api(c)
	if !ok {
		return
	}

	id := uuid.FromStringOrNil(c.Param("id"))
	if err := api.NudgePartner(c.Request.Context(), id); err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "partner nudged"})
}

// Celebrations streams milestone signals to the UI overlay as
// server-sent events. The engine feed supports a single consumer per
// session, so only one stream per user should be open at a time; a
// second concurrent subscriber would receive a disjoint subset of the
// signals.
func (h *TaskHandler) Celebrations(c *gin.Context) {
	api, ok := h.api(c)
	if !ok {
		return
	}

	celebrations := api.Celebrations()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case milestone, open := <-celebrations:
			if !open {
				return false
			}
			c.SSEvent("celebrate_milestone", milestone)
			return true
		}
	})
}

func (h *TaskHandler) api(c *gin.Context) (TaskAPI, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return nil, false
	}

	api, err := h.resolve(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open session"})
		return nil, false
	}
	return api, true
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	value, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return uuid.Nil, false
	}
	idStr, ok := value.(string)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid user id format"})
		return uuid.Nil, false
	}
	id, err := uuid.FromString(idStr)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid user id format"})
		return uuid.Nil, false
	}
	return id, true
}

func handleTaskError(c *gin.Context, err error) {
	if store.IsNotFound(err) || errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process task request"})
}
