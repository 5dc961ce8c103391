package handlers

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"taskflow/internal/models"
	"taskflow/internal/pdf"
	"taskflow/internal/services"
)

type TaskHandler struct {
	service services.TaskService
	pdf     pdf.Generator
}

func NewTaskHandler(service services.TaskService, gen pdf.Generator) *TaskHandler {
	return &TaskHandler{service: service, pdf: gen}
}

type createTaskRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description *string   `json:"description"`
	Priority    string    `json:"priority"` // LOW|MEDIUM|HIGH|URGENT
	DueDate     *string   `json:"due_date"` // RFC3339 or YYYY-MM-DD
	SprintID    *string   `json:"sprint_id"`
	EpicID      *string   `json:"epic_id"`
	AssigneeIDs *[]string `json:"assignee_ids"`
	AssigneeID  *string   `json:"assignee_id"` // deprecated
}

func (r createTaskRequest) input() services.CreateTaskInput {
	return services.CreateTaskInput{
		Title:       r.Title,
		Description: r.Description,
		Priority:    models.TaskPriority(strings.ToUpper(strings.TrimSpace(r.Priority))),
		DueDate:     r.DueDate,
		SprintID:    r.SprintID,
		EpicID:      r.EpicID,
		AssigneeIDs: r.AssigneeIDs,
		AssigneeID:  r.AssigneeID,
	}
}

type updateTaskRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Status      *string   `json:"status"`
	Priority    *string   `json:"priority"`
	DueDate     *string   `json:"due_date"` // "" clears
	SprintID    *string   `json:"sprint_id"`
	EpicID      *string   `json:"epic_id"`
	AssigneeIDs *[]string `json:"assignee_ids"`
	AssigneeID  *string   `json:"assignee_id"` // deprecated, ignored when assignee_ids is present
}

func (r updateTaskRequest) patch() models.TaskPatch {
	p := models.TaskPatch{
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		DueDate:     r.DueDate,
		SprintID:    r.SprintID,
		EpicID:      r.EpicID,
		AssigneeIDs: r.AssigneeIDs,
		AssigneeID:  r.AssigneeID,
	}
	if r.Priority != nil {
		pr := models.TaskPriority(strings.ToUpper(strings.TrimSpace(*r.Priority)))
		p.Priority = &pr
	}
	return p
}

// taskResponse adds the deprecated single assignee for older clients.
type taskResponse struct {
	*models.Task
	AssigneeID *string `json:"assignee_id"`
}

func toResponse(t *models.Task) taskResponse {
	return taskResponse{Task: t, AssigneeID: t.LegacyAssigneeID()}
}

func toResponses(tasks []models.Task) []taskResponse {
	out := make([]taskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, toResponse(&tasks[i]))
	}
	return out
}

// @Summary      Create task
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Param        projectId  path      string             true  "Project ID"
// @Param        task       body      createTaskRequest  true  "Task"
// @Success      201        {object}  taskResponse
// @Failure      400        {object}  map[string]string
// @Failure      403        {object}  map[string]string
// @Router       /projects/{projectId}/tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	actor := actorFromCtx(c)
	projectID := c.Param("projectId")
	log.Printf("[task][create] call by user=%s project=%s", actor.UserID, projectID)

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("[task][create][bind][err] %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.service.Create(c.Request.Context(), actor, projectID, req.input())
	if err != nil {
		writeError(c, "[task][create]", err)
		return
	}
	log.Printf("[task][create][ok] id=%s assignees=%d", task.ID, len(task.AssigneeIDs))
	c.JSON(http.StatusCreated, toResponse(task))
}

// @Summary      List tasks
// @Tags         Tasks
// @Produce      json
// @Param        projectId    path   string  true   "Project ID"
// @Param        status       query  string  false  "Status"
// @Param        assignee_id  query  string  false  "Assignee"
// @Param        sprint_id    query  string  false  "Sprint"
// @Param        epic_id      query  string  false  "Epic"
// @Success      200  {array}  taskResponse
// @Router       /projects/{projectId}/tasks [get]
func (h *TaskHandler) GetAll(c *gin.Context) {
	actor := actorFromCtx(c)
	log.Printf("[task][list] call by user=%s q=%v", actor.UserID, c.Request.URL.RawQuery)

	filter := models.TaskFilter{ProjectID: c.Param("projectId"), TopLevelOnly: true}
	if v, ok := c.GetQuery("status"); ok && v != "" {
		filter.Status = &v
	}
	if v, ok := c.GetQuery("assignee_id"); ok && v != "" {
		filter.AssigneeID = &v
	}
	if v, ok := c.GetQuery("sprint_id"); ok && v != "" {
		filter.SprintID = &v
	}
	if v, ok := c.GetQuery("epic_id"); ok && v != "" {
		filter.EpicID = &v
	}

	tasks, err := h.service.GetAll(c.Request.Context(), actor, filter)
	if err != nil {
		writeError(c, "[task][list]", err)
		return
	}
	log.Printf("[task][list][ok] count=%d", len(tasks))
	c.JSON(http.StatusOK, toResponses(tasks))
}

// @Summary      Get task
// @Tags         Tasks
// @Produce      json
// @Param        projectId  path  string  true  "Project ID"
// @Param        taskId     path  string  true  "Task ID"
// @Success      200  {object}  taskResponse
// @Failure      404  {object}  map[string]string
// @Router       /projects/{projectId}/tasks/{taskId} [get]
func (h *TaskHandler) GetByID(c *gin.Context) {
	actor := actorFromCtx(c)
	task, err := h.service.GetByID(c.Request.Context(), actor, c.Param("projectId"), c.Param("taskId"))
	if err != nil {
		writeError(c, "[task][getByID]", err)
		return
	}
	c.JSON(http.StatusOK, toResponse(task))
}

// @Summary      Update task
// @Description  Partial update. Fields left out are untouched; "" clears nullable fields.
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Param        projectId  path  string             true  "Project ID"
// @Param        taskId     path  string             true  "Task ID"
// @Param        task       body  updateTaskRequest  true  "Changes"
// @Success      200  {object}  taskResponse
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /projects/{projectId}/tasks/{taskId} [put]
func (h *TaskHandler) Update(c *gin.Context) {
	h.update(c, "[task][update]", c.Param("taskId"), h.service.Update)
}

// PUT /projects/:projectId/subtasks/:subtaskId
func (h *TaskHandler) UpdateSubtask(c *gin.Context) {
	h.update(c, "[subtask][update]", c.Param("subtaskId"), h.service.UpdateSubtask)
}

func (h *TaskHandler) update(c *gin.Context, tag, id string,
	fn func(ctx context.Context, actor models.Actor, projectID, id string, patch models.TaskPatch) (*models.Task, error),
) {
	actor := actorFromCtx(c)
	log.Printf("%s call by user=%s id=%s", tag, actor.UserID, id)

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("%s[bind][err] %v", tag, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := fn(c.Request.Context(), actor, c.Param("projectId"), id, req.patch())
	if err != nil {
		writeError(c, tag, err)
		return
	}
	log.Printf("%s[ok] id=%s status=%s", tag, task.ID, task.Status)
	c.JSON(http.StatusOK, toResponse(task))
}

// @Summary      Delete task
// @Description  Soft-deletes the task and its direct subtasks. Only the creator or a project owner may delete.
// @Tags         Tasks
// @Param        projectId  path  string  true  "Project ID"
// @Param        taskId     path  string  true  "Task ID"
// @Success      200  {object}  map[string]bool
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /projects/{projectId}/tasks/{taskId} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	h.delete(c, "[task][delete]", c.Param("taskId"), h.service.SoftDelete)
}

// DELETE /projects/:projectId/subtasks/:subtaskId
func (h *TaskHandler) DeleteSubtask(c *gin.Context) {
	h.delete(c, "[subtask][delete]", c.Param("subtaskId"), h.service.SoftDeleteSubtask)
}

func (h *TaskHandler) delete(c *gin.Context, tag, id string,
	fn func(ctx context.Context, actor models.Actor, projectID, id string) error,
) {
	actor := actorFromCtx(c)
	log.Printf("%s call by user=%s id=%s", tag, actor.UserID, id)

	if err := fn(c.Request.Context(), actor, c.Param("projectId"), id); err != nil {
		writeError(c, tag, err)
		return
	}
	log.Printf("%s[ok] id=%s", tag, id)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GET /projects/:projectId/tasks/:taskId/subtasks
func (h *TaskHandler) ListSubtasks(c *gin.Context) {
	actor := actorFromCtx(c)
	tasks, err := h.service.ListSubtasks(c.Request.Context(), actor, c.Param("projectId"), c.Param("taskId"))
	if err != nil {
		writeError(c, "[subtask][list]", err)
		return
	}
	c.JSON(http.StatusOK, toResponses(tasks))
}

// POST /projects/:projectId/tasks/:taskId/subtasks
func (h *TaskHandler) CreateSubtask(c *gin.Context) {
	actor := actorFromCtx(c)
	parentID := c.Param("taskId")
	log.Printf("[subtask][create] call by user=%s parent=%s", actor.UserID, parentID)

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("[subtask][create][bind][err] %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.service.CreateSubtask(c.Request.Context(), actor, c.Param("projectId"), parentID, req.input())
	if err != nil {
		writeError(c, "[subtask][create]", err)
		return
	}
	log.Printf("[subtask][create][ok] id=%s parent=%s", task.ID, parentID)
	c.JSON(http.StatusCreated, toResponse(task))
}

// @Summary      Task audit trail
// @Tags         Audit
// @Produce      json
// @Param        projectId  path  string  true  "Project ID"
// @Param        taskId     path  string  true  "Task ID"
// @Success      200  {array}  models.AuditEntry
// @Router       /projects/{projectId}/tasks/{taskId}/audit [get]
func (h *TaskHandler) AuditTrail(c *gin.Context) {
	actor := actorFromCtx(c)
	_, entries, err := h.service.AuditTrail(c.Request.Context(), actor, c.Param("projectId"), c.Param("taskId"))
	if err != nil {
		writeError(c, "[audit][list]", err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// GET /projects/:projectId/tasks/:taskId/audit/pdf
func (h *TaskHandler) AuditTrailPDF(c *gin.Context) {
	actor := actorFromCtx(c)
	task, entries, err := h.service.AuditTrail(c.Request.Context(), actor, c.Param("projectId"), c.Param("taskId"))
	if err != nil {
		writeError(c, "[audit][pdf]", err)
		return
	}

	var buf bytes.Buffer
	data := pdf.AuditTrailData{Task: task, Entries: entries, GeneratedAt: time.Now()}
	if err := h.pdf.RenderAuditTrail(&buf, data); err != nil {
		log.Printf("[audit][pdf][err] task=%s: %v", task.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render pdf"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="audit-%s.pdf"`, task.ID))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
