package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"taskflow/internal/middleware"
	"taskflow/internal/models"
	"taskflow/internal/pdf"
	"taskflow/internal/services"
)

const (
	testProject = "aaaaaaaa-0000-0000-0000-000000000001"
	testTask    = "bbbbbbbb-0000-0000-0000-000000000042"
	testUser    = "00000000-0000-0000-0000-000000000001"
)

// fakeTaskService lets each test override only the calls it exercises.
type fakeTaskService struct {
	createFn        func(ctx context.Context, actor models.Actor, projectID string, in services.CreateTaskInput) (*models.Task, error)
	createSubtaskFn func(ctx context.Context, actor models.Actor, projectID, parentID string, in services.CreateTaskInput) (*models.Task, error)
	getFn           func(ctx context.Context, actor models.Actor, projectID, id string) (*models.Task, error)
	getAllFn        func(ctx context.Context, actor models.Actor, filter models.TaskFilter) ([]models.Task, error)
	listSubtasksFn  func(ctx context.Context, actor models.Actor, projectID, parentID string) ([]models.Task, error)
	updateFn        func(ctx context.Context, actor models.Actor, projectID, id string, patch models.TaskPatch) (*models.Task, error)
	updateSubFn     func(ctx context.Context, actor models.Actor, projectID, id string, patch models.TaskPatch) (*models.Task, error)
	deleteFn        func(ctx context.Context, actor models.Actor, projectID, id string) error
	deleteSubFn     func(ctx context.Context, actor models.Actor, projectID, id string) error
	auditFn         func(ctx context.Context, actor models.Actor, projectID, id string) (*models.Task, []models.AuditEntry, error)
}

func (f *fakeTaskService) Create(ctx context.Context, a models.Actor, p string, in services.CreateTaskInput) (*models.Task, error) {
	return f.createFn(ctx, a, p, in)
}

func (f *fakeTaskService) CreateSubtask(ctx context.Context, a models.Actor, p, parent string, in services.CreateTaskInput) (*models.Task, error) {
	return f.createSubtaskFn(ctx, a, p, parent, in)
}

func (f *fakeTaskService) GetByID(ctx context.Context, a models.Actor, p, id string) (*models.Task, error) {
	return f.getFn(ctx, a, p, id)
}

func (f *fakeTaskService) GetAll(ctx context.Context, a models.Actor, filter models.TaskFilter) ([]models.Task, error) {
	return f.getAllFn(ctx, a, filter)
}

func (f *fakeTaskService) ListSubtasks(ctx context.Context, a models.Actor, p, parent string) ([]models.Task, error) {
	return f.listSubtasksFn(ctx, a, p, parent)
}

func (f *fakeTaskService) Update(ctx context.Context, a models.Actor, p, id string, patch models.TaskPatch) (*models.Task, error) {
	return f.updateFn(ctx, a, p, id, patch)
}

func (f *fakeTaskService) UpdateSubtask(ctx context.Context, a models.Actor, p, id string, patch models.TaskPatch) (*models.Task, error) {
	return f.updateSubFn(ctx, a, p, id, patch)
}

func (f *fakeTaskService) SoftDelete(ctx context.Context, a models.Actor, p, id string) error {
	return f.deleteFn(ctx, a, p, id)
}

func (f *fakeTaskService) SoftDeleteSubtask(ctx context.Context, a models.Actor, p, id string) error {
	return f.deleteSubFn(ctx, a, p, id)
}

func (f *fakeTaskService) AuditTrail(ctx context.Context, a models.Actor, p, id string) (*models.Task, []models.AuditEntry, error) {
	return f.auditFn(ctx, a, p, id)
}

type fakeNotificationService struct {
	services.Notifier
	listFn     func(ctx context.Context, actor models.Actor, unreadOnly bool, limit int) ([]models.Notification, error)
	markReadFn func(ctx context.Context, actor models.Actor, id string) error
}

func (f *fakeNotificationService) List(ctx context.Context, a models.Actor, unreadOnly bool, limit int) ([]models.Notification, error) {
	return f.listFn(ctx, a, unreadOnly, limit)
}

func (f *fakeNotificationService) MarkRead(ctx context.Context, a models.Actor, id string) error {
	return f.markReadFn(ctx, a, id)
}

type fakePDF struct {
	err error
}

func (f *fakePDF) RenderAuditTrail(w io.Writer, data pdf.AuditTrailData) error {
	if f.err != nil {
		return f.err
	}
	_, err := io.WriteString(w, "%PDF-1.3 "+data.Task.ID)
	return err
}

// newTestRouter registers the handlers behind a stub that plays the role of
// the auth middleware.
func newTestRouter(tasks services.TaskService, notes services.NotificationService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.CtxUserID, testUser)
		c.Set(middleware.CtxUserName, "Uma One")
		c.Next()
	})

	th := NewTaskHandler(tasks, &fakePDF{})
	p := r.Group("/projects/:projectId")
	p.POST("/tasks", th.Create)
	p.GET("/tasks", th.GetAll)
	p.GET("/tasks/:taskId", th.GetByID)
	p.PUT("/tasks/:taskId", th.Update)
	p.DELETE("/tasks/:taskId", th.Delete)
	p.GET("/tasks/:taskId/subtasks", th.ListSubtasks)
	p.POST("/tasks/:taskId/subtasks", th.CreateSubtask)
	p.PUT("/subtasks/:subtaskId", th.UpdateSubtask)
	p.DELETE("/subtasks/:subtaskId", th.DeleteSubtask)
	p.GET("/tasks/:taskId/audit", th.AuditTrail)
	p.GET("/tasks/:taskId/audit/pdf", th.AuditTrailPDF)

	if notes != nil {
		nh := NewNotificationHandler(notes)
		r.GET("/notifications", nh.List)
		r.POST("/notifications/:id/read", nh.MarkRead)
	}
	return r
}

func doRequest(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
