package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"taskflow/internal/handlers"
	"taskflow/internal/middleware"
)

func SetupRoutes(
	r *gin.Engine,
	jwtSecret []byte,
	taskHandler *handlers.TaskHandler,
	notificationHandler *handlers.NotificationHandler,
	integrationsHandler *handlers.IntegrationsHandler, // nil when Telegram is disabled
) *gin.Engine {

	// ---- public
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if integrationsHandler != nil {
		r.POST("/integrations/telegram/webhook", integrationsHandler.Webhook)
	}

	// ---- protected
	api := r.Group("/", middleware.AuthMiddleware(jwtSecret))

	if integrationsHandler != nil {
		api.POST("/integrations/telegram/request-link", integrationsHandler.RequestTelegramLink)
	}

	// TASKS (project membership is checked per request by the service)
	projects := api.Group("/projects/:projectId")
	{
		projects.POST("/tasks", taskHandler.Create)
		projects.GET("/tasks", taskHandler.GetAll)
		projects.GET("/tasks/:taskId", taskHandler.GetByID)
		projects.PUT("/tasks/:taskId", taskHandler.Update)
		projects.DELETE("/tasks/:taskId", taskHandler.Delete)
		projects.GET("/tasks/:taskId/subtasks", taskHandler.ListSubtasks)
		projects.POST("/tasks/:taskId/subtasks", taskHandler.CreateSubtask)
		projects.GET("/tasks/:taskId/audit", taskHandler.AuditTrail)
		projects.GET("/tasks/:taskId/audit/pdf", taskHandler.AuditTrailPDF)

		projects.PUT("/subtasks/:subtaskId", taskHandler.UpdateSubtask)
		projects.DELETE("/subtasks/:subtaskId", taskHandler.DeleteSubtask)
	}

	// NOTIFICATIONS
	notes := api.Group("/notifications")
	{
		notes.GET("", notificationHandler.List)
		notes.POST("/:id/read", notificationHandler.MarkRead)
	}

	return r
}
