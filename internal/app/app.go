package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	_ "taskflow/docs"
	"taskflow/internal/config"
	"taskflow/internal/handlers"
	"taskflow/internal/pdf"
	"taskflow/internal/repositories"
	"taskflow/internal/routes"
	"taskflow/internal/services"
)

// OpenDB opens and pings the Postgres pool.
func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// Run serves the API until ctx is cancelled, then drains in-flight requests
// and queued side effects.
func Run(ctx context.Context, cfg *config.Config) error {
	// === DB ===
	db, err := OpenDB(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("[app][db][close][err] %v", err)
		}
	}()

	// === Repos ===
	userRepo := repositories.NewUserRepository(db)
	taskRepo := repositories.NewTaskRepository(db)
	projectRepo := repositories.NewProjectRepository(db)
	auditRepo := repositories.NewAuditRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)
	linkRepo := repositories.NewTelegramLinkRepository(db)

	// === Notification channels ===
	var channels []services.Channel
	var tg *services.TelegramService
	if cfg.Telegram.Enabled && cfg.Telegram.BotToken != "" {
		tg, err = services.NewTelegramService(cfg.Telegram.BotToken)
		if err != nil {
			log.Printf("[app][tg][warn] telegram disabled: %v", err)
		} else {
			channels = append(channels, tg)
		}
	}
	if cfg.Email.Enabled {
		channels = append(channels, services.NewEmailService(
			cfg.Email.SMTPHost,
			cfg.Email.SMTPPort,
			cfg.Email.SMTPUser,
			cfg.Email.SMTPPassword,
			cfg.Email.FromEmail,
		))
	}

	// === Services ===
	effects := services.NewSideEffectQueue(cfg.SideEffects.Workers, cfg.SideEffects.Buffer)
	defer effects.Close()

	notificationService := services.NewNotificationService(notificationRepo, userRepo, channels...)
	taskService := services.NewTaskService(
		taskRepo,
		services.NewAccessService(projectRepo),
		services.NewWorkflowResolver(projectRepo),
		services.NewAuditService(auditRepo),
		services.NewNotificationDispatcher(notificationService, userRepo),
		effects,
	)

	// === Handlers ===
	taskHandler := handlers.NewTaskHandler(taskService, pdf.NewAuditTrailGenerator(cfg.Files.FontPath))
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	var integrationsHandler *handlers.IntegrationsHandler
	if tg != nil {
		linkService := services.NewTelegramLinkService(linkRepo, userRepo)
		integrationsHandler = handlers.NewIntegrationsHandler(tg, linkService, cfg.Telegram.WebhookSecret)
	}

	// === Gin ===
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))

	routes.SetupRoutes(router, []byte(cfg.Auth.JWTSecret), taskHandler, notificationHandler, integrationsHandler)

	// === Run ===
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[app] listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Printf("[app] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	c.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	c.ExposeHeaders = []string{"Content-Disposition"}
	if len(origins) == 1 && origins[0] == "*" {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}
