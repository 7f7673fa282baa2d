package router

import (
	"time"

	"github.com/anonto42/devforum/backend/internal/handlers"
	"github.com/anonto42/devforum/backend/internal/middleware"
	"github.com/anonto42/devforum/backend/internal/services"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Services are the dependencies the routes are built from
type Services struct {
	Auth        *services.AuthService
	Posts       *services.PostService
	Users       *services.UserService
	SearchDelay time.Duration
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, svc Services, logger *zap.Logger) {
	e.GET("/health", handlers.HealthCheck)

	public := e.Group("/api/v1")
	public.GET("/health", handlers.HealthCheck)

	protected := e.Group("/api/v1")
	protected.Use(middleware.AuthMiddleware(svc.Auth))

	handlers.NewAuthHandler(svc.Auth).RegisterAuthRoutes(public, protected)
	handlers.NewPostHandler(svc.Posts, svc.Users).RegisterPostRoutes(public, protected)
	handlers.NewCommentHandler(svc.Posts, svc.Users).RegisterCommentRoutes(public, protected)
	handlers.NewLikeHandler(svc.Posts).RegisterLikeRoutes(protected)
	handlers.NewSavedPostHandler(svc.Posts).RegisterSavedPostRoutes(protected)
	handlers.NewFeedHandler(svc.Posts).RegisterFeedRoutes(public)
	handlers.NewUserHandler(svc.Users).RegisterProfileRoutes(public, protected)
	handlers.NewLiveHandler(svc.Posts, svc.Auth, svc.Users, svc.SearchDelay, logger).RegisterLiveRoutes(protected)

	logger.Info("All routes configured")
}
