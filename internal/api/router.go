package api

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/taskboard/taskboard-api/internal/api/handler"
	"github.com/taskboard/taskboard-api/internal/api/middleware"
	"github.com/taskboard/taskboard-api/internal/core/domain"
	"github.com/taskboard/taskboard-api/internal/core/ports"
	"github.com/taskboard/taskboard-api/internal/realtime"
)

// Deps carries everything the router needs, injected by the composition root.
type Deps struct {
	TaskService ports.TaskService
	AuthService ports.AuthService
	Hub         *realtime.Hub
	Pool        *pgxpool.Pool
	Redis       *redis.Client
	Mongo       *mongo.Database
	Logger      zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("taskboard"))

	authMiddleware := middleware.Auth(deps.AuthService)

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(deps.AuthService)
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)
	e.POST("/auth/refresh", authHandler.Refresh)
	e.POST("/auth/logout", authHandler.Logout)

	// --- Task routes ---
	taskHandler := handler.NewTaskHandler(deps.TaskService)
	v1 := e.Group("/v1", authMiddleware)
	v1.POST("/tasks", taskHandler.Create)
	v1.GET("/tasks", taskHandler.List)
	v1.GET("/tasks/stats", taskHandler.Stats)
	v1.GET("/tasks/:id", taskHandler.Get)
	v1.PATCH("/tasks/:id", taskHandler.Update)
	v1.PATCH("/tasks/:id/assign", taskHandler.Assign)
	v1.DELETE("/tasks/:id", taskHandler.Delete)

	// --- Realtime ---
	wsHandler := handler.NewWSHandler(deps.AuthService, deps.Hub, deps.Logger)
	e.GET("/ws", wsHandler.Connect)

	// --- Admin diagnostics ---
	admin := e.Group("/v1/admin", authMiddleware, middleware.RBAC(domain.RoleAdmin))
	admin.GET("/realtime", wsHandler.Stats)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(deps.Pool, deps.Redis, deps.Mongo, deps.Hub)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", readinessHandler.Readiness)

	// --- Metrics ---
	e.GET("/metrics", echoprometheus.NewHandler())

	return e
}
