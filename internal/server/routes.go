package server

import (
	"github.com/labstack/echo/v4"

	"example.com/receipt-tracker/backend/internal/handlers"
)

type routes struct {
	health          *handlers.HealthHandler
	metrics         echo.HandlerFunc
	auth            *handlers.AuthHandler
	receipts        *handlers.ReceiptHandler
	dashboard       *handlers.DashboardHandler
	settings        *handlers.SettingsHandler
	stream          *handlers.StreamHandler
	identity        echo.MiddlewareFunc
	authRateLimiter echo.MiddlewareFunc
	aiRateLimiter   echo.MiddlewareFunc
}

func registerRoutes(e *echo.Echo, r routes) {
	e.GET("/health", r.health.Health)
	e.GET("/metrics", r.metrics)

	api := e.Group("/api/v1", r.identity)

	// Accounts exist only with the remote store; guests use everything else.
	if r.auth != nil {
		authGroup := api.Group("/auth", r.authRateLimiter)
		authGroup.POST("/register", r.auth.Register)
		authGroup.POST("/login", r.auth.Login)
		authGroup.POST("/refresh", r.auth.Refresh)
		authGroup.POST("/logout", r.auth.Logout)
		authGroup.GET("/me", r.auth.Me)
	}

	receiptsGroup := api.Group("/receipts")
	receiptsGroup.POST("/upload", r.receipts.Upload, r.aiRateLimiter)
	receiptsGroup.GET("", r.receipts.List)
	receiptsGroup.GET("/export.csv", r.receipts.ExportCSV)
	receiptsGroup.GET("/stream", r.stream.Stream)
	receiptsGroup.DELETE("/:id", r.receipts.Delete)

	api.GET("/dashboard", r.dashboard.Get)

	api.GET("/budget", r.settings.GetBudget)
	api.PUT("/budget", r.settings.UpdateBudget)

	api.GET("/preferences/theme", r.settings.GetTheme)
	api.PUT("/preferences/theme", r.settings.UpdateTheme)
}
