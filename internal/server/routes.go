// Package server configures the HTTP server and routes.
package server

import (
	"github.com/gin-gonic/gin"

	"github.com/fleveque/frameseal/internal/config"
	"github.com/fleveque/frameseal/internal/handler"
	"github.com/fleveque/frameseal/internal/middleware"
)

// Handlers groups the handlers RegisterRoutes mounts.
type Handlers struct {
	Health  *handler.HealthHandler
	Catalog *handler.CatalogHandler
	Preview *handler.PreviewHandler
	Admin   *handler.AdminHandler
}

// RegisterRoutes sets up all HTTP routes on the Gin engine.
// Dependencies are passed explicitly: no DI container, no magic.
func RegisterRoutes(r *gin.Engine, cfg *config.Config, h Handlers) {
	// Public endpoints (no auth)
	r.GET("/healthz", h.Health.Healthz)

	// CORS middleware applies to the entire API group.
	api := r.Group("/api/v1")
	api.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	authed := api.Group("")
	authed.Use(middleware.APIKeyAuth(cfg.Auth.APIKeys))
	authed.Use(middleware.RateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	{
		authed.GET("/formats", h.Catalog.Formats)
		authed.GET("/fields", h.Catalog.Fields)
		authed.GET("/fonts", h.Catalog.Fonts)
		authed.POST("/preview", middleware.PreviewSession(), h.Preview.Preview)
	}

	// Admin endpoints (separate auth with admin keys)
	admin := api.Group("/admin")
	admin.Use(middleware.AdminKeyAuth(cfg.Auth.AdminKeys))
	{
		admin.GET("/stats", h.Admin.Stats)
		admin.GET("/runs", h.Admin.Runs)
		admin.GET("/runs/:id", h.Admin.Run)
	}
}
