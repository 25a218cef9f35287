package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/frameseal/internal/config"
	"github.com/fleveque/frameseal/internal/handler"
	"github.com/fleveque/frameseal/internal/icon"
	"github.com/fleveque/frameseal/internal/service"
	"github.com/fleveque/frameseal/internal/storage"
)

// Deps are the long-lived services the HTTP layer needs.
type Deps struct {
	Previews *service.PreviewHub
	Runs     storage.RunRepository
	Icons    *icon.Loader
}

// Server wraps the HTTP server and its dependencies.
// In Go, you typically compose a struct with all the pieces your server needs,
// then wire them together in the constructor (New function).
type Server struct {
	cfg     *config.Config
	router  *gin.Engine
	preview *handler.PreviewHandler
	logger  *zap.Logger
	http    *http.Server
}

// New creates and configures a new Server. It fails if the frame settings
// in cfg are invalid, since every preview starts from them.
func New(ctx context.Context, cfg *config.Config, deps Deps, logger *zap.Logger) (*Server, error) {
	// Set Gin mode based on log level
	if cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	maxUpload := int64(cfg.Server.MaxUploadMB) << 20

	// Go note: a nil RunRepository stored in a handler.Pinger would be a
	// non-nil interface holding nil, so only convert a real one.
	var ledger handler.Pinger
	if deps.Runs != nil {
		ledger = deps.Runs
	}
	h := Handlers{
		Health:  handler.NewHealthHandler(ledger),
		Catalog: handler.NewCatalogHandler(),
		Preview: handler.NewPreviewHandler(deps.Previews, deps.Icons, maxUpload, logger),
		Admin:   handler.NewAdminHandler(deps.Runs, deps.Previews, logger),
	}
	if err := h.Preview.SetDefaults(ctx, cfg.Frame); err != nil {
		return nil, fmt.Errorf("frame settings: %w", err)
	}

	router := gin.New()

	// Recovery middleware catches panics and returns 500 instead of crashing.
	router.Use(gin.Recovery())

	RegisterRoutes(router, cfg, h)

	return &Server{
		cfg:     cfg,
		router:  router,
		preview: h.Preview,
		logger:  logger,
		http: &http.Server{
			Addr:    cfg.Server.Address(),
			Handler: router,
			// Uploads can be tens of megabytes.
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}, nil
}

// ReloadFrame swaps in new frame defaults, e.g. after the config file was
// edited. Invalid settings are logged and the current ones kept.
func (s *Server) ReloadFrame(ctx context.Context, fc config.FrameConfig) error {
	if err := s.preview.SetDefaults(ctx, fc); err != nil {
		s.logger.Warn("keeping previous frame settings", zap.Error(err))
		return err
	}
	s.logger.Info("frame settings reloaded")
	return nil
}

// Start begins listening for HTTP requests. This blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("starting server", zap.String("address", s.cfg.Server.Address()))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests to complete.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.http.Shutdown(ctx)
}

// Router returns the underlying Gin engine (useful for testing).
func (s *Server) Router() *gin.Engine {
	return s.router
}
