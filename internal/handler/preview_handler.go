package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/frameseal/internal/config"
	"github.com/fleveque/frameseal/internal/fonts"
	"github.com/fleveque/frameseal/internal/frame"
	"github.com/fleveque/frameseal/internal/icon"
	"github.com/fleveque/frameseal/internal/imageio"
	"github.com/fleveque/frameseal/internal/middleware"
	"github.com/fleveque/frameseal/internal/service"
)

// noIcon as the "icon" form value drops the default icon for one request.
const noIcon = "none"

// PreviewHandler renders framed previews of uploaded photos.
//
// Requests start from the server's frame defaults; the optional "settings"
// form field is JSON in the same shape as the frame section of the config
// file and overrides only the keys it contains.
type PreviewHandler struct {
	hub       *service.PreviewHub
	icons     *icon.Loader
	maxUpload int64
	logger    *zap.Logger

	// Defaults change when the config file is edited, while requests read
	// them, hence the lock.
	mu          sync.RWMutex
	defaults    config.FrameConfig
	defaultIcon image.Image
}

// NewPreviewHandler creates a PreviewHandler. Call SetDefaults before serving.
// maxUpload caps the request body in bytes.
func NewPreviewHandler(hub *service.PreviewHub, icons *icon.Loader, maxUpload int64, logger *zap.Logger) *PreviewHandler {
	return &PreviewHandler{
		hub:       hub,
		icons:     icons,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// SetDefaults replaces the frame settings requests start from. The settings
// are validated and the icon loaded up front; on error the previous defaults
// stay in place.
func (h *PreviewHandler) SetDefaults(ctx context.Context, fc config.FrameConfig) error {
	cfg, err := fc.Build(ctx, h.icons, h.logger)
	if err != nil {
		return err
	}

	fc.Fields = slices.Clone(fc.Fields)

	h.mu.Lock()
	h.defaults = fc
	h.defaultIcon = cfg.Icon
	h.mu.Unlock()
	return nil
}

// Preview frames the uploaded image and returns it as PNG.
// Route: POST /api/v1/preview (multipart: image, optional icon, optional settings)
//
// A request superseded by a newer one from the same session gets 204 with
// no body; the client should simply wait for the newer response.
func (h *PreviewHandler) Preview(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)

	data, _, err := readFormFile(c, "image")
	if err != nil {
		h.uploadError(c, "image", err)
		return
	}

	cfg, err := h.frameConfig(c)
	if err != nil {
		h.renderError(c, err)
		return
	}

	session := c.GetString(middleware.ContextSession)
	if session == "" {
		session = "ip:" + c.ClientIP()
	}

	out, err := h.hub.Render(c.Request.Context(), session, data, cfg)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", out)
}

// frameConfig builds the request's frame.Config from the defaults, the
// settings JSON and the uploaded icon.
func (h *PreviewHandler) frameConfig(c *gin.Context) (*frame.Config, error) {
	h.mu.RLock()
	fc := h.defaults
	fc.Fields = slices.Clone(fc.Fields)
	ic := h.defaultIcon
	h.mu.RUnlock()

	defaultFont := fc.Font
	if raw := c.PostForm("settings"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &fc); err != nil {
			return nil, &frame.ConfigError{Field: "settings", Reason: err.Error()}
		}
	}

	// Same reasoning for font files: per request, only built-in names.
	if fc.Font != defaultFont && strings.TrimSpace(fc.Font) != "" && !fonts.IsBuiltin(fc.Font) {
		return nil, &frame.ConfigError{Field: "font", Reason: "only built-in fonts can be chosen per request"}
	}

	// Icons only come from the defaults or an upload: an icon reference in
	// the settings would let callers read server files or make it fetch URLs.
	fc.Icon = ""
	opts, err := fc.Options(c.Request.Context(), h.icons, h.logger)
	if err != nil {
		return nil, err
	}

	if c.PostForm("icon") == noIcon {
		ic = nil
	}
	data, name, err := readFormFile(c, "icon")
	switch {
	case err == nil:
		ic, err = icon.Decode(data, name)
		switch {
		case errors.Is(err, imageio.ErrTooLarge):
			return nil, err
		case err != nil:
			return nil, &frame.ConfigError{Field: "icon", Reason: err.Error()}
		}
	case !errors.Is(err, http.ErrMissingFile):
		return nil, err
	}
	opts.Icon = ic

	return frame.New(opts)
}

func (h *PreviewHandler) uploadError(c *gin.Context, field string, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("upload larger than %d bytes", tooLarge.Limit),
		})
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("multipart field %q is required", field),
		})
	default:
		h.logger.Warn("reading upload", zap.String("field", field), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
	}
}

// renderError maps pipeline errors to status codes.
func (h *PreviewHandler) renderError(c *gin.Context, err error) {
	var (
		cfgErr    *frame.ConfigError
		metricErr *frame.MetricError
		tooLarge  *http.MaxBytesError
	)
	switch {
	case errors.Is(err, context.Canceled):
		c.Status(http.StatusNoContent)
	case errors.As(err, &cfgErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": cfgErr.Error(), "field": cfgErr.Field})
	case errors.As(err, &metricErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": metricErr.Error()})
	case errors.Is(err, image.ErrFormat):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported image format"})
	case errors.Is(err, imageio.ErrTooLarge):
		// The upload fit the byte limit but would not fit in memory decoded.
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.As(err, &tooLarge):
		h.uploadError(c, "icon", err)
	default:
		h.logger.Error("rendering preview", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// readFormFile returns the content and client file name of a multipart
// file field. A missing field yields http.ErrMissingFile.
func readFormFile(c *gin.Context, field string) ([]byte, string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, "", err
	}
	data, err := readMultipart(fh)
	if err != nil {
		return nil, "", err
	}
	return data, fh.Filename, nil
}

func readMultipart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("opening upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	return data, nil
}
