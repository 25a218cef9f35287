// Package handler holds the Gin handlers of the HTTP API, one file per
// group of routes.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ledgerTimeout bounds the ledger check, so a locked database file turns
// the health check unhealthy instead of hanging it.
const ledgerTimeout = 2 * time.Second

// Pinger reports whether a backing store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports whether the server is up and its run ledger
// reachable.
type HealthHandler struct {
	ledger  Pinger
	started time.Time
}

// NewHealthHandler creates a HealthHandler. A nil ledger is reported as
// disabled.
func NewHealthHandler(ledger Pinger) *HealthHandler {
	return &HealthHandler{ledger: ledger, started: time.Now()}
}

// Healthz answers 200 while the ledger answers and 503 when it doesn't.
// Route: GET /healthz
func (h *HealthHandler) Healthz(c *gin.Context) {
	code, status, ledger := http.StatusOK, "ok", "disabled"
	if h.ledger != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), ledgerTimeout)
		defer cancel()

		ledger = "ok"
		if err := h.ledger.Ping(ctx); err != nil {
			code, status, ledger = http.StatusServiceUnavailable, "degraded", "unreachable"
		}
	}

	c.JSON(code, gin.H{
		"status":         status,
		"service":        "frameseal",
		"ledger":         ledger,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}
