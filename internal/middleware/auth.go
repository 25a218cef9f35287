// Package middleware contains Gin middleware functions.
// Middleware in Gin is a handler that runs before (or after) your route handler.
// It calls c.Next() to proceed or c.Abort() to stop the chain.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Context keys set by this package and read by handlers.
const (
	ContextAPIKey  = "api_key"
	ContextSession = "preview_session"
)

// SessionHeader lets one API key drive several independent preview sessions
// (two browser tabs, say). Without it the session is the API key itself.
const SessionHeader = "X-Preview-Session"

// maxSessionLen bounds client-chosen session ids, which become map keys.
const maxSessionLen = 128

// APIKeyAuth returns middleware that validates API keys.
// The key can be provided via X-API-Key header or api_key query param.
//
// An empty key list turns authentication off: FrameSeal's preview server is
// usually run on localhost next to the editor. Requests are then identified
// by client IP, so rate limiting and preview sessions still work per caller.
func APIKeyAuth(validKeys []string) gin.HandlerFunc {
	keySet := newKeySet(validKeys)

	return func(c *gin.Context) {
		if len(keySet) == 0 {
			c.Set(ContextAPIKey, "ip:"+c.ClientIP())
			c.Next()
			return
		}

		key := requestKey(c)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing API key",
			})
			return
		}

		if _, ok := keySet[key]; !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid API key",
			})
			return
		}

		// gin.Context is a request-scoped key-value store; the rate limiter
		// and PreviewSession read the key back from it.
		c.Set(ContextAPIKey, key)
		c.Next()
	}
}

// AdminKeyAuth returns middleware that validates admin API keys.
// Unlike APIKeyAuth, an empty list locks the admin endpoints.
func AdminKeyAuth(adminKeys []string) gin.HandlerFunc {
	keySet := newKeySet(adminKeys)

	return func(c *gin.Context) {
		key := requestKey(c)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing admin API key",
			})
			return
		}

		if _, ok := keySet[key]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "invalid admin API key",
			})
			return
		}

		c.Set(ContextAPIKey, key)
		c.Next()
	}
}

// PreviewSession stores the preview session key for the request: the
// X-Preview-Session header scoped to the caller's API key, or the API key
// alone. Scoping keeps one client from cancelling another's previews by
// guessing its session id.
func PreviewSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := c.GetString(ContextAPIKey)
		if owner == "" {
			owner = "ip:" + c.ClientIP()
		}

		session := owner
		if id := strings.TrimSpace(c.GetHeader(SessionHeader)); id != "" {
			if len(id) > maxSessionLen {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"error": "preview session id too long",
				})
				return
			}
			session = owner + "/" + id
		}

		c.Set(ContextSession, session)
		c.Next()
	}
}

func requestKey(c *gin.Context) string {
	key := c.GetHeader("X-API-Key")
	if key == "" {
		key = c.Query("api_key")
	}
	return key
}

// newKeySet builds a set for O(1) lookups. Go doesn't have a built-in Set
// type, so we use map[string]struct{}; struct{} takes zero bytes.
func newKeySet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}
