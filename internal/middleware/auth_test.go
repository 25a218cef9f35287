package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

// Go HTTP testing: httptest.NewRecorder() captures the response without starting
// a real server. Combined with gin's test mode, this lets you test handlers
// and middleware in isolation, without network I/O.

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAPIKeyAuth_ValidHeader(t *testing.T) {
	router := gin.New()
	router.Use(APIKeyAuth([]string{"test-key-1", "test-key-2"}))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-API-Key", "test-key-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestAPIKeyAuth_ValidQueryParam(t *testing.T) {
	router := gin.New()
	router.Use(APIKeyAuth([]string{"test-key"}))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest("GET", "/test?api_key=test-key", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestAPIKeyAuth_Missing(t *testing.T) {
	router := gin.New()
	router.Use(APIKeyAuth([]string{"test-key"}))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAPIKeyAuth_Invalid(t *testing.T) {
	router := gin.New()
	router.Use(APIKeyAuth([]string{"test-key"}))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-API-Key", "wrong-key")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAPIKeyAuth_NoKeysConfigured(t *testing.T) {
	router := gin.New()
	router.Use(APIKeyAuth(nil))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextAPIKey))
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "192.0.2.7:4321"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "ip:192.0.2.7" {
		t.Errorf("expected caller identified by IP, got %q", w.Body.String())
	}
}

func TestAdminKeyAuth_Valid(t *testing.T) {
	router := gin.New()
	router.Use(AdminKeyAuth([]string{"admin-key"}))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-API-Key", "admin-key")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestAdminKeyAuth_Invalid(t *testing.T) {
	router := gin.New()
	router.Use(AdminKeyAuth([]string{"admin-key"}))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-API-Key", "not-admin")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestAdminKeyAuth_NoKeysLocksEndpoint(t *testing.T) {
	router := gin.New()
	router.Use(AdminKeyAuth(nil))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-API-Key", "anything")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestPreviewSession(t *testing.T) {
	tests := []struct {
		name   string
		apiKey string
		header string
		want   string
		status int
	}{
		{"api key only", "key-a", "", "key-a", http.StatusOK},
		{"header scoped to key", "key-a", "tab-1", "key-a/tab-1", http.StatusOK},
		{"same header other key", "key-b", "tab-1", "key-b/tab-1", http.StatusOK},
		{"too long", "key-a", strings.Repeat("x", 200), "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(func(c *gin.Context) {
				c.Set(ContextAPIKey, tt.apiKey)
				c.Next()
			})
			router.Use(PreviewSession())
			router.GET("/test", func(c *gin.Context) {
				c.String(http.StatusOK, c.GetString(ContextSession))
			})

			req := httptest.NewRequest("GET", "/test", nil)
			if tt.header != "" {
				req.Header.Set(SessionHeader, tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, w.Code)
			}
			if tt.status == http.StatusOK && w.Body.String() != tt.want {
				t.Errorf("session = %q, want %q", w.Body.String(), tt.want)
			}
		})
	}
}
