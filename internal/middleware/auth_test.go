package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		token  string
		target string
		header string
		want   int
	}{
		{"auth disabled", "", "/api/status", "", http.StatusOK},
		{"missing token", "secret", "/api/status", "", http.StatusUnauthorized},
		{"wrong token", "secret", "/api/status", "Bearer nope", http.StatusUnauthorized},
		{"bearer token", "secret", "/api/status", "Bearer secret", http.StatusOK},
		{"query token", "secret", "/api/status?token=secret", "", http.StatusOK},
		{"health is public", "secret", "/api/health", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(AuthMiddleware(tt.token))
			r.GET("/api/status", func(c *gin.Context) { c.Status(http.StatusOK) })
			r.GET("/api/health", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
