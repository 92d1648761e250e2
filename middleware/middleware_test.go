package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"churn-prediction-api/config"
	"churn-prediction-api/logger"
	"churn-prediction-api/models"
	"churn-prediction-api/services"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(auth *services.AuthService) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), AccessLog(logger.Nop()))
	r.GET("/open", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFrom(c)) })
	r.GET("/me", RequireAuth(auth), func(c *gin.Context) {
		c.String(http.StatusOK, ClaimsFrom(c).Username)
	})
	r.DELETE("/admin", RequireAuth(auth), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestRequestID(t *testing.T) {
	r := newRouter(services.NewAuthService(config.JWTConfig{Secret: "s", ExpiryHours: 1}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/open", nil))
	generated := w.Header().Get(HeaderRequestID)
	if generated == "" || w.Body.String() != generated {
		t.Errorf("generated id = %q, body = %q", generated, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(HeaderRequestID); got != "req-123" {
		t.Errorf("propagated id = %q", got)
	}
}

func TestRequireAuthAndAdmin(t *testing.T) {
	auth := services.NewAuthService(config.JWTConfig{Secret: "s", ExpiryHours: 1})
	r := newRouter(auth)
	userToken, _ := auth.GenerateToken(models.User{ID: 1, Username: "ana", Role: models.RoleUser})
	adminToken, _ := auth.GenerateToken(models.User{ID: 2, Username: "root", Role: models.RoleAdmin})

	tests := []struct {
		name   string
		method string
		path   string
		header string
		want   int
	}{
		{"no header", http.MethodGet, "/me", "", http.StatusUnauthorized},
		{"not bearer", http.MethodGet, "/me", "Basic abc", http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/me", "Bearer nope", http.StatusUnauthorized},
		{"user", http.MethodGet, "/me", "Bearer " + userToken, http.StatusOK},
		{"user on admin route", http.MethodDelete, "/admin", "Bearer " + userToken, http.StatusForbidden},
		{"admin", http.MethodDelete, "/admin", "Bearer " + adminToken, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestSetupCORS(t *testing.T) {
	tests := []struct {
		name    string
		origins string
		origin  string
		want    string
	}{
		{"wildcard", "*", "http://any.example", "*"},
		{"listed", "http://a.example, http://b.example", "http://b.example", "http://b.example"},
		{"unlisted", "http://a.example", "http://evil.example", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(SetupCORS(config.CORSConfig{AllowedOrigins: tt.origins}))
			r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.want)
			}
		})
	}
}
