package server

import (
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"momoguard/internal/detector"
	"momoguard/internal/models"
	"momoguard/internal/perm_cache"
	"momoguard/internal/service"
)

var secret = []byte("server-secret")

type stubClassifier struct{}

func (stubClassifier) Classify(image.Image) (detector.Result, error) {
	return detector.Result{HasPixels: true, Momo: true}, nil
}

type stubCache struct{}

func (stubCache) Stats() perm_cache.Stats { return perm_cache.Stats{BotChats: 1} }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)

	hash, err := service.HashPassword("pw")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	return NewServer(Deps{
		Auth:       service.NewAuthService("admin", hash, secret, zap.NewNop()),
		Classifier: stubClassifier{},
		Cache:      stubCache{},
		JWTSecret:  secret,
	}, log)
}

func bearer(t *testing.T) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.Claims{
		Username:         "admin",
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return "Bearer " + token
}

func TestRoutes(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		auth   bool
		status int
	}{
		{name: "ping", method: http.MethodGet, path: "/ping", status: http.StatusOK},
		{name: "metrics", method: http.MethodGet, path: "/metrics", status: http.StatusOK},
		{name: "login", method: http.MethodPost, path: "/api/auth/login", body: `{"username":"admin","password":"pw"}`, status: http.StatusOK},
		{name: "login wrong password", method: http.MethodPost, path: "/api/auth/login", body: `{"username":"admin","password":"no"}`, status: http.StatusUnauthorized},
		{name: "cache stats needs token", method: http.MethodGet, path: "/api/cache/stats", status: http.StatusUnauthorized},
		{name: "cache stats", method: http.MethodGet, path: "/api/cache/stats", auth: true, status: http.StatusOK},
		{name: "events without storage", method: http.MethodGet, path: "/api/events", auth: true, status: http.StatusServiceUnavailable},
		{name: "detect needs token", method: http.MethodPost, path: "/api/detect", status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			if tt.auth {
				req.Header.Set("Authorization", bearer(t))
			}
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.status, w.Body.String())
			}
		})
	}
}
