package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"momoguard/internal/handler"
	"momoguard/internal/middleware"
	"momoguard/internal/repository"
	"momoguard/internal/service"
)

// Deps are the components exposed through the admin API.
type Deps struct {
	Auth       service.AuthService
	Events     repository.ModerationEventRepository // nil when persistence is disabled
	Classifier handler.ImageClassifier
	Cache      handler.CacheStatser
	JWTSecret  []byte
}

type Server struct {
	router *gin.Engine
	deps   Deps
	log    *logrus.Logger
}

func NewServer(deps Deps, log *logrus.Logger) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	s := &Server{
		router: router,
		deps:   deps,
		log:    log,
	}

	s.setupRoutes()

	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	authHandler := handler.NewAuthHandler(s.deps.Auth, s.log)
	eventHandler := handler.NewEventHandler(s.deps.Events, s.log)
	detectHandler := handler.NewDetectHandler(s.deps.Classifier, s.log)

	// Ping route for health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.POST("/api/auth/login", authHandler.Login)

	authRequired := s.router.Group("/api")
	authRequired.Use(middleware.AuthMiddleware(s.deps.JWTSecret, s.log))
	{
		authRequired.GET("/events", eventHandler.ListRecent)
		authRequired.GET("/events/stats", eventHandler.Stats)
		authRequired.POST("/detect", detectHandler.Detect)
		authRequired.GET("/cache/stats", handler.CacheStats(s.deps.Cache))
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("Server starting on port %s...", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("HTTP request")
	}
}
