// Package healthsrv exposes the daemon's health snapshot over HTTP: a
// liveness probe, a readiness probe backed by Daemon.GetHealth, and a
// combined health document. This is the only HTTP surface the orchestrator
// core carries — no trading or market-data routes, which are out of scope.
package healthsrv

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ingmarAvocado/fullon-ticker-service/internal/daemon"
)

// HealthSource is the minimal view of the Daemon the server needs.
type HealthSource interface {
	GetHealth() daemon.Health
}

// Server wraps an *http.Server exposing /health, /health/live, and
// /health/ready.
type Server struct {
	httpServer *http.Server
	logger     *logrus.Logger
}

// New builds a Server listening on addr. logger may be nil.
func New(addr string, src HealthSource, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET"}
	router.Use(cors.New(corsConfig))

	registerRoutes(router, src)

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

func registerRoutes(router *gin.Engine, src HealthSource) {
	router.GET("/health", func(c *gin.Context) {
		h := src.GetHealth()
		status := http.StatusOK
		if h.Status == daemon.StatusErrored {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, h)
	})

	router.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "alive",
			"timestamp": time.Now(),
		})
	})

	router.GET("/health/ready", func(c *gin.Context) {
		h := src.GetHealth()
		if !h.Running {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "not ready",
				"timestamp": time.Now(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "ready",
			"timestamp": time.Now(),
		})
	})
}

// Start begins serving in the background. It returns immediately; errors
// other than http.ErrServerClosed are logged.
func (s *Server) Start() {
	go func() {
		s.logger.WithFields(logrus.Fields{"address": s.httpServer.Addr}).Info("starting health HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithFields(logrus.Fields{"error": err}).Error("health server failed")
		}
	}()
}

// Shutdown gracefully stops the HTTP server, respecting ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
