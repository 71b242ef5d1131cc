package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/viant/gmetric"
)

// Server exposes a Gateway over HTTP, every path not claimed by the server itself is handed to the gateway.
type Server struct {
	router *gin.Engine
	server *http.Server
	logger *logrus.Entry
}

func NewServer(port int, gateway *Gateway, metrics *gmetric.Service, logger *logrus.Entry) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	if metrics != nil {
		router.GET(MetricURI+"*path", gin.WrapH(gmetric.NewHandler(MetricURI, metrics)))
	}
	router.NoRoute(gin.WrapH(gateway))
	router.NoMethod(gin.WrapH(gateway))

	return &Server{
		router: router,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run blocks until the server stops, a graceful Shutdown is not reported as an error.
func (s *Server) Run() error {
	s.logger.WithField("addr", s.server.Addr).Info("gateway listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func requestLogger(logger *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"clientIP": c.ClientIP(),
		}).Info("request")
	}
}
