package rest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/KevinKickass/OpenVNA/internal/api/websocket"
	"github.com/KevinKickass/OpenVNA/internal/interfaces"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	router   *gin.Engine
	backend  interfaces.Backend
	logger   *zap.Logger
	server   *http.Server
	wsHub    *websocket.Hub
	gatherer prometheus.Gatherer
}

func NewServer(backend interfaces.Backend, logger *zap.Logger, wsHub *websocket.Hub, gatherer prometheus.Gatherer) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:   gin.New(),
		backend:  backend,
		logger:   logger,
		wsHub:    wsHub,
		gatherer: gatherer,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", backend.Config().Server.HTTPPort),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// acquisitions hold the response until the sweep completes
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens synchronously so a taken port is reported, then serves
// in the background.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}

	s.logger.Info("Starting REST API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("REST server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down REST API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery())
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(CORSMiddleware())

	s.router.GET("/health", s.healthCheck)
	if s.gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := s.router.Group("/api/v1")
	{
		system := v1.Group("/system")
		{
			system.GET("/status", s.getSystemStatus)
			system.POST("/shutdown", s.shutdown)
			system.GET("/serial-ports", s.listSerialPorts)
		}

		profiles := v1.Group("/profiles")
		{
			profiles.GET("", s.listProfiles)
			profiles.GET("/:name", s.getProfile)
		}

		instruments := v1.Group("/instruments")
		{
			instruments.GET("", s.listInstruments)
			instruments.POST("", s.openInstrument)
			instruments.GET("/:id", s.getInstrument)
			instruments.DELETE("/:id", s.closeInstrument)

			channel := instruments.Group("/:id/channels/:ch")
			{
				channel.GET("/properties", s.listProperties)
				channel.GET("/properties/:name", s.getProperty)
				channel.PUT("/properties/:name", s.setProperty)
				channel.GET("/frequency", s.getFrequency)
				channel.PUT("/frequency", s.setFrequency)
				channel.POST("/sweep", s.sweep)
				channel.POST("/acquire", s.acquire)
				channel.POST("/clear-averaging", s.clearAveraging)
			}
		}

		measurements := v1.Group("/measurements")
		{
			measurements.GET("", s.listMeasurements)
			measurements.GET("/:id", s.getMeasurement)
		}

		ws := v1.Group("/ws")
		{
			ws.GET("/live", s.wsLiveConnection)
			ws.GET("/status", s.wsStatus)
		}
	}
}

// WebSocket handlers
func (s *Server) wsLiveConnection(c *gin.Context) {
	websocket.ServeWs(s.wsHub, c.Writer, c.Request)
}

func (s *Server) wsStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": s.wsHub.GetClientCount(),
	})
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}
