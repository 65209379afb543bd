package rest

import (
	"context"
	"net/http"

	"github.com/KevinKickass/OpenVNA/internal/transport"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GET /api/v1/system/status
func (s *Server) getSystemStatus(c *gin.Context) {
	status := s.backend.GetCurrentStatus()
	c.JSON(http.StatusOK, status)
}

// POST /api/v1/system/shutdown
func (s *Server) shutdown(c *gin.Context) {
	c.JSON(http.StatusAccepted, gin.H{
		"message": "Shutdown initiated",
	})

	// the request context ends with this response
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.backend.Config().Server.ShutdownTimeout)
		defer cancel()
		if err := s.backend.Shutdown(ctx); err != nil {
			s.logger.Error("Shutdown failed", zap.Error(err))
		}
	}()
}

// GET /api/v1/system/serial-ports
func (s *Server) listSerialPorts(c *gin.Context) {
	ports, err := transport.Ports()
	if err != nil {
		writeError(c, "Failed to enumerate serial ports", err)
		return
	}
	if ports == nil {
		ports = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"ports": ports,
		"count": len(ports),
	})
}
