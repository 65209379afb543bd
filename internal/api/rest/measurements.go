package rest

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/KevinKickass/OpenVNA/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func (s *Server) requireStore(c *gin.Context) bool {
	if s.backend.Measurements() == nil {
		c.JSON(http.StatusServiceUnavailable, types.NewErrorResponse("STORAGE_503", "Measurement archive disabled", nil))
		return false
	}
	return true
}

// GET /api/v1/measurements?instrument=bench&limit=20
func (s *Server) listMeasurements(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "Invalid limit", fmt.Errorf("limit %q", raw))
			return
		}
		limit = n
	}

	summaries, err := s.backend.Measurements().ListMeasurements(c.Request.Context(), c.Query("instrument"), limit)
	if err != nil {
		writeError(c, "Failed to list measurements", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"measurements": summaries,
		"count":        len(summaries),
	})
}

// GET /api/v1/measurements/:id
func (s *Server) getMeasurement(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid measurement ID", err)
		return
	}

	m, err := s.backend.Measurements().LoadMeasurement(c.Request.Context(), id)
	if err != nil {
		writeError(c, "Failed to load measurement", err)
		return
	}

	c.JSON(http.StatusOK, m)
}
