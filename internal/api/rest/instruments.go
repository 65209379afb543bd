package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/KevinKickass/OpenVNA/internal/config"
	"github.com/KevinKickass/OpenVNA/internal/devices"
	"github.com/KevinKickass/OpenVNA/internal/storage"
	"github.com/KevinKickass/OpenVNA/internal/types"
	"github.com/KevinKickass/OpenVNA/internal/vna"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *Server) session(c *gin.Context) (*devices.Session, bool) {
	session, err := s.backend.Sessions().Lookup(c.Param("id"))
	if err != nil {
		writeError(c, "Unknown instrument", err)
		return nil, false
	}
	return session, true
}

func channelIndex(c *gin.Context) (int, bool) {
	ch, err := strconv.Atoi(c.Param("ch"))
	if err != nil || ch <= 0 {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("BAD_REQUEST", "Invalid channel index", c.Param("ch")))
		return 0, false
	}
	return ch, true
}

// GET /api/v1/instruments
func (s *Server) listInstruments(c *gin.Context) {
	sessions := s.backend.Sessions().ListSessions()

	response := make([]devices.SessionInfo, 0, len(sessions))
	for _, session := range sessions {
		response = append(response, session.Info())
	}

	c.JSON(http.StatusOK, gin.H{
		"instruments": response,
		"count":       len(response),
	})
}

// GET /api/v1/instruments/:id
func (s *Server) getInstrument(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, session.Info())
}

type openRequest struct {
	Name         string `json:"name" binding:"required"`
	Profile      string `json:"profile" binding:"required"`
	Transport    string `json:"transport"`
	Address      string `json:"address" binding:"required"`
	BaudRate     int    `json:"baud_rate"`
	Timeout      string `json:"timeout"`
	SweepTimeout string `json:"sweep_timeout"`
	PollInterval string `json:"poll_interval"`
}

func (r openRequest) instrumentConfig() (config.InstrumentConfig, error) {
	cfg := config.InstrumentConfig{
		Name:      r.Name,
		Profile:   r.Profile,
		Transport: r.Transport,
		Address:   r.Address,
		BaudRate:  r.BaudRate,
	}
	durations := []struct {
		field string
		raw   string
		dst   *time.Duration
	}{
		{"timeout", r.Timeout, &cfg.Timeout},
		{"sweep_timeout", r.SweepTimeout, &cfg.SweepTimeout},
		{"poll_interval", r.PollInterval, &cfg.PollInterval},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", d.field, err)
		}
		*d.dst = v
	}
	return cfg.WithDefaults(), nil
}

// POST /api/v1/instruments
func (s *Server) openInstrument(c *gin.Context) {
	var req openRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	cfg, err := req.instrumentConfig()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		badRequest(c, "Invalid instrument configuration", err)
		return
	}

	session, err := s.backend.Sessions().Open(c.Request.Context(), cfg)
	if err != nil {
		writeError(c, "Failed to open instrument", err)
		return
	}

	c.JSON(http.StatusCreated, session.Info())
}

// DELETE /api/v1/instruments/:id
func (s *Server) closeInstrument(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}

	if err := s.backend.Sessions().Close(session.ID); err != nil {
		s.logger.Warn("Failed to close instrument cleanly", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Instrument closed",
		"id":      session.ID,
	})
}

// GET /api/v1/instruments/:id/channels/:ch/properties
func (s *Server) listProperties(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	ch, ok := channelIndex(c)
	if !ok {
		return
	}

	var props []vna.PropertyInfo
	err := session.DoChannel(c.Request.Context(), ch, func(_ context.Context, channel *vna.Channel) error {
		props = channel.Properties()
		return nil
	})
	if err != nil {
		writeError(c, "Failed to list properties", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"channel":    ch,
		"properties": props,
	})
}

// GET /api/v1/instruments/:id/channels/:ch/properties/:name
func (s *Server) getProperty(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	ch, ok := channelIndex(c)
	if !ok {
		return
	}

	name := c.Param("name")
	value, err := session.Get(c.Request.Context(), ch, name)
	if err != nil {
		writeError(c, "Failed to read "+name, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"channel":   ch,
		"property":  name,
		"value":     value,
		"timestamp": time.Now().Unix(),
	})
}

// PUT /api/v1/instruments/:id/channels/:ch/properties/:name
func (s *Server) setProperty(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	ch, ok := channelIndex(c)
	if !ok {
		return
	}

	var req struct {
		Value any `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	if req.Value == nil {
		badRequest(c, "Invalid request body", errors.New("value is required"))
		return
	}

	name := c.Param("name")
	if err := session.Set(c.Request.Context(), ch, name, req.Value); err != nil {
		writeError(c, "Failed to write "+name, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"channel":  ch,
		"property": name,
		"value":    req.Value,
	})
}

// GET /api/v1/instruments/:id/channels/:ch/frequency
func (s *Server) getFrequency(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	ch, ok := channelIndex(c)
	if !ok {
		return
	}

	f, err := session.Frequency(c.Request.Context(), ch)
	if err != nil {
		writeError(c, "Failed to read frequency", err)
		return
	}

	c.JSON(http.StatusOK, f)
}

// PUT /api/v1/instruments/:id/channels/:ch/frequency
func (s *Server) setFrequency(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	ch, ok := channelIndex(c)
	if !ok {
		return
	}

	var f types.FrequencySweep
	if err := c.ShouldBindJSON(&f); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	if f.Unit != "" {
		unit, err := types.ParseFrequencyUnit(string(f.Unit))
		if err != nil {
			badRequest(c, "Invalid frequency unit", err)
			return
		}
		f.Unit = unit
	}

	if err := session.SetFrequency(c.Request.Context(), ch, f); err != nil {
		writeError(c, "Failed to set frequency", err)
		return
	}

	c.JSON(http.StatusOK, f)
}

// POST /api/v1/instruments/:id/channels/:ch/sweep
func (s *Server) sweep(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	ch, ok := channelIndex(c)
	if !ok {
		return
	}

	start := time.Now()
	if err := session.Sweep(c.Request.Context(), ch); err != nil {
		writeError(c, "Sweep failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"channel":     ch,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// POST /api/v1/instruments/:id/channels/:ch/clear-averaging
func (s *Server) clearAveraging(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	ch, ok := channelIndex(c)
	if !ok {
		return
	}

	err := session.DoChannel(c.Request.Context(), ch, func(ctx context.Context, channel *vna.Channel) error {
		return channel.ClearAveraging(ctx)
	})
	if err != nil {
		writeError(c, "Failed to clear averaging", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Averaging restarted"})
}

type acquireRequest struct {
	// nil acquires the full port pair
	Ports []int `json:"ports"`
	Save  bool  `json:"save"`
}

// POST /api/v1/instruments/:id/channels/:ch/acquire
func (s *Server) acquire(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	ch, ok := channelIndex(c)
	if !ok {
		return
	}

	var req acquireRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body", err)
			return
		}
	}

	result, err := session.Acquire(c.Request.Context(), ch, req.Ports)
	if err != nil {
		writeError(c, "Acquisition failed", err)
		return
	}

	response := gin.H{"result": result}

	if store := s.backend.Measurements(); req.Save && store != nil {
		m := &storage.Measurement{
			SessionID:  session.ID,
			Instrument: session.Name,
			Profile:    session.Config.Profile,
			Model:      session.Info().Diagnostics.Model,
			Channel:    ch,
			Result:     result,
		}
		if err := store.SaveMeasurement(c.Request.Context(), m); err != nil {
			writeError(c, "Failed to archive measurement", err)
			return
		}
		response["measurement_id"] = m.ID
	}

	c.JSON(http.StatusOK, response)
}
