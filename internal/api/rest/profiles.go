package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GET /api/v1/profiles
func (s *Server) listProfiles(c *gin.Context) {
	names := s.backend.Profiles().Available()
	c.JSON(http.StatusOK, gin.H{
		"profiles": names,
		"count":    len(names),
	})
}

// GET /api/v1/profiles/:name
func (s *Server) getProfile(c *gin.Context) {
	p, err := s.backend.Profiles().Load(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"profile":  p.Definition.Profile,
		"models":   p.Definition.Models,
		"channels": p.Definition.Channels,
		"sweep":    p.Definition.Sweep,
		"commands": p.Commands.Names(),
	})
}
