package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ResetAllData handles POST /api/admin/reset.
func (s *Server) ResetAllData(c *gin.Context) {
	if err := s.store.ResetAllData(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

// SeedDemo handles POST /api/admin/seed-demo.
func (s *Server) SeedDemo(c *gin.Context) {
	ds, err := s.store.SeedDemoData(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ds)
}
