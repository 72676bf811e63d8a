package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentevalhq/agenteval/pkg/models"
)

// CreateDataset handles POST /api/datasets.
func (s *Server) CreateDataset(c *gin.Context) {
	var ds models.Dataset
	if err := c.ShouldBindJSON(&ds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.store.CreateDataset(c.Request.Context(), &ds); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ds)
}

// ListDatasets handles GET /api/datasets.
func (s *Server) ListDatasets(c *gin.Context) {
	datasets, err := s.store.ListDatasets(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, datasets)
}

// GetDataset handles GET /api/datasets/:id.
func (s *Server) GetDataset(c *gin.Context) {
	ds, err := s.store.GetDataset(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ds)
}

// DeleteDataset handles DELETE /api/datasets/:id.
func (s *Server) DeleteDataset(c *gin.Context) {
	if err := s.store.DeleteDataset(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateTestCase handles POST /api/datasets/:id/testcases.
func (s *Server) CreateTestCase(c *gin.Context) {
	var tc models.TestCase
	if err := c.ShouldBindJSON(&tc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tc.DatasetID = c.Param("id")
	if err := s.store.CreateTestCase(c.Request.Context(), &tc); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tc)
}

// ListTestCases handles GET /api/datasets/:id/testcases.
func (s *Server) ListTestCases(c *gin.Context) {
	cases, err := s.store.ListTestCases(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cases)
}

// GetTestCase handles GET /api/testcases/:id.
func (s *Server) GetTestCase(c *gin.Context) {
	tc, err := s.store.GetTestCase(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tc)
}

// UpdateTestCase handles PATCH /api/testcases/:id.
func (s *Server) UpdateTestCase(c *gin.Context) {
	var tc models.TestCase
	if err := c.ShouldBindJSON(&tc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tc.ID = c.Param("id")
	if err := s.store.UpdateTestCase(c.Request.Context(), &tc); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tc)
}

// DeleteTestCase handles DELETE /api/testcases/:id.
func (s *Server) DeleteTestCase(c *gin.Context) {
	if err := s.store.DeleteTestCase(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
