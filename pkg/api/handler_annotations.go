package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentevalhq/agenteval/pkg/models"
)

// PutRunAnnotation handles POST /api/evaluations/:id/annotations.
func (s *Server) PutRunAnnotation(c *gin.Context) {
	var annotation models.RunAnnotation
	if err := c.ShouldBindJSON(&annotation); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	annotation.EvaluationID = c.Param("id")
	if err := s.store.PutRunAnnotation(c.Request.Context(), &annotation); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, annotation)
}

// ListRunAnnotations handles GET /api/evaluations/:id/annotations.
func (s *Server) ListRunAnnotations(c *gin.Context) {
	annotations, err := s.store.ListRunAnnotations(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, annotations)
}

// PutActionAnnotation handles POST /api/evaluations/:id/action-annotations.
func (s *Server) PutActionAnnotation(c *gin.Context) {
	var annotation models.ActionAnnotation
	if err := c.ShouldBindJSON(&annotation); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	annotation.EvaluationID = c.Param("id")
	if err := s.store.PutActionAnnotation(c.Request.Context(), &annotation); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, annotation)
}

// ListActionAnnotations handles GET /api/evaluations/:id/action-annotations.
func (s *Server) ListActionAnnotations(c *gin.Context) {
	annotations, err := s.store.ListActionAnnotations(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, annotations)
}
