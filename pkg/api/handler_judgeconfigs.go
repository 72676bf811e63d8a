package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/agentevalhq/agenteval/pkg/models"
	"github.com/agentevalhq/agenteval/pkg/store"
)

// CreateJudgeConfig handles POST /api/judge-configs. Posting an existing id
// appends a new version.
func (s *Server) CreateJudgeConfig(c *gin.Context) {
	var jc models.JudgeConfig
	if err := c.ShouldBindJSON(&jc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.store.CreateJudgeConfig(c.Request.Context(), &jc); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, jc)
}

// ListJudgeConfigs handles GET /api/judge-configs.
func (s *Server) ListJudgeConfigs(c *gin.Context) {
	configs, err := s.store.ListJudgeConfigs(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, configs)
}

// ListJudgeConfigVersions handles GET /api/judge-configs/:id/versions.
func (s *Server) ListJudgeConfigVersions(c *gin.Context) {
	versions, err := s.store.ListJudgeConfigVersions(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

// GetActiveJudgeConfig handles GET /api/judge-configs/active.
func (s *Server) GetActiveJudgeConfig(c *gin.Context) {
	jc, err := s.store.GetActiveJudgeConfig(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, jc)
}

// ActivateJudgeConfig handles POST /api/judge-configs/:id/versions/:version/activate.
func (s *Server) ActivateJudgeConfig(c *gin.Context) {
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil {
		respondError(c, store.NewValidationError("version", "must be an integer"))
		return
	}
	if err := s.store.SetActiveJudgeConfig(c.Request.Context(), c.Param("id"), version); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"judge_config_id": c.Param("id"), "active_version": version})
}

// DeleteJudgeConfig handles DELETE /api/judge-configs/:id/versions/:version.
func (s *Server) DeleteJudgeConfig(c *gin.Context) {
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil {
		respondError(c, store.NewValidationError("version", "must be an integer"))
		return
	}
	if err := s.store.DeleteJudgeConfig(c.Request.Context(), c.Param("id"), version); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
