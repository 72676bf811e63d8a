package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/agentevalhq/agenteval/pkg/models"
	"github.com/agentevalhq/agenteval/pkg/store"
)

// CreateAgent handles POST /api/agents.
func (s *Server) CreateAgent(c *gin.Context) {
	var agent models.Agent
	if err := c.ShouldBindJSON(&agent); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.store.CreateAgent(c.Request.Context(), &agent); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, agent)
}

// ListAgents handles GET /api/agents.
func (s *Server) ListAgents(c *gin.Context) {
	agents, err := s.store.ListAgents(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, agents)
}

// GetAgent handles GET /api/agents/:id.
func (s *Server) GetAgent(c *gin.Context) {
	agent, err := s.store.GetAgent(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, agent)
}

// UpdateAgent handles PATCH /api/agents/:id.
func (s *Server) UpdateAgent(c *gin.Context) {
	var agent models.Agent
	if err := c.ShouldBindJSON(&agent); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	agent.ID = c.Param("id")
	if err := s.store.UpdateAgent(c.Request.Context(), &agent); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, agent)
}

// DeleteAgent handles DELETE /api/agents/:id.
func (s *Server) DeleteAgent(c *gin.Context) {
	if err := s.store.DeleteAgent(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreatePromptVersion handles POST /api/agents/:id/prompts.
func (s *Server) CreatePromptVersion(c *gin.Context) {
	var prompt models.PromptVersion
	if err := c.ShouldBindJSON(&prompt); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	prompt.AgentID = c.Param("id")
	if err := s.store.CreatePromptVersion(c.Request.Context(), &prompt); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, prompt)
}

// ListPromptVersions handles GET /api/agents/:id/prompts.
func (s *Server) ListPromptVersions(c *gin.Context) {
	prompts, err := s.store.ListPromptVersions(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, prompts)
}

// ActivatePrompt handles POST /api/agents/:id/prompts/:version/activate.
func (s *Server) ActivatePrompt(c *gin.Context) {
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil {
		respondError(c, store.NewValidationError("version", "must be an integer"))
		return
	}
	if err := s.store.SetActivePrompt(c.Request.Context(), c.Param("id"), version); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent_id": c.Param("id"), "active_version": version})
}
