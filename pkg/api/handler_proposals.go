package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentevalhq/agenteval/pkg/models"
	"github.com/agentevalhq/agenteval/pkg/proposals"
)

// GenerateProposals handles POST /api/agents/:id/proposals/generate.
// Generation is synchronous; annotation corpora are small.
func (s *Server) GenerateProposals(c *gin.Context) {
	var req struct {
		PromptVersion int `json:"prompt_version"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	generated, err := s.generator.Generate(c.Request.Context(), c.Param("id"), req.PromptVersion)
	if err != nil {
		respondError(c, err)
		return
	}
	if generated == nil {
		generated = []models.PromptProposal{}
	}
	c.JSON(http.StatusOK, generated)
}

// ListProposals handles GET /api/agents/:id/proposals?status=pending.
func (s *Server) ListProposals(c *gin.Context) {
	status := models.ProposalStatus(c.Query("status"))
	list, err := s.store.ListProposals(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// ApplyProposal handles POST /api/proposals/:id/apply. The new prompt version
// comes back activated.
func (s *Server) ApplyProposal(c *gin.Context) {
	prompt, err := proposals.Apply(c.Request.Context(), s.store, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, prompt)
}

// DismissProposal handles POST /api/proposals/:id/dismiss.
func (s *Server) DismissProposal(c *gin.Context) {
	proposal, err := s.store.UpdateProposalStatus(c.Request.Context(), c.Param("id"), models.ProposalDismissed)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, proposal)
}

// DeleteProposal handles DELETE /api/proposals/:id.
func (s *Server) DeleteProposal(c *gin.Context) {
	if err := s.store.DeleteProposal(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
