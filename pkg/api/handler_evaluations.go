package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentevalhq/agenteval/pkg/models"
	"github.com/agentevalhq/agenteval/pkg/runner"
	"github.com/agentevalhq/agenteval/pkg/store"
)

// LaunchEvaluation handles POST /api/evaluations. The run is created in
// pending synchronously; execution happens on a background goroutine and
// clients poll GET /api/evaluations/:id.
func (s *Server) LaunchEvaluation(c *gin.Context) {
	var req runner.LaunchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.launch(c, req)
}

func (s *Server) launch(c *gin.Context, req runner.LaunchRequest) {
	launched, err := s.coordinator.Launch(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	go func() {
		if err := s.coordinator.Execute(context.Background(), launched); err != nil {
			slog.Error("Run execution failed", "eval_id", launched.Run.ID, "error", err)
		}
	}()

	c.JSON(http.StatusAccepted, launched.Run)
}

// ListEvaluations handles GET /api/evaluations, optionally filtered by
// agent_id.
func (s *Server) ListEvaluations(c *gin.Context) {
	var (
		runs []models.EvaluationRun
		err  error
	)
	if agentID := c.Query("agent_id"); agentID != "" {
		runs, err = s.store.ListEvaluationsByAgent(c.Request.Context(), agentID)
	} else {
		runs, err = s.store.ListEvaluations(c.Request.Context())
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, runs)
}

// GetEvaluation handles GET /api/evaluations/:id.
func (s *Server) GetEvaluation(c *gin.Context) {
	run, err := s.store.GetEvaluation(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// GetTestCaseResult handles GET /api/evaluations/:id/results/:tcid.
func (s *Server) GetTestCaseResult(c *gin.Context) {
	run, err := s.store.GetEvaluation(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	tcID := c.Param("tcid")
	for i := range run.TestCases {
		if run.TestCases[i].TestCaseID == tcID {
			c.JSON(http.StatusOK, run.TestCases[i])
			return
		}
	}
	respondError(c, store.ErrNotFound)
}

// GetEvaluationCosts handles GET /api/evaluations/:id/costs.
func (s *Server) GetEvaluationCosts(c *gin.Context) {
	summary, err := s.store.SummarizeRunCosts(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// CancelEvaluation handles POST /api/evaluations/:id/cancel. Cancelling a
// terminal run is a no-op; the current state comes back unchanged.
func (s *Server) CancelEvaluation(c *gin.Context) {
	run, err := s.store.GetEvaluation(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if run.Status.IsTerminal() {
		c.JSON(http.StatusOK, run)
		return
	}

	if s.coordinator.Registry().Cancel(run.ID) {
		run.StatusMessage = "cancellation requested"
		c.JSON(http.StatusAccepted, run)
		return
	}

	// Not in flight: a pending run whose goroutine never started. Force the
	// terminal state directly.
	run.Status = models.RunCancelled
	run.AppendHistory("cancelled before execution started")
	if err := s.store.SaveEvaluation(c.Request.Context(), run); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// ReEvaluate handles POST /api/evaluations/:id/re-evaluate: launch a fresh
// run with the source run's agent, dataset, and pinned versions.
func (s *Server) ReEvaluate(c *gin.Context) {
	source, err := s.store.GetEvaluation(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	s.launch(c, runner.LaunchRequest{
		AgentID:            source.AgentID,
		DatasetID:          source.DatasetID,
		PromptVersion:      source.PromptVersion,
		JudgeConfigID:      source.JudgeConfigID,
		JudgeConfigVersion: source.JudgeConfigVersion,
		TimeoutSeconds:     source.TimeoutSeconds,
	})
}
