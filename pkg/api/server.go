// Package api exposes the evaluation engine over HTTP with gin.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agentevalhq/agenteval/pkg/proposals"
	"github.com/agentevalhq/agenteval/pkg/runner"
	"github.com/agentevalhq/agenteval/pkg/store"
)

// Server holds the wired engine components behind the HTTP surface.
type Server struct {
	store       *store.Client
	coordinator *runner.Coordinator
	generator   *proposals.Generator
	corsOrigins []string
}

// NewServer creates the API server.
func NewServer(st *store.Client, coordinator *runner.Coordinator, generator *proposals.Generator, corsOrigins []string) *Server {
	return &Server{
		store:       st,
		coordinator: coordinator,
		generator:   generator,
		corsOrigins: corsOrigins,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(s.corsOrigins))

	r.GET("/health", s.Health)

	api := r.Group("/api")
	{
		api.POST("/agents", s.CreateAgent)
		api.GET("/agents", s.ListAgents)
		api.GET("/agents/:id", s.GetAgent)
		api.PATCH("/agents/:id", s.UpdateAgent)
		api.DELETE("/agents/:id", s.DeleteAgent)

		api.POST("/agents/:id/prompts", s.CreatePromptVersion)
		api.GET("/agents/:id/prompts", s.ListPromptVersions)
		api.POST("/agents/:id/prompts/:version/activate", s.ActivatePrompt)

		api.POST("/agents/:id/proposals/generate", s.GenerateProposals)
		api.GET("/agents/:id/proposals", s.ListProposals)

		api.POST("/datasets", s.CreateDataset)
		api.GET("/datasets", s.ListDatasets)
		api.GET("/datasets/:id", s.GetDataset)
		api.DELETE("/datasets/:id", s.DeleteDataset)
		api.POST("/datasets/:id/testcases", s.CreateTestCase)
		api.GET("/datasets/:id/testcases", s.ListTestCases)

		api.GET("/testcases/:id", s.GetTestCase)
		api.PATCH("/testcases/:id", s.UpdateTestCase)
		api.DELETE("/testcases/:id", s.DeleteTestCase)

		api.POST("/judge-configs", s.CreateJudgeConfig)
		api.GET("/judge-configs", s.ListJudgeConfigs)
		api.GET("/judge-configs/active", s.GetActiveJudgeConfig)
		api.GET("/judge-configs/:id/versions", s.ListJudgeConfigVersions)
		api.POST("/judge-configs/:id/versions/:version/activate", s.ActivateJudgeConfig)
		api.DELETE("/judge-configs/:id/versions/:version", s.DeleteJudgeConfig)

		api.POST("/evaluations", s.LaunchEvaluation)
		api.GET("/evaluations", s.ListEvaluations)
		api.GET("/evaluations/:id", s.GetEvaluation)
		api.GET("/evaluations/:id/results/:tcid", s.GetTestCaseResult)
		api.GET("/evaluations/:id/costs", s.GetEvaluationCosts)
		api.POST("/evaluations/:id/cancel", s.CancelEvaluation)
		api.POST("/evaluations/:id/re-evaluate", s.ReEvaluate)

		api.POST("/evaluations/:id/annotations", s.PutRunAnnotation)
		api.GET("/evaluations/:id/annotations", s.ListRunAnnotations)
		api.POST("/evaluations/:id/action-annotations", s.PutActionAnnotation)
		api.GET("/evaluations/:id/action-annotations", s.ListActionAnnotations)

		api.POST("/proposals/:id/apply", s.ApplyProposal)
		api.POST("/proposals/:id/dismiss", s.DismissProposal)
		api.DELETE("/proposals/:id", s.DeleteProposal)

		api.POST("/traces", s.CreateTrace)
		api.GET("/traces", s.ListTraces)
		api.GET("/traces/:id", s.GetTrace)
		api.POST("/traces/:id/annotate", s.AnnotateTrace)
		api.POST("/traces/:id/convert", s.ConvertTrace)

		api.POST("/admin/reset", s.ResetAllData)
		api.POST("/admin/seed-demo", s.SeedDemo)
	}

	return r
}

// Health reports process and database liveness.
func (s *Server) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := s.store.DB().PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "unreachable",
			"error":    err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "ok",
	})
}
