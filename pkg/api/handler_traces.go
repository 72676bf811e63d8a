package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentevalhq/agenteval/pkg/models"
)

// CreateTrace handles POST /api/traces. Ingestion pipelines push scrubbed
// production interactions here for review.
func (s *Server) CreateTrace(c *gin.Context) {
	var trace models.ProductionTrace
	if err := c.ShouldBindJSON(&trace); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.store.CreateTrace(c.Request.Context(), &trace); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, trace)
}

// ListTraces handles GET /api/traces?status=new.
func (s *Server) ListTraces(c *gin.Context) {
	traces, err := s.store.ListTraces(c.Request.Context(), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, traces)
}

// GetTrace handles GET /api/traces/:id.
func (s *Server) GetTrace(c *gin.Context) {
	trace, err := s.store.GetTrace(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trace)
}

// AnnotateTrace handles POST /api/traces/:id/annotate.
func (s *Server) AnnotateTrace(c *gin.Context) {
	var annotation models.TraceAnnotation
	if err := c.ShouldBindJSON(&annotation); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	annotation.TraceID = c.Param("id")
	if err := s.store.PutTraceAnnotation(c.Request.Context(), &annotation); err != nil {
		respondError(c, err)
		return
	}
	if _, err := s.store.UpdateTraceStatus(c.Request.Context(), annotation.TraceID, "reviewed"); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, annotation)
}

// ConvertTrace handles POST /api/traces/:id/convert: promote a reviewed trace
// into a regression test case on the given dataset.
func (s *Server) ConvertTrace(c *gin.Context) {
	var req struct {
		DatasetID string `json:"dataset_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	trace, err := s.store.GetTrace(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	tc := &models.TestCase{
		DatasetID:        req.DatasetID,
		Input:            trace.Input,
		ExpectedResponse: trace.Response,
	}
	if len(trace.ToolCalls) > 0 {
		seen := make(map[string]bool)
		for _, call := range trace.ToolCalls {
			if !seen[call.Name] {
				seen[call.Name] = true
				tc.MinimalToolSet = append(tc.MinimalToolSet, call.Name)
			}
		}
	}
	if trace.Response != "" {
		tc.ResponseQuality = &models.ResponseQualityExpectation{
			Assertion: "is consistent with the reference response: " + trace.Response,
		}
	}
	if err := s.store.CreateTestCase(c.Request.Context(), tc); err != nil {
		respondError(c, err)
		return
	}

	conversion := &models.TraceConversion{
		TraceID:    trace.ID,
		TestCaseID: tc.ID,
		DatasetID:  req.DatasetID,
	}
	if err := s.store.RecordTraceConversion(c.Request.Context(), conversion); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"trace": trace.ID, "test_case": tc})
}
