package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	analysisdomain "github.com/solvetrace/solvetrace/internal/analysis/domain"
)

func (s *Server) AnalyzeUser(c *gin.Context) {
	var req analysisdomain.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.analysisSvc.Analyze(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetLatestAnalysis(c *gin.Context) {
	result, err := s.analysisSvc.GetLatest(c.Request.Context(), c.Param("userId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) AnalysisHealth(c *gin.Context) {
	if err := s.analysisSvc.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusOK, gin.H{
			"status":      "degraded",
			"aiAvailable": false,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"aiAvailable": true,
	})
}
