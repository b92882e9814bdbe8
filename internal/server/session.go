package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	sessiondomain "github.com/solvetrace/solvetrace/internal/session/domain"
	"github.com/solvetrace/solvetrace/pkg/db/pagination"
)

type ingestEventResponse struct {
	Success   bool   `json:"success"`
	EventID   string `json:"eventId"`
	SessionID string `json:"sessionId"`
	EventType string `json:"eventType"`
	ProblemID string `json:"problemId"`
}

func (s *Server) IngestEvent(c *gin.Context) {
	var payload sessiondomain.RawEventPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	// surfaced in the request log
	c.Set("event_type", payload.EventType)

	event, err := s.sessionSvc.Ingest(c.Request.Context(), payload)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, ingestEventResponse{
		Success:   true,
		EventID:   event.ID.String(),
		SessionID: event.SessionID,
		EventType: event.EventType,
		ProblemID: event.ProblemID,
	})
}

func (s *Server) GetEvent(c *gin.Context) {
	event, err := s.sessionSvc.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

func (s *Server) ListUserEvents(c *gin.Context) {
	req := sessiondomain.ListEventsRequest{
		UserID: c.Param("userId"),
	}

	var query struct {
		pagination.Pagination
		EventType string `form:"event_type"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.EventType = query.EventType
	req.PageToken = query.PageToken
	req.PageSize = query.PageSize

	resp, err := s.sessionSvc.ListUserEvents(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetUserStats(c *gin.Context) {
	stats, err := s.sessionSvc.GetUserStats(c.Request.Context(), c.Param("userId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (s *Server) GetActiveSession(c *gin.Context) {
	snapshot, err := s.sessionSvc.GetActiveSession(c.Request.Context(), c.Param("userId"), c.Param("problemId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) ListProblemEvents(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.sessionSvc.ListProblemEvents(c.Request.Context(), c.Param("title"), page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
