package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/buildscout/pkg/services"
)

// createInvestigationHandler handles POST /api/v1/investigations.
func (s *Server) createInvestigationHandler(c *gin.Context) {
	var req CreateInvestigationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, newHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error()))
		return
	}

	snap, err := s.investigations.Create(services.CreateInvestigationRequest{
		Prompt:   req.Prompt,
		Profile:  req.Profile,
		MaxTurns: req.MaxTurns,
	})
	if err != nil {
		abortWithError(c, mapServiceError(err))
		return
	}

	c.JSON(http.StatusAccepted, &InvestigationResponse{
		SessionID: snap.ID,
		Status:    string(snap.Status),
		Run:       snap.Run,
	})
}

// listInvestigationsHandler handles GET /api/v1/investigations.
func (s *Server) listInvestigationsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, &InvestigationListResponse{Investigations: s.investigations.List()})
}

// getInvestigationHandler handles GET /api/v1/investigations/:id.
func (s *Server) getInvestigationHandler(c *gin.Context) {
	snap, err := s.investigations.Get(c.Param("id"))
	if err != nil {
		abortWithError(c, mapServiceError(err))
		return
	}
	c.JSON(http.StatusOK, snap)
}

// cancelInvestigationHandler handles POST /api/v1/investigations/:id/cancel.
func (s *Server) cancelInvestigationHandler(c *gin.Context) {
	sessionID := c.Param("id")
	snap, err := s.investigations.Cancel(sessionID)
	if err != nil {
		abortWithError(c, mapServiceError(err))
		return
	}

	c.JSON(http.StatusOK, &CancelResponse{
		SessionID: sessionID,
		Status:    string(snap.Status),
		Message:   "Investigation cancellation requested",
	})
}

// followUpHandler handles POST /api/v1/investigations/:id/followup.
func (s *Server) followUpHandler(c *gin.Context) {
	var req FollowUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, newHTTPError(http.StatusBadRequest, "invalid request body: "+err.Error()))
		return
	}

	snap, err := s.investigations.FollowUp(c.Param("id"), req.Prompt)
	if err != nil {
		abortWithError(c, mapServiceError(err))
		return
	}

	c.JSON(http.StatusAccepted, &InvestigationResponse{
		SessionID: snap.ID,
		Status:    string(snap.Status),
		Run:       snap.Run,
	})
}
