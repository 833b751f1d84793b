package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/buildscout/pkg/services"
	"github.com/codeready-toolchain/buildscout/pkg/session"
)

var historyStatuses = map[string]bool{
	string(session.StatusCompleted):        true,
	string(session.StatusCanceled):         true,
	string(session.StatusTurnLimitReached): true,
	string(session.StatusFailed):           true,
	string(session.StatusTimedOut):         true,
}

// historyHandler handles GET /api/v1/history.
func (s *Server) historyHandler(c *gin.Context) {
	if s.historyService == nil {
		abortWithError(c, mapServiceError(services.ErrHistoryDisabled))
		return
	}

	filter := services.HistoryFilter{
		SessionID: c.Query("session_id"),
		Limit:     services.DefaultHistoryLimit,
	}

	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > services.MaxHistoryLimit {
			abortWithError(c, newHTTPError(http.StatusBadRequest,
				"invalid limit: must be between 1 and "+strconv.Itoa(services.MaxHistoryLimit)))
			return
		}
		filter.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			abortWithError(c, newHTTPError(http.StatusBadRequest, "invalid offset: must be a non-negative integer"))
			return
		}
		filter.Offset = n
	}
	if v := c.Query("status"); v != "" {
		if !historyStatuses[v] {
			abortWithError(c, newHTTPError(http.StatusBadRequest, "invalid status: "+v))
			return
		}
		filter.Status = v
	}
	if v := c.Query("search"); v != "" {
		if len(v) < 3 {
			abortWithError(c, newHTTPError(http.StatusBadRequest, "search query must be at least 3 characters"))
			return
		}
		filter.Search = v
	}

	records, err := s.historyService.List(c.Request.Context(), filter)
	if err != nil {
		abortWithError(c, mapServiceError(err))
		return
	}

	c.JSON(http.StatusOK, &HistoryResponse{
		Records: records,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	})
}
