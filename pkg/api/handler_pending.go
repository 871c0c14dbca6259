package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/llmcouncil/pkg/conversation"
)

// removePendingHandler handles POST /api/conversations/:id/pending/remove.
func (s *Server) removePendingHandler(c *echo.Context) error {
	id := c.Param("id")

	var req RemovePendingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	removed, err := s.store.RemovePendingUserMessages(c.Request().Context(), id, req.KeepLast)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, &RemovePendingResponse{Removed: removed})
}

// updateUserMessageStatusHandler handles POST
// /api/conversations/:id/user-message/status.
func (s *Server) updateUserMessageStatusHandler(c *echo.Context) error {
	id := c.Param("id")

	var req UpdateUserMessageStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	status := conversation.UserMessageStatus(req.Status)
	switch status {
	case conversation.StatusPending, conversation.StatusComplete, conversation.StatusFailed:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	found, err := s.store.MarkLastUserMessageStatus(c.Request().Context(), id, status)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, &StatusUpdateResponse{Success: found})
}
