package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/google/uuid"

	"github.com/codeready-toolchain/llmcouncil/pkg/conversation"
)

// listConversationsHandler handles GET /api/conversations.
func (s *Server) listConversationsHandler(c *echo.Context) error {
	list, err := s.store.List(c.Request().Context())
	if err != nil {
		return mapServiceError(err)
	}
	if list == nil {
		list = []conversation.Metadata{}
	}
	return c.JSON(http.StatusOK, list)
}

// createConversationHandler handles POST /api/conversations.
func (s *Server) createConversationHandler(c *echo.Context) error {
	id := uuid.NewString()
	conv, err := s.store.Create(c.Request().Context(), id)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, conv)
}

// getConversationHandler handles GET /api/conversations/:id.
func (s *Server) getConversationHandler(c *echo.Context) error {
	id := c.Param("id")
	conv, err := s.store.Get(c.Request().Context(), id)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, conv)
}

// deleteConversationHandler handles DELETE /api/conversations/:id.
func (s *Server) deleteConversationHandler(c *echo.Context) error {
	id := c.Param("id")
	if err := s.store.Delete(c.Request().Context(), id); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
