package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/llmcouncil/pkg/conversation"
	"github.com/codeready-toolchain/llmcouncil/pkg/council"
)

// mapServiceError maps conversation/council sentinel errors to HTTP error
// responses, following tarsy's services.ErrNotFound / mapServiceError
// convention.
func mapServiceError(err error) *echo.HTTPError {
	if errors.Is(err, conversation.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	}
	if errors.Is(err, conversation.ErrNoSuchUser) {
		return echo.NewHTTPError(http.StatusNotFound, "no user message found")
	}
	if errors.Is(err, conversation.ErrBadRequest) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if errors.Is(err, council.ErrNoMembersAvailable) {
		return echo.NewHTTPError(http.StatusBadRequest, "no council members available")
	}

	// Unexpected error.
	slog.Error("unexpected service error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
