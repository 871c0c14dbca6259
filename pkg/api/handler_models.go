package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// availableModelsHandler handles GET /api/available-models?provider=local|remote.
func (s *Server) availableModelsHandler(c *echo.Context) error {
	provider := c.QueryParam("provider")

	var models []string
	var err error
	switch provider {
	case "local":
		if s.listLocalModels == nil {
			return c.JSON(http.StatusOK, &AvailableModelsResponse{Models: []string{}})
		}
		models, err = s.listLocalModels(c.Request().Context())
	case "remote", "":
		if s.listRemoteModels == nil {
			return c.JSON(http.StatusOK, &AvailableModelsResponse{Models: []string{}})
		}
		models, err = s.listRemoteModels(c.Request().Context())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown provider")
	}
	if err != nil {
		return mapServiceError(err)
	}
	if models == nil {
		models = []string{}
	}
	return c.JSON(http.StatusOK, &AvailableModelsResponse{Models: models})
}
