package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// CouncilConfigBody is the wire shape for GET/POST /api/council-config:
// just the three fields a client can see or change. The gateway
// credentials (openrouter_api_key, custom_api_key, ...) live in the same
// on-disk document but are never round-tripped through this endpoint.
type CouncilConfigBody struct {
	Provider      string   `json:"provider"`
	CouncilModels []string `json:"council_models"`
	ChairmanModel string   `json:"chairman_model"`
}

// getCouncilConfigHandler handles GET /api/council-config.
func (s *Server) getCouncilConfigHandler(c *echo.Context) error {
	cfg, err := s.configStore.Get()
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, &CouncilConfigBody{
		Provider:      cfg.Provider,
		CouncilModels: cfg.CouncilModels,
		ChairmanModel: cfg.ChairmanModel,
	})
}

// setCouncilConfigHandler handles POST /api/council-config: a
// read-modify-write that only touches the three client-visible fields,
// leaving stored gateway credentials untouched.
func (s *Server) setCouncilConfigHandler(c *echo.Context) error {
	var body CouncilConfigBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	cfg, err := s.configStore.Get()
	if err != nil {
		return mapServiceError(err)
	}
	cfg.Provider = body.Provider
	cfg.CouncilModels = body.CouncilModels
	cfg.ChairmanModel = body.ChairmanModel

	if err := s.configStore.Set(cfg); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, &body)
}
