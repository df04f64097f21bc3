package api

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// ServerConfig holds the HTTP-level settings of the API.
type ServerConfig struct {
	FrontendOrigins []string
	BodyLimit       string
}

// NewServer builds an Echo instance with the middleware stack and routes.
func NewServer(cfg ServerConfig, store Storage, deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = sonicSerializer{}
	e.HTTPErrorHandler = errorHandler(deps.Logger)

	e.Use(middleware.RequestID())
	e.Use(Observability(deps.Logger))
	// Panics come back as errors so Observability still ends the span.
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{DisableErrorHandler: true}))
	e.Use(CORS(cfg.FrontendOrigins))
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}
	e.Use(DecompressRequest())

	Register(e, store, deps)
	return e
}
