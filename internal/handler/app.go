package handler

import (
	"net/http"

	"github.com/haatos/simple-release/internal"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

type ServerOptions struct {
	BaseURL           string
	RequestsPerSecond float64
}

// NewServer builds the registry HTTP server.
func NewServer(
	packageService PackageServicer,
	tokens TokenAuthenticator,
	logger zerolog.Logger,
	opts ServerOptions,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = NewErrorHandler(logger)
	e.Use(
		middleware.Recover(),
		RequestLogger(logger),
	)
	if opts.RequestsPerSecond > 0 {
		e.Use(middleware.RateLimiterWithConfig(internal.GetRateLimiterConfig(opts.RequestsPerSecond)))
	}

	e.GET("/healthz", GetHealthz)
	SetupPackageRoutes(e.Group(""), packageService, tokens, opts.BaseURL)
	return e
}

func GetHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
