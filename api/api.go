package api

import (
	"context"
	"fmt"

	rest "github.com/pixzlo/bridge/api/rest/v1"
	"github.com/pixzlo/bridge/env"
	"github.com/pixzlo/bridge/internal/event"
	"github.com/pixzlo/bridge/internal/router"
	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
)

// API is the bridge's HTTP surface.
type API struct {
	echo *echo.Echo
}

// New assembles the bridge API around the message router and the
// event bus.
func New(r *router.Router, bus event.Bus) *API {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// health
	e.GET("/health", Health)

	// metrics
	prometheus.NewPrometheus("pixzlo", nil).Use(e)

	// REST
	rest.Bind(e.Group("/v1"), r, bus)

	return &API{echo: e}
}

// Start launches the bridge's API.
func (a *API) Start() error {
	return a.echo.Start(fmt.Sprintf(":%v", env.Variables().Port))
}

// Shutdown gracefully stops the API, waiting for in-flight requests.
func (a *API) Shutdown(ctx context.Context) error {
	return a.echo.Shutdown(ctx)
}
