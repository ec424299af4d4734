package rest

import (
	eventctrl "github.com/pixzlo/bridge/api/rest/controller/event"
	"github.com/pixzlo/bridge/api/rest/controller/message"
	"github.com/pixzlo/bridge/internal/event"
	"github.com/pixzlo/bridge/internal/router"
	"github.com/labstack/echo/v4"
)

// Bind the REST endpoints to the versioned endpoint group.
func Bind(g *echo.Group, r *router.Router, bus event.Bus) {
	// messages
	{
		ctrl := message.New(r)
		g.POST("/messages", ctrl.Post)
		g.GET("/messages/types", ctrl.Types)
	}

	// events
	{
		ctrl := eventctrl.New(bus)
		g.GET("/events", ctrl.Stream)
	}
}
