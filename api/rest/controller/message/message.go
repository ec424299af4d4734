package message

import (
	"io"
	"net/http"

	"github.com/pixzlo/bridge/internal/router"
	"github.com/labstack/echo/v4"
)

type Controller struct {
	router *router.Router
}

func New(r *router.Router) *Controller {
	return &Controller{router: r}
}

// Post dispatches a single UI message to its handler. Messages with a
// type no handler claims get an empty 404, mirroring a channel that
// never answers.
func (ctrl *Controller) Post(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	msg, err := router.Decode(body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, router.Response{
			Success: false,
			Error:   err.Error(),
		})
	}

	resp, handled := ctrl.router.Dispatch(c.Request().Context(), msg)
	if !handled {
		return c.NoContent(http.StatusNotFound)
	}

	return c.JSON(http.StatusOK, resp)
}

// Types lists the message types the bridge accepts.
func (ctrl *Controller) Types(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]string{
		"types": ctrl.router.Types(),
	})
}
