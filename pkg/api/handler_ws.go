package api

import (
	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"
)

// wsHandler upgrades the connection and delegates to wsapi.Manager,
// which blocks for the lifetime of the session (spec.md §4.I).
func (s *Server) wsHandler(c *echo.Context) error {
	if s.session == nil {
		return echo.NewHTTPError(503, "websocket session manager not available")
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return err
	}

	s.session.HandleConnection(c.Request().Context(), conn, c.Request().RemoteAddr)
	return nil
}
