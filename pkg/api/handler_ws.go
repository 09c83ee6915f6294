package api

import (
	"net/http"

	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/quorum/pkg/events"
)

// wsHandler upgrades HTTP connections to WebSocket and streams reasoning
// events. A conversation_id query parameter narrows the stream to one
// conversation; without it the client receives all events.
func (s *Server) wsHandler(c *echo.Context) error {
	if s.hub == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "WebSocket not available")
	}

	channel := events.ChannelAll
	if id := c.QueryParam("conversation_id"); id != "" {
		channel = events.ConversationChannel(id)
	}

	opts := &websocket.AcceptOptions{InsecureSkipVerify: true}
	if s.cfg != nil && len(s.cfg.Server.AllowedWSOrigins) > 0 {
		opts = &websocket.AcceptOptions{OriginPatterns: s.cfg.Server.AllowedWSOrigins}
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), opts)
	if err != nil {
		return err
	}

	// StreamTo blocks until the WebSocket closes.
	_ = s.hub.StreamTo(c.Request().Context(), conn, channel)
	return nil
}
