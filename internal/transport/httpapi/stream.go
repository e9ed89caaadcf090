package httpapi

import (
	"context"

	"github.com/labstack/echo/v4"
	"golang.org/x/net/websocket"
)

// stream upgrades the request, sends the message built by first and then relays every
// message published to topic until the client disconnects or the server shuts down.
// The subscription is registered before first runs so no update is lost in between.
func (s *Server) stream(c echo.Context, topic string, first func() (any, error)) error {
	websocket.Server{Handler: func(conn *websocket.Conn) {
		defer conn.Close()

		sub := s.hub.Subscribe(topic)
		defer s.hub.Unsubscribe(sub)
		logger := s.logger.With("topic", topic)
		logger.Debug("stream subscriber connected")
		defer logger.Debug("stream subscriber disconnected")

		msg, err := first()
		if err != nil {
			logger.Error("build initial stream message failed", "error", err)
			return
		}
		if err := websocket.JSON.Send(conn, msg); err != nil {
			return
		}

		ctx, cancel := context.WithCancel(s.streams)
		defer cancel()
		go func() {
			defer cancel()
			var discard string
			for {
				if err := websocket.Message.Receive(conn, &discard); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.C():
				if !ok {
					return
				}
				if err := websocket.JSON.Send(conn, msg); err != nil {
					logger.Debug("stream send failed", "error", err)
					return
				}
			}
		}
	}}.ServeHTTP(c.Response(), c.Request())
	return nil
}
