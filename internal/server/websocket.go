// internal/server/websocket.go
package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/api/schemas"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The relay binds to loopback by default; IDE webviews send arbitrary origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClient is one IDE connection. Outbound it carries every workflow message;
// inbound it accepts interaction resolutions.
type wsClient struct {
	server *Server
	conn   *websocket.Conn
	events <-chan schemas.WorkflowMessage
	logger *zap.Logger
}

func (s *Server) handleEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Subscribe before the handshake completes so no message published
		// after the client connects is missed.
		events, unsubscribe := s.runner.Subscribe()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			unsubscribe()
			s.logger.Error("Failed to upgrade connection to websocket.", zap.Error(err))
			return
		}
		client := &wsClient{
			server: s,
			conn:   conn,
			events: events,
			logger: s.logger.With(zap.String("remote_addr", r.RemoteAddr)),
		}
		client.logger.Info("Websocket client connected.")

		done := make(chan struct{})
		go func() {
			defer close(done)
			client.writePump()
		}()
		client.readPump()
		// Unsubscribing closes events, which stops the write pump.
		unsubscribe()
		<-done
		client.logger.Info("Websocket client disconnected.")
	}
}

// readPump applies resolutions sent by the client until the connection closes.
func (c *wsClient) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var res schemas.InteractionResolution
		if err := c.conn.ReadJSON(&res); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("Websocket closed unexpectedly.", zap.Error(err))
			}
			return
		}
		if err := c.server.runner.ResolveUserInteraction(res); err != nil {
			c.logger.Warn("Failed to resolve interaction.", zap.String("id", res.ID), zap.Error(err))
		}
	}
}

// writePump forwards workflow messages and keeps the connection alive.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.events:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn("Failed to write workflow message.", zap.Error(err))
				c.drain()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.drain()
				return
			}
		}
	}
}

// drain discards events until the subscription is closed, so a dead client
// never blocks publishers.
func (c *wsClient) drain() {
	for range c.events {
	}
}
