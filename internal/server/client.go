package server

import (
	"encoding/json"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"joker-briscola/internal/protocol"
)

const maxMessageSize = 64 * 1024

// Client represents a single WebSocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	ID   string // Connection id, assigned on registration
	Name string // Player's chosen name
}

func (c *Client) remoteAddr() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

// ReadPump handles incoming messages from the WebSocket connection.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("unexpected close", zap.String("client", c.ID), zap.Error(err))
			}
			break
		}

		var msg protocol.Message
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			c.hub.logger.Debug("malformed message", zap.String("client", c.ID), zap.Error(err))
			continue
		}

		if msg.Type != protocol.TypePing {
			c.hub.logger.Debug("message received", zap.String("type", msg.Type), zap.String("client", c.ID), zap.String("name", c.Name))
		}
		if !c.hub.enqueue(c, msg) {
			return
		}
	}
}

// WritePump handles outgoing messages to the WebSocket connection.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			c.hub.logger.Debug("write failed", zap.String("client", c.ID), zap.Error(err))
			break
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
