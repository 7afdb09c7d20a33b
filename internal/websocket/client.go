package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const sendBuffer = 256

// Client is one UI connection. Events queued on Send go out one JSON
// document per text frame.
type Client struct {
	ID      string
	UserID  string
	Conn    *websocket.Conn
	Manager *Manager
	Send    chan []byte
}

func NewClient(id, userID string, conn *websocket.Conn, manager *Manager) *Client {
	return &Client{
		ID:      id,
		UserID:  userID,
		Conn:    conn,
		Manager: manager,
		Send:    make(chan []byte, sendBuffer),
	}
}

// Serve starts both pumps. The connection is closed once either side stops.
func (c *Client) Serve() {
	go c.WritePump()
	go c.ReadPump()
}

func (c *Client) ReadPump() {
	defer func() {
		c.Manager.unregister(c)
		c.Conn.Close()
	}()

	if c.Manager.maxMessageSize > 0 {
		c.Conn.SetReadLimit(c.Manager.maxMessageSize)
	}
	c.extendReadDeadline()
	c.Conn.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})

	for {
		kind, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.Manager.logger.Warn().Err(err).Str("client_id", c.ID).Msg("websocket read error")
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		c.extendReadDeadline()

		select {
		case c.Manager.HandleMessage <- &ClientMessage{Client: c, Message: message}:
		case <-c.Manager.done:
			return
		}
	}
}

func (c *Client) extendReadDeadline() {
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.pongWait))
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.Manager.pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.Send:
			if !ok {
				c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.write(websocket.TextMessage, event); err != nil {
				c.Manager.logger.Debug().Err(err).Str("client_id", c.ID).Msg("websocket write failed")
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(kind int, data []byte) error {
	c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.writeWait))
	return c.Conn.WriteMessage(kind, data)
}
