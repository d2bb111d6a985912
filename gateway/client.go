// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package gateway

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 15 * time.Second
	maxMessageSize = 8 * 1024
	sendQueueSize  = 16
)

// Client is one live connection. Identity is fixed at connect time; the
// token is kept so privileged actions can be re-verified.
type Client struct {
	conn          *websocket.Conn
	send          chan []byte
	pollID        string
	participantID string
	name          string
	token         string
}

func newClient(conn *websocket.Conn, pollID, participantID, name, token string) *Client {
	return &Client{
		conn:          conn,
		send:          make(chan []byte, sendQueueSize),
		pollID:        pollID,
		participantID: participantID,
		name:          name,
		token:         token,
	}
}

// writePump sends queued events and keep-alive pings. It exits when the
// send queue is closed or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump hands each inbound frame to handle, one at a time, so one
// connection's actions never overlap. It returns when the peer goes away.
func (c *Client) readPump(handle func(data []byte)) {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read failed", "poll_id", c.pollID, "participant_id", c.participantID, "error", err)
			}
			return
		}
		handle(data)
	}
}
